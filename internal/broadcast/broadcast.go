// Package broadcast pushes lightweight org-scoped events to the manager
// dashboard topic. Delivery is best effort; domain state never depends on
// a broadcast landing.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/orro3790/shiftbid-backend/pkg/logger"
)

// Publisher fans org-scoped dashboard events out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, organizationID uuid.UUID, event string, payload any) error
}

type message struct {
	Event          string    `json:"event"`
	OrganizationID uuid.UUID `json:"organizationId"`
	OccurredAt     time.Time `json:"occurredAt"`
	Payload        any       `json:"payload,omitempty"`
}

type pubsubPublisher struct {
	topic *gcppubsub.Publisher
	logg  *logger.Logger
}

// NewPubSub wraps a Pub/Sub publisher handle for dashboard broadcasts.
func NewPubSub(topic *gcppubsub.Publisher, logg *logger.Logger) (Publisher, error) {
	if topic == nil {
		return nil, fmt.Errorf("broadcast topic publisher required")
	}
	return &pubsubPublisher{topic: topic, logg: logg}, nil
}

func (p *pubsubPublisher) Publish(ctx context.Context, organizationID uuid.UUID, event string, payload any) error {
	if organizationID == uuid.Nil {
		return fmt.Errorf("organization id required")
	}
	data, err := json.Marshal(message{
		Event:          event,
		OrganizationID: organizationID,
		OccurredAt:     time.Now().UTC(),
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("marshal broadcast payload: %w", err)
	}

	result := p.topic.Publish(ctx, &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":           event,
			"organization_id": organizationID.String(),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		if p.logg != nil {
			p.logg.Error(p.logg.WithField(ctx, "event", event), "broadcast publish failed", err)
		}
		return fmt.Errorf("publish broadcast: %w", err)
	}
	return nil
}

type noopPublisher struct{}

// NewNoop returns a publisher that drops every broadcast. Used when the
// broadcast topic is not configured.
func NewNoop() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, uuid.UUID, string, any) error {
	return nil
}
