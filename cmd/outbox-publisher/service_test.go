package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/orro3790/shiftbid-backend/pkg/config"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
)

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "msg-1", nil
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	errFor   map[string]error
}

func (f *fakePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if err, ok := f.errFor[msg.Attributes["event_id"]]; ok {
		return fakePublishResult{err: err}
	}
	return fakePublishResult{}
}

func testService(t *testing.T, repo *fakeRepo, pub *fakePublisher) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	svc, err := NewService(ServiceParams{
		Config:    &config.Config{},
		Logger:    logg,
		DB:        fakeDB{},
		Repo:      repo,
		Publisher: pub,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func outboxEvent(t *testing.T, eventType enums.OutboxEventType) models.OutboxEvent {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateBidWindow,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	first := outboxEvent(t, enums.EventWindowOpened)
	second := outboxEvent(t, enums.EventWindowResolved)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{}

	svc := testService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work done")
	}
	if len(pub.messages) != 2 {
		t.Fatalf("expected 2 published messages got %d", len(pub.messages))
	}
	if got := pub.messages[0].Attributes["event_type"]; got != string(enums.EventWindowOpened) {
		t.Fatalf("unexpected event_type attribute %q", got)
	}
	if len(repo.published) != 2 {
		t.Fatalf("expected 2 marked published got %d", len(repo.published))
	}
}

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	failing := outboxEvent(t, enums.EventWindowOpened)
	healthy := outboxEvent(t, enums.EventWindowResolved)

	var failingEventID string
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(failing.Payload, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	failingEventID = envelope.EventID

	repo := &fakeRepo{events: []models.OutboxEvent{failing, healthy}}
	pub := &fakePublisher{errFor: map[string]error{failingEventID: errors.New("topic unavailable")}}

	svc := testService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work done")
	}
	if len(repo.failed) != 1 || repo.failed[0] != failing.ID {
		t.Fatalf("expected failing event marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != healthy.ID {
		t.Fatalf("expected healthy event marked published, got %v", repo.published)
	}
}

func TestProcessBatchMarksFailedOnBadEnvelope(t *testing.T) {
	broken := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventWindowOpened,
		AggregateType: enums.AggregateBidWindow,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`not-json`),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{broken}}
	pub := &fakePublisher{}

	svc := testService(t, repo, pub)

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(pub.messages) != 0 {
		t.Fatalf("expected no publishes for broken payload got %d", len(pub.messages))
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected broken event marked failed got %d", len(repo.failed))
	}
}

func TestProcessBatchEmptyReportsIdle(t *testing.T) {
	repo := &fakeRepo{}
	svc := testService(t, repo, &fakePublisher{})

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if processed {
		t.Fatal("expected idle batch")
	}
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	interval := 500 * time.Millisecond
	backoff := nextBackoff(interval, interval, maxBackoff)
	if backoff != time.Second {
		t.Fatalf("expected 1s got %s", backoff)
	}
	for i := 0; i < 10; i++ {
		backoff = nextBackoff(backoff, interval, maxBackoff)
	}
	if backoff != maxBackoff {
		t.Fatalf("expected cap %s got %s", maxBackoff, backoff)
	}
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	_, err := NewService(ServiceParams{
		Config: &config.Config{},
		Logger: logg,
		DB:     fakeDB{},
		Repo:   &fakeRepo{},
	})
	if err == nil {
		t.Fatal("expected error for missing publisher")
	}
	if fmt.Sprint(err) != "events publisher is required" {
		t.Fatalf("unexpected error %v", err)
	}
}
