package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/orro3790/shiftbid-backend/internal/broadcast"
	"github.com/orro3790/shiftbid-backend/pkg/db/models"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
	"github.com/orro3790/shiftbid-backend/pkg/outbox/idempotency"
	"github.com/orro3790/shiftbid-backend/pkg/outbox/payloads"
)

const shiftNotificationConsumer = "shift-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListActiveDriverIDs(ctx context.Context, organizationID uuid.UUID) ([]uuid.UUID, error)
}

// Consumer watches domain events and materializes in-app notifications.
// Manager alerts additionally go out on the dashboard broadcast topic.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	broadcaster  broadcast.Publisher
	logg         *logger.Logger
}

// NewConsumer builds the shift notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, broadcaster broadcast.Publisher, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if broadcaster == nil {
		broadcaster = broadcast.NewNoop()
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		broadcaster:  broadcaster,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	rawType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": rawType,
	})

	eventType, err := enums.ParseOutboxEventType(rawType)
	if err != nil {
		c.logg.Info(logCtx, "skipping unknown event type")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, shiftNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handle(ctx, eventType, envelope, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, shiftNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope, logCtx context.Context) error {
	orgID := envelopeOrgID(envelope)
	if orgID == uuid.Nil {
		c.logg.Info(logCtx, "event carries no organization, skipping")
		return nil
	}

	switch eventType {
	case enums.EventWindowOpened:
		return c.handleWindowOpened(ctx, orgID, envelope.Data)
	case enums.EventWindowResolved:
		return c.handleWindowResolved(ctx, orgID, envelope.Data)
	case enums.EventAssignmentUnfilled:
		return c.handleUnfilled(ctx, orgID, envelope.Data)
	case enums.EventAssignmentNoShow:
		return c.handleNoShow(ctx, orgID, envelope.Data)
	case enums.EventAssignmentManual:
		return c.handleManualAssignment(ctx, orgID, envelope.Data)
	case enums.EventDriverFlagged, enums.EventDriverHardStopped:
		return c.handleDriverFlagged(ctx, orgID, eventType, envelope.Data)
	case enums.EventDriverReinstated:
		return c.handleReinstated(ctx, orgID, envelope.Data)
	default:
		c.logg.Info(logCtx, "event type not handled")
		return nil
	}
}

func (c *Consumer) handleWindowOpened(ctx context.Context, orgID uuid.UUID, data json.RawMessage) error {
	var payload payloads.WindowOpenedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse window opened payload: %w", err)
	}

	title := "New shift available"
	message := fmt.Sprintf("A shift on %s is open for bidding.", payload.ShiftDate)
	if payload.Mode == enums.BidWindowModeEmergency.String() {
		title = "Emergency shift available"
		message = fmt.Sprintf("An emergency shift on %s needs a driver. First bid wins.", payload.ShiftDate)
		if payload.BonusPercent != nil {
			message = fmt.Sprintf("%s Bonus pay: %s%%.", message, *payload.BonusPercent)
		}
	}

	driverIDs, err := c.repo.ListActiveDriverIDs(ctx, orgID)
	if err != nil {
		return fmt.Errorf("list drivers for window opened: %w", err)
	}
	for _, driverID := range driverIDs {
		notification := &models.Notification{
			OrganizationID: orgID,
			RecipientID:    driverID,
			RecipientRole:  enums.ActorRoleDriver,
			Type:           enums.NotificationWindowOpened,
			Title:          title,
			Message:        message,
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) handleWindowResolved(ctx context.Context, orgID uuid.UUID, data json.RawMessage) error {
	var payload payloads.WindowResolvedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse window resolved payload: %w", err)
	}

	won := &models.Notification{
		OrganizationID: orgID,
		RecipientID:    payload.WinnerDriverID,
		RecipientRole:  enums.ActorRoleDriver,
		Type:           enums.NotificationBidWon,
		Title:          "Shift won",
		Message:        fmt.Sprintf("You won the shift on %s. It is now on your schedule.", payload.ShiftDate),
	}
	if err := c.repo.Create(ctx, won); err != nil {
		return err
	}

	for _, loserID := range payload.LoserDriverIDs {
		lost := &models.Notification{
			OrganizationID: orgID,
			RecipientID:    loserID,
			RecipientRole:  enums.ActorRoleDriver,
			Type:           enums.NotificationBidLost,
			Title:          "Shift awarded to another driver",
			Message:        fmt.Sprintf("The shift on %s went to another driver this time.", payload.ShiftDate),
		}
		if err := c.repo.Create(ctx, lost); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) handleUnfilled(ctx context.Context, orgID uuid.UUID, data json.RawMessage) error {
	var payload payloads.WindowClosedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse window closed payload: %w", err)
	}

	notification := &models.Notification{
		OrganizationID: orgID,
		RecipientID:    orgID,
		RecipientRole:  enums.ActorRoleManager,
		Type:           enums.NotificationShiftUnfilled,
		Title:          "Shift unfilled",
		Message:        fmt.Sprintf("The shift on %s closed with no bids and needs manual assignment.", payload.ShiftDate),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.broadcastToDashboard(ctx, orgID, "shift_unfilled", payload)
	return nil
}

func (c *Consumer) handleNoShow(ctx context.Context, orgID uuid.UUID, data json.RawMessage) error {
	var payload payloads.NoShowEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse no-show payload: %w", err)
	}

	driverAlert := &models.Notification{
		OrganizationID: orgID,
		RecipientID:    payload.DriverID,
		RecipientRole:  enums.ActorRoleDriver,
		Type:           enums.NotificationNoShowAlert,
		Title:          "Missed shift",
		Message:        fmt.Sprintf("You did not arrive for your shift on %s. The assignment was cancelled and counts against your attendance.", payload.ShiftDate),
	}
	if err := c.repo.Create(ctx, driverAlert); err != nil {
		return err
	}

	managerAlert := &models.Notification{
		OrganizationID: orgID,
		RecipientID:    orgID,
		RecipientRole:  enums.ActorRoleManager,
		Type:           enums.NotificationNoShowAlert,
		Title:          "Driver no-show",
		Message:        fmt.Sprintf("Driver %s did not arrive for the shift on %s. An emergency backfill window is open.", payload.DriverID, payload.ShiftDate),
	}
	if err := c.repo.Create(ctx, managerAlert); err != nil {
		return err
	}
	c.broadcastToDashboard(ctx, orgID, "no_show", payload)
	return nil
}

func (c *Consumer) handleManualAssignment(ctx context.Context, orgID uuid.UUID, data json.RawMessage) error {
	var payload payloads.ManualAssignmentEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse manual assignment payload: %w", err)
	}

	notification := &models.Notification{
		OrganizationID: orgID,
		RecipientID:    payload.DriverID,
		RecipientRole:  enums.ActorRoleDriver,
		Type:           enums.NotificationManuallyAssigned,
		Title:          "Shift assigned to you",
		Message:        "A manager assigned a shift to you. Check your schedule.",
	}
	return c.repo.Create(ctx, notification)
}

func (c *Consumer) handleDriverFlagged(ctx context.Context, orgID uuid.UUID, eventType enums.OutboxEventType, data json.RawMessage) error {
	var payload payloads.DriverHealthEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse driver health payload: %w", err)
	}

	driverMessage := "Your attendance has fallen below the required threshold. Please review your upcoming shifts."
	managerMessage := fmt.Sprintf("Driver %s was flagged for attendance (%.0f%%).", payload.DriverID, payload.AttendanceRate*100)
	if eventType == enums.EventDriverHardStopped {
		driverMessage = "You are no longer eligible to bid on shifts. Contact your manager."
		managerMessage = fmt.Sprintf("Driver %s was removed from the bidding pool for sustained low attendance (%.0f%%). Manager reinstatement is required.", payload.DriverID, payload.AttendanceRate*100)
	}

	toDriver := &models.Notification{
		OrganizationID: orgID,
		RecipientID:    payload.DriverID,
		RecipientRole:  enums.ActorRoleDriver,
		Type:           enums.NotificationDriverFlagged,
		Title:          "Attendance warning",
		Message:        driverMessage,
	}
	if err := c.repo.Create(ctx, toDriver); err != nil {
		return err
	}

	toManagers := &models.Notification{
		OrganizationID: orgID,
		RecipientID:    orgID,
		RecipientRole:  enums.ActorRoleManager,
		Type:           enums.NotificationDriverFlagged,
		Title:          "Driver flagged",
		Message:        managerMessage,
	}
	if err := c.repo.Create(ctx, toManagers); err != nil {
		return err
	}
	c.broadcastToDashboard(ctx, orgID, string(eventType), payload)
	return nil
}

// broadcastToDashboard is best effort; a dropped broadcast never fails the
// event so the notification rows above are not retried.
func (c *Consumer) broadcastToDashboard(ctx context.Context, orgID uuid.UUID, event string, payload any) {
	if err := c.broadcaster.Publish(ctx, orgID, event, payload); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "broadcast_event", event), "dashboard broadcast failed")
	}
}

func (c *Consumer) handleReinstated(ctx context.Context, orgID uuid.UUID, data json.RawMessage) error {
	var payload payloads.DriverHealthEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse driver health payload: %w", err)
	}

	notification := &models.Notification{
		OrganizationID: orgID,
		RecipientID:    payload.DriverID,
		RecipientRole:  enums.ActorRoleDriver,
		Type:           enums.NotificationDriverReinstated,
		Title:          "Bidding eligibility restored",
		Message:        "A manager reinstated your bidding eligibility. You can bid on shifts again.",
	}
	return c.repo.Create(ctx, notification)
}

func envelopeOrgID(envelope outbox.PayloadEnvelope) uuid.UUID {
	if envelope.Actor == nil || envelope.Actor.OrganizationID == nil {
		return uuid.Nil
	}
	return *envelope.Actor.OrganizationID
}
