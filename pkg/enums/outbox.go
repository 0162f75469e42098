package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateAssignment OutboxAggregateType = "assignment"
	AggregateBidWindow  OutboxAggregateType = "bid_window"
	AggregateBid        OutboxAggregateType = "bid"
	AggregateDriver     OutboxAggregateType = "driver"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateAssignment,
	AggregateBidWindow,
	AggregateBid,
	AggregateDriver,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventWindowOpened       OutboxEventType = "window_opened"
	EventWindowResolved     OutboxEventType = "window_resolved"
	EventWindowClosed       OutboxEventType = "window_closed"
	EventBidSubmitted       OutboxEventType = "bid_submitted"
	EventAssignmentNoShow   OutboxEventType = "assignment_no_show"
	EventAssignmentManual   OutboxEventType = "assignment_manual"
	EventAssignmentUnfilled OutboxEventType = "assignment_unfilled"
	EventDriverFlagged      OutboxEventType = "driver_flagged"
	EventDriverHardStopped  OutboxEventType = "driver_hard_stopped"
	EventDriverReinstated   OutboxEventType = "driver_reinstated"
	EventShiftCompleted     OutboxEventType = "shift_completed"
	EventShiftCancelled     OutboxEventType = "shift_cancelled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventWindowOpened,
	EventWindowResolved,
	EventWindowClosed,
	EventBidSubmitted,
	EventAssignmentNoShow,
	EventAssignmentManual,
	EventAssignmentUnfilled,
	EventDriverFlagged,
	EventDriverHardStopped,
	EventDriverReinstated,
	EventShiftCompleted,
	EventShiftCancelled,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
