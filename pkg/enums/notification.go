package enums

// NotificationType labels in-app notifications materialized for drivers and
// managers. Push transport is handled outside this repository.
type NotificationType string

const (
	NotificationBidWon            NotificationType = "bid_won"
	NotificationBidLost           NotificationType = "bid_lost"
	NotificationShiftReminder     NotificationType = "shift_reminder"
	NotificationNoShowAlert       NotificationType = "no_show_alert"
	NotificationDriverFlagged     NotificationType = "driver_flagged"
	NotificationDriverReinstated  NotificationType = "driver_reinstated"
	NotificationWindowOpened      NotificationType = "window_opened"
	NotificationShiftUnfilled     NotificationType = "shift_unfilled"
	NotificationManuallyAssigned  NotificationType = "manually_assigned"
	NotificationAssignmentRemoved NotificationType = "assignment_removed"
)

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}
