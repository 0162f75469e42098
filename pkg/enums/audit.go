package enums

// AuditAction labels what an audit log entry documents.
type AuditAction string

const (
	AuditWindowOpened        AuditAction = "window_opened"
	AuditWindowResolved      AuditAction = "window_resolved"
	AuditWindowClosed        AuditAction = "window_closed"
	AuditBidSubmitted        AuditAction = "bid_submitted"
	AuditManagerAssigned     AuditAction = "manager_assigned"
	AuditNoShowCancelled     AuditAction = "no_show_cancelled"
	AuditAssignmentConfirmed AuditAction = "assignment_confirmed"
	AuditAssignmentArrived   AuditAction = "assignment_arrived"
	AuditAssignmentCompleted AuditAction = "assignment_completed"
	AuditAssignmentCancelled AuditAction = "assignment_cancelled"
	AuditParcelCountEdited   AuditAction = "parcel_count_edited"
	AuditDriverFlagged       AuditAction = "driver_flagged"
	AuditDriverHardStopped   AuditAction = "driver_hard_stopped"
	AuditDriverReinstated    AuditAction = "driver_reinstated"
	AuditWeeklyCapChanged    AuditAction = "weekly_cap_changed"
)

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}
