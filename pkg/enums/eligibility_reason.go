package enums

// EligibilityReason identifies why a driver was rejected from a bid pool.
// Rejections are always reason-coded so the calling surface can explain them.
type EligibilityReason string

const (
	EligibilityReasonDriverFlagged    EligibilityReason = "driver_flagged"
	EligibilityReasonPoolIneligible   EligibilityReason = "pool_ineligible"
	EligibilityReasonWeeklyCapReached EligibilityReason = "weekly_cap_reached"
	EligibilityReasonDateConflict     EligibilityReason = "date_conflict"
)

// String implements fmt.Stringer.
func (e EligibilityReason) String() string {
	return string(e)
}
