package enums

// HealthEligibility is the pool-membership latch for a driver. The
// hard-stopped state can only be left through an explicit manager
// reinstatement; automated recomputes never produce eligible from it.
type HealthEligibility string

const (
	HealthEligible    HealthEligibility = "eligible"
	HealthHardStopped HealthEligibility = "hard_stopped"
)

// String implements fmt.Stringer.
func (h HealthEligibility) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HealthEligibility.
func (h HealthEligibility) IsValid() bool {
	return h == HealthEligible || h == HealthHardStopped
}
