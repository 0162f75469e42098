package enums

import "fmt"

// AssignmentStatus tracks the lifecycle of a driver-shift binding.
type AssignmentStatus string

const (
	AssignmentStatusScheduled AssignmentStatus = "scheduled"
	AssignmentStatusActive    AssignmentStatus = "active"
	AssignmentStatusCompleted AssignmentStatus = "completed"
	AssignmentStatusCancelled AssignmentStatus = "cancelled"
	AssignmentStatusUnfilled  AssignmentStatus = "unfilled"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusScheduled,
	AssignmentStatusActive,
	AssignmentStatusCompleted,
	AssignmentStatusCancelled,
	AssignmentStatusUnfilled,
}

// String implements fmt.Stringer.
func (a AssignmentStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssignmentStatus.
func (a AssignmentStatus) IsValid() bool {
	for _, candidate := range validAssignmentStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAssignmentStatus converts raw input into an AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	for _, candidate := range validAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment status %q", value)
}
