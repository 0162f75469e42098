package enums

import "fmt"

// CancellationReason records why an assignment was cancelled.
type CancellationReason string

const (
	CancellationReasonNoShow           CancellationReason = "no_show"
	CancellationReasonDriverCancelled  CancellationReason = "driver_cancelled"
	CancellationReasonManagerCancelled CancellationReason = "manager_cancelled"
)

var validCancellationReasons = []CancellationReason{
	CancellationReasonNoShow,
	CancellationReasonDriverCancelled,
	CancellationReasonManagerCancelled,
}

// String implements fmt.Stringer.
func (c CancellationReason) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CancellationReason.
func (c CancellationReason) IsValid() bool {
	for _, candidate := range validCancellationReasons {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCancellationReason converts raw input into a CancellationReason.
func ParseCancellationReason(value string) (CancellationReason, error) {
	for _, candidate := range validCancellationReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancellation reason %q", value)
}
