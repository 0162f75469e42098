package enums

import "fmt"

// BidWindowStatus tracks the lifecycle of a contested-shift bid window.
type BidWindowStatus string

const (
	BidWindowStatusOpen     BidWindowStatus = "open"
	BidWindowStatusResolved BidWindowStatus = "resolved"
	BidWindowStatusClosed   BidWindowStatus = "closed"
)

var validBidWindowStatuses = []BidWindowStatus{
	BidWindowStatusOpen,
	BidWindowStatusResolved,
	BidWindowStatusClosed,
}

// String implements fmt.Stringer.
func (b BidWindowStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BidWindowStatus.
func (b BidWindowStatus) IsValid() bool {
	for _, candidate := range validBidWindowStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// BidWindowMode selects how a window picks its winner.
type BidWindowMode string

const (
	// BidWindowModeCompetitive batches bids and scores them at close.
	BidWindowModeCompetitive BidWindowMode = "competitive"
	// BidWindowModeInstant resolves on close but keeps the default duration.
	BidWindowModeInstant BidWindowMode = "instant"
	// BidWindowModeEmergency assigns the first bidder immediately.
	BidWindowModeEmergency BidWindowMode = "emergency"
)

var validBidWindowModes = []BidWindowMode{
	BidWindowModeCompetitive,
	BidWindowModeInstant,
	BidWindowModeEmergency,
}

// String implements fmt.Stringer.
func (b BidWindowMode) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BidWindowMode.
func (b BidWindowMode) IsValid() bool {
	for _, candidate := range validBidWindowModes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBidWindowMode converts raw input into a BidWindowMode.
func ParseBidWindowMode(value string) (BidWindowMode, error) {
	for _, candidate := range validBidWindowModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bid window mode %q", value)
}
