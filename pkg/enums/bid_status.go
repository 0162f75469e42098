package enums

// BidStatus tracks one driver's bid inside a window. Every bid starts
// pending and settles to exactly one of won/lost when the window resolves.
type BidStatus string

const (
	BidStatusPending BidStatus = "pending"
	BidStatusWon     BidStatus = "won"
	BidStatusLost    BidStatus = "lost"
)

var validBidStatuses = []BidStatus{
	BidStatusPending,
	BidStatusWon,
	BidStatusLost,
}

// String implements fmt.Stringer.
func (b BidStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BidStatus.
func (b BidStatus) IsValid() bool {
	for _, candidate := range validBidStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}
