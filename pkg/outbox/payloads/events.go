// Package payloads declares the domain-event payload shapes shared by
// emitters and consumers.
package payloads

import (
	"time"

	"github.com/google/uuid"
)

// WindowOpenedEvent is emitted when a shift becomes contested.
type WindowOpenedEvent struct {
	BidWindowID  uuid.UUID  `json:"bidWindowId"`
	AssignmentID uuid.UUID  `json:"assignmentId"`
	RouteID      uuid.UUID  `json:"routeId"`
	ShiftDate    string     `json:"shiftDate"`
	Mode         string     `json:"mode"`
	ClosesAt     *time.Time `json:"closesAt,omitempty"`
	BonusPercent *string    `json:"bonusPercent,omitempty"`
}

// CandidateScore records one bidder's computed rank inputs for dispute
// transparency.
type CandidateScore struct {
	DriverID    uuid.UUID `json:"driverId"`
	Attendance  float64   `json:"attendance"`
	Familiarity float64   `json:"familiarity"`
	Completion  float64   `json:"completion"`
	Preference  float64   `json:"preference"`
	Total       float64   `json:"total"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// WindowResolvedEvent is emitted when a window picks a winner.
type WindowResolvedEvent struct {
	BidWindowID    uuid.UUID        `json:"bidWindowId"`
	AssignmentID   uuid.UUID        `json:"assignmentId"`
	ShiftDate      string           `json:"shiftDate"`
	WinnerDriverID uuid.UUID        `json:"winnerDriverId"`
	LoserDriverIDs []uuid.UUID      `json:"loserDriverIds"`
	Candidates     []CandidateScore `json:"candidates"`
	ResolvedAt     time.Time        `json:"resolvedAt"`
}

// WindowClosedEvent is emitted when a window closes without a winner.
type WindowClosedEvent struct {
	BidWindowID  uuid.UUID `json:"bidWindowId"`
	AssignmentID uuid.UUID `json:"assignmentId"`
	ShiftDate    string    `json:"shiftDate"`
	Reason       string    `json:"reason"`
	ClosedAt     time.Time `json:"closedAt"`
}

// BidSubmittedEvent is emitted when a driver enters a window.
type BidSubmittedEvent struct {
	BidID       uuid.UUID `json:"bidId"`
	BidWindowID uuid.UUID `json:"bidWindowId"`
	DriverID    uuid.UUID `json:"driverId"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// NoShowEvent is emitted when the sweep vacates a shift.
type NoShowEvent struct {
	AssignmentID uuid.UUID  `json:"assignmentId"`
	DriverID     uuid.UUID  `json:"driverId"`
	RouteID      uuid.UUID  `json:"routeId"`
	ShiftDate    string     `json:"shiftDate"`
	Deadline     time.Time  `json:"deadline"`
	NewWindowID  *uuid.UUID `json:"newWindowId,omitempty"`
}

// ManualAssignmentEvent is emitted when a manager bypasses scoring.
type ManualAssignmentEvent struct {
	BidWindowID  uuid.UUID `json:"bidWindowId"`
	AssignmentID uuid.UUID `json:"assignmentId"`
	DriverID     uuid.UUID `json:"driverId"`
	ManagerID    uuid.UUID `json:"managerId"`
	Forced       bool      `json:"forced"`
}

// DriverHealthEvent is emitted when flagging state changes.
type DriverHealthEvent struct {
	DriverID       uuid.UUID `json:"driverId"`
	AttendanceRate float64   `json:"attendanceRate"`
	CompletionRate float64   `json:"completionRate"`
	WeeklyCap      int       `json:"weeklyCap"`
	Eligibility    string    `json:"eligibility"`
}

// ShiftCompletedEvent is emitted when a driver finishes a shift.
type ShiftCompletedEvent struct {
	AssignmentID     uuid.UUID `json:"assignmentId"`
	DriverID         uuid.UUID `json:"driverId"`
	RouteID          uuid.UUID `json:"routeId"`
	ShiftDate        string    `json:"shiftDate"`
	ParcelsDelivered int       `json:"parcelsDelivered"`
}
