// Package bizclock anchors all calendar-day logic to the organization's
// business timezone. Shift dates travel as YYYY-MM-DD strings end to end;
// only wall-clock deadline construction crosses into instant space.
package bizclock

import (
	"fmt"
	"time"
)

// DateLayout is the canonical calendar-date format.
const DateLayout = "2006-01-02"

// Clock converts instants to and from business-timezone calendar dates and
// builds policy deadlines. It holds no mutable state.
type Clock struct {
	loc       *time.Location
	weekStart time.Weekday
}

// New resolves the business timezone once at startup. weekStartDay is
// 0=Sunday..6=Saturday.
func New(timezone string, weekStartDay int) (*Clock, error) {
	if timezone == "" {
		return nil, fmt.Errorf("business timezone is required")
	}
	if weekStartDay < 0 || weekStartDay > 6 {
		return nil, fmt.Errorf("week start day must be 0..6, got %d", weekStartDay)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading business timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc, weekStart: time.Weekday(weekStartDay)}, nil
}

// Location returns the business timezone location.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Today returns the calendar date the given instant falls on in the
// business timezone.
func (c *Clock) Today(now time.Time) string {
	return now.In(c.loc).Format(DateLayout)
}

// DayOfWeek returns the weekday for a calendar date, Sunday=0.
func (c *Clock) DayOfWeek(date string) (int, error) {
	parsed, err := c.parse(date)
	if err != nil {
		return 0, err
	}
	return int(parsed.Weekday()), nil
}

// AddDays shifts a calendar date by n days. The arithmetic runs at noon so
// daylight-saving transitions cannot skip or repeat a day.
func (c *Clock) AddDays(date string, n int) (string, error) {
	parsed, err := c.parse(date)
	if err != nil {
		return "", err
	}
	noon := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 12, 0, 0, 0, c.loc)
	return noon.AddDate(0, 0, n).Format(DateLayout), nil
}

// InstantAt constructs the precise instant for a wall-clock time on a
// calendar date in the business timezone. time.Date normalizes times that
// fall inside a daylight-saving gap.
func (c *Clock) InstantAt(date string, hour, minute, second int) (time.Time, error) {
	parsed, err := c.parse(date)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), hour, minute, second, 0, c.loc), nil
}

// WeekStart returns the calendar date of the configured week boundary on or
// before the given date. The weekly-cap count runs over [WeekStart,
// WeekStart+7d).
func (c *Clock) WeekStart(date string) (string, error) {
	parsed, err := c.parse(date)
	if err != nil {
		return "", err
	}
	back := (int(parsed.Weekday()) - int(c.weekStart) + 7) % 7
	return c.AddDays(date, -back)
}

// WeekBounds returns the half-open [start, end) date range of the week
// containing date.
func (c *Clock) WeekBounds(date string) (string, string, error) {
	start, err := c.WeekStart(date)
	if err != nil {
		return "", "", err
	}
	end, err := c.AddDays(start, 7)
	if err != nil {
		return "", "", err
	}
	return start, end, nil
}

func (c *Clock) parse(date string) (time.Time, error) {
	parsed, err := time.ParseInLocation(DateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid calendar date %q: %w", date, err)
	}
	return parsed, nil
}
