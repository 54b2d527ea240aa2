package scheduler

import (
	"fmt"
	"time"
)

// DailySchedule runs a job once a day at a fixed local time.
// Used for passes that should land outside working hours, like the goal
// difficulty adjustment.
type DailySchedule struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// NewDailySchedule creates a schedule firing daily at hour:minute in loc.
func NewDailySchedule(hour, minute int, loc *time.Location) *DailySchedule {
	if loc == nil {
		loc = time.UTC
	}
	return &DailySchedule{Hour: hour, Minute: minute, Location: loc}
}

// Next returns the next scheduled time after t.
func (s *DailySchedule) Next(t time.Time) time.Time {
	t = t.In(s.Location)
	next := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, s.Location)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// String returns the string representation of the schedule.
func (s *DailySchedule) String() string {
	return fmt.Sprintf("@daily %02d:%02d %s", s.Hour, s.Minute, s.Location.String())
}
