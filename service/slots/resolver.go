package slots

import (
	"fmt"
	"time"

	"github.com/KAsare1/slotbook-server/cmd/models"
)

type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Input struct {
	EventType models.EventType
	Schedule  models.AvailabilitySchedule
	// Date is a calendar date in the schedule's timezone.
	Date     string
	Bookings []models.Booking
	Now      time.Time
	// Step between candidate starts. Zero steps by the event duration.
	Step time.Duration
}

// Window returns the bookable interval of date. ok is false when nothing is available that day.
func Window(schedule models.AvailabilitySchedule, date string) (start, end time.Time, ok bool, err error) {
	loc, err := schedule.Location()
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("schedule %d timezone: %w", schedule.ID, err)
	}
	day, err := time.ParseInLocation(models.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("invalid date %q: %w", date, err)
	}

	var from, to string
	if override, found := schedule.OverrideFor(date); found {
		if override.IsBlocked {
			return time.Time{}, time.Time{}, false, nil
		}
		from, to = override.StartTime, override.EndTime
	} else if rule, found := schedule.RuleFor(day.Weekday()); found {
		from, to = rule.StartTime, rule.EndTime
	} else {
		return time.Time{}, time.Time{}, false, nil
	}

	startMin, err := models.ClockMinutes(from)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	endMin, err := models.ClockMinutes(to)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if startMin >= endMin {
		return time.Time{}, time.Time{}, false, nil
	}

	start = time.Date(day.Year(), day.Month(), day.Day(), startMin/60, startMin%60, 0, 0, loc)
	end = time.Date(day.Year(), day.Month(), day.Day(), endMin/60, endMin%60, 0, 0, loc)
	return start, end, true, nil
}

// Resolve computes the ascending bookable start times for one event type on one date.
// Bookings must belong to the event type's host; cancelled ones are ignored.
func Resolve(in Input) ([]Slot, error) {
	if in.EventType.Duration <= 0 {
		return nil, fmt.Errorf("event type %d has no duration", in.EventType.ID)
	}
	winStart, winEnd, ok, err := Window(in.Schedule, in.Date)
	if err != nil {
		return nil, err
	}
	slots := []Slot{}
	if !ok {
		return slots, nil
	}

	duration := time.Duration(in.EventType.Duration) * time.Minute
	step := in.Step
	if step <= 0 {
		step = duration
	}

	for start := winStart; !start.Add(duration).After(winEnd); start = start.Add(step) {
		if start.Before(in.Now) {
			continue
		}
		candidate := models.Booking{
			StartTime:    start,
			EndTime:      start.Add(duration),
			BufferBefore: in.EventType.BufferBefore,
			BufferAfter:  in.EventType.BufferAfter,
		}
		if conflicts(candidate, in.Bookings) {
			continue
		}
		slots = append(slots, Slot{Start: candidate.StartTime.UTC(), End: candidate.EndTime.UTC()})
	}
	return slots, nil
}

func conflicts(candidate models.Booking, bookings []models.Booking) bool {
	for _, b := range bookings {
		if b.Status != models.BookingConfirmed {
			continue
		}
		if candidate.ConflictsWith(b) {
			return true
		}
	}
	return false
}

// Contains reports whether start is exactly one of the slot starts.
func Contains(slots []Slot, start time.Time) bool {
	for _, s := range slots {
		if s.Start.Equal(start) {
			return true
		}
	}
	return false
}
