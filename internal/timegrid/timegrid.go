// Package timegrid is the discrete time coordinate system of the planning
// calendar: a day is a run of slots at hour or quarter-hour resolution, and
// every hour figure in the planner is derived from a slot count through it.
package timegrid

import (
	"fmt"
	"time"
)

type Resolution int

const (
	Hour Resolution = iota
	Quarter
)

var quarterMinutes = map[int]bool{0: true, 15: true, 30: true, 45: true}

// ParseResolution maps the zoom_level wire value. An empty string means the
// client did not zoom in, which is hour mode.
func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "", "hour":
		return Hour, nil
	case "quarter":
		return Quarter, nil
	default:
		return Hour, fmt.Errorf("unknown zoom level: %q", s)
	}
}

func (r Resolution) String() string {
	if r == Quarter {
		return "quarter"
	}
	return "hour"
}

// SlotMinutes is the span one cell covers at this resolution.
func (r Resolution) SlotMinutes() int {
	if r == Quarter {
		return 15
	}
	return 60
}

// SlotHours is the conversion factor used wherever hours are aggregated
// from cell counts.
func (r Resolution) SlotHours() float64 {
	return float64(r.SlotMinutes()) / 60
}

// ValidSlot reports whether (hour, minute) addresses a slot of this
// resolution. Hour mode only has cells on the full hour; quarter mode only
// on the quarter marks.
func (r Resolution) ValidSlot(hour, minute int) bool {
	if hour < 0 || hour > 23 {
		return false
	}
	if r == Hour {
		return minute == 0
	}
	return quarterMinutes[minute]
}

// Slot is one cell position on the calendar. Date is a midnight timestamp.
type Slot struct {
	Date   time.Time
	Hour   int
	Minute int
}

// Before orders slots lexicographically on (date, hour, minute).
func (s Slot) Before(o Slot) bool {
	if !s.Date.Equal(o.Date) {
		return s.Date.Before(o.Date)
	}
	if s.Hour != o.Hour {
		return s.Hour < o.Hour
	}
	return s.Minute < o.Minute
}

func (s Slot) Equal(o Slot) bool {
	return s.Date.Equal(o.Date) && s.Hour == o.Hour && s.Minute == o.Minute
}

// Day truncates t to its midnight in UTC, the canonical cell date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Grid is a workday window walked at a fixed resolution. EndHour is
// exclusive.
type Grid struct {
	Res       Resolution
	StartHour int
	EndHour   int
}

// First returns the first slot of the given day.
func (g Grid) First(date time.Time) Slot {
	return Slot{Date: Day(date), Hour: g.StartHour, Minute: 0}
}

// Next advances one slot, rolling past the end of the workday to the first
// slot of the next day.
func (g Grid) Next(s Slot) Slot {
	minute := s.Minute + g.Res.SlotMinutes()
	hour := s.Hour
	if minute >= 60 {
		minute = 0
		hour++
	}
	if hour >= g.EndHour {
		return g.First(s.Date.AddDate(0, 0, 1))
	}
	return Slot{Date: s.Date, Hour: hour, Minute: minute}
}

// SlotsPerDay is the number of schedulable slots in the window.
func (g Grid) SlotsPerDay() int {
	return (g.EndHour - g.StartHour) * 60 / g.Res.SlotMinutes()
}
