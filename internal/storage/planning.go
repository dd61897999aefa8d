package storage

import "time"

type WorkLine struct {
	UUID     string `json:"uuid"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// PlanningCell is the atomic schedulable unit: worker-count placed on one
// slot of one line for one order. SlotMinutes records the resolution the
// cell was written at (60 or 15), so an hour cell keeps counting as four
// quarters of load after the calendar is zoomed in.
type PlanningCell struct {
	PlanningID   int64     `json:"planning_id"`
	OrderUUID    string    `json:"order_uuid"`
	WorkLineUUID string    `json:"lasworkline_uuid"`
	Date         time.Time `json:"date"`
	Hour         int       `json:"hour"`
	Minute       int       `json:"minute"`
	Workers      int       `json:"workers"`
	SlotMinutes  int       `json:"slot_minutes"`
	Source       string    `json:"source"`
}

// Hours is the planned capacity the cell contributes, in worker-hours.
func (c *PlanningCell) Hours() float64 {
	return float64(c.Workers) * float64(c.SlotMinutes) / 60
}

// SummaryValue is a per-slot counter not tied to any order, used to adjust
// available capacity (absences) or just displayed (supervisors, warehouse).
type SummaryValue struct {
	SummaryID   int64     `json:"summary_id"`
	SummaryType string    `json:"summary_type"`
	Date        time.Time `json:"date"`
	Hour        int       `json:"hour"`
	Minute      int       `json:"minute"`
	Value       int       `json:"value"`
}

// Contract is a worker-contract constraint shown on the calendar for a
// date range. Read-only for the planner.
type Contract struct {
	UUID         string    `json:"uuid"`
	WorkLineUUID string    `json:"work_line_uuid"`
	Employee     string    `json:"employee"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	WeeklyHours  float64   `json:"weekly_hours"`
}
