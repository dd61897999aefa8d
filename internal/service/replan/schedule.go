package replan

import (
	"context"
	"fmt"
	"laser-planning/internal/constants"
	"laser-planning/internal/service/calculation"
	"laser-planning/internal/storage"
	"laser-planning/internal/timegrid"
	"math"
	"time"
)

// AutoSchedule (re)plans an order from scratch. With force=false an order
// whose future cells already cover the requirement is a no-op; otherwise
// the future auto cells are discarded and reallocated around the manual
// ones. force=true additionally discards future manual cells — explicit,
// destructive, opt-in. Cells dated before today are never touched either
// way. When no feasible allocation exists within the horizon a
// *SchedulingError comes back and nothing is written.
func (s *Service) AutoSchedule(ctx context.Context, orderUUID string, force bool) (*ScheduleResult, error) {
	const op = "service.replan.AutoSchedule"

	res := &ScheduleResult{OrderUUID: orderUUID}

	err := s.storage.WithOrderLock(ctx, orderUUID, func(ctx context.Context) error {
		order, err := s.storage.GetOrder(ctx, orderUUID)
		if err != nil {
			return err
		}
		if !constants.ActiveStatuses[order.Status] {
			return &SchedulingError{
				OrderUUID: orderUUID,
				Message:   fmt.Sprintf("order %s is not schedulable in status %q", order.Number, order.Status),
			}
		}

		calcRes, err := s.calc.CalculateForOrder(ctx, orderUUID)
		if err != nil {
			return err
		}
		required := calculation.RequiredHours(calcRes, order.Remaining())
		res.RequiredHours = required

		cells, err := s.storage.GetOrderCells(ctx, orderUUID)
		if err != nil {
			return err
		}
		sortCells(cells)

		today := timegrid.Day(s.now())
		future := filterCells(cells, func(c *storage.PlanningCell) bool {
			return !c.Date.Before(today)
		})

		if !force && hoursOf(future)+hoursTolerance >= required {
			res.AlreadyPlanned = true
			res.PlannedHours = hoursOf(future)
			return nil
		}

		var deleteIDs []int64
		var kept []*storage.PlanningCell
		deficit := required

		for _, c := range future {
			if force || c.Source == constants.SourceAuto {
				deleteIDs = append(deleteIDs, c.PlanningID)
				continue
			}
			kept = append(kept, c)
			deficit -= c.Hours()
		}

		var added []*storage.PlanningCell
		var placed float64
		if deficit > hoursTolerance {
			added, placed, err = s.placeCells(ctx, order, s.lineFor(order, cells), s.grid.First(today), kept, deficit)
			if err != nil {
				return err
			}
			if deficit-placed > hoursTolerance {
				return &SchedulingError{
					OrderUUID: orderUUID,
					Message: fmt.Sprintf("no feasible allocation for %.2f remaining hours within %d days",
						deficit-placed, s.horizon),
				}
			}
		}

		if err := s.storage.ApplyPlanChanges(ctx, orderUUID, added, deleteIDs); err != nil {
			return err
		}

		res.CellsAdded = len(added)
		res.CellsRemoved = len(deleteIDs)
		res.PlannedHours = hoursOf(kept) + placed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// extendAfterTail appends capacity after the order's latest existing cell,
// never into gaps. Best effort within the horizon; returns what it placed.
func (s *Service) extendAfterTail(ctx context.Context, order *storage.Order, cells []*storage.PlanningCell, deficit float64) ([]*storage.PlanningCell, float64, error) {
	today := timegrid.Day(s.now())

	start := s.grid.First(today)
	if len(cells) > 0 {
		last := slotOf(cells[len(cells)-1])
		next := s.clampToGrid(s.grid.Next(last))
		if start.Before(next) {
			start = next
		}
	}

	return s.placeCells(ctx, order, s.lineFor(order, cells), start, cells, deficit)
}

// lineFor picks the line new cells go to: the line of the latest existing
// cell, falling back to the offer's line.
func (s *Service) lineFor(order *storage.Order, cells []*storage.PlanningCell) string {
	for i := len(cells) - 1; i >= 0; i-- {
		if cells[i].WorkLineUUID != "" {
			return cells[i].WorkLineUUID
		}
	}
	return order.WorkLineUUID
}

func (s *Service) clampToGrid(sl timegrid.Slot) timegrid.Slot {
	if sl.Hour < s.grid.StartHour {
		return s.grid.First(sl.Date)
	}
	if sl.Hour >= s.grid.EndHour {
		return s.grid.First(sl.Date.AddDate(0, 0, 1))
	}
	return sl
}

type slotKey struct {
	date   string
	hour   int
	minute int
}

func keyAt(date time.Time, hour, minute int) slotKey {
	return slotKey{date: date.Format("2006-01-02"), hour: hour, minute: minute}
}

// addCellLoad expands a cell onto quarter keys: an hour cell occupies all
// four quarters of its hour.
func addCellLoad(load map[slotKey]int, c *storage.PlanningCell) {
	if c.SlotMinutes >= 60 {
		for _, m := range []int{0, 15, 30, 45} {
			load[keyAt(c.Date, c.Hour, m)] += c.Workers
		}
		return
	}
	load[keyAt(c.Date, c.Hour, c.Minute)] += c.Workers
}

// placeCells walks the quarter grid from start and fills slots up to the
// line's per-slot worker ceiling until the deficit is covered or the
// horizon runs out. The ceiling is the line capacity minus other orders'
// commitments minus the ABSENCES counter for the slot; the ceiling check
// against independently written summary values is advisory (the next
// daily sweep corrects any race). Returns the cells and the hours placed.
func (s *Service) placeCells(ctx context.Context, order *storage.Order, lineUUID string, start timegrid.Slot, own []*storage.PlanningCell, deficit float64) ([]*storage.PlanningCell, float64, error) {
	if lineUUID == "" {
		return nil, 0, &SchedulingError{OrderUUID: order.UUID, Message: "order has no work line to schedule on"}
	}

	line, err := s.storage.GetWorkLine(ctx, lineUUID)
	if err != nil {
		return nil, 0, err
	}

	today := timegrid.Day(s.now())
	horizonEnd := today.AddDate(0, 0, s.horizon)

	load := map[slotKey]int{}
	busy, err := s.storage.GetLineLoad(ctx, lineUUID, today, horizonEnd, order.UUID)
	if err != nil {
		return nil, 0, err
	}
	for _, c := range busy {
		addCellLoad(load, c)
	}
	for _, c := range own {
		if c.WorkLineUUID == lineUUID && !c.Date.Before(today) {
			addCellLoad(load, c)
		}
	}

	// An absence counter written on the full hour covers all four quarters
	// unless a later, quarter-specific entry overrides it. The range query
	// returns rows in (date, hour, minute) order, so overrides win.
	absences := map[slotKey]int{}
	summary, err := s.storage.GetSummaryRange(ctx, today, horizonEnd)
	if err != nil {
		return nil, 0, err
	}
	for _, v := range summary {
		if v.SummaryType != constants.SummaryAbsences {
			continue
		}
		if v.Minute == 0 {
			for _, m := range []int{0, 15, 30, 45} {
				absences[keyAt(v.Date, v.Hour, m)] = v.Value
			}
			continue
		}
		absences[keyAt(v.Date, v.Hour, v.Minute)] = v.Value
	}

	slotHours := s.grid.Res.SlotHours()

	var added []*storage.PlanningCell
	var placed float64
	for slot := s.clampToGrid(start); deficit-placed > hoursTolerance && slot.Date.Before(horizonEnd); slot = s.grid.Next(slot) {
		k := keyAt(slot.Date, slot.Hour, slot.Minute)
		ceiling := line.Capacity - load[k] - absences[k]
		if ceiling <= 0 {
			continue
		}

		need := int(math.Ceil((deficit - placed) / slotHours))
		workers := need
		if workers > ceiling {
			workers = ceiling
		}

		added = append(added, &storage.PlanningCell{
			OrderUUID:    order.UUID,
			WorkLineUUID: lineUUID,
			Date:         slot.Date,
			Hour:         slot.Hour,
			Minute:       slot.Minute,
			Workers:      workers,
			SlotMinutes:  s.grid.Res.SlotMinutes(),
			Source:       constants.SourceAuto,
		})
		placed += float64(workers) * slotHours
	}

	return added, placed, nil
}
