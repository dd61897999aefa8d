// Package replan keeps an order's planned hours consistent with the hours
// still required. It is a rebalancing scheduler, not a constraint solver:
// it trims or extends an existing cell sequence mechanically, preserves
// manually placed cells, and never touches cells in the past.
package replan

import (
	"context"
	"fmt"
	"laser-planning/internal/config"
	"laser-planning/internal/constants"
	"laser-planning/internal/service/calculation"
	"laser-planning/internal/storage"
	"laser-planning/internal/timegrid"
	"math"
	"sort"
	"time"
)

// One quarter slot of tolerance on every hour comparison. A plan that is
// off by less than a slot cannot be expressed on the grid anyway.
const hoursTolerance = 0.25

type Storage interface {
	GetOrder(ctx context.Context, uuid string) (*storage.Order, error)
	GetWorkLine(ctx context.Context, uuid string) (*storage.WorkLine, error)
	GetOrderCells(ctx context.Context, orderUUID string) ([]*storage.PlanningCell, error)
	GetLineLoad(ctx context.Context, lineUUID string, start, end time.Time, excludeOrderUUID string) ([]*storage.PlanningCell, error)
	GetSummaryRange(ctx context.Context, start, end time.Time) ([]*storage.SummaryValue, error)
	GetOrderUUIDsWithCellsOn(ctx context.Context, date time.Time) ([]string, error)
	ApplyPlanChanges(ctx context.Context, orderUUID string, upserts []*storage.PlanningCell, deleteIDs []int64) error
	WithOrderLock(ctx context.Context, orderUUID string, fn func(ctx context.Context) error) error
}

type Calculator interface {
	CalculateForOrder(ctx context.Context, orderUUID string) (*calculation.Result, error)
}

// SchedulingError means no feasible allocation exists within the search
// horizon. It is reported to the caller, never thrown past the HTTP
// boundary, and nothing is written when it occurs.
type SchedulingError struct {
	OrderUUID string `json:"order_uuid"`
	Message   string `json:"message"`
}

func (e *SchedulingError) Error() string {
	return e.Message
}

type ReplanResult struct {
	OrderUUID     string  `json:"order_uuid"`
	CellsAdjusted int     `json:"cells_adjusted"`
	CellsRemoved  int     `json:"cells_removed"`
	CellsAdded    int     `json:"cells_added"`
	PlannedHours  float64 `json:"planned_hours"`
	RequiredHours float64 `json:"required_hours"`
}

type AdjustResult struct {
	OrderUUID       string  `json:"order_uuid"`
	QuartersRemoved int     `json:"quarters_removed"`
	CellsRemoved    int     `json:"cells_removed"`
	CellsAdjusted   int     `json:"cells_adjusted"`
	RemainingQty    float64 `json:"remaining_quantity"`
	RequiredHours   float64 `json:"required_hours"`
	Error           string  `json:"error,omitempty"`
}

type ScheduleResult struct {
	OrderUUID      string  `json:"order_uuid"`
	AlreadyPlanned bool    `json:"already_planned"`
	CellsAdded     int     `json:"cells_added"`
	CellsRemoved   int     `json:"cells_removed"`
	PlannedHours   float64 `json:"planned_hours"`
	RequiredHours  float64 `json:"required_hours"`
}

type CheckTodayResult struct {
	OrdersChecked  int             `json:"orders_checked"`
	OrdersModified int             `json:"orders_modified"`
	Details        []*AdjustResult `json:"details"`
}

type Service struct {
	storage Storage
	calc    Calculator
	grid    timegrid.Grid
	horizon int

	// overridable in tests
	now func() time.Time
}

func NewService(st Storage, calc Calculator, cfg config.Planning) *Service {
	return &Service{
		storage: st,
		calc:    calc,
		grid: timegrid.Grid{
			Res:       timegrid.Quarter,
			StartHour: cfg.DayStartHour,
			EndHour:   cfg.DayEndHour,
		},
		horizon: cfg.HorizonDays,
		now:     time.Now,
	}
}

// ReplanAfterManualEdit reconciles the plan right after a manual cell save.
// Only auto cells dated on or after the edit day (and never before today)
// are trimmed or extended; the edited cell itself is manual and therefore
// untouched. An edit that temporarily over- or under-allocates is valid,
// so this returns a result, not an error.
func (s *Service) ReplanAfterManualEdit(ctx context.Context, orderUUID string, editDate time.Time) (*ReplanResult, error) {
	const op = "service.replan.ReplanAfterManualEdit"

	res := &ReplanResult{OrderUUID: orderUUID}

	err := s.storage.WithOrderLock(ctx, orderUUID, func(ctx context.Context) error {
		order, err := s.storage.GetOrder(ctx, orderUUID)
		if err != nil {
			return err
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
		from := timegrid.Day(editDate)
		if from.Before(today) {
			from = today
		}

		future := filterCells(cells, func(c *storage.PlanningCell) bool {
			return !c.Date.Before(today)
		})
		adjustable := filterCells(future, func(c *storage.PlanningCell) bool {
			return c.Source == constants.SourceAuto && !c.Date.Before(from)
		})

		planned := hoursOf(future)
		delta := planned - required

		switch {
		case delta > hoursTolerance:
			updates, deleteIDs, _, adjusted := trimTail(adjustable, delta)
			if err := s.storage.ApplyPlanChanges(ctx, orderUUID, updates, deleteIDs); err != nil {
				return err
			}
			res.CellsAdjusted = adjusted
			res.CellsRemoved = len(deleteIDs)
			res.PlannedHours = planned - trimmedHours(updates, deleteIDs, adjustable)
		case delta < -hoursTolerance:
			// Best effort: a manual edit may leave the plan short when
			// capacity runs out inside the horizon. That is reported, not
			// rejected.
			added, placedHours, err := s.extendAfterTail(ctx, order, cells, -delta)
			if err != nil {
				return err
			}
			if err := s.storage.ApplyPlanChanges(ctx, orderUUID, added, nil); err != nil {
				return err
			}
			res.CellsAdded = len(added)
			res.PlannedHours = planned + placedHours
		default:
			res.PlannedHours = planned
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// AdjustForWorkedQuantity is the daily-sweep entry point. When the floor
// portal has recorded production, future auto cells are shrunk or removed
// so remaining planned hours do not exceed what is left to produce. Manual
// cells and the past are never touched. Idempotent: a second call with no
// intervening write removes nothing.
func (s *Service) AdjustForWorkedQuantity(ctx context.Context, orderUUID string) (*AdjustResult, error) {
	const op = "service.replan.AdjustForWorkedQuantity"

	res := &AdjustResult{OrderUUID: orderUUID}

	err := s.storage.WithOrderLock(ctx, orderUUID, func(ctx context.Context) error {
		order, err := s.storage.GetOrder(ctx, orderUUID)
		if err != nil {
			return err
		}
		res.RemainingQty = order.Remaining()

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
		adjustable := filterCells(future, func(c *storage.PlanningCell) bool {
			return c.Source == constants.SourceAuto
		})

		excess := hoursOf(future) - required
		if excess <= hoursTolerance {
			return nil
		}

		updates, deleteIDs, quarters, adjusted := trimTail(adjustable, excess)
		if err := s.storage.ApplyPlanChanges(ctx, orderUUID, updates, deleteIDs); err != nil {
			return err
		}

		res.QuartersRemoved = quarters
		res.CellsRemoved = len(deleteIDs)
		res.CellsAdjusted = adjusted
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// CheckToday runs the sweep for every order with a cell dated today. A
// failing order is recorded in the details and does not stop the sweep.
func (s *Service) CheckToday(ctx context.Context) (*CheckTodayResult, error) {
	const op = "service.replan.CheckToday"

	today := timegrid.Day(s.now())

	uuids, err := s.storage.GetOrderUUIDsWithCellsOn(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &CheckTodayResult{Details: []*AdjustResult{}}
	for _, uuid := range uuids {
		res.OrdersChecked++

		detail, err := s.AdjustForWorkedQuantity(ctx, uuid)
		if err != nil {
			res.Details = append(res.Details, &AdjustResult{OrderUUID: uuid, Error: err.Error()})
			continue
		}

		if detail.QuartersRemoved > 0 {
			res.OrdersModified++
		}
		res.Details = append(res.Details, detail)
	}

	return res, nil
}

// --- cell sequence helpers ---

func sortCells(cells []*storage.PlanningCell) {
	sort.Slice(cells, func(i, j int) bool {
		return slotOf(cells[i]).Before(slotOf(cells[j]))
	})
}

func slotOf(c *storage.PlanningCell) timegrid.Slot {
	return timegrid.Slot{Date: timegrid.Day(c.Date), Hour: c.Hour, Minute: c.Minute}
}

func filterCells(cells []*storage.PlanningCell, keep func(*storage.PlanningCell) bool) []*storage.PlanningCell {
	var out []*storage.PlanningCell
	for _, c := range cells {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func hoursOf(cells []*storage.PlanningCell) float64 {
	var total float64
	for _, c := range cells {
		total += c.Hours()
	}
	return total
}

// trimTail removes planned capacity from the latest-dated cells first,
// preserving earlier commitments. Whole cells are deleted; a cell that is
// only partially in excess keeps a reduced worker count. Zero-worker cells
// carry no hours and are left in place. Quarters are counted in
// worker-quarter units (one worker on one 15-minute slot).
func trimTail(cells []*storage.PlanningCell, excess float64) (updates []*storage.PlanningCell, deleteIDs []int64, quarters int, adjusted int) {
	for i := len(cells) - 1; i >= 0 && excess > hoursTolerance; i-- {
		c := cells[i]
		h := c.Hours()
		if h <= 0 {
			continue
		}

		slotHours := float64(c.SlotMinutes) / 60
		if h <= excess {
			deleteIDs = append(deleteIDs, c.PlanningID)
			excess -= h
			quarters += c.Workers * c.SlotMinutes / 15
			continue
		}

		drop := int(math.Ceil(excess / slotHours))
		if drop >= c.Workers {
			// Rounding up to whole workers would empty the cell; deleting
			// it keeps the deletion-over-zeroing invariant.
			deleteIDs = append(deleteIDs, c.PlanningID)
			excess -= h
			quarters += c.Workers * c.SlotMinutes / 15
			continue
		}
		if drop <= 0 {
			continue
		}

		trimmed := *c
		trimmed.Workers = c.Workers - drop
		updates = append(updates, &trimmed)
		excess -= float64(drop) * slotHours
		quarters += drop * c.SlotMinutes / 15
		adjusted++
	}
	return updates, deleteIDs, quarters, adjusted
}

// trimmedHours is the capacity a trim pass took away, for reporting.
func trimmedHours(updates []*storage.PlanningCell, deleteIDs []int64, before []*storage.PlanningCell) float64 {
	byID := make(map[int64]*storage.PlanningCell, len(before))
	for _, c := range before {
		byID[c.PlanningID] = c
	}

	var removed float64
	for _, id := range deleteIDs {
		if c, ok := byID[id]; ok {
			removed += c.Hours()
		}
	}
	for _, u := range updates {
		if c, ok := byID[u.PlanningID]; ok {
			removed += c.Hours() - u.Hours()
		}
	}
	return removed
}
