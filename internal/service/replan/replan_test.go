package replan

import (
	"context"
	"fmt"
	"github.com/stretchr/testify/assert"
	"laser-planning/internal/config"
	"laser-planning/internal/constants"
	"laser-planning/internal/service/calculation"
	"laser-planning/internal/storage"
	"laser-planning/internal/timegrid"
	"testing"
	"time"
)

// fakeStorage is an in-memory planning store good enough to drive the
// engine: cells keyed the same way the real table is, advisory lock
// reduced to a counter.
type fakeStorage struct {
	orders  map[string]*storage.Order
	lines   map[string]*storage.WorkLine
	cells   []*storage.PlanningCell
	summary []*storage.SummaryValue

	nextID    int64
	lockCalls int
	applies   int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		orders: map[string]*storage.Order{},
		lines:  map[string]*storage.WorkLine{},
		nextID: 1,
	}
}

func (f *fakeStorage) GetOrder(_ context.Context, uuid string) (*storage.Order, error) {
	o, ok := f.orders[uuid]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeStorage) GetWorkLine(_ context.Context, uuid string) (*storage.WorkLine, error) {
	l, ok := f.lines[uuid]
	if !ok {
		return nil, storage.ErrWorkLineNotFound
	}
	return l, nil
}

func (f *fakeStorage) GetOrderCells(_ context.Context, orderUUID string) ([]*storage.PlanningCell, error) {
	var out []*storage.PlanningCell
	for _, c := range f.cells {
		if c.OrderUUID == orderUUID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStorage) GetLineLoad(_ context.Context, lineUUID string, start, end time.Time, excludeOrderUUID string) ([]*storage.PlanningCell, error) {
	var out []*storage.PlanningCell
	for _, c := range f.cells {
		if c.WorkLineUUID != lineUUID || c.OrderUUID == excludeOrderUUID {
			continue
		}
		if c.Date.Before(start) || c.Date.After(end) {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeStorage) GetSummaryRange(_ context.Context, start, end time.Time) ([]*storage.SummaryValue, error) {
	var out []*storage.SummaryValue
	for _, v := range f.summary {
		if v.Date.Before(start) || v.Date.After(end) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeStorage) GetOrderUUIDsWithCellsOn(_ context.Context, date time.Time) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, c := range f.cells {
		if c.Date.Equal(date) && !seen[c.OrderUUID] {
			seen[c.OrderUUID] = true
			out = append(out, c.OrderUUID)
		}
	}
	return out, nil
}

func (f *fakeStorage) ApplyPlanChanges(_ context.Context, orderUUID string, upserts []*storage.PlanningCell, deleteIDs []int64) error {
	f.applies++

	deleted := map[int64]bool{}
	for _, id := range deleteIDs {
		deleted[id] = true
	}
	var kept []*storage.PlanningCell
	for _, c := range f.cells {
		if c.OrderUUID == orderUUID && deleted[c.PlanningID] {
			continue
		}
		kept = append(kept, c)
	}
	f.cells = kept

	for _, u := range upserts {
		replaced := false
		for _, c := range f.cells {
			if c.OrderUUID == orderUUID && c.WorkLineUUID == u.WorkLineUUID &&
				c.Date.Equal(u.Date) && c.Hour == u.Hour && c.Minute == u.Minute {
				c.Workers = u.Workers
				c.SlotMinutes = u.SlotMinutes
				c.Source = u.Source
				replaced = true
				break
			}
		}
		if !replaced {
			stored := *u
			stored.OrderUUID = orderUUID
			stored.PlanningID = f.nextID
			f.nextID++
			f.cells = append(f.cells, &stored)
		}
	}
	return nil
}

func (f *fakeStorage) WithOrderLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	f.lockCalls++
	return fn(ctx)
}

func (f *fakeStorage) addCell(orderUUID, lineUUID string, date time.Time, hour, minute, workers, slotMinutes int, source string) *storage.PlanningCell {
	c := &storage.PlanningCell{
		PlanningID:   f.nextID,
		OrderUUID:    orderUUID,
		WorkLineUUID: lineUUID,
		Date:         date,
		Hour:         hour,
		Minute:       minute,
		Workers:      workers,
		SlotMinutes:  slotMinutes,
		Source:       source,
	}
	f.nextID++
	f.cells = append(f.cells, c)
	return c
}

type fakeCalc struct {
	results map[string]*calculation.Result
	err     error
}

func (f *fakeCalc) CalculateForOrder(_ context.Context, orderUUID string) (*calculation.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	res, ok := f.results[orderUUID]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	return res, nil
}

var (
	today     = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // Monday
	yesterday = today.AddDate(0, 0, -1)
	tomorrow  = today.AddDate(0, 0, 1)
)

func newTestService(f *fakeStorage, calc *fakeCalc) *Service {
	s := NewService(f, calc, config.Planning{
		HorizonDays:         30,
		DayStartHour:        6,
		DayEndHour:          22,
		DefaultLineCapacity: 4,
	})
	s.now = func() time.Time { return today.Add(10 * time.Hour) }
	return s
}

// avg_pz 10 pieces/hour: required hours = remaining / 10
func setupOrder(f *fakeStorage, qty, worked float64) (*storage.Order, *fakeCalc) {
	order := &storage.Order{
		UUID:           "ord-1",
		Number:         "ORD-001",
		Quantity:       qty,
		WorkedQuantity: worked,
		Status:         constants.StatusLaunched,
		WorkLineUUID:   "line-1",
	}
	f.orders[order.UUID] = order
	f.lines["line-1"] = &storage.WorkLine{UUID: "line-1", Code: "L1", Name: "Line 1", Capacity: 4}

	calc := &fakeCalc{results: map[string]*calculation.Result{
		"ord-1": {ProductionTimeCFZ: 360, ProductionAverageCFZ: 10, ProductionAveragePZ: 10},
	}}
	return order, calc
}

func futureHours(f *fakeStorage, orderUUID string) float64 {
	var total float64
	for _, c := range f.cells {
		if c.OrderUUID == orderUUID && !c.Date.Before(today) {
			total += c.Hours()
		}
	}
	return total
}

func TestAdjustForWorkedQuantity_TrimsAndIsIdempotent(t *testing.T) {
	f := newFakeStorage()
	_, calc := setupOrder(f, 100, 0) // required = 10h

	// 12 one-worker hour cells over tomorrow and the day after
	for i := 0; i < 12; i++ {
		f.addCell("ord-1", "line-1", tomorrow.AddDate(0, 0, i/6), 8+i%6, 0, 1, 60, constants.SourceAuto)
	}

	service := newTestService(f, calc)

	res, err := service.AdjustForWorkedQuantity(context.Background(), "ord-1")
	assert.NoError(t, err)
	assert.Equal(t, 8, res.QuartersRemoved) // 2 hour-cells = 8 worker-quarters
	assert.Equal(t, 2, res.CellsRemoved)
	assert.InDelta(t, 10.0, futureHours(f, "ord-1"), 0.26)

	// second pass with no intervening write removes nothing
	res, err = service.AdjustForWorkedQuantity(context.Background(), "ord-1")
	assert.NoError(t, err)
	assert.Equal(t, 0, res.QuartersRemoved)
	assert.Equal(t, 0, res.CellsRemoved)
}

func TestAdjustForWorkedQuantity_ShrinksWhenWorkRecorded(t *testing.T) {
	f := newFakeStorage()
	order, calc := setupOrder(f, 100, 0)

	for i := 0; i < 10; i++ {
		f.addCell("ord-1", "line-1", tomorrow, 8+i, 0, 1, 60, constants.SourceAuto)
	}

	service := newTestService(f, calc)

	// plan matches requirement, nothing to do
	res, err := service.AdjustForWorkedQuantity(context.Background(), "ord-1")
	assert.NoError(t, err)
	assert.Equal(t, 0, res.QuartersRemoved)

	// the floor portal recorded 40 pieces: 4 planned hours are now excess
	order.WorkedQuantity = 40

	res, err = service.AdjustForWorkedQuantity(context.Background(), "ord-1")
	assert.NoError(t, err)
	assert.Equal(t, 16, res.QuartersRemoved)
	assert.InDelta(t, 6.0, futureHours(f, "ord-1"), 0.26)

	// conservation: future planned never exceeds required plus one slot
	assert.LessOrEqual(t, futureHours(f, "ord-1"), res.RequiredHours+0.25)
}

func TestAdjustForWorkedQuantity_NeverTouchesPastOrManual(t *testing.T) {
	f := newFakeStorage()
	_, calc := setupOrder(f, 20, 20) // nothing remains, required = 0

	past := f.addCell("ord-1", "line-1", yesterday, 8, 0, 2, 60, constants.SourceAuto)
	manual := f.addCell("ord-1", "line-1", tomorrow, 9, 0, 2, 60, constants.SourceManual)
	auto := f.addCell("ord-1", "line-1", tomorrow, 10, 0, 2, 60, constants.SourceAuto)

	service := newTestService(f, calc)

	res, err := service.AdjustForWorkedQuantity(context.Background(), "ord-1")
	assert.NoError(t, err)
	assert.Equal(t, 1, res.CellsRemoved)

	ids := map[int64]bool{}
	for _, c := range f.cells {
		ids[c.PlanningID] = true
	}
	assert.True(t, ids[past.PlanningID], "past cell must survive")
	assert.True(t, ids[manual.PlanningID], "manual cell must survive")
	assert.False(t, ids[auto.PlanningID], "future auto cell must be removed")

	// the surviving manual cell keeps its workers
	for _, c := range f.cells {
		if c.PlanningID == manual.PlanningID {
			assert.Equal(t, 2, c.Workers)
		}
	}
}

func TestReplanAfterManualEdit_TrimsOnlyFromEditDate(t *testing.T) {
	f := newFakeStorage()
	_, calc := setupOrder(f, 100, 0) // required = 10h

	// 6h planned tomorrow, 8h the day after: 4h excess
	for i := 0; i < 6; i++ {
		f.addCell("ord-1", "line-1", tomorrow, 8+i, 0, 1, 60, constants.SourceAuto)
	}
	for i := 0; i < 8; i++ {
		f.addCell("ord-1", "line-1", tomorrow.AddDate(0, 0, 1), 8+i, 0, 1, 60, constants.SourceAuto)
	}

	service := newTestService(f, calc)

	// edit happened on the later day, so tomorrow's cells are off limits
	res, err := service.ReplanAfterManualEdit(context.Background(), "ord-1", tomorrow.AddDate(0, 0, 1))
	assert.NoError(t, err)
	assert.Equal(t, 4, res.CellsRemoved)

	var tomorrowHours float64
	for _, c := range f.cells {
		if c.Date.Equal(tomorrow) {
			tomorrowHours += c.Hours()
		}
	}
	assert.Equal(t, 6.0, tomorrowHours, "cells before the edit date stay put")
	assert.InDelta(t, 10.0, futureHours(f, "ord-1"), 0.26)
}

func TestReplanAfterManualEdit_ExtendsAfterTail(t *testing.T) {
	f := newFakeStorage()
	_, calc := setupOrder(f, 100, 0) // required = 10h

	// only 2h planned so far, last cell tomorrow 09:00
	f.addCell("ord-1", "line-1", tomorrow, 8, 0, 1, 60, constants.SourceManual)
	f.addCell("ord-1", "line-1", tomorrow, 9, 0, 1, 60, constants.SourceManual)

	service := newTestService(f, calc)

	res, err := service.ReplanAfterManualEdit(context.Background(), "ord-1", tomorrow)
	assert.NoError(t, err)
	assert.Greater(t, res.CellsAdded, 0)
	assert.InDelta(t, 10.0, futureHours(f, "ord-1"), 1.1)

	// appended, never inserted into gaps: everything new is after 09:00
	lastManual := timegrid.Slot{Date: tomorrow, Hour: 9, Minute: 0}
	for _, c := range f.cells {
		if c.Source != constants.SourceAuto {
			continue
		}
		slot := timegrid.Slot{Date: c.Date, Hour: c.Hour, Minute: c.Minute}
		assert.True(t, lastManual.Before(slot), fmt.Sprintf("cell %v placed before the tail", slot))
	}
}

func TestAutoSchedule_NoOpWhenSatisfied(t *testing.T) {
	f := newFakeStorage()
	_, calc := setupOrder(f, 100, 0)

	for i := 0; i < 10; i++ {
		f.addCell("ord-1", "line-1", tomorrow, 8+i, 0, 1, 60, constants.SourceAuto)
	}

	service := newTestService(f, calc)

	res, err := service.AutoSchedule(context.Background(), "ord-1", false)
	assert.NoError(t, err)
	assert.True(t, res.AlreadyPlanned)
	assert.Equal(t, 0, res.CellsAdded)
	assert.Equal(t, 0, f.applies)
}

func TestAutoSchedule_AllocatesAroundManualCells(t *testing.T) {
	f := newFakeStorage()
	_, calc := setupOrder(f, 100, 0) // required = 10h

	manual := f.addCell("ord-1", "line-1", tomorrow, 9, 0, 4, 60, constants.SourceManual)
	stale := f.addCell("ord-1", "line-1", tomorrow.AddDate(0, 0, 5), 9, 0, 4, 60, constants.SourceAuto)

	service := newTestService(f, calc)

	res, err := service.AutoSchedule(context.Background(), "ord-1", false)
	assert.NoError(t, err)
	assert.False(t, res.AlreadyPlanned)
	assert.Greater(t, res.CellsAdded, 0)

	ids := map[int64]bool{}
	for _, c := range f.cells {
		ids[c.PlanningID] = true
	}
	assert.True(t, ids[manual.PlanningID], "manual cell survives a non-forced reschedule")
	assert.False(t, ids[stale.PlanningID], "stale auto cell is discarded")
	assert.InDelta(t, 10.0, futureHours(f, "ord-1"), 1.1)
}

func TestAutoSchedule_ForceDiscardsEverythingFuture(t *testing.T) {
	f := newFakeStorage()
	_, calc := setupOrder(f, 100, 0)

	past := f.addCell("ord-1", "line-1", yesterday, 9, 0, 2, 60, constants.SourceManual)
	manual := f.addCell("ord-1", "line-1", tomorrow, 9, 0, 2, 60, constants.SourceManual)

	service := newTestService(f, calc)

	res, err := service.AutoSchedule(context.Background(), "ord-1", true)
	assert.NoError(t, err)
	assert.Greater(t, res.CellsAdded, 0)

	ids := map[int64]bool{}
	for _, c := range f.cells {
		ids[c.PlanningID] = true
	}
	assert.True(t, ids[past.PlanningID], "the past stays immutable even under force")
	assert.False(t, ids[manual.PlanningID], "force discards future manual cells")
}

func TestAutoSchedule_InfeasibleReportsError(t *testing.T) {
	f := newFakeStorage()
	_, calc := setupOrder(f, 100000, 0) // required = 10000h
	f.lines["line-1"].Capacity = 1

	service := newTestService(f, calc)
	service.horizon = 2 // at most 32h of capacity

	before := len(f.cells)

	_, err := service.AutoSchedule(context.Background(), "ord-1", true)
	var schedErr *SchedulingError
	assert.ErrorAs(t, err, &schedErr)
	assert.Equal(t, before, len(f.cells), "an infeasible schedule writes nothing")
}

func TestAutoSchedule_AbsencesReduceCapacity(t *testing.T) {
	f := newFakeStorage()
	_, calc := setupOrder(f, 10, 0) // required = 1h
	f.lines["line-1"].Capacity = 2

	// everyone is absent during the first schedulable hour of today
	f.summary = append(f.summary, &storage.SummaryValue{
		SummaryType: constants.SummaryAbsences,
		Date:        today, Hour: 6, Minute: 0, Value: 2,
	})

	service := newTestService(f, calc)

	res, err := service.AutoSchedule(context.Background(), "ord-1", true)
	assert.NoError(t, err)
	assert.Greater(t, res.CellsAdded, 0)

	for _, c := range f.cells {
		if c.OrderUUID == "ord-1" {
			assert.False(t, c.Date.Equal(today) && c.Hour == 6, "no placement into a fully absent hour")
		}
	}
}

func TestAutoSchedule_RespectsOtherOrdersLoad(t *testing.T) {
	f := newFakeStorage()
	_, calc := setupOrder(f, 10, 0) // required = 1h
	f.lines["line-1"].Capacity = 2

	other := &storage.Order{UUID: "ord-2", Status: constants.StatusLaunched, WorkLineUUID: "line-1"}
	f.orders[other.UUID] = other
	// the other order fills the line completely for today's first hour
	f.addCell("ord-2", "line-1", today, 6, 0, 2, 60, constants.SourceManual)

	service := newTestService(f, calc)

	_, err := service.AutoSchedule(context.Background(), "ord-1", true)
	assert.NoError(t, err)

	for _, c := range f.cells {
		if c.OrderUUID == "ord-1" {
			assert.False(t, c.Date.Equal(today) && c.Hour == 6, "no double-booking over the line capacity")
		}
	}
}

func TestAutoSchedule_NoOperationsPropagates(t *testing.T) {
	f := newFakeStorage()
	_, _ = setupOrder(f, 100, 0)

	calc := &fakeCalc{err: calculation.ErrNoOperations}
	service := newTestService(f, calc)

	_, err := service.AutoSchedule(context.Background(), "ord-1", true)
	assert.ErrorIs(t, err, calculation.ErrNoOperations)
}

func TestCheckToday_SweepsOrdersWithCellsToday(t *testing.T) {
	f := newFakeStorage()
	_, calc := setupOrder(f, 100, 50) // required = 5h

	orderB := &storage.Order{
		UUID: "ord-2", Number: "ORD-002", Quantity: 50,
		Status: constants.StatusLaunched, WorkLineUUID: "line-1",
	}
	f.orders[orderB.UUID] = orderB
	calc.results["ord-2"] = &calculation.Result{ProductionAveragePZ: 10}

	// order A: a cell today plus 10h of future auto plan, 5h too much now
	f.addCell("ord-1", "line-1", today, 8, 0, 1, 60, constants.SourceAuto)
	for i := 0; i < 9; i++ {
		f.addCell("ord-1", "line-1", tomorrow, 8+i, 0, 1, 60, constants.SourceAuto)
	}
	// order B: exactly on plan
	f.addCell("ord-2", "line-1", today, 12, 0, 1, 60, constants.SourceAuto)
	for i := 0; i < 4; i++ {
		f.addCell("ord-2", "line-1", tomorrow, 12+i, 0, 1, 60, constants.SourceAuto)
	}
	// an order with no cell today is not swept
	f.addCell("missing-order", "line-1", tomorrow, 8, 0, 1, 60, constants.SourceAuto)

	service := newTestService(f, calc)

	res, err := service.CheckToday(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, res.OrdersChecked)
	assert.Equal(t, 1, res.OrdersModified)
	assert.Len(t, res.Details, 2)

	// running the sweep again changes nothing
	res, err = service.CheckToday(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, res.OrdersModified)
}

func TestCheckToday_FailingOrderDoesNotStopSweep(t *testing.T) {
	f := newFakeStorage()
	_, calc := setupOrder(f, 100, 0)

	f.addCell("ord-1", "line-1", today, 8, 0, 1, 60, constants.SourceAuto)
	f.addCell("ghost", "line-1", today, 9, 0, 1, 60, constants.SourceAuto)

	service := newTestService(f, calc)

	res, err := service.CheckToday(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, res.OrdersChecked)

	var withError int
	for _, d := range res.Details {
		if d.Error != "" {
			withError++
		}
	}
	assert.Equal(t, 1, withError)
}
