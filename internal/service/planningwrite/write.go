// Package planningwrite holds the two write primitives of the planning
// store. All higher-level scheduling goes through SavePlanningCell; the
// replan engine batches its own writes separately.
package planningwrite

import (
	"context"
	"errors"
	"fmt"
	"laser-planning/internal/constants"
	"laser-planning/internal/storage"
	"laser-planning/internal/timegrid"
	"time"
)

var (
	ErrInvalidSlot        = errors.New("slot does not match grid resolution")
	ErrNegativeWorkers    = errors.New("workers must be a non-negative integer")
	ErrInvalidValue       = errors.New("summary value must be a non-negative integer")
	ErrUnknownSummaryType = errors.New("unknown summary type")
)

type Storage interface {
	GetOrder(ctx context.Context, uuid string) (*storage.Order, error)
	GetWorkLine(ctx context.Context, uuid string) (*storage.WorkLine, error)
	UpsertPlanningCell(ctx context.Context, cell *storage.PlanningCell) (int64, error)
	UpsertSummaryValue(ctx context.Context, v *storage.SummaryValue) (int64, error)
	WithOrderLock(ctx context.Context, orderUUID string, fn func(ctx context.Context) error) error
}

type Service struct {
	storage Storage
}

func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

type CellInput struct {
	OrderUUID    string
	WorkLineUUID string
	Date         time.Time
	Hour         int
	Minute       int
	Workers      int
	Res          timegrid.Resolution
}

// SavePlanningCell upserts one manually placed cell and returns the id of
// the row that holds the key, pre-existing or new. workers = 0 is a valid
// explicit value meaning no capacity here. The write runs under the
// order's advisory lock so it cannot land inside another writer's
// read-recompute-write cycle on the same order.
func (s *Service) SavePlanningCell(ctx context.Context, in CellInput) (int64, error) {
	const op = "service.planningwrite.SavePlanningCell"

	if !in.Res.ValidSlot(in.Hour, in.Minute) {
		return 0, fmt.Errorf("%s: hour=%d minute=%d at %s zoom: %w", op, in.Hour, in.Minute, in.Res, ErrInvalidSlot)
	}
	if in.Workers < 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrNegativeWorkers)
	}

	var id int64
	err := s.storage.WithOrderLock(ctx, in.OrderUUID, func(ctx context.Context) error {
		if _, err := s.storage.GetOrder(ctx, in.OrderUUID); err != nil {
			return err
		}
		if _, err := s.storage.GetWorkLine(ctx, in.WorkLineUUID); err != nil {
			return err
		}

		cell := &storage.PlanningCell{
			OrderUUID:    in.OrderUUID,
			WorkLineUUID: in.WorkLineUUID,
			Date:         timegrid.Day(in.Date),
			Hour:         in.Hour,
			Minute:       in.Minute,
			Workers:      in.Workers,
			SlotMinutes:  in.Res.SlotMinutes(),
			Source:       constants.SourceManual,
		}

		var err error
		id, err = s.storage.UpsertPlanningCell(ctx, cell)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

type SummaryInput struct {
	SummaryType string
	Date        time.Time
	Hour        int
	Minute      int
	Value       int
	Reset       bool
	Res         timegrid.Resolution
}

// SaveSummaryValue sets a per-slot counter, or with Reset clears it back
// to the type's default ignoring Value.
func (s *Service) SaveSummaryValue(ctx context.Context, in SummaryInput) (int64, error) {
	const op = "service.planningwrite.SaveSummaryValue"

	if !constants.SummaryTypes[in.SummaryType] {
		return 0, fmt.Errorf("%s: %q: %w", op, in.SummaryType, ErrUnknownSummaryType)
	}
	if !in.Res.ValidSlot(in.Hour, in.Minute) {
		return 0, fmt.Errorf("%s: hour=%d minute=%d at %s zoom: %w", op, in.Hour, in.Minute, in.Res, ErrInvalidSlot)
	}

	value := in.Value
	if in.Reset {
		value = constants.SummaryDefaults[in.SummaryType]
	} else if value < 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidValue)
	}

	id, err := s.storage.UpsertSummaryValue(ctx, &storage.SummaryValue{
		SummaryType: in.SummaryType,
		Date:        timegrid.Day(in.Date),
		Hour:        in.Hour,
		Minute:      in.Minute,
		Value:       value,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}
