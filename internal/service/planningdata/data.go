package planningdata

import (
	"context"
	"fmt"
	"golang.org/x/sync/errgroup"
	"laser-planning/internal/storage"
	"time"
)

type Storage interface {
	GetWorkLines(ctx context.Context) ([]*storage.WorkLine, error)
	GetPlannableOrders(ctx context.Context, start, end time.Time) ([]*storage.Order, error)
	GetCellsRange(ctx context.Context, start, end time.Time) ([]*storage.PlanningCell, error)
	GetContractsRange(ctx context.Context, start, end time.Time) ([]*storage.Contract, error)
	GetSummaryRange(ctx context.Context, start, end time.Time) ([]*storage.SummaryValue, error)
}

type Data struct {
	Lines     []*storage.WorkLine     `json:"lines"`
	Orders    []*storage.Order        `json:"orders"`
	Planning  []*storage.PlanningCell `json:"planning"`
	Contracts []*storage.Contract     `json:"contracts"`
	Summary   []*storage.SummaryValue `json:"summary"`
}

type Service struct {
	storage Storage
}

func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

// GetData is the read projection behind the calendar: lines, orders, cells,
// contracts and summary counters for a date range, loaded in parallel.
// Pure read, and an empty range just yields empty collections.
func (s *Service) GetData(ctx context.Context, start, end time.Time) (*Data, error) {
	const op = "service.planningdata.GetData"

	data := &Data{}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data.Lines, err = s.storage.GetWorkLines(gCtx)
		if err != nil {
			return fmt.Errorf("lines: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		data.Orders, err = s.storage.GetPlannableOrders(gCtx, start, end)
		if err != nil {
			return fmt.Errorf("orders: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		data.Planning, err = s.storage.GetCellsRange(gCtx, start, end)
		if err != nil {
			return fmt.Errorf("planning: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		data.Contracts, err = s.storage.GetContractsRange(gCtx, start, end)
		if err != nil {
			return fmt.Errorf("contracts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		data.Summary, err = s.storage.GetSummaryRange(gCtx, start, end)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// The frontend expects arrays, not nulls.
	if data.Lines == nil {
		data.Lines = []*storage.WorkLine{}
	}
	if data.Orders == nil {
		data.Orders = []*storage.Order{}
	}
	if data.Planning == nil {
		data.Planning = []*storage.PlanningCell{}
	}
	if data.Contracts == nil {
		data.Contracts = []*storage.Contract{}
	}
	if data.Summary == nil {
		data.Summary = []*storage.SummaryValue{}
	}

	return data, nil
}
