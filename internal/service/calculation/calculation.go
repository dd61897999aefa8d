// Package calculation derives required production time for an order from
// its article's offer operation list. The formula chain is fixed by the
// costing model and must not be made configurable.
package calculation

import (
	"context"
	"errors"
	"fmt"
	"laser-planning/internal/storage"
)

// ErrNoOperations means the offer carries no timed operation rows. A zero
// production time would corrupt the replan engine's hour math downstream,
// so this is a hard precondition, never silently defaulted.
var ErrNoOperations = errors.New("offer has no timed operations")

type Storage interface {
	GetOrder(ctx context.Context, uuid string) (*storage.Order, error)
	GetOfferForOrder(ctx context.Context, orderUUID string) (*storage.Offer, error)
	GetOfferOperations(ctx context.Context, offerUUID string) ([]*storage.OfferOperation, error)
}

type Result struct {
	TotalSeconds         float64 `json:"total_seconds"`
	UnexpectedSeconds    float64 `json:"unexpected_seconds"`
	TheoreticalTime      float64 `json:"theoretical_time"`
	ProductionTimeCFZ    float64 `json:"production_time_cfz"`
	ProductionAverageCFZ float64 `json:"production_average_cfz"`
	ProductionAveragePZ  float64 `json:"production_average_pz"`
}

type Service struct {
	storage Storage
}

func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

func (s *Service) CalculateForOrder(ctx context.Context, orderUUID string) (*Result, error) {
	const op = "service.calculation.CalculateForOrder"

	order, err := s.storage.GetOrder(ctx, orderUUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	offer, err := s.storage.GetOfferForOrder(ctx, order.UUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	operations, err := s.storage.GetOfferOperations(ctx, offer.UUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result, err := Calculate(operations, offer.Piece)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// Calculate runs the fixed chain: sum the operation seconds, add the 5%
// contingency, derate by the 8-hour shift over 7 effective hours, then
// derive the hourly averages.
func Calculate(operations []*storage.OfferOperation, piece float64) (*Result, error) {
	if len(operations) == 0 {
		return nil, ErrNoOperations
	}

	var total float64
	for _, row := range operations {
		total += row.OperationSeconds * row.NumOp
	}

	unexpected := total * 0.05
	theoretical := total + unexpected
	timeCFZ := theoretical * 8 / 7

	var avgCFZ float64
	if timeCFZ > 0 {
		avgCFZ = 3600 / timeCFZ
	}

	return &Result{
		TotalSeconds:         total,
		UnexpectedSeconds:    unexpected,
		TheoreticalTime:      theoretical,
		ProductionTimeCFZ:    timeCFZ,
		ProductionAverageCFZ: avgCFZ,
		ProductionAveragePZ:  avgCFZ * piece,
	}, nil
}

// RequiredHours converts a remaining quantity into the hours of line time
// still needed, via the pieces-per-hour average.
func RequiredHours(res *Result, remainingQty float64) float64 {
	if res == nil || res.ProductionAveragePZ <= 0 || remainingQty <= 0 {
		return 0
	}
	return remainingQty / res.ProductionAveragePZ
}
