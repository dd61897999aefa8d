package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"laser-planning/internal/storage"
	"time"
)

func (s *Storage) GetOrder(ctx context.Context, uuid string) (*storage.Order, error) {
	const op = "storage.mysql.orders.GetOrder"

	stmt := `SELECT o.uuid, o.number, o.quantity, o.worked_quantity, o.status,
	                o.article_uuid, a.offer_uuid, COALESCE(f.lasworkline_uuid, '')
	         FROM orders o
	         JOIN articles a ON a.uuid = o.article_uuid
	         JOIN offers f ON f.uuid = a.offer_uuid
	         WHERE o.uuid = ? AND o.removed = 0`

	var order storage.Order
	err := s.db.QueryRowContext(ctx, stmt, uuid).Scan(
		&order.UUID,
		&order.Number,
		&order.Quantity,
		&order.WorkedQuantity,
		&order.Status,
		&order.ArticleUUID,
		&order.OfferUUID,
		&order.WorkLineUUID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &order, nil
}

// GetPlannableOrders returns active orders plus any order that still has a
// cell in the range, so a just-finished order does not vanish from the
// calendar mid-week.
func (s *Storage) GetPlannableOrders(ctx context.Context, start, end time.Time) ([]*storage.Order, error) {
	const op = "storage.mysql.orders.GetPlannableOrders"

	stmt := `SELECT DISTINCT o.uuid, o.number, o.quantity, o.worked_quantity, o.status,
	                o.article_uuid, a.offer_uuid, COALESCE(f.lasworkline_uuid, '')
	         FROM orders o
	         JOIN articles a ON a.uuid = o.article_uuid
	         JOIN offers f ON f.uuid = a.offer_uuid
	         LEFT JOIN planning_cells p ON p.order_uuid = o.uuid AND p.date BETWEEN ? AND ?
	         WHERE o.removed = 0
	           AND (o.status IN ('planned', 'in_preparation', 'launched', 'in_progress', 'suspended')
	                OR p.planning_id IS NOT NULL)
	         ORDER BY o.number`

	rows, err := s.db.QueryContext(ctx, stmt, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var orders []*storage.Order
	for rows.Next() {
		var order storage.Order

		err := rows.Scan(
			&order.UUID,
			&order.Number,
			&order.Quantity,
			&order.WorkedQuantity,
			&order.Status,
			&order.ArticleUUID,
			&order.OfferUUID,
			&order.WorkLineUUID,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		orders = append(orders, &order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return orders, nil
}

func (s *Storage) GetOfferForOrder(ctx context.Context, orderUUID string) (*storage.Offer, error) {
	const op = "storage.mysql.orders.GetOfferForOrder"

	stmt := `SELECT f.uuid, f.piece, COALESCE(f.lasworkline_uuid, '')
	         FROM orders o
	         JOIN articles a ON a.uuid = o.article_uuid
	         JOIN offers f ON f.uuid = a.offer_uuid
	         WHERE o.uuid = ? AND o.removed = 0`

	var offer storage.Offer
	err := s.db.QueryRowContext(ctx, stmt, orderUUID).Scan(&offer.UUID, &offer.Piece, &offer.WorkLineUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &offer, nil
}

// GetOfferOperations returns the timed rows of the offer's operation list.
// Rows whose linked operation is removed do not qualify.
func (s *Storage) GetOfferOperations(ctx context.Context, offerUUID string) ([]*storage.OfferOperation, error) {
	const op = "storage.mysql.orders.GetOfferOperations"

	stmt := `SELECT op.secondi_operazione, l.num_op
	         FROM offer_operation_lists l
	         JOIN operations op ON op.uuid = l.operation_uuid AND op.removed = 0
	         WHERE l.offer_uuid = ? AND l.removed = 0
	         ORDER BY l.position`

	rows, err := s.db.QueryContext(ctx, stmt, offerUUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var operations []*storage.OfferOperation
	for rows.Next() {
		var row storage.OfferOperation

		err := rows.Scan(&row.OperationSeconds, &row.NumOp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		operations = append(operations, &row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return operations, nil
}

// GetOrderUUIDsWithCellsOn feeds the daily sweep: orders that have at
// least one cell dated the given day.
func (s *Storage) GetOrderUUIDsWithCellsOn(ctx context.Context, date time.Time) ([]string, error) {
	const op = "storage.mysql.orders.GetOrderUUIDsWithCellsOn"

	stmt := `SELECT DISTINCT order_uuid FROM planning_cells WHERE date = ?`

	rows, err := s.db.QueryContext(ctx, stmt, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var uuids []string
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		uuids = append(uuids, uuid)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return uuids, nil
}
