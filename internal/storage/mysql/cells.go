package mysql

import (
	"context"
	"fmt"
	"laser-planning/internal/storage"
	"time"
)

const cellColumns = `planning_id, order_uuid, lasworkline_uuid, date, hour, minute, workers, slot_minutes, source`

func scanCell(scan func(dest ...interface{}) error) (*storage.PlanningCell, error) {
	var cell storage.PlanningCell
	err := scan(
		&cell.PlanningID,
		&cell.OrderUUID,
		&cell.WorkLineUUID,
		&cell.Date,
		&cell.Hour,
		&cell.Minute,
		&cell.Workers,
		&cell.SlotMinutes,
		&cell.Source,
	)
	if err != nil {
		return nil, err
	}
	return &cell, nil
}

// GetOrderCells returns every cell of the order in slot order.
func (s *Storage) GetOrderCells(ctx context.Context, orderUUID string) ([]*storage.PlanningCell, error) {
	const op = "storage.mysql.cells.GetOrderCells"

	stmt := `SELECT ` + cellColumns + `
	         FROM planning_cells
	         WHERE order_uuid = ?
	         ORDER BY date, hour, minute`

	rows, err := s.db.QueryContext(ctx, stmt, orderUUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var cells []*storage.PlanningCell
	for rows.Next() {
		cell, err := scanCell(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cells = append(cells, cell)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cells, nil
}

func (s *Storage) GetCellsRange(ctx context.Context, start, end time.Time) ([]*storage.PlanningCell, error) {
	const op = "storage.mysql.cells.GetCellsRange"

	stmt := `SELECT ` + cellColumns + `
	         FROM planning_cells
	         WHERE date BETWEEN ? AND ?
	         ORDER BY date, hour, minute`

	rows, err := s.db.QueryContext(ctx, stmt, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var cells []*storage.PlanningCell
	for rows.Next() {
		cell, err := scanCell(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cells = append(cells, cell)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cells, nil
}

// GetLineLoad returns the cells other orders hold on a line in the range,
// the existing commitments the scheduler must not double-book over.
func (s *Storage) GetLineLoad(ctx context.Context, lineUUID string, start, end time.Time, excludeOrderUUID string) ([]*storage.PlanningCell, error) {
	const op = "storage.mysql.cells.GetLineLoad"

	stmt := `SELECT ` + cellColumns + `
	         FROM planning_cells
	         WHERE lasworkline_uuid = ? AND date BETWEEN ? AND ? AND order_uuid <> ?
	         ORDER BY date, hour, minute`

	rows, err := s.db.QueryContext(ctx, stmt, lineUUID, start, end, excludeOrderUUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var cells []*storage.PlanningCell
	for rows.Next() {
		cell, err := scanCell(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cells = append(cells, cell)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cells, nil
}

// UpsertPlanningCell writes one cell on its (order, line, date, hour, minute)
// key. Writing an existing key overwrites workers, never duplicates; the
// LAST_INSERT_ID trick makes MySQL hand back the surviving row's id either way.
func (s *Storage) UpsertPlanningCell(ctx context.Context, cell *storage.PlanningCell) (int64, error) {
	const op = "storage.mysql.cells.UpsertPlanningCell"

	stmt := `INSERT INTO planning_cells
	             (order_uuid, lasworkline_uuid, date, hour, minute, workers, slot_minutes, source)
	         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	         ON DUPLICATE KEY UPDATE
	             planning_id = LAST_INSERT_ID(planning_id),
	             workers = VALUES(workers),
	             slot_minutes = VALUES(slot_minutes),
	             source = VALUES(source)`

	exec, err := s.db.ExecContext(ctx, stmt,
		cell.OrderUUID, cell.WorkLineUUID, cell.Date, cell.Hour, cell.Minute,
		cell.Workers, cell.SlotMinutes, cell.Source)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return exec.LastInsertId()
}

// ApplyPlanChanges commits one replan pass as a single transaction:
// either every upsert and delete lands, or none of them do. A failure
// mid-cascade must never leave the order half-trimmed.
func (s *Storage) ApplyPlanChanges(ctx context.Context, orderUUID string, upserts []*storage.PlanningCell, deleteIDs []int64) error {
	const op = "storage.mysql.cells.ApplyPlanChanges"

	if len(upserts) == 0 && len(deleteIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}

	defer tx.Rollback()

	if len(deleteIDs) > 0 {
		del, err := tx.PrepareContext(ctx, `DELETE FROM planning_cells WHERE planning_id = ? AND order_uuid = ?`)
		if err != nil {
			return fmt.Errorf("%s: prepare delete: %w", op, err)
		}
		for _, id := range deleteIDs {
			if _, err := del.ExecContext(ctx, id, orderUUID); err != nil {
				return fmt.Errorf("%s: delete cell %d: %w", op, id, err)
			}
		}
	}

	if len(upserts) > 0 {
		ins, err := tx.PrepareContext(ctx, `
			INSERT INTO planning_cells
			    (order_uuid, lasworkline_uuid, date, hour, minute, workers, slot_minutes, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
			    workers = VALUES(workers),
			    slot_minutes = VALUES(slot_minutes),
			    source = VALUES(source)
		`)
		if err != nil {
			return fmt.Errorf("%s: prepare upsert: %w", op, err)
		}
		for _, cell := range upserts {
			_, err := ins.ExecContext(ctx,
				orderUUID, cell.WorkLineUUID, cell.Date, cell.Hour, cell.Minute,
				cell.Workers, cell.SlotMinutes, cell.Source)
			if err != nil {
				return fmt.Errorf("%s: upsert cell: %w", op, err)
			}
		}
	}

	return tx.Commit()
}
