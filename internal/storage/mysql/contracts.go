package mysql

import (
	"context"
	"fmt"
	"laser-planning/internal/storage"
	"time"
)

// GetContractsRange returns worker contracts overlapping the range.
func (s *Storage) GetContractsRange(ctx context.Context, start, end time.Time) ([]*storage.Contract, error) {
	const op = "storage.mysql.contracts.GetContractsRange"

	stmt := `SELECT uuid, COALESCE(work_line_uuid, ''), employee, start_date, end_date, weekly_hours
	         FROM contracts
	         WHERE removed = 0 AND start_date <= ? AND end_date >= ?
	         ORDER BY start_date`

	rows, err := s.db.QueryContext(ctx, stmt, end, start)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var contracts []*storage.Contract
	for rows.Next() {
		var c storage.Contract

		err := rows.Scan(&c.UUID, &c.WorkLineUUID, &c.Employee, &c.StartDate, &c.EndDate, &c.WeeklyHours)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		contracts = append(contracts, &c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return contracts, nil
}
