package mysql

import (
	"context"
	"fmt"
	"laser-planning/internal/storage"
	"time"
)

func (s *Storage) GetSummaryRange(ctx context.Context, start, end time.Time) ([]*storage.SummaryValue, error) {
	const op = "storage.mysql.summary.GetSummaryRange"

	stmt := `SELECT summary_id, summary_type, date, hour, minute, value
	         FROM planning_summary
	         WHERE date BETWEEN ? AND ?
	         ORDER BY date, hour, minute`

	rows, err := s.db.QueryContext(ctx, stmt, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var values []*storage.SummaryValue
	for rows.Next() {
		var v storage.SummaryValue

		err := rows.Scan(&v.SummaryID, &v.SummaryType, &v.Date, &v.Hour, &v.Minute, &v.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		values = append(values, &v)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return values, nil
}

// UpsertSummaryValue writes one counter on its (type, date, hour, minute)
// key, same upsert shape as planning cells.
func (s *Storage) UpsertSummaryValue(ctx context.Context, v *storage.SummaryValue) (int64, error) {
	const op = "storage.mysql.summary.UpsertSummaryValue"

	stmt := `INSERT INTO planning_summary (summary_type, date, hour, minute, value)
	         VALUES (?, ?, ?, ?, ?)
	         ON DUPLICATE KEY UPDATE
	             summary_id = LAST_INSERT_ID(summary_id),
	             value = VALUES(value)`

	exec, err := s.db.ExecContext(ctx, stmt, v.SummaryType, v.Date, v.Hour, v.Minute, v.Value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return exec.LastInsertId()
}
