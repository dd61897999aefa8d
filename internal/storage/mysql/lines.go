package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"laser-planning/internal/storage"
)

func (s *Storage) GetWorkLines(ctx context.Context) ([]*storage.WorkLine, error) {
	const op = "storage.mysql.lines.GetWorkLines"

	stmt := `SELECT uuid, code, name, COALESCE(capacity, 0)
	         FROM work_lines
	         WHERE removed = 0
	         ORDER BY code`

	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var lines []*storage.WorkLine
	for rows.Next() {
		var line storage.WorkLine

		err := rows.Scan(&line.UUID, &line.Code, &line.Name, &line.Capacity)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if line.Capacity <= 0 {
			line.Capacity = s.defaultLineCapacity
		}

		lines = append(lines, &line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return lines, nil
}

func (s *Storage) GetWorkLine(ctx context.Context, uuid string) (*storage.WorkLine, error) {
	const op = "storage.mysql.lines.GetWorkLine"

	stmt := `SELECT uuid, code, name, COALESCE(capacity, 0)
	         FROM work_lines
	         WHERE uuid = ? AND removed = 0`

	var line storage.WorkLine
	err := s.db.QueryRowContext(ctx, stmt, uuid).Scan(&line.UUID, &line.Code, &line.Name, &line.Capacity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrWorkLineNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if line.Capacity <= 0 {
		line.Capacity = s.defaultLineCapacity
	}

	return &line, nil
}
