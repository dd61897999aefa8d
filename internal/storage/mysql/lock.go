package mysql

import (
	"context"
	"fmt"
	"laser-planning/internal/storage"
	"time"
)

const (
	lockWaitSeconds = 2
	lockRetries     = 3
	lockRetryPause  = 150 * time.Millisecond
)

// WithOrderLock serializes read-recompute-write cycles on one order's cell
// sequence via a MySQL advisory lock, so a manual edit racing the daily
// sweep cannot interleave. Different orders lock independently. Contention
// is retried a few times before ErrLockTimeout surfaces.
func (s *Storage) WithOrderLock(ctx context.Context, orderUUID string, fn func(ctx context.Context) error) error {
	const op = "storage.mysql.lock.WithOrderLock"

	// GET_LOCK is per-connection, so the lock must be taken and released
	// on the same dedicated connection.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer conn.Close()

	lockName := "planning:" + orderUUID

	acquired := false
	for attempt := 0; attempt < lockRetries; attempt++ {
		var got int
		err = conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, lockName, lockWaitSeconds).Scan(&got)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if got == 1 {
			acquired = true
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(lockRetryPause):
		}
	}
	if !acquired {
		return fmt.Errorf("%s: %w", op, storage.ErrLockTimeout)
	}

	defer func() {
		var released int
		_ = conn.QueryRowContext(context.Background(), `SELECT RELEASE_LOCK(?)`, lockName).Scan(&released)
	}()

	return fn(ctx)
}
