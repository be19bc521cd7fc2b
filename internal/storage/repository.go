package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertRefreshRunSQL = `INSERT INTO refresh_runs (
        group_address,
        started_at,
        duration_ms,
        bank_count,
        stale_count,
        adjusted_count,
        degraded_count,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    RETURNING id, created_at;`

	listRecentRefreshRunsSQL = `SELECT
        id,
        group_address,
        started_at,
        duration_ms,
        bank_count,
        stale_count,
        adjusted_count,
        degraded_count,
        status,
        error,
        created_at
    FROM refresh_runs
    ORDER BY started_at DESC
    LIMIT $1;`

	countRefreshRunsSQL = `SELECT COUNT(*) FROM refresh_runs;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// RefreshRunStore defines operations for run journal persistence.
type RefreshRunStore interface {
	InsertRefreshRun(ctx context.Context, run RefreshRun) (RefreshRun, error)
	ListRecentRefreshRuns(ctx context.Context, limit int) ([]RefreshRun, error)
	CountRefreshRuns(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to the refresh-run journal.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertRefreshRun persists a run outcome.
func (s *Store) InsertRefreshRun(ctx context.Context, run RefreshRun) (RefreshRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return RefreshRun{}, err
	}

	var errMsg interface{}
	if run.Error != nil {
		errMsg = *run.Error
	}

	row := pool.QueryRow(ctx, insertRefreshRunSQL,
		run.GroupAddress,
		run.StartedAt,
		run.Duration.Milliseconds(),
		run.BankCount,
		run.StaleCount,
		run.AdjustedCount,
		run.DegradedCount,
		run.Status,
		errMsg,
	)
	if scanErr := row.Scan(&run.ID, &run.CreatedAt); scanErr != nil {
		return RefreshRun{}, fmt.Errorf("insert refresh run: %w", scanErr)
	}
	return run, nil
}

// ListRecentRefreshRuns lists the latest journal entries.
func (s *Store) ListRecentRefreshRuns(ctx context.Context, limit int) ([]RefreshRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRefreshRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent refresh runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]RefreshRun, 0)
	for rows.Next() {
		var run RefreshRun
		var durationMS int64
		if scanErr := rows.Scan(
			&run.ID,
			&run.GroupAddress,
			&run.StartedAt,
			&durationMS,
			&run.BankCount,
			&run.StaleCount,
			&run.AdjustedCount,
			&run.DegradedCount,
			&run.Status,
			&run.Error,
			&run.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("scan refresh run: %w", scanErr)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return runs, nil
}

// CountRefreshRuns reports the journal size.
func (s *Store) CountRefreshRuns(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var count int64
	if scanErr := pool.QueryRow(ctx, countRefreshRunsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count refresh runs: %w", scanErr)
	}
	return count, nil
}

var (
	_ RefreshRunStore = (*Store)(nil)
	_ AdvisoryLocker  = (*Store)(nil)
)
