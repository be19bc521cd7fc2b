package storage

import "time"

// RefreshRun records the outcome of one pipeline invocation for auditing.
type RefreshRun struct {
	ID            int64
	GroupAddress  string
	StartedAt     time.Time
	Duration      time.Duration
	BankCount     int
	StaleCount    int
	AdjustedCount int
	DegradedCount int
	Status        string
	Error         *string
	CreatedAt     time.Time
}
