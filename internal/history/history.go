// Package history records successful plays in an append-only log.
package history

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TimestampLayout is the on-disk timestamp format, second precision
const TimestampLayout = "2006-01-02 15:04:05"

// Record is a single play event
type Record struct {
	Timestamp time.Time
	Title     string
	URL       string
}

// Store persists history records
type Store interface {
	Append(ctx context.Context, rec Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Log is the history facade used by the player. Appends never fail the
// caller: history is telemetry, so store errors are logged and dropped.
type Log struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewLog creates a Log writing to store
func NewLog(store Store, logger zerolog.Logger) *Log {
	return &Log{
		store:  store,
		logger: logger.With().Str("component", "history").Logger(),
		now:    time.Now,
	}
}

// Append records a play of title from url with the current time
func (l *Log) Append(title, url string) {
	rec := Record{
		Timestamp: l.now().Truncate(time.Second),
		Title:     title,
		URL:       url,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.store.Append(ctx, rec); err != nil {
		l.logger.Warn().Err(err).Str("title", title).Msg("Failed to append history record")
	}
}

// Recent returns up to limit records, newest first
func (l *Log) Recent(ctx context.Context, limit int) ([]Record, error) {
	return l.store.Recent(ctx, limit)
}

// Close closes the underlying store
func (l *Log) Close() error {
	return l.store.Close()
}
