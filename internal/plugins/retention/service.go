// Package retention expires old activity events. A background loop purges
// events past the configured retention window on an interval; the same purge
// can be triggered on demand through the HTTP surface. Deletion goes through
// the event repository so child rows always go with their events.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scribeworks/scribe/internal/apperror"
)

// Purger is the slice of the event repository the retention job needs.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MaxAgeSource supplies the retention window. Backed by the settings plugin.
type MaxAgeSource interface {
	RetentionMaxAge(ctx context.Context) (time.Duration, error)
}

// RetentionService purges expired events.
type RetentionService interface {
	// Purge deletes all events older than the retention window, returning
	// how many were removed.
	Purge(ctx context.Context) (int64, error)

	// Run purges on the given interval until the context is canceled.
	// Intended to run in its own goroutine.
	Run(ctx context.Context, interval time.Duration)
}

// retentionService implements RetentionService.
type retentionService struct {
	events Purger
	maxAge MaxAgeSource
}

// NewRetentionService creates a retention service over the given purger and
// window source.
func NewRetentionService(events Purger, maxAge MaxAgeSource) RetentionService {
	return &retentionService{events: events, maxAge: maxAge}
}

func (s *retentionService) Purge(ctx context.Context) (int64, error) {
	maxAge, err := s.maxAge.RetentionMaxAge(ctx)
	if err != nil {
		return 0, apperror.NewInternal(fmt.Errorf("loading retention window: %w", err))
	}
	if maxAge <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	deleted, err := s.events.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, apperror.NewInternal(fmt.Errorf("purging events before %s: %w", cutoff.Format(time.RFC3339), err))
	}
	if deleted > 0 {
		slog.Info("purged expired activity events",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff),
		)
	}
	return deleted, nil
}

func (s *retentionService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Purge(ctx); err != nil {
				slog.Error("retention purge failed", slog.Any("error", err))
			}
		}
	}
}
