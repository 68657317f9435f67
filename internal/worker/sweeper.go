package worker

import (
	"context"
	"log/slog"
	"time"

	"geo-chat-service/internal/logging"
	"geo-chat-service/internal/observability"
)

// Evictor removes users that have been offline longer than threshold.
type Evictor interface {
	EvictStale(threshold time.Duration) []string
}

// Notifier tells connected clients that a user is gone.
type Notifier interface {
	BroadcastUserLeft(ctx context.Context, userID string)
}

// Sweeper periodically evicts stale offline users.
type Sweeper struct {
	evictor   Evictor
	notifier  Notifier
	interval  time.Duration
	threshold time.Duration
	log       *slog.Logger
}

func NewSweeper(evictor Evictor, notifier Notifier, interval, threshold time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{
		evictor:   evictor,
		notifier:  notifier,
		interval:  interval,
		threshold: threshold,
		log:       log,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.InfoContext(ctx, "sweeper started", slog.Duration("interval", s.interval), slog.Duration("threshold", s.threshold))
	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single eviction pass and returns the evicted ids. A panic is
// logged and swallowed so the loop keeps going.
func (s *Sweeper) Sweep(ctx context.Context) (evicted []string) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.IncSweepFailure()
			s.log.ErrorContext(ctx, "sweeper - tick panicked", slog.Any("panic", rec))
		}
	}()

	evicted = s.evictor.EvictStale(s.threshold)
	for _, id := range evicted {
		s.notifier.BroadcastUserLeft(ctx, id)
	}
	if len(evicted) > 0 {
		observability.AddEvictions(len(evicted))
		s.log.InfoContext(ctx, "sweeper - evicted inactive users", slog.Int("count", len(evicted)))
	}
	for _, id := range evicted {
		s.log.DebugContext(ctx, "sweeper - user evicted", logging.UserID(id))
	}
	return evicted
}
