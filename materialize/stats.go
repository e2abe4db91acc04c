package materialize

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// QueryStats counts the function import queries sent through a StatsQuerier.
type QueryStats struct {
	TotalQueries  atomic.Int64
	TotalDuration atomic.Int64 // nanoseconds
	SlowQueries   atomic.Int64
	Errors        atomic.Int64
}

// Stats returns a snapshot of the counters.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset zeroes the counters.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a copy of QueryStats taken at one point in time.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgQueryDuration returns TotalDuration divided by TotalQueries.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	if s.TotalQueries == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.TotalQueries)
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalDuration, s.AvgQueryDuration(), s.SlowQueries, s.Errors)
}

// SlowQueryHook receives every query that took longer than the slow
// threshold.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsQuerier is a Querier that counts the queries Query sends through it.
// Durations cover QueryContext only, not reading the rows. The threshold and
// hook are fixed at construction.
type StatsQuerier struct {
	Querier
	stats         QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
}

// StatsOption configures a StatsQuerier.
type StatsOption func(*StatsQuerier)

// WithSlowThreshold sets the duration above which a query is slow. A
// negative threshold marks every query slow. Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsQuerier) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets the hook run for slow queries.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsQuerier) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow queries to l at warn level.
func WithSlowQueryLog(l *slog.Logger) StatsOption {
	if l == nil {
		l = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, duration time.Duration) {
		l.WarnContext(ctx, "slow function import query", "duration", duration, "query", query, "args", args)
	})
}

// NewStatsQuerier wraps q.
//
//	sq := materialize.NewStatsQuerier(db, materialize.WithSlowQueryLog(logger))
//	rows, err := materialize.Query(ctx, sq, fim, query, args)
//	fmt.Println(sq.QueryStats().Stats())
func NewStatsQuerier(q Querier, opts ...StatsOption) *StatsQuerier {
	s := &StatsQuerier{
		Querier:       q,
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the counters.
func (s *StatsQuerier) QueryStats() *QueryStats {
	return &s.stats
}

// QueryContext implements Querier.
func (s *StatsQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := s.Querier.QueryContext(ctx, query, args...)
	s.record(ctx, query, args, time.Since(start), err)
	return rows, err
}

func (s *StatsQuerier) record(ctx context.Context, query string, args []any, duration time.Duration, err error) {
	s.stats.TotalQueries.Add(1)
	s.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		s.stats.Errors.Add(1)
	}
	if duration <= s.slowThreshold {
		return
	}
	s.stats.SlowQueries.Add(1)
	if s.slowHook != nil {
		s.slowHook(ctx, query, args, duration)
	}
}

var _ Querier = (*StatsQuerier)(nil)
