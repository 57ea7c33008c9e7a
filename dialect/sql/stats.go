package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/syssam/mvcore/dialect"
)

// Counters accumulates the statements seen by a StatsDriver.
type Counters struct {
	queries atomic.Int64
	execs   atomic.Int64
	slow    atomic.Int64
	errors  atomic.Int64
	elapsed atomic.Int64 // nanoseconds
}

// Snapshot returns the current values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Queries: c.queries.Load(),
		Execs:   c.execs.Load(),
		Slow:    c.slow.Load(),
		Errors:  c.errors.Load(),
		Elapsed: time.Duration(c.elapsed.Load()),
	}
}

// Reset zeroes the counters.
func (c *Counters) Reset() {
	c.queries.Store(0)
	c.execs.Store(0)
	c.slow.Store(0)
	c.errors.Store(0)
	c.elapsed.Store(0)
}

// Snapshot is a copy of Counters.
type Snapshot struct {
	Queries int64
	Execs   int64
	Slow    int64
	Errors  int64
	Elapsed time.Duration
}

// Mean returns the mean statement duration.
func (s Snapshot) Mean() time.Duration {
	n := s.Queries + s.Execs
	if n == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(n)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d slow=%d errors=%d elapsed=%s mean=%s",
		s.Queries, s.Execs, s.Slow, s.Errors, s.Elapsed, s.Mean())
}

// SlowHook receives statements slower than the threshold of a StatsDriver,
// with their arguments substituted.
type SlowHook func(ctx context.Context, statement string, elapsed time.Duration)

// StatsDriver counts the statements executed on a driver and reports the
// slow ones.
type StatsDriver struct {
	dialect.Driver
	counters  *Counters
	threshold time.Duration
	hook      SlowHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement is slow.
// It defaults to 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.threshold = d
	}
}

// WithSlowHook sets the hook called for slow statements.
func WithSlowHook(hook SlowHook) StatsOption {
	return func(s *StatsDriver) {
		s.hook = hook
	}
}

// WithSlowQueryLog logs slow statements at warn level, to slog.Default()
// when l is nil.
func WithSlowQueryLog(l *slog.Logger) StatsOption {
	if l == nil {
		l = slog.Default()
	}
	return WithSlowHook(func(ctx context.Context, statement string, elapsed time.Duration) {
		l.WarnContext(ctx, "slow query", "statement", statement, "duration", elapsed)
	})
}

// NewStatsDriver wraps drv.
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:    drv,
		counters:  &Counters{},
		threshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Counters returns the live counters of the driver.
func (d *StatsDriver) Counters() *Counters { return d.counters }

// Query implements dialect.ExecQuerier.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.observe(ctx, &d.counters.queries, query, args, start, err)
	return err
}

// Exec implements dialect.ExecQuerier.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.observe(ctx, &d.counters.execs, query, args, start, err)
	return err
}

func (d *StatsDriver) observe(ctx context.Context, kind *atomic.Int64, query string, args any, start time.Time, err error) {
	elapsed := time.Since(start)
	kind.Add(1)
	d.counters.elapsed.Add(int64(elapsed))
	if err != nil {
		d.counters.errors.Add(1)
	}
	if elapsed <= d.threshold {
		return
	}
	d.counters.slow.Add(1)
	if d.hook != nil {
		d.hook(ctx, statement(query, args), elapsed)
	}
}

// Tx starts a transaction whose statements are counted too.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &statsTx{Tx: tx, drv: d}, nil
}

type statsTx struct {
	dialect.Tx
	drv *StatsDriver
}

func (tx *statsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.drv.observe(ctx, &tx.drv.counters.queries, query, args, start, err)
	return err
}

func (tx *statsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.drv.observe(ctx, &tx.drv.counters.execs, query, args, start, err)
	return err
}

// LogDriver logs every statement at debug level with its arguments
// substituted, including the ones of transactions and catalog lookups.
type LogDriver struct {
	dialect.Driver
	log *slog.Logger
}

// NewLogDriver wraps drv. A nil logger means slog.Default().
func NewLogDriver(drv dialect.Driver, l *slog.Logger) *LogDriver {
	if l == nil {
		l = slog.Default()
	}
	return &LogDriver{Driver: drv, log: l}
}

// Query implements dialect.ExecQuerier.
func (d *LogDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	logStatement(ctx, d.log, query, args, start, err)
	return err
}

// Exec implements dialect.ExecQuerier.
func (d *LogDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	logStatement(ctx, d.log, query, args, start, err)
	return err
}

// Tx starts a logged transaction.
func (d *LogDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	d.log.DebugContext(ctx, "begin")
	return &logTx{Tx: tx, log: d.log}, nil
}

type logTx struct {
	dialect.Tx
	log *slog.Logger
}

func (tx *logTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	logStatement(ctx, tx.log, query, args, start, err)
	return err
}

func (tx *logTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	logStatement(ctx, tx.log, query, args, start, err)
	return err
}

func (tx *logTx) Commit() error {
	err := tx.Tx.Commit()
	tx.end("commit", err)
	return err
}

func (tx *logTx) Rollback() error {
	err := tx.Tx.Rollback()
	tx.end("rollback", err)
	return err
}

func (tx *logTx) end(msg string, err error) {
	if err != nil {
		tx.log.Debug(msg, "err", err)
		return
	}
	tx.log.Debug(msg)
}

func logStatement(ctx context.Context, l *slog.Logger, query string, args any, start time.Time, err error) {
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	attrs := []any{"statement", statement(query, args), "duration", time.Since(start)}
	if err != nil {
		attrs = append(attrs, "err", err)
	}
	l.DebugContext(ctx, "sql", attrs...)
}

// statement renders query with args substituted, as sent by a driver
// interpolating on the client.
func statement(query string, args any) string {
	list, _ := args.([]any)
	return Interpolate(query, list)
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*statsTx)(nil)
	_ dialect.Driver = (*LogDriver)(nil)
	_ dialect.Tx     = (*logTx)(nil)
)
