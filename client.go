package mvcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/mvcore/config"
	"github.com/syssam/mvcore/dialect"
	"github.com/syssam/mvcore/dialect/sql"
	"github.com/syssam/mvcore/dialect/sql/schema"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Client owns the storage driver, the column type catalog and the
// transaction state shared by the builders and entities created from it.
// A Client is safe for concurrent use, but while a transaction is open every
// builder it creates runs on that transaction.
type Client struct {
	drv     dialect.Driver
	catalog *schema.Catalog
	log     *slog.Logger

	mu sync.RWMutex
	tx *Tx
}

// Option configures a Client.
type Option func(*options)

type options struct {
	log      *slog.Logger
	catalog  *schema.Catalog
	cache    Cache
	cacheTTL time.Duration
	atlas    bool
}

// WithLogger sets the client logger. It defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithCatalog sets the column type catalog. By default the catalog
// introspects the tables through the client driver.
func WithCatalog(c *schema.Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithCache stores catalog entries in c, expiring after ttl (zero means no
// expiry). It is ignored when WithCatalog is given.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(o *options) {
		o.cache, o.cacheTTL = c, ttl
	}
}

// WithAtlasInspector reads column types with the atlas inspector instead of
// querying the information schema. It is ignored when WithCatalog is given.
func WithAtlasInspector() Option {
	return func(o *options) {
		o.atlas = true
	}
}

// NewClient returns a client executing on drv.
func NewClient(drv dialect.Driver, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	c := &Client{drv: drv, log: o.log, catalog: o.catalog}
	if c.catalog == nil {
		var (
			src schema.Source
			err error
		)
		if o.atlas {
			src, err = schema.NewAtlasSource(conn{c})
		} else {
			src, err = schema.NewSource(conn{c})
		}
		if err != nil {
			return nil, fmt.Errorf("mvcore: %w", err)
		}
		copts := []schema.Option{schema.WithLogger(o.log)}
		if o.cache != nil {
			copts = append(copts, schema.WithStore(o.cache, o.cacheTTL))
		}
		c.catalog = schema.NewCatalog(src, copts...)
	}
	return c, nil
}

// Open opens the configured database and returns a client on it. The
// connection pool is limited to a single connection. Statements are logged
// when logging.sql is set and counted when stats.slow_threshold is positive.
func Open(cfg *config.Config, opts ...Option) (*Client, error) {
	drv, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("mvcore: open %s: %w", cfg.Driver, err)
	}
	drv.DB().SetMaxOpenConns(1)
	defaults := []Option{WithLogger(cfg.Logging.NewLogger(os.Stderr)), WithCache(NewMemoryCache(), cfg.Catalog.TTL)}
	if cfg.Catalog.Source == config.SourceAtlas {
		defaults = append(defaults, WithAtlasInspector())
	}
	opts = append(defaults, opts...)
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	var d dialect.Driver = drv
	if cfg.Logging.SQL {
		d = sql.NewLogDriver(d, o.log)
	}
	if cfg.Stats.SlowThreshold > 0 {
		d = sql.NewStatsDriver(d,
			sql.WithSlowThreshold(cfg.Stats.SlowThreshold),
			sql.WithSlowQueryLog(o.log),
		)
	}
	c, err := NewClient(d, opts...)
	if err != nil {
		_ = drv.Close()
		return nil, err
	}
	return c, nil
}

// Table returns a builder for the table. It runs on the open transaction,
// if any.
func (c *Client) Table(name string) *sql.Query {
	eq, log := c.conn()
	return sql.NewQuery(eq, name).WithLogger(log)
}

// Select executes a raw SELECT statement.
func (c *Client) Select(ctx context.Context, query string, args ...any) ([]sql.Row, error) {
	eq, log := c.conn()
	var rows sql.Rows
	start := time.Now()
	if err := eq.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	log.DebugContext(ctx, "sql statement", "query", query, "args", args, "duration", time.Since(start))
	return sql.ScanRows(rows)
}

// Exec executes a raw statement that returns no rows.
func (c *Client) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	eq, log := c.conn()
	var res sql.Result
	start := time.Now()
	if err := eq.Exec(ctx, query, args, &res); err != nil {
		return nil, WrapConstraintError(err)
	}
	log.DebugContext(ctx, "sql statement", "query", query, "args", args, "duration", time.Since(start))
	return res, nil
}

// Begin starts a transaction. Builders created by the client run on it until
// it is committed or rolled back. Transactions do not nest.
func (c *Client) Begin(ctx context.Context) (*Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		return nil, ErrTxStarted
	}
	dtx, err := c.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("mvcore: starting a transaction: %w", err)
	}
	id := uuid.NewString()
	tx := &Tx{
		Tx:     dtx,
		id:     id,
		client: c,
		log:    c.log.With("tx", id),
		start:  time.Now(),
	}
	c.tx = tx
	tx.log.DebugContext(ctx, "transaction started")
	return tx, nil
}

// WithTx runs fn in a transaction. The transaction is committed if fn
// returns nil and rolled back otherwise, or if fn panics.
//
//	err := client.WithTx(ctx, func(tx *mvcore.Tx) error {
//		if err := order.Save(ctx); err != nil {
//			return err
//		}
//		return line.Save(ctx)
//	})
func (c *Client) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := c.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, &RollbackError{Err: rerr})
		}
		return err
	}
	return tx.Commit()
}

// InTx reports whether the client has an open transaction.
func (c *Client) InTx() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tx != nil
}

// Catalog returns the column type catalog.
func (c *Client) Catalog() *schema.Catalog { return c.catalog }

// Driver returns the underlying driver.
func (c *Client) Driver() dialect.Driver { return c.drv }

// Stats returns the statement counters when the driver collects them.
func (c *Client) Stats() (sql.Snapshot, bool) {
	if d, ok := c.drv.(*sql.StatsDriver); ok {
		return d.Counters().Snapshot(), true
	}
	return sql.Snapshot{}, false
}

// Logger returns the client logger.
func (c *Client) Logger() *slog.Logger { return c.log }

// Close closes the underlying driver.
func (c *Client) Close() error { return c.drv.Close() }

// conn returns the executor for new statements and its logger.
func (c *Client) conn() (dialect.ExecQuerier, *slog.Logger) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tx != nil {
		return c.tx, c.tx.log
	}
	return c.drv, c.log
}

func (c *Client) release(tx *Tx) {
	c.mu.Lock()
	if c.tx == tx {
		c.tx = nil
	}
	c.mu.Unlock()
}

// conn routes catalog introspection through the open transaction, if any,
// so a single-connection pool does not block on it.
type conn struct{ c *Client }

func (n conn) Exec(ctx context.Context, query string, args, v any) error {
	eq, _ := n.c.conn()
	return eq.Exec(ctx, query, args, v)
}

func (n conn) Query(ctx context.Context, query string, args, v any) error {
	eq, _ := n.c.conn()
	return eq.Query(ctx, query, args, v)
}

func (n conn) Tx(ctx context.Context) (dialect.Tx, error) { return n.c.drv.Tx(ctx) }
func (n conn) Close() error                               { return n.c.drv.Close() }
func (n conn) Dialect() string                            { return n.c.drv.Dialect() }

// Tx is an open transaction of a Client.
type Tx struct {
	dialect.Tx
	id     string
	client *Client
	log    *slog.Logger
	start  time.Time

	mu   sync.Mutex
	done bool
}

// ID returns the transaction id attached to its log records.
func (tx *Tx) ID() string { return tx.id }

// Client returns the client that started the transaction.
func (tx *Tx) Client() *Client { return tx.client }

// Table returns a builder for the table running on the transaction.
func (tx *Tx) Table(name string) *sql.Query {
	return sql.NewQuery(tx, name).WithLogger(tx.log)
}

// Exec implements dialect.ExecQuerier.
func (tx *Tx) Exec(ctx context.Context, query string, args, v any) error {
	if tx.finished() {
		return ErrTxDone
	}
	return tx.Tx.Exec(ctx, query, args, v)
}

// Query implements dialect.ExecQuerier.
func (tx *Tx) Query(ctx context.Context, query string, args, v any) error {
	if tx.finished() {
		return ErrTxDone
	}
	return tx.Tx.Query(ctx, query, args, v)
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	return tx.finish("commit", tx.Tx.Commit)
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	return tx.finish("rollback", tx.Tx.Rollback)
}

func (tx *Tx) finish(op string, fn func() error) error {
	tx.mu.Lock()
	if tx.done {
		tx.mu.Unlock()
		return ErrTxDone
	}
	tx.done = true
	tx.mu.Unlock()
	defer tx.client.release(tx)
	if err := fn(); err != nil {
		tx.log.Error("transaction "+op+" failed", "error", err)
		return fmt.Errorf("mvcore: %s: %w", op, err)
	}
	tx.log.Debug("transaction finished", "op", op, "duration", time.Since(tx.start))
	return nil
}

func (tx *Tx) finished() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.done
}

var (
	_ dialect.ExecQuerier = (*Tx)(nil)
	_ dialect.Driver      = conn{}
)
