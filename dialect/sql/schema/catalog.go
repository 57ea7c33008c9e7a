// Package schema provides the per-table column type catalog used to choose
// parameter markers, and validation of entity declarations against it.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"
)

// Column is the catalog entry of a table column. Types are lower-cased.
type Column struct {
	Name string `msgpack:"name"`
	// Type is the declared column type, e.g. "bit(1)" or "varchar(255)".
	Type string `msgpack:"type"`
	// DataType is the base data type, e.g. "bit" or "varchar".
	DataType string `msgpack:"data_type"`
	Nullable bool   `msgpack:"nullable"`
}

// IsBit reports whether the column is a single-bit column.
func (c *Column) IsBit() bool {
	return c.DataType == "bit" && c.Type == "bit(1)"
}

// Table is the catalog entry of a table. Columns are in ordinal order.
// A table unknown to the backend has no columns.
type Table struct {
	Name    string    `msgpack:"name"`
	Columns []*Column `msgpack:"columns"`

	index map[string]*Column
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.index[name]
	return c, ok
}

// Exists reports whether the backend knows the table.
func (t *Table) Exists() bool {
	return len(t.Columns) > 0
}

// ColumnNames returns the column names in ordinal order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func newTable(name string, columns []*Column) *Table {
	t := &Table{Name: name, Columns: columns, index: make(map[string]*Column, len(columns))}
	for _, c := range columns {
		c.Type = strings.ToLower(strings.TrimSpace(c.Type))
		c.DataType = strings.ToLower(strings.TrimSpace(c.DataType))
		t.index[c.Name] = c
	}
	return t
}

// Source introspects the columns of a table.
type Source interface {
	Columns(ctx context.Context, table string) ([]*Column, error)
}

// Store is a second-tier store for catalog entries shared between processes.
// The mvcore.Cache interface satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// StoreKeyPrefix prefixes the store keys of catalog entries.
const StoreKeyPrefix = "mvcore:catalog:"

// Catalog caches the column types of tables. A table is introspected on
// first use and concurrent first uses share one introspection. A Catalog is
// safe for concurrent use.
type Catalog struct {
	src      Source
	store    Store
	storeTTL time.Duration
	log      *slog.Logger
	group    singleflight.Group

	mu     sync.RWMutex
	tables map[string]*Table
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithStore loads and saves msgpack-encoded entries in s, expiring after ttl
// (zero means no expiry).
func WithStore(s Store, ttl time.Duration) Option {
	return func(c *Catalog) {
		c.store, c.storeTTL = s, ttl
	}
}

// WithLogger sets the catalog logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		c.log = l
	}
}

// NewCatalog returns a catalog reading from src.
func NewCatalog(src Source, opts ...Option) *Catalog {
	c := &Catalog{src: src, log: slog.Default(), tables: make(map[string]*Table)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Table returns the catalog entry of the table, introspecting it on first use.
func (c *Catalog) Table(ctx context.Context, name string) (*Table, error) {
	c.mu.RLock()
	t, ok := c.tables[name]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}
	v, err, _ := c.group.Do(name, func() (any, error) {
		t, err := c.load(ctx, name)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tables[name] = t
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

// Column returns the catalog entry of a column. The boolean reports whether
// the column exists.
func (c *Catalog) Column(ctx context.Context, table, column string) (*Column, bool, error) {
	t, err := c.Table(ctx, table)
	if err != nil {
		return nil, false, err
	}
	col, ok := t.Column(column)
	return col, ok, nil
}

// IsBit reports whether table.column is a bit(1) column. Unknown columns
// are not bit columns.
func (c *Catalog) IsBit(ctx context.Context, table, column string) (bool, error) {
	col, ok, err := c.Column(ctx, table, column)
	if err != nil || !ok {
		return false, err
	}
	return col.IsBit(), nil
}

// Loaded reports whether the table is in the in-process cache.
func (c *Catalog) Loaded(table string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tables[table]
	return ok
}

// Tables returns the names of the cached tables, sorted.
func (c *Catalog) Tables() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Refresh drops the given tables, or every cached table if none is given,
// from the cache and the store. They are introspected again on next use.
func (c *Catalog) Refresh(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		tables = c.Tables()
	}
	c.mu.Lock()
	for _, name := range tables {
		delete(c.tables, name)
	}
	c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	var errs []error
	for _, name := range tables {
		if err := c.store.Delete(ctx, StoreKeyPrefix+name); err != nil {
			errs = append(errs, fmt.Errorf("schema: delete stored entry of %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Catalog) load(ctx context.Context, name string) (*Table, error) {
	if t, ok := c.fromStore(ctx, name); ok {
		return t, nil
	}
	start := time.Now()
	columns, err := c.src.Columns(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("schema: introspect table %q: %w", name, err)
	}
	t := newTable(name, columns)
	c.log.DebugContext(ctx, "catalog: table introspected", "table", name, "columns", len(columns), "duration", time.Since(start))
	if !t.Exists() {
		c.log.WarnContext(ctx, "catalog: table has no columns", "table", name)
	}
	c.toStore(ctx, t)
	return t, nil
}

// fromStore decodes a stored entry. A store failure falls back to the source.
func (c *Catalog) fromStore(ctx context.Context, name string) (*Table, bool) {
	if c.store == nil {
		return nil, false
	}
	data, err := c.store.Get(ctx, StoreKeyPrefix+name)
	if err != nil {
		c.log.WarnContext(ctx, "catalog: store get failed", "table", name, "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var t Table
	if err := msgpack.Unmarshal(data, &t); err != nil {
		c.log.WarnContext(ctx, "catalog: decode stored entry", "table", name, "error", err)
		return nil, false
	}
	return newTable(name, t.Columns), true
}

func (c *Catalog) toStore(ctx context.Context, t *Table) {
	if c.store == nil || !t.Exists() {
		return
	}
	data, err := msgpack.Marshal(t)
	if err != nil {
		c.log.WarnContext(ctx, "catalog: encode entry", "table", t.Name, "error", err)
		return
	}
	if err := c.store.Set(ctx, StoreKeyPrefix+t.Name, data, c.storeTTL); err != nil {
		c.log.WarnContext(ctx, "catalog: store set failed", "table", t.Name, "error", err)
	}
}
