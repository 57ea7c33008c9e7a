package schema

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"sync"

	"ariga.io/atlas/sql/mysql"
	aschema "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/mvcore/dialect"
	"github.com/syssam/mvcore/dialect/sql"
)

// AtlasSource reads column types with the atlas inspector of the driver
// dialect. The inspector is opened on first use.
type AtlasSource struct {
	drv dialect.Driver

	once sync.Once
	insp aschema.Inspector
	err  error
}

// NewAtlasSource returns an atlas backed source executing on drv.
func NewAtlasSource(drv dialect.Driver) (*AtlasSource, error) {
	switch drv.Dialect() {
	case dialect.MySQL, dialect.SQLite:
		return &AtlasSource{drv: drv}, nil
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", drv.Dialect())
	}
}

func (s *AtlasSource) inspector() (aschema.Inspector, error) {
	s.once.Do(func() {
		conn := atlasConn{s.drv}
		if s.drv.Dialect() == dialect.MySQL {
			s.insp, s.err = mysql.Open(conn)
		} else {
			s.insp, s.err = sqlite.Open(conn)
		}
		if s.err != nil {
			s.err = fmt.Errorf("schema: open atlas inspector: %w", s.err)
		}
	})
	return s.insp, s.err
}

// Columns implements Source.
func (s *AtlasSource) Columns(ctx context.Context, table string) ([]*Column, error) {
	insp, err := s.inspector()
	if err != nil {
		return nil, err
	}
	sch, err := insp.InspectSchema(ctx, "", &aschema.InspectOptions{Tables: []string{table}})
	if aschema.IsNotExistError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inspect %q: %w", table, err)
	}
	t, ok := sch.Table(table)
	if !ok {
		return nil, nil
	}
	pk := make(map[string]bool)
	if t.PrimaryKey != nil {
		for _, p := range t.PrimaryKey.Parts {
			if p.C != nil {
				pk[p.C.Name] = true
			}
		}
	}
	columns := make([]*Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		col := &Column{Name: c.Name}
		if c.Type != nil {
			col.Type = c.Type.Raw
			col.Nullable = c.Type.Null && !pk[c.Name]
		}
		col.DataType = baseType(col.Type)
		columns = append(columns, col)
	}
	return columns, nil
}

// atlasConn exposes a dialect.ExecQuerier through the database/sql methods
// the atlas drivers call.
type atlasConn struct {
	dialect.ExecQuerier
}

func (c atlasConn) QueryContext(ctx context.Context, query string, args ...any) (*stdsql.Rows, error) {
	rows := &sql.Rows{}
	if err := c.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	r, ok := rows.ColumnScanner.(*stdsql.Rows)
	if !ok {
		_ = rows.Close()
		return nil, fmt.Errorf("schema: unexpected rows type %T", rows.ColumnScanner)
	}
	return r, nil
}

func (c atlasConn) ExecContext(ctx context.Context, query string, args ...any) (stdsql.Result, error) {
	var res stdsql.Result
	if err := c.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

var _ Source = (*AtlasSource)(nil)
