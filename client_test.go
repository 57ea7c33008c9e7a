package mvcore_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/mvcore"
	"github.com/syssam/mvcore/config"
	"github.com/syssam/mvcore/dialect"
	"github.com/syssam/mvcore/dialect/sql"
	"github.com/syssam/mvcore/dialect/sql/schema"
)

const columnsQuery = "SELECT `COLUMN_NAME`, `COLUMN_TYPE`, `DATA_TYPE`, `IS_NULLABLE` " +
	"FROM `INFORMATION_SCHEMA`.`COLUMNS` " +
	"WHERE `TABLE_SCHEMA` = DATABASE() AND `TABLE_NAME` = ? " +
	"ORDER BY `ORDINAL_POSITION`"

func newClient(t *testing.T, opts ...mvcore.Option) (*mvcore.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c, err := mvcore.NewClient(sql.OpenDB(dialect.MySQL, db), opts...)
	require.NoError(t, err)
	return c, mock
}

func TestClient_Table(t *testing.T) {
	c, mock := newClient(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT * FROM `users` WHERE `status` = ? OR `role` = ? ORDER BY `id` DESC LIMIT 10").
		WithArgs("active", "admin").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a"))
	rows, err := c.Table("users").
		Where("status", "=", "active").
		OrWhere("role", "=", "admin").
		OrderBy("id", "DESC").
		Limit(10).
		Get(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0]["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_Raw(t *testing.T) {
	c, mock := newClient(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT name FROM users WHERE id = ?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow([]byte("a")))
	rows, err := c.Select(ctx, "SELECT name FROM users WHERE id = ?", 1)
	require.NoError(t, err)
	assert.Equal(t, []sql.Row{{"name": "a"}}, rows)

	mock.ExpectExec("UPDATE users SET name = ?").WithArgs("b").WillReturnResult(sqlmock.NewResult(0, 3))
	res, err := c.Exec(ctx, "UPDATE users SET name = ?", "b")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	mock.ExpectExec("INSERT INTO users (email) VALUES (?)").
		WithArgs("a@b.c").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	_, err = c.Exec(ctx, "INSERT INTO users (email) VALUES (?)", "a@b.c")
	assert.True(t, mvcore.IsConstraintError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_Tx(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c, mock := newClient(t, mvcore.WithLogger(log))
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `users` SET `name` = ? WHERE `id` = ?").
		WithArgs("b", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := c.Begin(ctx)
	require.NoError(t, err)
	assert.True(t, c.InTx())
	assert.Same(t, c, tx.Client())

	_, err = c.Begin(ctx)
	assert.ErrorIs(t, err, mvcore.ErrTxStarted)

	_, err = c.Table("users").Where("id", "=", 1).Update(ctx, sql.Values{{Column: "name", Value: "b"}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"tx":"`+tx.ID()+`"`)

	require.NoError(t, tx.Commit())
	assert.False(t, c.InTx())
	assert.ErrorIs(t, tx.Commit(), mvcore.ErrTxDone)
	assert.ErrorIs(t, tx.Rollback(), mvcore.ErrTxDone)
	_, err = tx.Table("users").Get(ctx)
	assert.ErrorIs(t, err, mvcore.ErrTxDone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_WithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		c, mock := newClient(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM `sessions` WHERE `user_id` = ?").WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()
		err := c.WithTx(ctx, func(tx *mvcore.Tx) error {
			_, err := c.Table("sessions").Where("user_id", "=", 7).Delete(ctx)
			return err
		})
		require.NoError(t, err)
		assert.False(t, c.InTx())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rollback", func(t *testing.T) {
		c, mock := newClient(t)
		mock.ExpectBegin()
		mock.ExpectRollback()
		cause := errors.New("boom")
		err := c.WithTx(ctx, func(*mvcore.Tx) error { return cause })
		assert.ErrorIs(t, err, cause)
		assert.False(t, c.InTx())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackFails", func(t *testing.T) {
		c, mock := newClient(t)
		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(errors.New("connection lost"))
		cause := errors.New("boom")
		err := c.WithTx(ctx, func(*mvcore.Tx) error { return cause })
		assert.ErrorIs(t, err, cause)
		var rerr *mvcore.RollbackError
		require.ErrorAs(t, err, &rerr)
		assert.Contains(t, rerr.Error(), "connection lost")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Panic", func(t *testing.T) {
		c, mock := newClient(t)
		mock.ExpectBegin()
		mock.ExpectRollback()
		assert.PanicsWithValue(t, "fatal", func() {
			_ = c.WithTx(ctx, func(*mvcore.Tx) error { panic("fatal") })
		})
		assert.False(t, c.InTx())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestClient_Catalog(t *testing.T) {
	cache := mvcore.NewMemoryCache()
	c, mock := newClient(t, mvcore.WithCache(cache, 0))
	ctx := context.Background()

	mock.ExpectQuery(columnsQuery).
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "DATA_TYPE", "IS_NULLABLE"}).
			AddRow("id", "int(11)", "int", "NO").
			AddRow("active", "BIT(1)", "BIT", "NO"))

	bit, err := c.Catalog().IsBit(ctx, "users", "active")
	require.NoError(t, err)
	assert.True(t, bit)
	bit, err = c.Catalog().IsBit(ctx, "users", "id")
	require.NoError(t, err)
	assert.False(t, bit)

	stored, err := cache.Get(ctx, schema.StoreKeyPrefix+"users")
	require.NoError(t, err)
	assert.NotEmpty(t, stored)

	sqlStr, args, err := c.Table("users").Bind("User", c.Catalog()).Where("active", "=", true).ToSQL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `active` = b?", sqlStr)
	assert.Equal(t, []any{"1"}, args)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_Options(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = mvcore.NewClient(sql.OpenDB("postgres", db))
	assert.ErrorContains(t, err, "unsupported dialect")

	catalog := schema.NewCatalog(schema.StaticSource{})
	c, err := mvcore.NewClient(sql.OpenDB("postgres", db), mvcore.WithCatalog(catalog))
	require.NoError(t, err)
	assert.Same(t, catalog, c.Catalog())
	assert.Equal(t, "postgres", c.Driver().Dialect())
	assert.Equal(t, slog.Default(), c.Logger())
}

func TestOpen_SQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Driver = config.DriverSQLite
	cfg.Database.Path = "file::memory:"
	cfg.Logging.Level = "error"

	c, err := mvcore.Open(cfg)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	_, err = c.Exec(ctx, "CREATE TABLE `items` (`id` INTEGER PRIMARY KEY, `name` VARCHAR(20) NOT NULL UNIQUE)")
	require.NoError(t, err)
	_, err = c.Table("items").Insert(ctx, sql.Values{{Column: "name", Value: "pen"}})
	require.NoError(t, err)

	_, err = c.Exec(ctx, "INSERT INTO `items` (`name`) VALUES (?)", "pen")
	assert.True(t, mvcore.IsConstraintError(err))

	err = c.WithTx(ctx, func(*mvcore.Tx) error {
		if _, err := c.Table("items").Insert(ctx, sql.Values{{Column: "name", Value: "ink"}}); err != nil {
			return err
		}
		// Introspection runs on the open transaction.
		tbl, err := c.Catalog().Table(ctx, "items")
		if err != nil {
			return err
		}
		assert.Equal(t, []string{"id", "name"}, tbl.ColumnNames())
		return nil
	})
	require.NoError(t, err)

	n, err := c.Table("items").Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestOpen_AtlasCatalog(t *testing.T) {
	cfg := config.Default()
	cfg.Driver = config.DriverSQLite
	cfg.Database.Path = "file::memory:"
	cfg.Logging.Level = "error"
	cfg.Catalog.Source = config.SourceAtlas

	c, err := mvcore.Open(cfg)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()
	_, err = c.Exec(ctx, "CREATE TABLE `flags` (`id` INTEGER PRIMARY KEY, `on` BIT(1) NOT NULL)")
	require.NoError(t, err)

	// The inspector runs on the open transaction of the single connection.
	err = c.WithTx(ctx, func(*mvcore.Tx) error {
		bit, err := c.Catalog().IsBit(ctx, "flags", "on")
		if err != nil {
			return err
		}
		assert.True(t, bit)
		return nil
	})
	require.NoError(t, err)
	query, args, err := c.Table("flags").Bind("flags", c.Catalog()).Where("on", "=", true).ToSQL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `flags` WHERE `on` = b?", query)
	assert.Equal(t, []any{"1"}, args)
}

func TestOpen_StatementLog(t *testing.T) {
	cfg := config.Default()
	cfg.Driver = config.DriverSQLite
	cfg.Database.Path = "file::memory:"
	cfg.Logging.Level = "debug"
	cfg.Logging.SQL = true
	cfg.Stats.SlowThreshold = time.Nanosecond

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c, err := mvcore.Open(cfg, mvcore.WithLogger(log))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	_, err = c.Exec(ctx, "CREATE TABLE `items` (`id` INTEGER PRIMARY KEY, `name` TEXT)")
	require.NoError(t, err)
	err = c.WithTx(ctx, func(*mvcore.Tx) error {
		_, err := c.Table("items").Insert(ctx, sql.Values{{Column: "name", Value: "O'Neil"}})
		return err
	})
	require.NoError(t, err)
	n, err := c.Table("items").Where("name", "=", "O'Neil").Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	out := buf.String()
	assert.Contains(t, out, "INSERT INTO `items` (`name`) VALUES ('O''Neil')")
	assert.Contains(t, out, "SELECT COUNT(*) AS `aggregate` FROM `items` WHERE `name` = 'O''Neil'")
	assert.Contains(t, out, "msg=begin")
	assert.Contains(t, out, "msg=commit")
	assert.Contains(t, out, "msg=\"slow query\"")

	stats, ok := c.Stats()
	require.True(t, ok)
	assert.GreaterOrEqual(t, stats.Execs, int64(2))
	assert.GreaterOrEqual(t, stats.Queries, int64(1))
	assert.Zero(t, stats.Errors)

	plain, _ := newClient(t)
	_, ok = plain.Stats()
	assert.False(t, ok)
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := mvcore.NewMemoryCache()

	v, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, c.Set(ctx, "mvcore:catalog:users", []byte("u"), 0))
	require.NoError(t, c.Set(ctx, "mvcore:catalog:posts", []byte("p"), 0))
	require.NoError(t, c.Set(ctx, "other", []byte("o"), 0))
	v, err = c.Get(ctx, "mvcore:catalog:users")
	require.NoError(t, err)
	assert.Equal(t, []byte("u"), v)

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	v, err = c.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, 3, c.Len())

	require.NoError(t, c.DeletePrefix(ctx, "mvcore:catalog:"))
	assert.Equal(t, 1, c.Len())
	require.NoError(t, c.Delete(ctx, "other"))
	require.NoError(t, c.Set(ctx, "again", []byte("a"), time.Hour))

	require.NoError(t, c.Clear(ctx))
	assert.Zero(t, c.Len())
}
