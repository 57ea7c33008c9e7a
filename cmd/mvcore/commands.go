package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/mvcore"
	"github.com/syssam/mvcore/config"
	"github.com/syssam/mvcore/dialect/sql"
	"github.com/syssam/mvcore/dialect/sql/schema"
)

// globals holds the persistent flags.
type globals struct {
	config string
	env    []string
	driver string
	dsn    string
}

var (
	bitColor  = color.New(color.FgYellow, color.Bold)
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgRed)
)

func newRootCommand() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "mvcore",
		Short:         "Inspect column catalogs and compiled statements",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&g.config, "config", "", "Path to the YAML configuration file")
	flags.StringSliceVar(&g.env, "env", nil, "Paths of .env files to load")
	flags.StringVar(&g.driver, "driver", "", "Database driver (mysql or sqlite)")
	flags.StringVar(&g.dsn, "dsn", "", "Data source name, overrides the connection settings")

	root.AddCommand(
		newCatalogCommand(g),
		newPingCommand(g),
		newSQLCommand(g),
	)
	return root
}

// open loads the configuration, applies the flags and opens a client.
func (g *globals) open(cmd *cobra.Command) (*mvcore.Client, error) {
	var opts []config.Option
	if len(g.env) > 0 {
		opts = append(opts, config.WithEnvFile(g.env...))
	}
	cfg, err := config.Load(g.config, opts...)
	if err != nil {
		return nil, err
	}
	if g.driver != "" {
		cfg.Driver = g.driver
	}
	if g.dsn != "" {
		cfg.Database.Source = g.dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return mvcore.Open(cfg, mvcore.WithLogger(cfg.Logging.NewLogger(cmd.ErrOrStderr())))
}

func newCatalogCommand(g *globals) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "catalog <table>...",
		Short: "Print the column catalog of tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx := cmd.Context()
			if refresh {
				if err := c.Catalog().Refresh(ctx, args...); err != nil {
					return err
				}
			}
			var missing []string
			for _, name := range args {
				t, err := c.Catalog().Table(ctx, name)
				if err != nil {
					return err
				}
				if !t.Exists() {
					warnColor.Fprintf(cmd.OutOrStdout(), "%s: table does not exist\n", name)
					missing = append(missing, name)
					continue
				}
				printTable(cmd.OutOrStdout(), t.Name, t.Columns)
			}
			if len(missing) > 0 {
				return fmt.Errorf("unknown tables: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Drop cached entries before reading")
	return cmd
}

func printTable(w io.Writer, name string, columns []*schema.Column) {
	fmt.Fprintf(w, "%s\n", name)
	for _, col := range columns {
		null := ""
		if col.Nullable {
			null = " null"
		}
		typ := col.Type
		if col.IsBit() {
			typ = bitColor.Sprint(typ)
		}
		fmt.Fprintf(w, "  %-24s %s%s\n", col.Name, typ, null)
	}
}

func newPingCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the database connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			rows, err := c.Select(cmd.Context(), "SELECT 1 AS `ok`")
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			if len(rows) != 1 {
				return errors.New("ping: unexpected result")
			}
			okColor.Fprintf(cmd.OutOrStdout(), "ok (%s)\n", c.Driver().Dialect())
			if s, ok := c.Stats(); ok {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

// sqlFlags holds the flags of the sql command.
type sqlFlags struct {
	columns []string
	where   []string
	null    []string
	order   []string
	limit   int
	offset  int
	bind    bool
}

func newSQLCommand(g *globals) *cobra.Command {
	f := &sqlFlags{}
	cmd := &cobra.Command{
		Use:   "sql <table>",
		Short: "Print the SELECT compiled from the flags",
		Long: `Print the SELECT compiled from the flags, its arguments and the
statement with the arguments substituted. With --bind the catalog of the
table is read, so bit(1) columns compile with the bit marker.`,
		Example: `  mvcore sql users --where name=ann --where active=1 --order id:desc --limit 10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			q, err := f.query(c, args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			query, qargs, err := q.ToSQL(ctx)
			if err != nil {
				return err
			}
			raw, err := q.ToRawSQLData(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, query)
			fmt.Fprintf(w, "args: %v\n", qargs)
			fmt.Fprintln(w, raw)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&f.columns, "select", nil, "Columns to select")
	flags.StringArrayVar(&f.where, "where", nil, "Condition column=value, repeatable")
	flags.StringArrayVar(&f.null, "null", nil, "Column that must be NULL, repeatable")
	flags.StringArrayVar(&f.order, "order", nil, "Order column[:asc|desc], repeatable")
	flags.IntVar(&f.limit, "limit", 0, "Row limit")
	flags.IntVar(&f.offset, "offset", 0, "Rows to skip, requires --limit")
	flags.BoolVar(&f.bind, "bind", false, "Read the table catalog to detect bit(1) columns")
	return cmd
}

// query builds the statement described by the flags.
func (f *sqlFlags) query(c *mvcore.Client, table string) (*sql.Query, error) {
	q := c.Table(table)
	if f.bind {
		q.Bind(table, c.Catalog())
	}
	if len(f.columns) > 0 {
		q.Select(f.columns...)
	}
	for _, cond := range f.where {
		column, value, ok := strings.Cut(cond, "=")
		if !ok || column == "" {
			return nil, fmt.Errorf("invalid condition %q, want column=value", cond)
		}
		q.Where(column, "=", value)
	}
	for _, column := range f.null {
		q.WhereNull(column)
	}
	for _, o := range f.order {
		column, dir, _ := strings.Cut(o, ":")
		if dir == "" {
			dir = "asc"
		}
		q.OrderBy(column, dir)
	}
	if f.limit > 0 {
		q.Limit(f.limit)
	}
	if f.offset > 0 {
		q.Offset(f.offset)
	}
	return q, nil
}
