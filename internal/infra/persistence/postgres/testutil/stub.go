// Package testutil fakes just enough of a PostgreSQL connection for the
// postgres backend tests: INSERT (with ON CONFLICT upserts keyed by the first
// column), SELECT of named columns and TRUNCATE.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
)

var (
	insertRe   = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+(\w+)\s*\(([^)]*)\)`)
	selectRe   = regexp.MustCompile(`(?is)^\s*SELECT\s+(.+?)\s+FROM\s+(\w+)`)
	truncateRe = regexp.MustCompile(`(?is)^\s*TRUNCATE\s+TABLE\s+(\w+)`)
	upsertRe   = regexp.MustCompile(`(?is)\bON\s+CONFLICT\b`)
)

type row = map[string]driver.Value

// StubConn is a single shared connection. SELECTs return rows in insertion
// order and ignore WHERE and ORDER BY. Statements that match none of the
// supported shapes (DDL) are recorded and succeed.
type StubConn struct {
	FailPing   bool
	FailBegin  bool
	FailCommit bool
	// FailTables makes every statement touching the named table fail.
	FailTables map[string]bool

	mu     sync.Mutex
	Execs  []string
	tables map[string][]row
}

// NewStubDB returns a sql.DB whose every connection is the returned StubConn.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{FailTables: map[string]bool{}, tables: map[string][]row{}}
	return sql.OpenDB(stubConnector{conn: conn}), conn
}

// Rows returns a copy of the rows held for table.
func (c *StubConn) Rows(table string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.tables[table]))
	for _, r := range c.tables[table] {
		cp := make(map[string]any, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out
}

func (c *StubConn) failing(table string) error {
	if c.FailTables[strings.ToLower(table)] {
		return fmt.Errorf("stub: table %s unavailable", table)
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)

	if m := truncateRe.FindStringSubmatch(query); m != nil {
		table := strings.ToLower(m[1])
		if err := c.failing(table); err != nil {
			return nil, err
		}
		delete(c.tables, table)
		return driver.RowsAffected(0), nil
	}
	m := insertRe.FindStringSubmatch(query)
	if m == nil {
		return driver.RowsAffected(0), nil
	}
	table, cols := strings.ToLower(m[1]), columns(m[2])
	if err := c.failing(table); err != nil {
		return nil, err
	}
	if len(cols) != len(args) {
		return nil, fmt.Errorf("stub: %d columns but %d args for %s", len(cols), len(args), table)
	}
	r := make(row, len(cols))
	for i, col := range cols {
		r[col] = args[i].Value
	}
	if upsertRe.MatchString(query) {
		kept := c.tables[table][:0]
		for _, existing := range c.tables[table] {
			if existing[cols[0]] != r[cols[0]] {
				kept = append(kept, existing)
			}
		}
		c.tables[table] = kept
	}
	c.tables[table] = append(c.tables[table], r)
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := selectRe.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("stub: unsupported query %q", query)
	}
	table, cols := strings.ToLower(m[2]), columns(m[1])
	if err := c.failing(table); err != nil {
		return nil, err
	}
	cur := &cursor{cols: cols}
	for _, r := range c.tables[table] {
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = r[col]
		}
		cur.rows = append(cur.rows, vals)
	}
	return cur, nil
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("stub: server unreachable")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("stub: cannot begin")
	}
	return stubTx{c}, nil
}

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Prepare implements driver.Conn. Every statement goes through the
// ExecerContext and QueryerContext fast paths instead.
func (c *StubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("stub: prepare not supported: %q", query)
}

// Close implements driver.Conn. The connection outlives sql.DB pools.
func (c *StubConn) Close() error { return nil }

func columns(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return out
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

type stubConnector struct{ conn *StubConn }

func (s stubConnector) Connect(context.Context) (driver.Conn, error) { return s.conn, nil }
func (s stubConnector) Driver() driver.Driver                        { return stubDriver(s) }

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("stub: commit rejected")
	}
	return nil
}

func (stubTx) Rollback() error { return nil }

type cursor struct {
	cols []string
	rows [][]driver.Value
}

func (c *cursor) Columns() []string { return c.cols }
func (c *cursor) Close() error      { return nil }

func (c *cursor) Next(dest []driver.Value) error {
	if len(c.rows) == 0 {
		return io.EOF
	}
	copy(dest, c.rows[0])
	c.rows = c.rows[1:]
	return nil
}
