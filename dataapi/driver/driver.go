package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strconv"
	"time"

	"github.com/tomyedwab/dataapi/dataapi/client"
	"github.com/tomyedwab/dataapi/dataapi/types"
)

const driverName = "dataapi"

// timeLayout is how time.Time arguments are sent. MySQL accepts it as a
// DATETIME literal.
const timeLayout = "2006-01-02 15:04:05.999999"

func init() {
	sql.Register(driverName, &Driver{})
}

// --- Driver implementation ---

type Driver struct{}

// Open parses the DSN and returns a connection. No request is made until the
// first statement.
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	c, err := client.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("dataapi: %w", err)
	}
	return &Conn{client: c}, nil
}

// ParseDSN turns an endpoint URL with resourceArn, secretArn and optional
// database and region query parameters into a client configuration.
func ParseDSN(dsn string) (client.Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return client.Config{}, fmt.Errorf("dataapi: invalid DSN: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return client.Config{}, fmt.Errorf("dataapi: DSN scheme must be http or https, got %q", u.Scheme)
	}
	q := u.Query()
	cfg := client.Config{
		ResourceARN: q.Get("resourceArn"),
		SecretARN:   q.Get("secretArn"),
		Database:    q.Get("database"),
		Region:      q.Get("region"),
	}
	if cfg.ResourceARN == "" || cfg.SecretARN == "" {
		return client.Config{}, errors.New("dataapi: DSN must set resourceArn and secretArn")
	}
	u.RawQuery = ""
	u.Fragment = ""
	cfg.Endpoint = u.String()
	return cfg, nil
}

// --- Connection implementation ---

type Conn struct {
	client *client.Client
	txID   string // set while a transaction started on this connection is open
}

var (
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.QueryerContext     = (*Conn)(nil)
	_ driver.ConnPrepareContext = (*Conn)(nil)
	_ driver.Pinger             = (*Conn)(nil)
)

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *Conn) PrepareContext(_ context.Context, query string) (driver.Stmt, error) {
	return &Stmt{conn: c, query: query}, nil
}

// Close rolls back a transaction left open on the connection.
func (c *Conn) Close() error {
	if c.txID == "" {
		return nil
	}
	txID := c.txID
	c.txID = ""
	if _, err := c.client.RollbackTransaction(context.Background(), txID); err != nil {
		return fmt.Errorf("dataapi: rollback on close failed: %w", err)
	}
	return nil
}

func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if c.txID != "" {
		return nil, errors.New("dataapi: transaction already active on this connection")
	}
	if opts.ReadOnly {
		return nil, errors.New("dataapi: read-only transactions are not supported")
	}
	if sql.IsolationLevel(opts.Isolation) != sql.LevelDefault {
		return nil, fmt.Errorf("dataapi: isolation level %s is not supported", sql.IsolationLevel(opts.Isolation))
	}
	txID, err := c.client.BeginTransaction(ctx)
	if err != nil {
		return nil, fmt.Errorf("dataapi: begin failed: %w", err)
	}
	c.txID = txID
	return &Tx{conn: c, txID: txID}, nil
}

func (c *Conn) Ping(ctx context.Context) error {
	_, err := c.execute(ctx, "SELECT 1", nil, false)
	return err
}

func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	resp, err := c.execute(ctx, query, args, false)
	if err != nil {
		return nil, err
	}
	res := &Result{rowsAffected: resp.NumberOfRecordsUpdated}
	if len(resp.GeneratedFields) > 0 && resp.GeneratedFields[0].Kind() == types.KindLong {
		res.lastInsertID = resp.GeneratedFields[0].Long()
	}
	return res, nil
}

func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	resp, err := c.execute(ctx, query, args, true)
	if err != nil {
		return nil, err
	}
	return &Rows{metadata: resp.ColumnMetadata, records: resp.Records}, nil
}

func (c *Conn) execute(ctx context.Context, query string, args []driver.NamedValue, metadata bool) (*types.ExecuteStatementResponse, error) {
	params, err := toParameters(args)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.ExecuteStatement(ctx, client.Statement{
		SQL:             query,
		Parameters:      params,
		TransactionID:   c.txID,
		IncludeMetadata: metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("dataapi: %w", err)
	}
	return resp, nil
}

func toParameters(args []driver.NamedValue) ([]types.SqlParameter, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make([]types.SqlParameter, len(args))
	for i, arg := range args {
		name := arg.Name
		if name == "" {
			name = "p" + strconv.Itoa(arg.Ordinal)
		}
		value, err := toValue(arg.Value)
		if err != nil {
			return nil, fmt.Errorf("dataapi: parameter %s: %w", name, err)
		}
		params[i] = types.SqlParameter{Name: name, Value: value}
	}
	return params, nil
}

// toValue converts the values database/sql hands to drivers.
func toValue(v driver.Value) (types.Value, error) {
	switch val := v.(type) {
	case nil:
		return types.NullValue(), nil
	case int64:
		return types.LongValue(val), nil
	case float64:
		return types.DoubleValue(val), nil
	case bool:
		return types.BooleanValue(val), nil
	case []byte:
		return types.BlobValue(val), nil
	case string:
		return types.StringValue(val), nil
	case time.Time:
		return types.StringValue(val.UTC().Format(timeLayout)), nil
	}
	return types.Value{}, fmt.Errorf("unsupported type %T", v)
}

// --- Statement implementation ---

type Stmt struct {
	conn  *Conn
	query string
}

var (
	_ driver.StmtExecContext  = (*Stmt)(nil)
	_ driver.StmtQueryContext = (*Stmt)(nil)
)

func (s *Stmt) Close() error { return nil }

// NumInput returns -1 since placeholders are named.
func (s *Stmt) NumInput() int { return -1 }

func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.ExecContext(ctx, s.query, args)
}

func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.QueryContext(ctx, s.query, args)
}

func namedValues(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}

// --- Transaction implementation ---

type Tx struct {
	conn *Conn
	txID string
}

func (t *Tx) Commit() error {
	return t.finish(true)
}

func (t *Tx) Rollback() error {
	return t.finish(false)
}

func (t *Tx) finish(commit bool) error {
	if t.txID == "" {
		return errors.New("dataapi: transaction already committed or rolled back")
	}
	txID := t.txID
	// The handle is unusable whatever the server answers.
	t.txID = ""
	t.conn.txID = ""

	var err error
	if commit {
		_, err = t.conn.client.CommitTransaction(context.Background(), txID)
	} else {
		_, err = t.conn.client.RollbackTransaction(context.Background(), txID)
	}
	if err != nil {
		return fmt.Errorf("dataapi: %w", err)
	}
	return nil
}

// --- Result implementation ---

type Result struct {
	lastInsertID int64
	rowsAffected int64
}

func (r *Result) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r *Result) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// --- Rows implementation ---

// Rows iterates over records already received in full.
type Rows struct {
	metadata []types.ColumnMetadata
	records  [][]types.Value
	next     int
}

var (
	_ driver.RowsColumnTypeDatabaseTypeName = (*Rows)(nil)
	_ driver.RowsColumnTypeNullable         = (*Rows)(nil)
	_ driver.RowsColumnTypeScanType         = (*Rows)(nil)
)

func (r *Rows) Columns() []string {
	columns := make([]string, len(r.metadata))
	for i, m := range r.metadata {
		columns[i] = m.Label
		if columns[i] == "" {
			columns[i] = m.Name
		}
	}
	return columns
}

func (r *Rows) Close() error {
	r.records = nil
	return nil
}

func (r *Rows) Next(dest []driver.Value) error {
	if r.next >= len(r.records) {
		return io.EOF
	}
	record := r.records[r.next]
	if len(record) != len(dest) {
		return fmt.Errorf("dataapi: column count mismatch: expected %d, got %d", len(dest), len(record))
	}
	for i, v := range record {
		dest[i] = fromValue(v)
	}
	r.next++
	return nil
}

func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	return r.metadata[index].TypeName
}

func (r *Rows) ColumnTypeNullable(index int) (nullable, ok bool) {
	n := r.metadata[index].Nullable
	if n == nil || *n > 1 {
		return false, false
	}
	return *n == 1, true
}

// ColumnTypeScanType reports the Go type of the first non-null value in the
// column, or any when every value is null.
func (r *Rows) ColumnTypeScanType(index int) reflect.Type {
	for _, record := range r.records {
		if index < len(record) && !record[index].IsNull() {
			return reflect.TypeOf(fromValue(record[index]))
		}
	}
	return reflect.TypeOf((*any)(nil)).Elem()
}

func fromValue(v types.Value) driver.Value {
	switch v.Kind() {
	case types.KindLong:
		return v.Long()
	case types.KindDouble:
		return v.Double()
	case types.KindBoolean:
		return v.Bool()
	case types.KindString:
		return v.Str()
	case types.KindBlob:
		return v.Blob()
	}
	return nil
}
