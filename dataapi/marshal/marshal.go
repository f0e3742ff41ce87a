// Package marshal converts driver result sets into Data API responses.
package marshal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomyedwab/dataapi/dataapi/types"
)

const (
	dateTimeLayout = "2006-01-02 15:04:05"
	timeLayout     = "15:04:05"
)

// Column describes one result column as reported by the backend.
type Column struct {
	Name      string
	Label     string
	Schema    string
	Table     string
	Type      types.ColumnType
	Nullable  *bool
	Precision *int64
	Scale     *int64
}

// Rows is the subset of *sql.Rows used to read a result set.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// Result is a completed statement execution.
type Result struct {
	RowsAffected int64
	LastInsertID int64
	Columns      []Column
	// Rows is nil for statements that produce no result set.
	Rows Rows
}

// ConversionError reports a column value that cannot be represented as the
// wire kind its column maps to.
type ConversionError struct {
	Column string
	Kind   types.Kind
	Cause  error
}

func (e *ConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot convert column %q to %s: %v", e.Column, e.Kind, e.Cause)
	}
	return fmt.Sprintf("cannot convert column %q to %s", e.Column, e.Kind)
}

func (e *ConversionError) Unwrap() error {
	return e.Cause
}

// ScanError reports a row that could not be read from the driver.
type ScanError struct {
	Row   int
	Cause error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("failed to scan row %d: %v", e.Row, e.Cause)
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

// Marshal builds the response for an executed statement. Every row is
// decoded; the first value that cannot be converted aborts the whole
// response.
func Marshal(res Result, includeMetadata bool) (*types.ExecuteStatementResponse, error) {
	resp := &types.ExecuteStatementResponse{
		NumberOfRecordsUpdated: res.RowsAffected,
		Records:                [][]types.Value{},
		ColumnMetadata:         []types.ColumnMetadata{},
	}
	if res.LastInsertID != 0 {
		resp.GeneratedFields = []types.Value{types.LongValue(res.LastInsertID)}
	}
	if includeMetadata {
		resp.ColumnMetadata = Metadata(res.Columns)
	}
	if res.Rows == nil {
		return resp, nil
	}

	raw := make([]any, len(res.Columns))
	dest := make([]any, len(res.Columns))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for n := 0; res.Rows.Next(); n++ {
		if err := res.Rows.Scan(dest...); err != nil {
			return nil, &ScanError{Row: n, Cause: err}
		}
		record := make([]types.Value, len(raw))
		for i, v := range raw {
			value, err := Decode(res.Columns[i], v)
			if err != nil {
				return nil, err
			}
			record[i] = value
		}
		resp.Records = append(resp.Records, record)
	}
	if err := res.Rows.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

// Metadata describes the columns of a result set.
func Metadata(columns []Column) []types.ColumnMetadata {
	meta := make([]types.ColumnMetadata, len(columns))
	for i, c := range columns {
		m := types.ColumnMetadata{
			Name:       c.Name,
			Label:      c.Label,
			SchemaName: c.Schema,
			TableName:  c.Table,
			TypeName:   c.Type.TypeName,
			Precision:  c.Precision,
			Scale:      c.Scale,
		}
		if m.Label == "" {
			m.Label = c.Name
		}
		if c.Nullable != nil {
			var n int64
			if *c.Nullable {
				n = 1
			}
			m.Nullable = &n
		}
		switch c.Type.Field {
		case types.KindLong, types.KindDouble:
			signed := !c.Type.Unsigned
			m.IsSigned = &signed
		}
		meta[i] = m
	}
	return meta
}

// Decode converts a single scanned value into a wire value. Values the
// driver already typed are converted directly; raw payloads are
// interpreted according to the column's mapped kind.
func Decode(col Column, v any) (types.Value, error) {
	switch v := v.(type) {
	case nil:
		return types.NullValue(), nil
	case int64:
		return types.LongValue(v), nil
	case int32:
		return types.LongValue(int64(v)), nil
	case int:
		return types.LongValue(int64(v)), nil
	case uint64:
		return types.LongValue(int64(v)), nil
	case uint32:
		return types.LongValue(int64(v)), nil
	case float64:
		return types.DoubleValue(v), nil
	case float32:
		return types.DoubleValue(float64(v)), nil
	case bool:
		return types.BooleanValue(v), nil
	case time.Time:
		if col.Type.Native.TimeOfDay() {
			return types.StringValue(v.Format(timeLayout)), nil
		}
		return types.StringValue(v.Format(dateTimeLayout)), nil
	case []byte:
		return decodePayload(col, string(v))
	case string:
		return decodePayload(col, v)
	default:
		return types.Value{}, &ConversionError{
			Column: col.Name,
			Kind:   col.Type.Field,
			Cause:  fmt.Errorf("unsupported driver type %T", v),
		}
	}
}

func decodePayload(col Column, text string) (types.Value, error) {
	switch col.Type.Field {
	case types.KindString:
		if col.Type.Native.Temporal() {
			text = truncateFraction(text)
		}
		return types.StringValue(strings.ToValidUTF8(text, "\uFFFD")), nil
	case types.KindBoolean:
		switch text {
		case "0":
			return types.BooleanValue(false), nil
		case "1":
			return types.BooleanValue(true), nil
		}
		return types.Value{}, &ConversionError{
			Column: col.Name,
			Kind:   types.KindBoolean,
			Cause:  fmt.Errorf("invalid boolean payload %q", text),
		}
	case types.KindLong:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return types.Value{}, &ConversionError{Column: col.Name, Kind: types.KindLong, Cause: err}
		}
		return types.LongValue(n), nil
	case types.KindDouble:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return types.Value{}, &ConversionError{Column: col.Name, Kind: types.KindDouble, Cause: err}
		}
		return types.DoubleValue(f), nil
	case types.KindIsNull:
		return types.NullValue(), nil
	default:
		return types.Value{}, &ConversionError{
			Column: col.Name,
			Kind:   types.KindBlob,
			Cause:  fmt.Errorf("blob payloads are not supported"),
		}
	}
}

// truncateFraction drops sub-second digits from a textual date or time,
// e.g. "10:11:12.345" becomes "10:11:12".
func truncateFraction(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 && strings.IndexByte(s[i:], ':') < 0 {
		return s[:i]
	}
	return s
}
