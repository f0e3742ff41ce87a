package rewrite

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/tomyedwab/dataapi/dataapi/types"
)

// ErrMissingParameter is returned by Compile when the statement references
// a parameter that has no bound value.
var ErrMissingParameter = errors.New("missing named parameter")

// Bind converts caller parameters into driver values keyed by canonical
// name. Parameters the statement does not reference are dropped.
func Bind(names map[string]string, params []types.SqlParameter) map[string]any {
	bound := make(map[string]any, len(params))
	for _, p := range params {
		canonical, ok := names[p.Name]
		if !ok {
			continue
		}
		bound[canonical] = driverValue(p.Value)
	}
	return bound
}

func driverValue(v types.Value) any {
	switch v.Kind() {
	case types.KindBlob:
		return v.Blob()
	case types.KindString:
		return v.Str()
	case types.KindBoolean:
		if v.Bool() {
			return int64(1)
		}
		return int64(0)
	case types.KindDouble:
		return v.Double()
	case types.KindLong:
		return v.Long()
	default:
		return nil
	}
}

// Compile renders canonical SQL for a driver by replacing each parameter
// token with the placeholder syntax of bindType (one of the sqlx bind
// types) and returns the matching positional arguments.
func Compile(canonicalSQL string, params map[string]any, bindType int) (string, []any, error) {
	var args []any
	query, err := scan(canonicalSQL, func(name string) (string, error) {
		v, ok := params[name]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingParameter, name)
		}
		switch bindType {
		case sqlx.NAMED:
			args = append(args, sql.Named(name, v))
			return ":" + name, nil
		case sqlx.DOLLAR:
			args = append(args, v)
			return "$" + strconv.Itoa(len(args)), nil
		case sqlx.AT:
			args = append(args, v)
			return "@p" + strconv.Itoa(len(args)), nil
		default:
			args = append(args, v)
			return "?", nil
		}
	})
	if err != nil {
		return "", nil, err
	}
	return query, args, nil
}
