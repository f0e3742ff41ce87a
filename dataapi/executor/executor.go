// Package executor runs Data API operations against the backend.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tomyedwab/dataapi/dataapi/backend"
	"github.com/tomyedwab/dataapi/dataapi/marshal"
	"github.com/tomyedwab/dataapi/dataapi/rewrite"
	"github.com/tomyedwab/dataapi/dataapi/txregistry"
	"github.com/tomyedwab/dataapi/dataapi/types"
)

// Executor resolves the connection a request runs on, executes its
// statements and builds the response.
type Executor struct {
	backend  *backend.Backend
	registry *txregistry.Registry
	logger   *slog.Logger
}

// New creates an Executor.
func New(b *backend.Backend, registry *txregistry.Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{backend: b, registry: registry, logger: logger}
}

// BeginTransaction opens a transaction on its own connection and returns
// the handle that addresses it.
func (e *Executor) BeginTransaction(ctx context.Context, req *types.BeginTransactionRequest) (*types.BeginTransactionResponse, error) {
	handle, err := e.registry.Open(ctx, req.Database)
	if err != nil {
		return nil, err
	}
	return &types.BeginTransactionResponse{TransactionID: handle}, nil
}

// CommitTransaction commits the transaction named in req and forgets its
// handle.
func (e *Executor) CommitTransaction(ctx context.Context, req *types.EndTransactionRequest) (*types.EndTransactionResponse, error) {
	if err := e.registry.Commit(ctx, req.TransactionID); err != nil {
		return nil, err
	}
	return &types.EndTransactionResponse{TransactionStatus: types.StatusCommitted}, nil
}

// RollbackTransaction rolls back the transaction named in req and forgets
// its handle.
func (e *Executor) RollbackTransaction(ctx context.Context, req *types.EndTransactionRequest) (*types.EndTransactionResponse, error) {
	if err := e.registry.Rollback(ctx, req.TransactionID); err != nil {
		return nil, err
	}
	return &types.EndTransactionResponse{TransactionStatus: types.StatusRolledBack}, nil
}

// ExecuteStatement runs a single statement, inside the request's
// transaction if it names one.
func (e *Executor) ExecuteStatement(ctx context.Context, req *types.ExecuteStatementRequest) (*types.ExecuteStatementResponse, error) {
	rewritten := rewrite.Rewrite(req.SQL)
	params := rewrite.Bind(rewritten.Names, req.Parameters)

	var resp *types.ExecuteStatementResponse
	err := e.withQueryer(ctx, req.TransactionID, req.Database, func(q backend.Queryer) error {
		var err error
		resp, err = e.run(ctx, q, rewritten.SQL, params, req.IncludeResultMetadata)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// BatchExecuteStatement runs one statement once per parameter set on a
// single connection. The first failure aborts the batch.
func (e *Executor) BatchExecuteStatement(ctx context.Context, req *types.BatchExecuteStatementRequest) (*types.BatchExecuteStatementResponse, error) {
	rewritten := rewrite.Rewrite(req.SQL)

	resp := &types.BatchExecuteStatementResponse{UpdateResults: []types.UpdateResult{}}
	err := e.withQueryer(ctx, req.TransactionID, req.Database, func(q backend.Queryer) error {
		for i, set := range req.ParameterSets {
			params := rewrite.Bind(rewritten.Names, set)
			query, args, err := e.compile(rewritten.SQL, params)
			if err != nil {
				return err
			}
			res, err := q.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("parameter set %d: %w", i, err)
			}
			lastInsertID, err := res.LastInsertId()
			if err != nil {
				e.logger.Debug("LastInsertId not available", "error", err)
			}
			resp.UpdateResults = append(resp.UpdateResults, types.UpdateResult{
				GeneratedFields: []types.Value{types.LongValue(lastInsertID)},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// withQueryer runs fn on the transaction named by transactionID, or on a
// fresh connection that is closed afterwards when there is none.
func (e *Executor) withQueryer(ctx context.Context, transactionID, database string, fn func(backend.Queryer) error) error {
	if transactionID != "" {
		return e.registry.WithTransaction(ctx, transactionID, func(q backend.Queryer) error {
			if database != "" {
				if err := e.backend.UseDatabase(ctx, q, database); err != nil {
					return err
				}
			}
			return fn(q)
		})
	}

	conn, err := e.backend.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if database != "" {
		if err := e.backend.UseDatabase(ctx, conn, database); err != nil {
			return err
		}
	}
	return fn(conn)
}

// compile renders canonical SQL for the driver. Statements without bound
// parameters are sent as written.
func (e *Executor) compile(canonicalSQL string, params map[string]any) (string, []any, error) {
	if len(params) == 0 {
		return canonicalSQL, nil, nil
	}
	return rewrite.Compile(canonicalSQL, params, e.backend.BindType())
}

func (e *Executor) run(ctx context.Context, q backend.Queryer, canonicalSQL string, params map[string]any, includeMetadata bool) (*types.ExecuteStatementResponse, error) {
	query, args, err := e.compile(canonicalSQL, params)
	if err != nil {
		return nil, err
	}

	if !rewrite.ReturnsRows(canonicalSQL) {
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		rowsAffected, err := res.RowsAffected()
		if err != nil {
			e.logger.Debug("RowsAffected not available", "error", err)
		}
		lastInsertID, err := res.LastInsertId()
		if err != nil {
			e.logger.Debug("LastInsertId not available", "error", err)
		}
		return marshal.Marshal(marshal.Result{RowsAffected: rowsAffected, LastInsertID: lastInsertID}, includeMetadata)
	}

	rows, err := q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := e.backend.Describe(rows)
	if err != nil {
		return nil, err
	}
	return marshal.Marshal(marshal.Result{Columns: columns, Rows: rows}, includeMetadata)
}
