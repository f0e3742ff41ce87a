// Package txregistry keeps transactions open across HTTP requests and hands
// out the opaque handles clients use to address them.
package txregistry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/semaphore"

	"github.com/tomyedwab/dataapi/dataapi/apierror"
	"github.com/tomyedwab/dataapi/dataapi/backend"
)

// Backend starts transactions for the registry.
type Backend interface {
	Begin(ctx context.Context) (*sqlx.Tx, error)
	UseDatabase(ctx context.Context, q backend.Queryer, database string) error
}

type entry struct {
	// sem admits one user of the transaction at a time.
	sem    *semaphore.Weighted
	tx     *sqlx.Tx
	closed bool
}

// Registry maps transaction handles to open transactions.
type Registry struct {
	backend Backend
	logger  *slog.Logger

	mu  sync.Mutex
	txs map[string]*entry
}

// New creates an empty registry.
func New(b Backend, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		backend: b,
		logger:  logger,
		txs:     make(map[string]*entry),
	}
}

// Open begins a transaction on its own connection, selects database if
// one is given, and returns the handle that addresses it.
func (r *Registry) Open(ctx context.Context, database string) (string, error) {
	tx, err := r.backend.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction failed: %w", err)
	}
	if database != "" {
		if err := r.backend.UseDatabase(ctx, tx, database); err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("select database failed: %w", err)
		}
	}

	for {
		handle, err := newHandle()
		if err != nil {
			_ = tx.Rollback()
			return "", err
		}
		if r.insert(handle, tx) {
			r.logger.Debug("Transaction opened", "tx", shortHandle(handle), "database", database)
			return handle, nil
		}
	}
}

func (r *Registry) insert(handle string, tx *sqlx.Tx) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.txs[handle]; exists {
		return false
	}
	r.txs[handle] = &entry{sem: semaphore.NewWeighted(1), tx: tx}
	return true
}

func (r *Registry) lookup(handle string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.txs[handle]
	if !ok {
		return nil, apierror.ErrInvalidTransactionID
	}
	return e, nil
}

// acquire looks up handle and waits for exclusive use of its transaction.
// The caller must release the returned entry's semaphore.
func (r *Registry) acquire(ctx context.Context, handle string) (*entry, error) {
	e, err := r.lookup(handle)
	if err != nil {
		return nil, err
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if e.closed {
		e.sem.Release(1)
		return nil, apierror.ErrInvalidTransactionID
	}
	return e, nil
}

// WithTransaction runs fn with exclusive use of the transaction addressed
// by handle. Concurrent calls for the same handle run one at a time.
func (r *Registry) WithTransaction(ctx context.Context, handle string, fn func(q backend.Queryer) error) error {
	e, err := r.acquire(ctx, handle)
	if err != nil {
		return err
	}
	defer e.sem.Release(1)
	return fn(e.tx)
}

// Commit commits the transaction and forgets its handle. If the commit
// fails the handle stays registered.
func (r *Registry) Commit(ctx context.Context, handle string) error {
	return r.finish(ctx, handle, true)
}

// Rollback rolls the transaction back and forgets its handle. If the
// rollback fails the handle stays registered.
func (r *Registry) Rollback(ctx context.Context, handle string) error {
	return r.finish(ctx, handle, false)
}

func (r *Registry) finish(ctx context.Context, handle string, commit bool) error {
	e, err := r.acquire(ctx, handle)
	if err != nil {
		return err
	}
	defer e.sem.Release(1)

	op := "rollback"
	if commit {
		op = "commit"
		err = e.tx.Commit()
	} else {
		err = e.tx.Rollback()
		// The connection is already gone after a failed commit; rolling
		// back is how the client gets rid of the handle.
		if errors.Is(err, sql.ErrTxDone) {
			err = nil
		}
	}
	if err != nil {
		r.logger.Warn("Transaction "+op+" failed", "tx", shortHandle(handle), "error", err)
		return fmt.Errorf("%s failed: %w", op, err)
	}

	e.closed = true
	r.mu.Lock()
	delete(r.txs, handle)
	r.mu.Unlock()
	r.logger.Debug("Transaction closed", "tx", shortHandle(handle), "op", op)
	return nil
}

// Len returns the number of open transactions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.txs)
}

// Close rolls back every open transaction. It is called when the server
// shuts down.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	entries := r.txs
	r.txs = make(map[string]*entry)
	r.mu.Unlock()

	var errs []error
	for handle, e := range entries {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			errs = append(errs, fmt.Errorf("transaction %s: %w", shortHandle(handle), err))
			continue
		}
		if !e.closed {
			if err := e.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				errs = append(errs, fmt.Errorf("transaction %s: rollback failed: %w", shortHandle(handle), err))
			}
			e.closed = true
		}
		e.sem.Release(1)
	}
	if len(entries) > 0 {
		r.logger.Info("Rolled back open transactions", "count", len(entries))
	}
	return errors.Join(errs...)
}

// shortHandle abbreviates a handle for logging.
func shortHandle(handle string) string {
	if len(handle) > 8 {
		return handle[:8] + "..."
	}
	return handle
}
