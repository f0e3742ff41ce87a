package txregistry

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomyedwab/dataapi/dataapi/apierror"
	"github.com/tomyedwab/dataapi/dataapi/backend"
)

func setupTestRegistry(t *testing.T) (*Registry, *backend.Backend) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	b, err := backend.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000", nil)
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	conn, err := b.Conn(context.Background())
	if err != nil {
		t.Fatalf("Failed to get connection: %v", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(context.Background(), "CREATE TABLE doc (id INTEGER PRIMARY KEY, content TEXT)"); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	r := New(b, nil)
	t.Cleanup(func() { r.Close(context.Background()) })
	return r, b
}

func countDocs(t *testing.T, ctx context.Context, q backend.Queryer) int {
	t.Helper()
	rows, err := q.QueryxContext(ctx, "SELECT COUNT(*) FROM doc")
	if err != nil {
		t.Fatalf("Count query failed: %v", err)
	}
	defer rows.Close()
	var n int
	if !rows.Next() {
		t.Fatalf("Count query returned no rows: %v", rows.Err())
	}
	if err := rows.Scan(&n); err != nil {
		t.Fatalf("Failed to scan count: %v", err)
	}
	return n
}

func committedDocs(t *testing.T, b *backend.Backend) int {
	t.Helper()
	ctx := context.Background()
	conn, err := b.Conn(ctx)
	if err != nil {
		t.Fatalf("Failed to get connection: %v", err)
	}
	defer conn.Close()
	return countDocs(t, ctx, conn)
}

func TestHandleFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		h, err := newHandle()
		if err != nil {
			t.Fatalf("newHandle failed: %v", err)
		}
		if len(h) != HandleLength {
			t.Fatalf("Expected handle length %d, got %d", HandleLength, len(h))
		}
		if strings.Trim(h, handleAlphabet) != "" {
			t.Fatalf("Handle contains characters outside the alphabet: %s", h)
		}
		if seen[h] {
			t.Fatalf("Duplicate handle generated: %s", h)
		}
		seen[h] = true
	}
}

func TestOpenAndCommit(t *testing.T) {
	r, b := setupTestRegistry(t)
	ctx := context.Background()

	handle, err := r.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(handle) != HandleLength {
		t.Errorf("Expected handle length %d, got %d", HandleLength, len(handle))
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 open transaction, got %d", r.Len())
	}

	err = r.WithTransaction(ctx, handle, func(q backend.Queryer) error {
		_, err := q.ExecContext(ctx, "INSERT INTO doc (content) VALUES ('one')")
		return err
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if n := committedDocs(t, b); n != 0 {
		t.Errorf("Expected uncommitted insert to be invisible, got %d rows", n)
	}

	if err := r.Commit(ctx, handle); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Expected no open transactions, got %d", r.Len())
	}
	if n := committedDocs(t, b); n != 1 {
		t.Errorf("Expected 1 committed row, got %d", n)
	}

	if err := r.Commit(ctx, handle); !errors.Is(err, apierror.ErrInvalidTransactionID) {
		t.Errorf("Expected second commit to fail with invalid transaction ID, got %v", err)
	}
}

func TestRollbackDiscardsWork(t *testing.T) {
	r, b := setupTestRegistry(t)
	ctx := context.Background()

	handle, err := r.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	err = r.WithTransaction(ctx, handle, func(q backend.Queryer) error {
		_, err := q.ExecContext(ctx, "INSERT INTO doc (content) VALUES ('gone')")
		return err
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := r.Rollback(ctx, handle); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if n := committedDocs(t, b); n != 0 {
		t.Errorf("Expected rolled back insert to be discarded, got %d rows", n)
	}
}

func TestUnknownHandle(t *testing.T) {
	r, _ := setupTestRegistry(t)
	ctx := context.Background()

	err := r.WithTransaction(ctx, "nope", func(backend.Queryer) error {
		t.Error("Callback should not run for an unknown handle")
		return nil
	})
	if !errors.Is(err, apierror.ErrInvalidTransactionID) {
		t.Errorf("Expected invalid transaction ID, got %v", err)
	}
	if err := r.Commit(ctx, "nope"); !errors.Is(err, apierror.ErrInvalidTransactionID) {
		t.Errorf("Expected invalid transaction ID on commit, got %v", err)
	}
	if err := r.Rollback(ctx, "nope"); !errors.Is(err, apierror.ErrInvalidTransactionID) {
		t.Errorf("Expected invalid transaction ID on rollback, got %v", err)
	}
}

func TestTransactionsAreIsolated(t *testing.T) {
	r, _ := setupTestRegistry(t)
	ctx := context.Background()

	writer, err := r.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	reader, err := r.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if writer == reader {
		t.Fatal("Expected distinct handles")
	}

	err = r.WithTransaction(ctx, writer, func(q backend.Queryer) error {
		_, err := q.ExecContext(ctx, "INSERT INTO doc (content) VALUES ('mine')")
		return err
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	r.WithTransaction(ctx, reader, func(q backend.Queryer) error {
		if n := countDocs(t, ctx, q); n != 0 {
			t.Errorf("Reader saw %d rows written by another transaction", n)
		}
		return nil
	})
	r.WithTransaction(ctx, writer, func(q backend.Queryer) error {
		if n := countDocs(t, ctx, q); n != 1 {
			t.Errorf("Writer expected to see its own row, got %d", n)
		}
		return nil
	})
}

func TestSameHandleIsSerialized(t *testing.T) {
	r, _ := setupTestRegistry(t)
	ctx := context.Background()

	handle, err := r.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var inFlight, maxInFlight atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			return r.WithTransaction(gctx, handle, func(q backend.Queryer) error {
				n := inFlight.Add(1)
				defer inFlight.Add(-1)
				for {
					cur := maxInFlight.Load()
					if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				_, err := q.ExecContext(gctx, "INSERT INTO doc (content) VALUES ('x')")
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Concurrent statements failed: %v", err)
	}
	if maxInFlight.Load() != 1 {
		t.Errorf("Expected statements on one handle to run one at a time, saw %d at once", maxInFlight.Load())
	}

	r.WithTransaction(ctx, handle, func(q backend.Queryer) error {
		if n := countDocs(t, ctx, q); n != 16 {
			t.Errorf("Expected 16 rows, got %d", n)
		}
		return nil
	})
}

func TestDifferentHandlesRunConcurrently(t *testing.T) {
	r, _ := setupTestRegistry(t)
	ctx := context.Background()

	a, err := r.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	b, err := r.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	started := make(chan struct{})
	g := new(errgroup.Group)
	g.Go(func() error {
		return r.WithTransaction(ctx, a, func(backend.Queryer) error {
			select {
			case <-started:
				return nil
			case <-time.After(5 * time.Second):
				return errors.New("other transaction never ran while this one was busy")
			}
		})
	})
	g.Go(func() error {
		return r.WithTransaction(ctx, b, func(backend.Queryer) error {
			close(started)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	r, _ := setupTestRegistry(t)
	handle, err := r.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	release := make(chan struct{})
	busy := make(chan struct{})
	go r.WithTransaction(context.Background(), handle, func(backend.Queryer) error {
		close(busy)
		<-release
		return nil
	})
	<-busy
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = r.WithTransaction(ctx, handle, func(backend.Queryer) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded while waiting, got %v", err)
	}
}

func TestCloseRollsBackEverything(t *testing.T) {
	r, b := setupTestRegistry(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		handle, err := r.Open(ctx, "")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if i == 0 {
			r.WithTransaction(ctx, handle, func(q backend.Queryer) error {
				_, err := q.ExecContext(ctx, "INSERT INTO doc (content) VALUES ('pending')")
				return err
			})
		}
	}
	if err := r.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Expected no open transactions, got %d", r.Len())
	}
	if n := committedDocs(t, b); n != 0 {
		t.Errorf("Expected pending insert to be rolled back, got %d rows", n)
	}
}
