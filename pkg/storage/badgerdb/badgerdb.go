// Package badgerdb implements the storage interfaces on top of an embedded
// Badger key/value store. Every entity is a JSON document under a collection
// prefix; unique names are enforced with secondary index keys written in the
// same transaction as the document.
//
// Badger transactions are serializable with optimistic conflict detection:
// a transaction whose reads were invalidated by a concurrent commit fails to
// commit with badger.ErrConflict. WithTx re-runs its callback against a fresh
// snapshot in that case, which gives the same outcome as waiting on a row lock
// in a pessimistic database.
package badgerdb

import (
	"civic/pkg/metrics"
	"civic/pkg/storage"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	backendName = "badger"

	defaultMaxTxAttempts = 10
)

var (
	_ storage.Storage   = (*Store)(nil)
	_ storage.TxStorage = (*Store)(nil)
)

// Options configures the Badger store.
type Options struct {
	// Path is the directory holding the database files. It is ignored when
	// InMemory is set.
	Path string
	// InMemory keeps all data in memory. Used by tests and ephemeral setups.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// MaxTxAttempts bounds how many times WithTx runs its callback when the
	// commit conflicts with concurrent transactions. Zero means the default.
	MaxTxAttempts int
}

// Store implements storage.Storage and storage.TxStorage. A Store returned by
// Begin is bound to one read-write transaction; otherwise every call runs in
// its own transaction.
type Store struct {
	db  *badger.DB
	txn *badger.Txn

	maxTxAttempts int
}

// Open opens (or creates) the Badger database described by options.
func Open(options Options) (*Store, error) {
	opts := badger.DefaultOptions(options.Path)
	if options.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = options.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open badger db: %w", err)
	}

	attempts := options.MaxTxAttempts
	if attempts <= 0 {
		attempts = defaultMaxTxAttempts
	}

	return &Store{db: db, maxTxAttempts: attempts}, nil
}

// Close closes the underlying database. It is a no-op on transactional handles.
func (s *Store) Close() error {
	if s.txn != nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("could not close badger db: %w", err)
	}

	return nil
}

// Begin starts a read-write transaction. It returns storage.ErrAlreadyInTx
// when called on a transactional handle.
func (s *Store) Begin(ctx context.Context) (storage.TxStorage, error) {
	if s.txn != nil {
		return nil, storage.ErrAlreadyInTx
	}
	if err := ctx.Err(); err != nil {
		return nil, err //nolint: wrapcheck
	}

	return &Store{
		db:            s.db,
		txn:           s.db.NewTransaction(true),
		maxTxAttempts: s.maxTxAttempts,
	}, nil
}

// Commit commits the transaction. badger.ErrConflict is returned (wrapped)
// when a concurrent transaction invalidated what this one read.
func (s *Store) Commit() error {
	if s.txn == nil {
		return storage.ErrNotInTx
	}

	if err := s.txn.Commit(); err != nil {
		return fmt.Errorf("could not commit tx: %w", err)
	}

	return nil
}

// Rollback discards the transaction.
func (s *Store) Rollback() error {
	if s.txn == nil {
		return storage.ErrNotInTx
	}
	s.txn.Discard()

	return nil
}

// WithTx runs cb inside a transaction and commits it when cb succeeds. On a
// commit conflict cb is run again, up to MaxTxAttempts times.
func (s *Store) WithTx(ctx context.Context, cb func(storage storage.AllStorage) error) error {
	var err error
	for range s.maxTxAttempts {
		start := time.Now()

		err = s.runTx(ctx, cb)
		switch {
		case err == nil:
			metrics.ObserveTx(backendName, metrics.TxCommitted, start)

			return nil
		case errors.Is(err, badger.ErrConflict):
			metrics.ObserveTx(backendName, metrics.TxFailed, start)

			continue
		default:
			metrics.ObserveTx(backendName, metrics.TxRolledBack, start)

			return err
		}
	}

	return fmt.Errorf("could not commit tx after %d attempts: %w", s.maxTxAttempts, err)
}

func (s *Store) runTx(ctx context.Context, cb func(storage storage.AllStorage) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	if err := cb(tx); err != nil {
		_ = tx.Rollback()

		return err
	}

	return tx.Commit()
}

// view runs fn in the bound transaction, or in a read-only one.
func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err //nolint: wrapcheck
	}
	if s.txn != nil {
		return fn(s.txn)
	}

	return s.db.View(fn)
}

// lockFor takes the ForUpdate locks of a query in the bound transaction.
// Outside a transaction there is nothing to hold the locks, so it is a no-op.
func lockFor[T any](s *Store, forUpdate bool, c collection[T], docs []T) error {
	if !forUpdate || s.txn == nil || len(docs) == 0 {
		return nil
	}

	return c.lock(s.txn, docs)
}

// update runs fn in the bound transaction, or in its own read-write one that
// is retried on commit conflicts.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err //nolint: wrapcheck
	}
	if s.txn != nil {
		return fn(s.txn)
	}

	var err error
	for range s.maxTxAttempts {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}

	return err
}
