// Package storage defines the entity store the services rely on: one
// interface per collection (users, tags, municipalities, events, mailing
// lists, jobs) and the transaction management needed to mutate several
// collections atomically. Backends (PostgreSQL, Badger) provide concrete
// implementations and can be swapped without changing the services.
package storage

import "context"

// AllStorage is a composite interface that includes all collection-specific
// storage capabilities required by the application.
type AllStorage interface {
	UserStorage
	TagStorage
	MunicipalityStorage
	EventStorage
	MailingListStorage
	JobStorage
}

// TxStorage describes a storage handle that operates within a transaction.
// It exposes the same capabilities as AllStorage and additionally allows
// committing or rolling back the ongoing transaction. Implementations become
// unusable after Commit or Rollback is called.
type TxStorage interface {
	AllStorage

	// Commit finalizes the transaction, persisting all changes.
	Commit() error
	// Rollback aborts the transaction, discarding all uncommitted changes.
	Rollback() error
}

// Storage describes a non-transactional storage handle with the ability to
// start transactions.
type Storage interface {
	AllStorage

	// Close releases any resources held by the storage implementation. After
	// Close, the instance should not be used.
	Close() error

	// Begin starts a new transaction and returns a TxStorage that can be used to
	// perform further operations within that transaction.
	Begin(ctx context.Context) (TxStorage, error)
	// WithTx begins a transaction, invokes cb with it, and commits when cb
	// returns nil. If cb returns an error the transaction is rolled back and
	// the error is returned unchanged. Nothing written through the callback
	// handle is visible to other transactions before the commit.
	//
	// Backends with optimistic concurrency control may invoke cb more than
	// once when the commit conflicts with a concurrent transaction, so cb must
	// only have effects through the handle it receives.
	WithTx(ctx context.Context, cb func(storage AllStorage) error) error
}
