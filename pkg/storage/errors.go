package storage

import "errors"

var (
	// ErrDuplicate is returned by Store and Update methods when a write would
	// break a uniqueness rule: tag and municipality names and user emails
	// (all case-insensitive), event ids and the one mailing list per tag.
	ErrDuplicate = errors.New("duplicate key")

	// ErrAlreadyInTx is returned by Begin on a transaction handle.
	ErrAlreadyInTx = errors.New("already in tx")
	// ErrNotInTx is returned by Commit and Rollback on the root handle.
	ErrNotInTx = errors.New("not in tx")
)
