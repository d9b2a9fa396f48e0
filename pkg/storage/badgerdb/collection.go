package badgerdb

import (
	"civic/pkg/storage"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// collection stores documents of type T under "<prefix>:<id>" and maintains
// unique secondary indexes under "idx:<prefix>:<index>:<value>" pointing to
// the document id.
type collection[T any] struct {
	prefix  string
	id      func(*T) string
	indexes []index[T]
}

// index is a unique secondary index. value returns the normalized key for a
// document; documents with an empty value are not indexed.
type index[T any] struct {
	name  string
	value func(*T) string
}

func newCollection[T any](prefix string, id func(*T) string, indexes ...index[T]) collection[T] {
	return collection[T]{prefix: prefix, id: id, indexes: indexes}
}

func (c collection[T]) docPrefix() []byte {
	return []byte(c.prefix + ":")
}

func (c collection[T]) docKey(id string) []byte {
	return []byte(c.prefix + ":" + id)
}

func (c collection[T]) indexKey(name, value string) []byte {
	return []byte("idx:" + c.prefix + ":" + name + ":" + value)
}

// get returns the document with id, or nil when it does not exist.
func (c collection[T]) get(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get(c.docKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil //nolint: nilnil
	}
	if err != nil {
		return nil, fmt.Errorf("could not get %s %s: %w", c.prefix, id, err)
	}

	var doc T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	}); err != nil {
		return nil, fmt.Errorf("could not decode %s %s: %w", c.prefix, id, err)
	}

	return &doc, nil
}

// getBy resolves a document through a secondary index. value must already be
// normalized the way the index normalizes it.
func (c collection[T]) getBy(txn *badger.Txn, name, value string) (*T, error) {
	item, err := txn.Get(c.indexKey(name, value))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil //nolint: nilnil
	}
	if err != nil {
		return nil, fmt.Errorf("could not get %s index %s: %w", c.prefix, name, err)
	}

	id, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("could not read %s index %s: %w", c.prefix, name, err)
	}

	return c.get(txn, string(id))
}

// all returns every document of the collection in key order.
func (c collection[T]) all(txn *badger.Txn) ([]T, error) {
	prefix := c.docPrefix()
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var docs []T
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var doc T
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		}); err != nil {
			return nil, fmt.Errorf("could not decode %s %s: %w", c.prefix, it.Item().Key(), err)
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// insert writes a new document and its index keys. storage.ErrDuplicate is
// returned when the id or any index value is taken.
func (c collection[T]) insert(txn *badger.Txn, doc *T) error {
	id := c.id(doc)
	if err := c.absent(txn, c.docKey(id)); err != nil {
		return err
	}
	for _, idx := range c.indexes {
		if v := idx.value(doc); v != "" {
			if err := c.absent(txn, c.indexKey(idx.name, v)); err != nil {
				return fmt.Errorf("%s %s %q: %w", c.prefix, idx.name, v, err)
			}
		}
	}

	if err := c.write(txn, doc); err != nil {
		return err
	}
	for _, idx := range c.indexes {
		if v := idx.value(doc); v != "" {
			if err := txn.Set(c.indexKey(idx.name, v), []byte(id)); err != nil {
				return fmt.Errorf("could not set %s index %s: %w", c.prefix, idx.name, err)
			}
		}
	}

	return nil
}

// replace overwrites old with doc, moving index keys whose value changed.
// storage.ErrDuplicate is returned when a new index value belongs to another
// document.
func (c collection[T]) replace(txn *badger.Txn, old, doc *T) error {
	id := c.id(doc)
	for _, idx := range c.indexes {
		before, after := idx.value(old), idx.value(doc)
		if before == after || after == "" {
			continue
		}
		if err := c.absent(txn, c.indexKey(idx.name, after)); err != nil {
			return fmt.Errorf("%s %s %q: %w", c.prefix, idx.name, after, err)
		}
	}

	if err := c.write(txn, doc); err != nil {
		return err
	}
	for _, idx := range c.indexes {
		before, after := idx.value(old), idx.value(doc)
		if before == after {
			continue
		}
		if before != "" {
			if err := txn.Delete(c.indexKey(idx.name, before)); err != nil {
				return fmt.Errorf("could not delete %s index %s: %w", c.prefix, idx.name, err)
			}
		}
		if after != "" {
			if err := txn.Set(c.indexKey(idx.name, after), []byte(id)); err != nil {
				return fmt.Errorf("could not set %s index %s: %w", c.prefix, idx.name, err)
			}
		}
	}

	return nil
}

// remove deletes doc and its index keys.
func (c collection[T]) remove(txn *badger.Txn, doc *T) error {
	id := c.id(doc)
	if err := txn.Delete(c.docKey(id)); err != nil {
		return fmt.Errorf("could not delete %s %s: %w", c.prefix, id, err)
	}
	for _, idx := range c.indexes {
		if v := idx.value(doc); v != "" {
			if err := txn.Delete(c.indexKey(idx.name, v)); err != nil {
				return fmt.Errorf("could not delete %s index %s: %w", c.prefix, idx.name, err)
			}
		}
	}

	return nil
}

// lock rewrites docs unchanged. Badger only detects conflicts on keys a
// transaction read that another one wrote, so a ForUpdate read has to write
// the documents back for concurrent readers of them to conflict on commit.
func (c collection[T]) lock(txn *badger.Txn, docs []T) error {
	for i := range docs {
		if err := c.write(txn, &docs[i]); err != nil {
			return err
		}
	}

	return nil
}

func (c collection[T]) write(txn *badger.Txn, doc *T) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("could not encode %s: %w", c.prefix, err)
	}
	if err := txn.Set(c.docKey(c.id(doc)), data); err != nil {
		return fmt.Errorf("could not set %s: %w", c.prefix, err)
	}

	return nil
}

func (c collection[T]) absent(txn *badger.Txn, key []byte) error {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return storage.ErrDuplicate
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil
	default:
		return fmt.Errorf("could not check %s key: %w", c.prefix, err)
	}
}

// fold normalizes names for case-insensitive indexes.
func fold(s string) string {
	return strings.ToLower(s)
}
