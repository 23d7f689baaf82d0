// Package badger provides a persistent ownership ledger backed by BadgerDB.
//
// This backend keeps ownership stable across daemon restarts, which matters
// for volumes whose files outlive the process (the common case). Keys are
// namespaced with the "own:" prefix, one entry per file:
//
//	own:<volume-relative path> -> ledger.Record (JSON)
//
// Path-based keys make directory moves a prefix scan and keep the database
// self-documenting when inspected with badger tooling.
package badger

import (
	"context"
	"encoding/json"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/LightningFastRom/mediafs/pkg/ledger"
	"github.com/LightningFastRom/mediafs/pkg/storage"
)

const keyPrefix = "own:"

// BadgerLedger implements ledger.Store on top of a BadgerDB instance.
// Badger transactions provide the per-path write serialization the ledger
// contract requires; reads run lock-free on the LSM snapshot.
type BadgerLedger struct {
	db *badger.DB
}

// Open opens (or creates) a ledger database at dir.
func Open(dir string) (*BadgerLedger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, storage.NewIOError("failed to open ledger database: "+err.Error(), dir)
	}
	return &BadgerLedger{db: db}, nil
}

func key(path string) []byte {
	return []byte(keyPrefix + path)
}

// update runs fn in a read-write transaction, retrying on optimistic
// conflicts so racing callers observe domain errors (AlreadyExists,
// NotFound) instead of transient ErrConflict.
func (l *BadgerLedger) update(fn func(txn *badger.Txn) error) error {
	for {
		err := l.db.Update(fn)
		if err != badger.ErrConflict {
			return err
		}
	}
}

// RecordCreate implements ledger.Store.
func (l *BadgerLedger) RecordCreate(ctx context.Context, rec ledger.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := l.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(rec.Path)); err == nil {
			return storage.NewAlreadyExists(rec.Path)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		value, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(key(rec.Path), value)
	})
	return wrap(err, rec.Path)
}

// RecordDelete implements ledger.Store.
func (l *BadgerLedger) RecordDelete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := l.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(path)); err == badger.ErrKeyNotFound {
			return storage.NewNotFound(path)
		} else if err != nil {
			return err
		}
		return txn.Delete(key(path))
	})
	return wrap(err, path)
}

// Lookup implements ledger.Store.
func (l *BadgerLedger) Lookup(ctx context.Context, path string) (*ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec ledger.Record
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(path))
		if err == badger.ErrKeyNotFound {
			return storage.NewNotFound(path)
		} else if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &rec)
		})
	})
	if err != nil {
		return nil, wrap(err, path)
	}
	return &rec, nil
}

// Rename implements ledger.Store. The exact record and the whole subtree
// under oldPath move in a single transaction.
func (l *BadgerLedger) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := l.update(func(txn *badger.Txn) error {
		moved := false

		move := func(old, repl string) error {
			item, err := txn.Get(key(old))
			if err == badger.ErrKeyNotFound {
				return nil
			} else if err != nil {
				return err
			}
			var rec ledger.Record
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &rec)
			}); err != nil {
				return err
			}
			rec.Path = repl
			value, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := txn.Delete(key(old)); err != nil {
				return err
			}
			if err := txn.Set(key(repl), value); err != nil {
				return err
			}
			moved = true
			return nil
		}

		if err := move(oldPath, newPath); err != nil {
			return err
		}

		// Collect subtree keys first: mutating while iterating is not
		// supported by badger iterators.
		prefix := keyPrefix + oldPath + "/"
		var children []string
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
		for it.Rewind(); it.Valid(); it.Next() {
			children = append(children, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		it.Close()

		for _, child := range children {
			repl := newPath + "/" + strings.TrimPrefix(child, oldPath+"/")
			if err := move(child, repl); err != nil {
				return err
			}
		}

		if !moved {
			return storage.NewNotFound(oldPath)
		}
		return nil
	})
	return wrap(err, oldPath)
}

// Reconcile implements ledger.Store.
func (l *BadgerLedger) Reconcile(ctx context.Context, rec ledger.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := l.update(func(txn *badger.Txn) error {
		value, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(key(rec.Path), value)
	})
	return wrap(err, rec.Path)
}

// Close implements ledger.Store.
func (l *BadgerLedger) Close() error {
	return l.db.Close()
}

// wrap converts infrastructure errors into StorageError, passing domain
// errors through unchanged.
func wrap(err error, path string) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*storage.StorageError); ok {
		return err
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	return storage.NewIOError("ledger: "+err.Error(), path)
}
