package badger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wmlabtx/imgmzx/metadata"
	"github.com/wmlabtx/imgmzx/model"
	"github.com/wmlabtx/imgmzx/vectorstore"
)

const (
	recordPrefix = "rec/"
	vectorPrefix = "vec/"

	maxConflictRetries = 3
)

// Options configures the store.
type Options struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB without disk persistence. Useful in tests.
	InMemory bool

	// Logger receives BadgerDB's warnings and errors. Nil discards them.
	Logger *slog.Logger
}

// Store is a metadata.Store backed by BadgerDB.
type Store struct {
	db *badger.DB
}

var _ metadata.Store = (*Store)(nil)

// Open opens or creates the store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(slogLogger{log: opts.Logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	return &Store{db: db}, nil
}

func recordKey(h model.ContentHash) []byte { return []byte(recordPrefix + string(h)) }
func vectorKey(h model.ContentHash) []byte { return []byte(vectorPrefix + string(h)) }

func (s *Store) Get(_ context.Context, hash model.ContentHash) (metadata.Record, error) {
	var rec metadata.Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = readRecord(txn, hash)
		return err
	})
	return rec, err
}

func (s *Store) Put(_ context.Context, rec metadata.Record) error {
	if err := rec.Hash.Validate(); err != nil {
		return err
	}
	val, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("badger: encode record: %w", err)
	}
	return s.update(func(txn *badger.Txn) error {
		if err := txn.Set(recordKey(rec.Hash), val); err != nil {
			return err
		}
		if len(rec.Vector) == 0 {
			return txn.Delete(vectorKey(rec.Hash))
		}
		return txn.Set(vectorKey(rec.Hash), vectorstore.EncodeVector(rec.Vector))
	})
}

func (s *Store) SetNext(_ context.Context, hash, next model.ContentHash, distance float32) error {
	return s.update(func(txn *badger.Txn) error {
		rec, err := readRecordOnly(txn, hash)
		if err != nil {
			return err
		}
		rec.Next = next
		rec.Distance = distance
		val, err := msgpack.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("badger: encode record: %w", err)
		}
		return txn.Set(recordKey(hash), val)
	})
}

func (s *Store) SetVector(_ context.Context, hash model.ContentHash, vec []float32) error {
	return s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(recordKey(hash)); err != nil {
			return translate(err)
		}
		return txn.Set(vectorKey(hash), vectorstore.EncodeVector(vec))
	})
}

func (s *Store) Delete(_ context.Context, hash model.ContentHash) error {
	return s.update(func(txn *badger.Txn) error {
		if err := txn.Delete(recordKey(hash)); err != nil {
			return err
		}
		return txn.Delete(vectorKey(hash))
	})
}

func (s *Store) Scan(ctx context.Context) iter.Seq2[metadata.Record, error] {
	return func(yield func(metadata.Record, error) bool) {
		stopped := false
		err := s.db.View(func(txn *badger.Txn) error {
			prefix := []byte(recordPrefix)
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				var rec metadata.Record
				err := it.Item().Value(func(val []byte) error {
					return msgpack.Unmarshal(val, &rec)
				})
				if err == nil {
					err = readVector(txn, &rec)
				}
				if err != nil {
					err = fmt.Errorf("badger: decode %s: %w", it.Item().Key(), err)
				}
				if !yield(rec, err) {
					stopped = true
					return nil
				}
			}
			return nil
		})
		if err != nil && !stopped {
			yield(metadata.Record{}, err)
		}
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// update runs fn in a read-write transaction, retrying on conflicts with
// concurrent writers.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	return err
}

func readRecord(txn *badger.Txn, hash model.ContentHash) (metadata.Record, error) {
	rec, err := readRecordOnly(txn, hash)
	if err != nil {
		return rec, err
	}
	return rec, readVector(txn, &rec)
}

func readRecordOnly(txn *badger.Txn, hash model.ContentHash) (metadata.Record, error) {
	var rec metadata.Record
	item, err := txn.Get(recordKey(hash))
	if err != nil {
		return rec, translate(err)
	}
	err = item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &rec)
	})
	if err != nil {
		return rec, fmt.Errorf("badger: decode record %s: %w", hash.Short(), err)
	}
	return rec, nil
}

func readVector(txn *badger.Txn, rec *metadata.Record) error {
	item, err := txn.Get(vectorKey(rec.Hash))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		vec, err := vectorstore.DecodeVector(val)
		rec.Vector = vec
		return err
	})
}

func translate(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return metadata.ErrNotFound
	}
	return err
}
