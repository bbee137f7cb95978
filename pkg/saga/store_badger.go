package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	runKeyPrefix        = "run:"
	runIndexStatePrefix = "run:index:state:"
)

// BadgerStore persists saga runs in Badger at key "run:{id}", with a
// secondary index "run:index:state:{state}:{id}" so recovery can scan
// non-terminal runs without loading the whole keyspace.
type BadgerStore struct {
	db    *badger.DB
	owned bool
}

// NewBadgerStore creates a run store on an existing Badger handle.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db cannot be nil")
	}
	return &BadgerStore{db: db}, nil
}

// OpenBadgerStore opens a Badger database at dir and wraps it in a run
// store. Close releases the database.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db, owned: true}, nil
}

// DB exposes the underlying Badger handle so a WAL can share it.
func (s *BadgerStore) DB() *badger.DB { return s.db }

// Save persists the run and keeps the state index current.
func (s *BadgerStore) Save(ctx context.Context, run *Run) error {
	if run == nil {
		return fmt.Errorf("saga run cannot be nil")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}

	key := []byte(runDataKey(run.ID))
	newIndexKey := []byte(runStateIndexKey(run.State.String(), run.ID))

	return s.db.Update(func(txn *badger.Txn) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var oldState string
		item, err := txn.Get(key)
		if err == nil {
			var previous Run
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &previous) }); err == nil {
				oldState = previous.State.String()
			}
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}
		if err := txn.Set(newIndexKey, []byte{}); err != nil {
			return err
		}
		if oldState != "" && oldState != run.State.String() {
			_ = txn.Delete([]byte(runStateIndexKey(oldState, run.ID)))
		}
		return nil
	})
}

// Get loads one run by id.
func (s *BadgerStore) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.View(func(txn *badger.Txn) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		item, err := txn.Get([]byte(runDataKey(id)))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrRunNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &run) })
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List queries runs matching the filter, ordered by creation time.
func (s *BadgerStore) List(ctx context.Context, filter ListFilter) ([]*Run, error) {
	runs := make([]*Run, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		if filter.State != nil {
			prefix := []byte(runStateIndexPrefix(filter.State.String()))
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				key := string(it.Item().Key())
				id := strings.TrimPrefix(key, runStateIndexPrefix(filter.State.String()))
				run, err := s.getInTxn(txn, id)
				if err != nil {
					continue
				}
				if filter.Workflow != "" && run.Workflow != filter.Workflow {
					continue
				}
				runs = append(runs, run)
			}
			return nil
		}

		prefix := []byte(runKeyPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			key := string(it.Item().Key())
			if strings.HasPrefix(key, runIndexStatePrefix) {
				continue
			}
			var run Run
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &run) }); err != nil {
				continue
			}
			if filter.Workflow != "" && run.Workflow != filter.Workflow {
				continue
			}
			runs = append(runs, &run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return paginate(runs, filter.Offset, filter.Limit), nil
}

// Delete removes one run and its state index entry.
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	key := []byte(runDataKey(id))
	return s.db.Update(func(txn *badger.Txn) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		item, err := txn.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrRunNotFound
			}
			return err
		}

		var run Run
		if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &run) }); err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		_ = txn.Delete([]byte(runStateIndexKey(run.State.String(), id)))
		return nil
	})
}

// Close releases the underlying database if this store opened it.
func (s *BadgerStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

func (s *BadgerStore) getInTxn(txn *badger.Txn, id string) (*Run, error) {
	item, err := txn.Get([]byte(runDataKey(id)))
	if err != nil {
		return nil, err
	}
	var run Run
	if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &run) }); err != nil {
		return nil, err
	}
	return &run, nil
}

func runDataKey(id string) string {
	return runKeyPrefix + id
}

func runStateIndexPrefix(state string) string {
	return runIndexStatePrefix + state + ":"
}

func runStateIndexKey(state, id string) string {
	return runStateIndexPrefix(state) + id
}
