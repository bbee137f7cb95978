package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	walKeyPrefix      = "wal:"
	walSequencePrefix = "wal-seq:"
)

// WALEntryType identifies one durable saga event.
type WALEntryType string

const (
	WALEntryTypeStepStarted           WALEntryType = "step_started"
	WALEntryTypeStepCompleted         WALEntryType = "step_completed"
	WALEntryTypeStepFailed            WALEntryType = "step_failed"
	WALEntryTypeCompensationStarted   WALEntryType = "compensation_started"
	WALEntryTypeCompensationCompleted WALEntryType = "compensation_completed"
	WALEntryTypeCompensationFailed    WALEntryType = "compensation_failed"
)

// WALEntry is one write-ahead log record. Sequence numbers are per saga.
type WALEntry struct {
	Sequence  uint64       `json:"sequence"`
	SagaID    string       `json:"saga_id"`
	Step      string       `json:"step,omitempty"`
	Type      WALEntryType `json:"type"`
	Detail    string       `json:"detail,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// WAL records saga progress before results are reported to callers. Entries
// are flushed synchronously so a crashed coordinator never loses a committed
// step.
type WAL interface {
	Append(ctx context.Context, entry WALEntry) (uint64, error)
	List(ctx context.Context, sagaID string) ([]WALEntry, error)
	DeleteBySagaID(ctx context.Context, sagaID string) error
	Close() error
}

// BadgerWAL implements WAL on top of Badger.
type BadgerWAL struct {
	db     *badger.DB
	ownsDB bool
}

// OpenBadgerWAL opens a dedicated Badger database for WAL usage.
func OpenBadgerWAL(path string) (*BadgerWAL, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger wal: %w", err)
	}
	return &BadgerWAL{db: db, ownsDB: true}, nil
}

// NewBadgerWAL creates a WAL over an existing Badger handle.
func NewBadgerWAL(db *badger.DB) (*BadgerWAL, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db cannot be nil")
	}
	return &BadgerWAL{db: db}, nil
}

// Append appends one entry and returns its per-saga sequence number.
func (w *BadgerWAL) Append(ctx context.Context, entry WALEntry) (uint64, error) {
	if entry.SagaID == "" {
		return 0, fmt.Errorf("wal entry saga_id cannot be empty")
	}
	if entry.Type == "" {
		return 0, fmt.Errorf("wal entry type cannot be empty")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	sequence, err := w.nextSequence(entry.SagaID)
	if err != nil {
		return 0, err
	}
	entry.Sequence = sequence

	data, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("marshal wal entry: %w", err)
	}
	key := []byte(walEntryKey(entry.SagaID, sequence))

	err = w.db.Update(func(txn *badger.Txn) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return 0, err
	}
	return sequence, nil
}

// List returns all entries for a saga in sequence order.
func (w *BadgerWAL) List(ctx context.Context, sagaID string) ([]WALEntry, error) {
	prefix := []byte(walPrefixForSaga(sagaID))
	entries := make([]WALEntry, 0)

	err := w.db.View(func(txn *badger.Txn) error {
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

			var entry WALEntry
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &entry)
			}); err != nil {
				return fmt.Errorf("decode wal entry: %w", err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteBySagaID removes all entries and the sequence counter for a saga.
func (w *BadgerWAL) DeleteBySagaID(ctx context.Context, sagaID string) error {
	prefix := []byte(walPrefixForSaga(sagaID))
	keys := make([][]byte, 0)

	if err := w.db.View(func(txn *badger.Txn) error {
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
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	}); err != nil {
		return err
	}

	return w.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		_ = txn.Delete([]byte(sequenceKeyForSaga(sagaID)))
		return nil
	})
}

// Close closes the database if this WAL opened it.
func (w *BadgerWAL) Close() error {
	if w.ownsDB {
		return w.db.Close()
	}
	return nil
}

func (w *BadgerWAL) nextSequence(sagaID string) (uint64, error) {
	key := []byte(sequenceKeyForSaga(sagaID))
	var next uint64
	err := w.db.Update(func(txn *badger.Txn) error {
		current := uint64(0)
		item, err := txn.Get(key)
		switch {
		case err == nil:
			if err := item.Value(func(v []byte) error {
				parsed, parseErr := strconv.ParseUint(string(v), 10, 64)
				if parseErr != nil {
					return parseErr
				}
				current = parsed
				return nil
			}); err != nil {
				return err
			}
		case err == badger.ErrKeyNotFound:
			current = 0
		default:
			return err
		}

		next = current + 1
		return txn.Set(key, []byte(strconv.FormatUint(next, 10)))
	})
	if err != nil {
		return 0, fmt.Errorf("next wal sequence: %w", err)
	}
	return next, nil
}

func walPrefixForSaga(sagaID string) string {
	return fmt.Sprintf("%s%s:", walKeyPrefix, sagaID)
}

func sequenceKeyForSaga(sagaID string) string {
	return walSequencePrefix + sagaID
}

func walEntryKey(sagaID string, sequence uint64) string {
	return fmt.Sprintf("%s%s:%020d", walKeyPrefix, sagaID, sequence)
}

// MemoryWAL keeps entries in memory. Used with the memory run store, where
// history survives only as long as the process.
type MemoryWAL struct {
	mu        sync.Mutex
	entries   map[string][]WALEntry
	sequences map[string]uint64
}

// NewMemoryWAL creates an empty in-memory WAL.
func NewMemoryWAL() *MemoryWAL {
	return &MemoryWAL{
		entries:   make(map[string][]WALEntry),
		sequences: make(map[string]uint64),
	}
}

// Append records one entry and returns its per-saga sequence number.
func (w *MemoryWAL) Append(_ context.Context, entry WALEntry) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sequences[entry.SagaID]++
	entry.Sequence = w.sequences[entry.SagaID]
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	w.entries[entry.SagaID] = append(w.entries[entry.SagaID], entry)
	return entry.Sequence, nil
}

// List returns all entries of one saga in append order.
func (w *MemoryWAL) List(_ context.Context, sagaID string) ([]WALEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]WALEntry(nil), w.entries[sagaID]...), nil
}

// DeleteBySagaID removes all entries of one saga.
func (w *MemoryWAL) DeleteBySagaID(_ context.Context, sagaID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, sagaID)
	delete(w.sequences, sagaID)
	return nil
}

// Close is a no-op.
func (w *MemoryWAL) Close() error { return nil }

// NopWAL discards all entries. Used when durable logging is disabled.
type NopWAL struct{}

// Append discards the entry.
func (NopWAL) Append(context.Context, WALEntry) (uint64, error) { return 0, nil }

// List returns no entries.
func (NopWAL) List(context.Context, string) ([]WALEntry, error) { return nil, nil }

// DeleteBySagaID is a no-op.
func (NopWAL) DeleteBySagaID(context.Context, string) error { return nil }

// Close is a no-op.
func (NopWAL) Close() error { return nil }
