package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"vitalrisk/internal/history/models"
	id "vitalrisk/pkg/domain"
)

// Key layout. Timestamps are big-endian UnixMicro so byte order is time order.
//
//	h/a/<ts><snapshot id>              every snapshot
//	h/p/<patient id><ts><snapshot id>  per-patient index
var (
	allPrefix     = []byte("h/a/")
	patientPrefix = []byte("h/p/")
)

// BadgerStore is the durable snapshot log. Both keys of an entry are written
// in one transaction.
type BadgerStore struct {
	db    *badger.DB
	clock *monotonicClock
}

// NewBadger opens the log on db and resumes the clock after the newest entry.
func NewBadger(db *badger.DB, opts ...Option) (*BadgerStore, error) {
	clock := newMonotonicClock(nil)
	for _, opt := range opts {
		opt(clock)
	}
	s := &BadgerStore{db: db, clock: clock}
	latest, err := s.latest()
	if err != nil {
		return nil, err
	}
	clock.observe(latest)
	return s, nil
}

func (s *BadgerStore) Append(ctx context.Context, snap *models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.ID.IsNil() {
		snap.ID = id.NewSnapshotID()
	}
	snap.RecordedAt = s.clock.Next()
	value, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	ts := encodeTime(snap.RecordedAt)
	allKey := concat(allPrefix, ts, snap.ID[:])
	patientKey := concat(patientPrefix, snap.PatientID[:], ts, snap.ID[:])

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(allKey, value); err != nil {
			return err
		}
		return txn.Set(patientKey, value)
	})
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

func (s *BadgerStore) ListByPatient(ctx context.Context, pid id.PatientID) ([]*models.Snapshot, error) {
	return s.scanNewestFirst(ctx, concat(patientPrefix, pid[:]))
}

func (s *BadgerStore) ListAll(ctx context.Context) ([]*models.Snapshot, error) {
	return s.scanNewestFirst(ctx, allPrefix)
}

func (s *BadgerStore) scanNewestFirst(ctx context.Context, prefix []byte) ([]*models.Snapshot, error) {
	var out []*models.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(concat(prefix, []byte{0xFF})); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var snap models.Snapshot
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &snap)
			}); err != nil {
				return fmt.Errorf("decode snapshot %x: %w", it.Item().Key(), err)
			}
			out = append(out, &snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) latest() (time.Time, error) {
	var latest time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		opts.Prefix = allPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(concat(allPrefix, []byte{0xFF}))
		if it.ValidForPrefix(allPrefix) {
			key := it.Item().Key()
			if len(key) >= len(allPrefix)+8 {
				latest = decodeTime(key[len(allPrefix) : len(allPrefix)+8])
			}
		}
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("read latest snapshot: %w", err)
	}
	return latest, nil
}

func encodeTime(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UnixMicro()))
	return b
}

func decodeTime(b []byte) time.Time {
	return time.UnixMicro(int64(binary.BigEndian.Uint64(b))).UTC()
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
