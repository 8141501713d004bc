package events

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"sparkledger/core/types"
)

var journalBucket = []byte("events")

// Journal is an append-only, file-backed event log. Every emitted event is
// stored under a monotonically increasing sequence number so that external
// indexers can replay the full history of the ledger.
type Journal struct {
	mu      sync.Mutex
	db      *bolt.DB
	lastErr error
}

type journalEntry struct {
	Seq   uint64      `json:"seq"`
	Event types.Event `json:"event"`
}

// OpenJournal creates or opens the journal file at the supplied path.
func OpenJournal(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("events: open journal: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(journalBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("events: init journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Emit implements the Emitter interface. Only events carrying a structured
// payload are journaled; emission failures are retained and surfaced via Err
// because the Emitter contract cannot propagate them.
func (j *Journal) Emit(evt Event) {
	if j == nil || evt == nil {
		return
	}
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok || carrier.Event() == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	err := j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(journalBucket)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(journalEntry{Seq: seq, Event: *carrier.Event()})
		if err != nil {
			return err
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return bucket.Put(key[:], encoded)
	})
	if err != nil {
		j.lastErr = err
	}
}

// All returns every journaled event in emission order.
func (j *Journal) All() ([]types.Event, error) {
	if j == nil {
		return nil, nil
	}
	var out []types.Event
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(journalBucket).ForEach(func(_, value []byte) error {
			var entry journalEntry
			if err := json.Unmarshal(value, &entry); err != nil {
				return err
			}
			out = append(out, entry.Event)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("events: read journal: %w", err)
	}
	return out, nil
}

// Err reports the most recent append failure, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

// Close releases the underlying file handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
