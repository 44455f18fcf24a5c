// Package watch implements the clip daemon: it polls the audio directory
// for finished WAV clips, transcribes each one, extracts the intent with
// a language model and appends the result to the daily task log. A
// badger-backed manifest remembers handled clips across restarts.
package watch

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Clip outcomes recorded in the manifest.
const (
	StatusDone   = "done"
	StatusEmpty  = "empty"
	StatusFailed = "failed"
)

// Record is what the manifest remembers about one handled clip.
type Record struct {
	Status      string    `json:"status"`
	Transcript  string    `json:"transcript,omitempty"`
	EntryType   string    `json:"entry_type,omitempty"`
	Error       string    `json:"error,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
	ElapsedSec  float64   `json:"elapsed_sec,omitempty"`
}

// Manifest is the durable set of clips the watcher has handled, keyed by
// clip file name. Because it survives restarts, a clip is transcribed at
// most once even when the daemon is bounced mid-scan.
type Manifest struct {
	db *badger.DB
}

// OpenManifest opens or creates the manifest database in dir.
func OpenManifest(dir string) (*Manifest, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open manifest %q: %w", dir, err)
	}
	return &Manifest{db: db}, nil
}

// Close releases the underlying database.
func (m *Manifest) Close() error {
	return m.db.Close()
}

// Seen reports whether the named clip has any record, regardless of
// outcome. Failed clips count as seen; there is no automatic retry on a
// later scan.
func (m *Manifest) Seen(name string) (bool, error) {
	err := m.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(name))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("manifest lookup %q: %w", name, err)
	}
	return true, nil
}

// Get returns the record for the named clip when one exists.
func (m *Manifest) Get(name string) (Record, bool, error) {
	var rec Record
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("manifest get %q: %w", name, err)
	}
	return rec, true, nil
}

// Put stores the record for the named clip, replacing any earlier one.
func (m *Manifest) Put(name string, rec Record) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("manifest encode %q: %w", name, err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(name), val)
	})
	if err != nil {
		return fmt.Errorf("manifest store %q: %w", name, err)
	}
	return nil
}

// Len counts the recorded clips.
func (m *Manifest) Len() (int, error) {
	var n int
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("manifest count: %w", err)
	}
	return n, nil
}
