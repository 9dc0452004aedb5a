package state

import (
	"errors"
	"sort"
	"sync"

	"cdpchain/storage"
)

var errJournalClosed = errors.New("state: journal already committed or discarded")

// KV is the raw byte store the Manager reads and writes. Get returns nil
// without error when the key is absent.
type KV interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

type journalEntry struct {
	value   []byte
	deleted bool
}

// Journal stages writes on top of a database. Reads observe staged writes
// first. Commit applies everything as one atomic batch; Discard drops it.
type Journal struct {
	mu     sync.Mutex
	db     storage.Database
	staged map[string]journalEntry
	closed bool
}

func NewJournal(db storage.Database) *Journal {
	return &Journal{db: db, staged: make(map[string]journalEntry)}
}

func (j *Journal) Get(key []byte) ([]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, errJournalClosed
	}
	if entry, ok := j.staged[string(key)]; ok {
		if entry.deleted {
			return nil, nil
		}
		return append([]byte(nil), entry.value...), nil
	}
	value, err := j.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (j *Journal) Put(key, value []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errJournalClosed
	}
	j.staged[string(key)] = journalEntry{value: append([]byte(nil), value...)}
	return nil
}

func (j *Journal) Delete(key []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errJournalClosed
	}
	j.staged[string(key)] = journalEntry{deleted: true}
	return nil
}

// Len reports the number of staged keys.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.staged)
}

// Commit writes all staged changes in a single batch. Keys are applied in
// sorted order so identical work produces identical batches.
func (j *Journal) Commit() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errJournalClosed
	}
	j.closed = true
	if len(j.staged) == 0 {
		return nil
	}
	keys := make([]string, 0, len(j.staged))
	for key := range j.staged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	batch := j.db.NewBatch()
	for _, key := range keys {
		entry := j.staged[key]
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	j.staged = nil
	return batch.Write()
}

// Discard drops every staged change.
func (j *Journal) Discard() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	j.staged = nil
}
