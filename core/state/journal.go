package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"atomicescrow/storage"
)

type journalEntry struct {
	key     []byte
	prev    []byte
	existed bool
}

// pendingWrite is a staged value; a nil value marks a deletion.
type pendingWrite struct {
	value []byte
}

// get reads key through the staged writes of the open unit of work.
func (m *Manager) get(key []byte) ([]byte, error) {
	if w, ok := m.pending[string(key)]; ok {
		if w.value == nil {
			return nil, storage.ErrNotFound
		}
		return bytes.Clone(w.value), nil
	}
	return m.db.Get(key)
}

// put writes key directly outside a snapshot and stages it inside one.
func (m *Manager) put(key, value []byte) error {
	if m.depth == 0 {
		return m.db.Put(key, value)
	}
	if err := m.record(key); err != nil {
		return err
	}
	m.pending[string(key)] = pendingWrite{value: bytes.Clone(value)}
	return nil
}

func (m *Manager) del(key []byte) error {
	if m.depth == 0 {
		return m.db.Delete(key)
	}
	if err := m.record(key); err != nil {
		return err
	}
	m.pending[string(key)] = pendingWrite{}
	return nil
}

// Iterate visits the entries under prefix, staged writes included, in
// ascending key order.
func (m *Manager) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	if len(m.pending) == 0 {
		return m.db.Iterate(prefix, fn)
	}
	merged := make(map[string][]byte)
	err := m.db.Iterate(prefix, func(key, value []byte) bool {
		merged[string(key)] = value
		return true
	})
	if err != nil {
		return err
	}
	for k, w := range m.pending {
		if !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		if w.value == nil {
			delete(merged, k)
			continue
		}
		merged[k] = bytes.Clone(w.value)
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), merged[k]) {
			return nil
		}
	}
	return nil
}

// record remembers the current value of key so it can be restored by
// RevertToSnapshot.
func (m *Manager) record(key []byte) error {
	prev, err := m.get(key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		m.journal = append(m.journal, journalEntry{key: bytes.Clone(key)})
	case err != nil:
		return err
	default:
		m.journal = append(m.journal, journalEntry{key: bytes.Clone(key), prev: prev, existed: true})
	}
	return nil
}

// Snapshot opens a revertible unit of work and returns its identifier.
// Snapshots nest; every Snapshot must be paired with RevertToSnapshot or
// DiscardSnapshot. Writes are staged in memory until the outermost snapshot
// is discarded.
func (m *Manager) Snapshot() int {
	if m.depth == 0 {
		m.pending = make(map[string]pendingWrite)
	}
	m.depth++
	return len(m.journal)
}

// RevertToSnapshot undoes every write made since the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) error {
	if m.depth == 0 || id < 0 || id > len(m.journal) {
		return fmt.Errorf("state: invalid snapshot %d", id)
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.existed {
			m.pending[string(entry.key)] = pendingWrite{value: entry.prev}
		} else {
			m.pending[string(entry.key)] = pendingWrite{}
		}
	}
	m.journal = m.journal[:id]
	m.depth--
	if m.depth == 0 {
		// Every staged write has been undone.
		m.journal = nil
		m.pending = nil
	}
	return nil
}

// DiscardSnapshot keeps the writes made since the snapshot. Discarding the
// outermost snapshot commits the staged writes to the database in one batch,
// so a crash never persists part of a unit of work.
func (m *Manager) DiscardSnapshot(int) error {
	if m.depth == 0 {
		return nil
	}
	m.depth--
	if m.depth > 0 {
		return nil
	}
	pending := m.pending
	m.journal = nil
	m.pending = nil
	return m.flush(pending)
}

func (m *Manager) flush(pending map[string]pendingWrite) error {
	if len(pending) == 0 {
		return nil
	}
	batch := m.db.NewBatch()
	for k, w := range pending {
		if w.value == nil {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), w.value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit %d writes: %w", batch.Len(), err)
	}
	return nil
}
