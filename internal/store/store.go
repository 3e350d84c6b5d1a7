package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"sync"

	appLog "utrcal/internal/log"
	"utrcal/internal/model"
)

// Encode serializes the full entry sequence as a JSON array.
func Encode(entries []model.ClassEntry) ([]byte, error) {
	if entries == nil {
		entries = []model.ClassEntry{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// Decode parses a blob produced by Encode. A JSON null decodes to an
// empty sequence.
func Decode(data []byte) ([]model.ClassEntry, error) {
	var entries []model.ClassEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.ClassEntry{}
	}
	return entries, nil
}

// EntryStore is the ordered, write-through collection of class entries.
// Every mutation re-serializes the full sequence into the slot.
type EntryStore struct {
	slot Slot

	mu      sync.Mutex
	entries []model.ClassEntry
}

func NewEntryStore(slot Slot) *EntryStore {
	return &EntryStore{slot: slot, entries: []model.ClassEntry{}}
}

// Load replaces the in-memory sequence with the persisted one.
// Missing or undecodable data yields an empty sequence; nothing is
// reported to the caller.
func (s *EntryStore) Load() []model.ClassEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = s.readSlot()
	return s.copyLocked()
}

func (s *EntryStore) readSlot() []model.ClassEntry {
	data, err := s.slot.Read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Debug("store: slot empty; starting with no entries")
		} else {
			appLog.Error("store: slot read failed; starting with no entries", err)
		}
		return []model.ClassEntry{}
	}

	entries, err := Decode(data)
	if err != nil {
		appLog.Error("store: decode failed; starting with no entries", err, "bytes", len(data))
		return []model.ClassEntry{}
	}
	return entries
}

// Save replaces the in-memory sequence with entries and persists it.
// Encode and write failures are logged and swallowed; the entries stay
// in memory even though the slot is now stale.
func (s *EntryStore) Save(entries []model.ClassEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]model.ClassEntry{}, entries...)
	s.persistLocked()
}

func (s *EntryStore) persistLocked() {
	data, err := Encode(s.entries)
	if err != nil {
		appLog.Error("store: encode failed; slot not updated", err, "entries", len(s.entries))
		return
	}
	if err := s.slot.Write(data); err != nil {
		appLog.Error("store: slot write failed", err, "entries", len(s.entries))
		return
	}
	appLog.Debug("store: saved", "entries", len(s.entries))
}

// Add appends entry and persists.
func (s *EntryStore) Add(entry model.ClassEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	s.persistLocked()
}

// Remove deletes the entry with the given id and persists. It reports
// whether an entry was removed; an unknown id is a no-op.
func (s *EntryStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			s.persistLocked()
			return true
		}
	}
	return false
}

// Replace swaps the entry with the same id for entry, keeping its
// position, and persists. It reports false when no such entry exists.
func (s *EntryStore) Replace(entry model.ClassEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.ID == entry.ID {
			s.entries[i] = entry
			s.persistLocked()
			return true
		}
	}
	return false
}

func (s *EntryStore) Get(id string) (model.ClassEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return model.ClassEntry{}, false
}

// Entries returns a copy of the current sequence in insertion order.
func (s *EntryStore) Entries() []model.ClassEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *EntryStore) copyLocked() []model.ClassEntry {
	return append([]model.ClassEntry{}, s.entries...)
}
