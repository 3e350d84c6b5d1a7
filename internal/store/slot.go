package store

import (
	"errors"
	"io/fs"
	"os"
	"sync"

	"utrcal/internal/config"
)

// Slot is a single named storage location holding one opaque blob.
type Slot interface {
	// Read returns the stored blob. A slot that was never written
	// returns an error wrapping fs.ErrNotExist.
	Read() ([]byte, error)
	// Write overwrites the stored blob.
	Write(data []byte) error
}

// FileSlot stores the blob in a single file, written atomically.
type FileSlot struct {
	path string
}

func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

func (s *FileSlot) Path() string {
	return s.path
}

func (s *FileSlot) Read() ([]byte, error) {
	if s.path == "" {
		return nil, errors.New("store: slot path is empty")
	}
	return os.ReadFile(s.path)
}

func (s *FileSlot) Write(data []byte) error {
	if s.path == "" {
		return errors.New("store: slot path is empty")
	}
	return config.WriteFileAtomic(s.path, data)
}

// MemorySlot keeps the blob in memory.
type MemorySlot struct {
	mu      sync.Mutex
	data    []byte
	written bool
}

// NewMemorySlot returns a slot preloaded with data, or an empty slot when
// data is nil.
func NewMemorySlot(data []byte) *MemorySlot {
	s := &MemorySlot{}
	if data != nil {
		s.data = append([]byte(nil), data...)
		s.written = true
	}
	return s
}

func (s *MemorySlot) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.written {
		return nil, fs.ErrNotExist
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemorySlot) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	s.written = true
	return nil
}
