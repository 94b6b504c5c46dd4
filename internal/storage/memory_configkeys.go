package storage

import (
	"strings"
	"sync"

	"github.com/ruslanhut/ocpp-emu/internal/ocpp/v201"
)

// MemoryKeyStore is an in-process, map-backed ConfigurationKey Store. The
// station tests use it; cmd/server always connects a MongoKeyStore instead.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*v201.ConfigurationKeyEntry // stationID -> lowercased key -> entry
}

// NewMemoryKeyStore builds an empty in-memory store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{data: make(map[string]map[string]*v201.ConfigurationKeyEntry)}
}

// Get looks up keyName case-insensitively for stationID.
func (s *MemoryKeyStore) Get(stationID, keyName string) (*v201.ConfigurationKeyEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	station, ok := s.data[stationID]
	if !ok {
		return nil, false
	}
	entry, ok := station[strings.ToLower(keyName)]
	if !ok {
		return nil, false
	}
	copied := *entry
	return &copied, true
}

// Add inserts a new entry, or does nothing if it already exists and
// overwrite is false.
func (s *MemoryKeyStore) Add(stationID, keyName, value string, opts v201.ConfigurationKeyAddOptions, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	station, ok := s.data[stationID]
	if !ok {
		station = make(map[string]*v201.ConfigurationKeyEntry)
		s.data[stationID] = station
	}

	lower := strings.ToLower(keyName)
	if _, exists := station[lower]; exists && !overwrite {
		return nil
	}

	station[lower] = &v201.ConfigurationKeyEntry{
		Key:      keyName,
		Value:    value,
		ReadOnly: opts.ReadOnly,
		Visible:  opts.Visible,
		Reboot:   opts.Reboot,
	}
	return nil
}

// SetValue updates the value of an existing entry, creating one with default
// visibility flags if it does not exist yet.
func (s *MemoryKeyStore) SetValue(stationID, keyName, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	station, ok := s.data[stationID]
	if !ok {
		station = make(map[string]*v201.ConfigurationKeyEntry)
		s.data[stationID] = station
	}

	lower := strings.ToLower(keyName)
	if entry, exists := station[lower]; exists {
		entry.Value = value
		return nil
	}

	station[lower] = &v201.ConfigurationKeyEntry{Key: keyName, Value: value, Visible: true}
	return nil
}
