// Package history keeps a bounded in-memory window of recent readings per
// station. The normalizer, the stagnation rule, and the report validator all
// consult it; the pipeline appends to it only after a cycle's results have
// been durably stored, so a failed cycle leaves no trace here.
package history

import (
	"sync"
	"time"

	"github.com/airshedlabs/enviro-risk-service/internal/domain"
)

// DefaultCapacity bounds each station's window. At a 15-minute cadence this
// holds roughly a day of readings, enough for smoothing, stagnation runs, and
// the 45-minute validation window with room to spare.
const DefaultCapacity = 96

// Store is a per-station ring of recent readings, newest first.
type Store struct {
	mu       sync.RWMutex
	capacity int
	byLoc    map[string][]domain.SensorReading
}

// New returns a store keeping up to capacity readings per station.
// Non-positive capacities fall back to DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		byLoc:    make(map[string][]domain.SensorReading),
	}
}

// Append records a reading as the newest entry for its station, evicting the
// oldest when the window is full.
func (s *Store) Append(reading domain.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.byLoc[reading.LocationID]
	window = append([]domain.SensorReading{reading}, window...)
	if len(window) > s.capacity {
		window = window[:s.capacity]
	}
	s.byLoc[reading.LocationID] = window
}

// Recent returns up to n readings for the station, newest first. The returned
// slice is a copy; callers may retain it.
func (s *Store) Recent(locationID string, n int) []domain.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := s.byLoc[locationID]
	if n > len(window) {
		n = len(window)
	}
	if n <= 0 {
		return nil
	}
	out := make([]domain.SensorReading, n)
	copy(out, window[:n])
	return out
}

// Window returns the station's readings with timestamps in [from, to],
// newest first.
func (s *Store) Window(locationID string, from, to time.Time) []domain.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SensorReading
	for _, r := range s.byLoc[locationID] {
		if r.Timestamp.Before(from) {
			break // entries are newest first; everything past here is older
		}
		if r.Timestamp.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Locations returns every station the store has seen, in no particular order.
func (s *Store) Locations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.byLoc))
	for loc := range s.byLoc {
		out = append(out, loc)
	}
	return out
}
