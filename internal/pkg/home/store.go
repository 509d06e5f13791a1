package home

import (
	"strings"
	"sync"
	"time"
)

// Status reflects the health of the most recent refresh
type Status struct {
	Degraded    bool      `json:"degraded"`
	LastError   string    `json:"lastError,omitempty"`
	LastRefresh time.Time `json:"lastRefresh"`
}

// Store holds the current room model.  It is replaced wholesale by
// reconciliation and patched field-by-field by optimistic updates; readers
// always get copies.
type Store struct {
	mu      sync.RWMutex
	rooms   []Room
	gateway *Gateway
	status  Status
}

func NewStore() *Store {
	return &Store{}
}

// Rooms returns a copy of the current rooms
func (s *Store) Rooms() []Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]Room, len(s.rooms))
	for i, r := range s.rooms {
		rooms[i] = r.clone()
	}
	return rooms
}

func (s *Store) Gateway() *Gateway {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.gateway == nil {
		return nil
	}
	gw := *s.gateway
	return &gw
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Reconcile runs r against the current rooms and stores the result
func (s *Store) Reconcile(r *Reconciler, snapshot []Record) []Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, gateway := r.Reconcile(s.rooms, snapshot)
	s.rooms = rooms
	if gateway != nil {
		s.gateway = gateway
	}
	s.status = Status{LastRefresh: time.Now()}

	out := make([]Room, len(rooms))
	for i, room := range rooms {
		out[i] = room.clone()
	}
	return out
}

// MarkDegraded records a failed refresh or command without touching rooms
func (s *Store) MarkDegraded(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Degraded = true
	if err != nil {
		s.status.LastError = err.Error()
	}
}

// Room looks a room up by id, or failing that by case-insensitive name
func (s *Store) Room(idOrName string) (Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rooms {
		if r.ID == idOrName {
			return r.clone(), true
		}
	}
	for _, r := range s.rooms {
		if strings.EqualFold(r.Name, idOrName) {
			return r.clone(), true
		}
	}
	return Room{}, false
}

// SetRoomOpen changes a room's expand/collapse flag
func (s *Store) SetRoomOpen(roomID string, open bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rooms {
		if s.rooms[i].ID == roomID {
			s.rooms[i].IsOpen = open
			return true
		}
	}
	return false
}

// ToggleRoomOpen flips a room's expand/collapse flag, returning the new value
func (s *Store) ToggleRoomOpen(roomID string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rooms {
		if s.rooms[i].ID == roomID {
			s.rooms[i].IsOpen = !s.rooms[i].IsOpen
			return s.rooms[i].IsOpen, true
		}
	}
	return false, false
}

// Device finds a device (card or controller) by id
func (s *Store) Device(id string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d := s.findLocked(id); d != nil {
		return *d, true
	}
	return Device{}, false
}

// UpdateDevice applies fn to the stored device and returns the result
func (s *Store) UpdateDevice(id string, fn func(d *Device)) (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.findLocked(id)
	if d == nil {
		return Device{}, false
	}
	fn(d)
	return *d, true
}

func (s *Store) findLocked(id string) *Device {
	for i := range s.rooms {
		for j := range s.rooms[i].Devices {
			if s.rooms[i].Devices[j].ID == id {
				return &s.rooms[i].Devices[j]
			}
		}
		for j := range s.rooms[i].Controllers {
			if s.rooms[i].Controllers[j].ID == id {
				return &s.rooms[i].Controllers[j]
			}
		}
	}
	return nil
}
