package room

import "sync"

// Manager is the registry of live rooms. Rooms are created on first
// reference and destroyed the instant their roster empties; the drawing
// state goes with them. Mutations happen on the hub goroutine only, the
// mutex exists for reads from the HTTP layer.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewManager() *Manager {
	return &Manager{rooms: make(map[string]*Room)}
}

// Ensure returns the room with the given id, creating it if absent.
func (m *Manager) Ensure(roomID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		r = NewRoom(roomID)
		m.rooms[roomID] = r
	}
	return r
}

// Find returns the room or nil. Operations against an unknown room are
// no-ops at the relay layer.
func (m *Manager) Find(roomID string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[roomID]
}

// LeaveAny removes the connection from whichever room holds it, deleting
// the room if it is now empty. Returns the room and the departed user, or
// nils if no room knew the connection.
func (m *Manager) LeaveAny(connID string) (*Room, *User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, r := range m.rooms {
		user := r.User(connID)
		if user == nil {
			continue
		}
		r.Leave(connID)
		if r.Empty() {
			delete(m.rooms, id)
		}
		return r, user
	}
	return nil, nil
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// ActiveRooms maps room id to user count, for the stats endpoint.
func (m *Manager) ActiveRooms() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int, len(m.rooms))
	for id, r := range m.rooms {
		out[id] = r.UserCount()
	}
	return out
}

// Each runs fn over every live room. Used by the sweeper, on the hub
// goroutine.
func (m *Manager) Each(fn func(*Room)) {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	for _, r := range rooms {
		fn(r)
	}
}
