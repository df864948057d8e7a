package ws

import (
	"log"
	"sync"
	"time"

	"github.com/Lokiisunny/collabarative-drawing-app/internal/protocol"
	"github.com/Lokiisunny/collabarative-drawing-app/internal/room"
)

// Hub is the relay between connections and room state. A single Run
// goroutine processes registration, disconnection, inbound frames, and
// sweep ticks one at a time, so every mutation of a room's drawing state is
// serialized and no locks guard the state itself. The mutex below only
// protects the membership map for reads from the HTTP layer.
type Hub struct {
	rooms *room.Manager

	mu      sync.RWMutex
	members map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	inbound    chan *frame
	sweep      chan time.Duration
}

type frame struct {
	client *Client
	data   []byte
}

func NewHub(rooms *room.Manager) *Hub {
	return &Hub{
		rooms:      rooms,
		members:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *frame, 256),
		sweep:      make(chan time.Duration),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case f := <-h.inbound:
			h.handleFrame(f.client, f.data)
		case age := <-h.sweep:
			h.handleSweep(age)
		}
	}
}

// SweepAbandoned asks the hub loop to drop strokes left open longer than
// age. Called by the sweeper service.
func (h *Hub) SweepAbandoned(age time.Duration) {
	h.sweep <- age
}

func (h *Hub) handleRegister(c *Client) {
	r := h.rooms.Ensure(c.roomID)
	user := r.Join(c.connID, c.name)

	h.mu.Lock()
	if _, ok := h.members[c.roomID]; !ok {
		h.members[c.roomID] = make(map[*Client]bool)
	}
	h.members[c.roomID][c] = true
	h.mu.Unlock()

	log.Printf("%s joined room %s (users: %d)", user.Name, c.roomID, r.UserCount())

	// The snapshot must reach the client before any incremental event.
	snap := r.Snapshot()
	h.sendTo(c, protocol.TypeRoomState, protocol.RoomState{
		You:       user,
		Users:     r.Roster(),
		Strokes:   snap.Strokes,
		History:   snap.History,
		RedoStack: snap.RedoStack,
	})

	h.broadcast(c.roomID, c, protocol.TypeUserJoined, protocol.UserJoined{User: user})
	h.broadcast(c.roomID, nil, protocol.TypeRosterUpdated, protocol.RosterUpdated{Users: r.Roster()})
}

func (h *Hub) handleUnregister(c *Client) {
	h.mu.Lock()
	if clients, ok := h.members[c.roomID]; ok {
		if clients[c] {
			delete(clients, c)
			close(c.send)
		}
		if len(clients) == 0 {
			delete(h.members, c.roomID)
		}
	}
	h.mu.Unlock()

	r, user := h.rooms.LeaveAny(c.connID)
	if r == nil {
		return
	}
	if r.Empty() {
		log.Printf("room %s closed (empty)", r.ID)
		return
	}

	log.Printf("%s left room %s (users: %d)", user.Name, r.ID, r.UserCount())

	if dropped := r.AbandonStrokes(c.connID); len(dropped) > 0 {
		h.broadcast(r.ID, nil, protocol.TypeStrokesAbandoned, protocol.StrokesAbandoned{StrokeIDs: dropped})
	}
	h.broadcast(r.ID, nil, protocol.TypeUserLeft, protocol.UserLeft{UserID: c.connID})
	h.broadcast(r.ID, nil, protocol.TypeRosterUpdated, protocol.RosterUpdated{Users: r.Roster()})
}

func (h *Hub) handleSweep(age time.Duration) {
	h.rooms.Each(func(r *room.Room) {
		dropped := r.AbandonStrokesOlderThan(age)
		if len(dropped) == 0 {
			return
		}
		log.Printf("room %s: swept %d abandoned strokes", r.ID, len(dropped))
		h.broadcast(r.ID, nil, protocol.TypeStrokesAbandoned, protocol.StrokesAbandoned{StrokeIDs: dropped})
	})
}

// sendTo queues a message for one client, dropping the client if its send
// buffer is full.
func (h *Hub) sendTo(c *Client, msgType string, payload interface{}) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Printf("encode %s: %v", msgType, err)
		return
	}
	h.mu.Lock()
	h.deliver(c, data)
	h.mu.Unlock()
}

// broadcast fans a message out to every member of a room, optionally
// excluding the author. The payload is marshaled once, within the same
// serialized step as the mutation that produced it.
func (h *Hub) broadcast(roomID string, except *Client, msgType string, payload interface{}) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Printf("encode %s: %v", msgType, err)
		return
	}

	h.mu.Lock()
	for c := range h.members[roomID] {
		if c != except {
			h.deliver(c, data)
		}
	}
	h.mu.Unlock()
}

// deliver assumes h.mu is held.
func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		// Slow client: drop it rather than stall the loop
		close(c.send)
		delete(h.members[c.roomID], c)
	}
}

// Read-side accessors for the HTTP layer.

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.members {
		n += len(clients)
	}
	return n
}

func (h *Hub) RoomCount() int {
	return h.rooms.Count()
}

func (h *Hub) ActiveRooms() map[string]int {
	return h.rooms.ActiveRooms()
}
