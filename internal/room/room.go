package room

import (
	"fmt"
	"time"

	"github.com/Lokiisunny/collabarative-drawing-app/internal/canvas"
)

// Colors handed out to joining users, round-robin by join position.
// Departures do not free a color, so serialized joins never collide.
var userColors = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A",
	"#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E2",
	"#F8B739", "#E74C3C", "#3498DB", "#2ECC71",
}

type User struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Room binds one authoritative drawing state to the set of connected users.
// It is a thin façade: every stroke/undo/redo/clear call is scoped to this
// room's state. Not safe for concurrent use; the hub serializes access.
type Room struct {
	ID        string
	users     map[string]*User
	order     []string
	joined    int
	state     *canvas.State
	CreatedAt time.Time
}

func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		users:     make(map[string]*User),
		state:     canvas.NewState(),
		CreatedAt: time.Now(),
	}
}

// Join adds a connection to the roster and assigns it a palette color.
func (r *Room) Join(connID, name string) *User {
	r.joined++
	if name == "" {
		name = fmt.Sprintf("User %d", r.joined)
	}
	user := &User{
		ID:       connID,
		Name:     name,
		Color:    userColors[len(r.users)%len(userColors)],
		JoinedAt: time.Now(),
	}
	r.users[connID] = user
	r.order = append(r.order, connID)
	return user
}

func (r *Room) Leave(connID string) bool {
	if _, ok := r.users[connID]; !ok {
		return false
	}
	delete(r.users, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Room) User(connID string) *User {
	return r.users[connID]
}

// Roster returns the users in join order.
func (r *Room) Roster() []*User {
	out := make([]*User, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.users[id])
	}
	return out
}

func (r *Room) Empty() bool {
	return len(r.users) == 0
}

func (r *Room) UserCount() int {
	return len(r.users)
}

// Drawing state pass-through

func (r *Room) StartStroke(userID string, req canvas.StartRequest) *canvas.Stroke {
	return r.state.StartStroke(userID, req)
}

func (r *Room) AddPoint(strokeID string, p canvas.Point) bool {
	return r.state.AddPoint(strokeID, p)
}

func (r *Room) EndStroke(strokeID string) (*canvas.Operation, *canvas.Stroke) {
	return r.state.EndStroke(strokeID)
}

func (r *Room) Undo(operationID string) bool {
	return r.state.Undo(operationID)
}

func (r *Room) Redo(operationID string) bool {
	return r.state.Redo(operationID)
}

func (r *Room) Clear(userID string) string {
	return r.state.Clear(userID)
}

func (r *Room) Snapshot() canvas.Snapshot {
	return r.state.Snapshot()
}

func (r *Room) AbandonStrokes(userID string) []string {
	return r.state.Abandon(userID)
}

func (r *Room) AbandonStrokesOlderThan(age time.Duration) []string {
	return r.state.AbandonOlderThan(age)
}
