package canvas

import (
	"time"

	"github.com/google/uuid"
)

// OpKind is the kind of an undoable operation
type OpKind string

const (
	OpDraw  OpKind = "draw"
	OpClear OpKind = "clear"
)

// Operation is one entry in the undoable log. A draw carries a full copy of
// its stroke; a clear carries a snapshot of the active set taken just before
// clearing. An operation lives in either the history or the redo stack,
// never both.
type Operation struct {
	ID       string    `json:"id"`
	Kind     OpKind    `json:"kind"`
	UserID   string    `json:"userId"`
	At       time.Time `json:"at"`
	StrokeID string    `json:"strokeId,omitempty"`
	Stroke   *Stroke   `json:"stroke,omitempty"`
	Previous []*Stroke `json:"previous,omitempty"`
}

// Snapshot is a read-only materialization of the state for late joiners.
type Snapshot struct {
	Strokes   []*Stroke    `json:"strokes"`
	History   []*Operation `json:"history"`
	RedoStack []*Operation `json:"redoStack"`
}

// State is the authoritative drawing state of one room: the active stroke
// set, the append-ordered operation history, and the redo stack. It is not
// safe for concurrent use; the hub goroutine is its sole mutator.
type State struct {
	strokes map[string]*Stroke
	order   []string // insertion order of active strokes
	history []*Operation
	redo    []*Operation

	maxStrokePoints int
	maxHistory      int
}

const (
	DefaultMaxStrokePoints = 10000
	DefaultMaxHistory      = 1000
)

func NewState() *State {
	return &State{
		strokes:         make(map[string]*Stroke),
		maxStrokePoints: DefaultMaxStrokePoints,
		maxHistory:      DefaultMaxHistory,
	}
}

// StartStroke opens a new stroke in the active set. It never fails: missing
// fields take defaults, an empty or colliding proposed id is replaced with a
// fresh one, and erasers are forced to the background color. History is not
// touched until the stroke ends.
func (s *State) StartStroke(userID string, req StartRequest) *Stroke {
	id := req.StrokeID
	if id == "" {
		id = uuid.NewString()
	}
	if _, taken := s.strokes[id]; taken {
		id = uuid.NewString()
	}

	tool := req.Tool
	if tool != ToolEraser {
		tool = ToolBrush
	}
	color := req.Color
	if color == "" {
		color = DefaultColor
	}
	if tool == ToolEraser {
		color = BackgroundColor
	}
	width := req.Width
	if width <= 0 {
		width = DefaultWidth
	}

	stroke := &Stroke{
		ID:        id,
		UserID:    userID,
		Tool:      tool,
		Color:     color,
		Width:     width,
		Points:    []Point{{X: req.X, Y: req.Y}},
		StartedAt: time.Now(),
	}
	s.insert(stroke)
	return stroke
}

// AddPoint appends to an open stroke. Unknown ids, closed strokes, and
// over-long strokes are silently ignored: late or reordered delivery makes
// such references routine, not exceptional.
func (s *State) AddPoint(strokeID string, p Point) bool {
	stroke, ok := s.strokes[strokeID]
	if !ok || stroke.Closed {
		return false
	}
	if len(stroke.Points) >= s.maxStrokePoints {
		return false
	}
	stroke.Points = append(stroke.Points, p)
	return true
}

// EndStroke closes a stroke and logs a draw operation carrying a deep copy
// of it. Ending an unknown or already-closed stroke is a no-op; the logged
// end is terminal. Starting a new forward timeline invalidates previously
// undone futures, so the redo stack is cleared.
func (s *State) EndStroke(strokeID string) (*Operation, *Stroke) {
	stroke, ok := s.strokes[strokeID]
	if !ok || stroke.Closed {
		return nil, nil
	}
	stroke.Closed = true

	op := &Operation{
		ID:       uuid.NewString(),
		Kind:     OpDraw,
		UserID:   stroke.UserID,
		At:       time.Now(),
		StrokeID: stroke.ID,
		Stroke:   stroke.Copy(),
	}
	s.appendHistory(op)
	s.redo = nil
	return op, stroke
}

// Undo reverses the operation with the given id, wherever it sits in the
// history. Draws remove their stroke from the active set; clears restore the
// pre-clear snapshot. The operation moves to the redo stack. Returns false,
// with no state change, if the id is not in the history.
func (s *State) Undo(operationID string) bool {
	idx := findOp(s.history, operationID)
	if idx < 0 {
		return false
	}
	op := s.history[idx]

	switch op.Kind {
	case OpDraw:
		s.remove(op.StrokeID)
	case OpClear:
		s.replaceActive(op.Previous)
	}

	s.history = append(s.history[:idx], s.history[idx+1:]...)
	s.redo = append(s.redo, op)
	return true
}

// Redo reapplies an undone operation and moves it back into the history.
// Draw payloads travel with the operation, so the stroke is re-inserted
// byte-identical even though it was absent from the active set.
func (s *State) Redo(operationID string) bool {
	idx := findOp(s.redo, operationID)
	if idx < 0 {
		return false
	}
	op := s.redo[idx]

	switch op.Kind {
	case OpDraw:
		s.insert(op.Stroke.Copy())
	case OpClear:
		op.Previous = s.activeCopies()
		s.clearActive()
	}

	s.redo = append(s.redo[:idx], s.redo[idx+1:]...)
	s.appendHistory(op)
	return true
}

// Clear empties the active set, logging a clear operation that carries the
// snapshot needed to undo it. Always succeeds.
func (s *State) Clear(userID string) string {
	op := &Operation{
		ID:       uuid.NewString(),
		Kind:     OpClear,
		UserID:   userID,
		At:       time.Now(),
		Previous: s.activeCopies(),
	}
	s.clearActive()
	s.appendHistory(op)
	s.redo = nil
	return op.ID
}

// Snapshot materializes the current state for a late joiner. Everything is
// deep-copied so the snapshot stays consistent while the state moves on.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Strokes:   s.activeCopies(),
		History:   make([]*Operation, len(s.history)),
		RedoStack: make([]*Operation, len(s.redo)),
	}
	copy(snap.History, s.history)
	copy(snap.RedoStack, s.redo)
	return snap
}

// Abandon drops every still-open stroke owned by userID without recording
// history. Used when a connection disappears mid-gesture.
func (s *State) Abandon(userID string) []string {
	var dropped []string
	for _, id := range append([]string(nil), s.order...) {
		stroke := s.strokes[id]
		if stroke.UserID == userID && !stroke.Closed {
			s.remove(id)
			dropped = append(dropped, id)
		}
	}
	return dropped
}

// AbandonOlderThan drops open strokes whose gesture started more than age
// ago, regardless of owner.
func (s *State) AbandonOlderThan(age time.Duration) []string {
	cutoff := time.Now().Add(-age)
	var dropped []string
	for _, id := range append([]string(nil), s.order...) {
		stroke := s.strokes[id]
		if !stroke.Closed && stroke.StartedAt.Before(cutoff) {
			s.remove(id)
			dropped = append(dropped, id)
		}
	}
	return dropped
}

// StrokeCount reports the size of the active set, open strokes included.
func (s *State) StrokeCount() int {
	return len(s.strokes)
}

func (s *State) insert(stroke *Stroke) {
	if _, ok := s.strokes[stroke.ID]; !ok {
		s.order = append(s.order, stroke.ID)
	}
	s.strokes[stroke.ID] = stroke
}

func (s *State) remove(strokeID string) {
	if _, ok := s.strokes[strokeID]; !ok {
		return
	}
	delete(s.strokes, strokeID)
	for i, id := range s.order {
		if id == strokeID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *State) clearActive() {
	s.strokes = make(map[string]*Stroke)
	s.order = nil
}

func (s *State) replaceActive(strokes []*Stroke) {
	s.clearActive()
	for _, stroke := range strokes {
		s.insert(stroke.Copy())
	}
}

func (s *State) activeCopies() []*Stroke {
	out := make([]*Stroke, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.strokes[id].Copy())
	}
	return out
}

// Oldest history entries fall off the log once the cap is hit; they simply
// become permanent.
func (s *State) appendHistory(op *Operation) {
	s.history = append(s.history, op)
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
}

func findOp(ops []*Operation, id string) int {
	for i, op := range ops {
		if op.ID == id {
			return i
		}
	}
	return -1
}
