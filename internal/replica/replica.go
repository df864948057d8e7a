// Package replica implements the client-side mirror of a room's
// authoritative drawing state. Strokes authored locally render
// optimistically, before server confirmation; strokes from peers mutate
// only on inbound events. A local entry is superseded, never merged, by the
// authoritative echo carrying the same stroke id.
package replica

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Lokiisunny/collabarative-drawing-app/internal/canvas"
	"github.com/Lokiisunny/collabarative-drawing-app/internal/protocol"
	"github.com/Lokiisunny/collabarative-drawing-app/internal/room"
)

// operation is the replica's record of a confirmed, undoable action. For a
// clear, strokes holds the pre-clear visible set so an undo can restore it.
type operation struct {
	id      string
	kind    canvas.OpKind
	mine    bool
	stroke  *canvas.Stroke
	strokes []*canvas.Stroke
}

type Replica struct {
	userID string

	local  map[string]*canvas.Stroke
	remote map[string]*canvas.Stroke

	current *canvas.Stroke

	ops     map[string]*operation
	history []string // confirmed operation ids, oldest first
	redo    []string

	roster  []*room.User
	cursors map[string]canvas.Point
	ready   bool
}

func New() *Replica {
	return &Replica{
		local:   make(map[string]*canvas.Stroke),
		remote:  make(map[string]*canvas.Stroke),
		ops:     make(map[string]*operation),
		cursors: make(map[string]canvas.Point),
	}
}

// UserID is the server-assigned identity, known once the join snapshot has
// been applied.
func (r *Replica) UserID() string { return r.userID }

// Ready reports whether the join snapshot has been applied. Incremental
// events arriving before it are rejected, since the replica would be
// drawing on top of an incomplete base.
func (r *Replica) Ready() bool { return r.ready }

func (r *Replica) Roster() []*room.User { return r.roster }

func (r *Replica) Cursor(userID string) (canvas.Point, bool) {
	p, ok := r.cursors[userID]
	return p, ok
}

// BeginStroke opens a local stroke and renders it immediately. The returned
// stroke carries the id to propose in the strokeStart message.
func (r *Replica) BeginStroke(tool canvas.Tool, color string, width, x, y float64) *canvas.Stroke {
	if tool != canvas.ToolEraser {
		tool = canvas.ToolBrush
	}
	if color == "" {
		color = canvas.DefaultColor
	}
	if tool == canvas.ToolEraser {
		color = canvas.BackgroundColor
	}
	if width <= 0 {
		width = canvas.DefaultWidth
	}
	stroke := &canvas.Stroke{
		ID:     uuid.NewString(),
		UserID: r.userID,
		Tool:   tool,
		Color:  color,
		Width:  width,
		Points: []canvas.Point{{X: x, Y: y}},
	}
	r.local[stroke.ID] = stroke
	r.current = stroke
	return stroke
}

// ExtendStroke appends to the in-progress local stroke.
func (r *Replica) ExtendStroke(x, y float64) bool {
	if r.current == nil {
		return false
	}
	r.current.Points = append(r.current.Points, canvas.Point{X: x, Y: y})
	return true
}

// FinishStroke closes the in-progress stroke locally. The stroke stays
// optimistic until the strokeEnded confirmation supersedes it and supplies
// the operation id.
func (r *Replica) FinishStroke() (string, bool) {
	if r.current == nil {
		return "", false
	}
	id := r.current.ID
	r.current.Closed = true
	r.current = nil
	return id, true
}

// UndoableOperation returns the most recent confirmed operation authored by
// this user, the only thing a local undo may legally address.
func (r *Replica) UndoableOperation() (string, bool) {
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.ops[r.history[i]].mine {
			return r.history[i], true
		}
	}
	return "", false
}

// RedoableOperation returns the most recently undone own operation.
func (r *Replica) RedoableOperation() (string, bool) {
	for i := len(r.redo) - 1; i >= 0; i-- {
		if r.ops[r.redo[i]].mine {
			return r.redo[i], true
		}
	}
	return "", false
}

// RequestUndo applies the undo optimistically and returns the operation id
// to send. The authoritative undoApplied echo is idempotent on top of it.
func (r *Replica) RequestUndo() (string, bool) {
	id, ok := r.UndoableOperation()
	if !ok {
		return "", false
	}
	r.applyUndo(id)
	return id, true
}

func (r *Replica) RequestRedo() (string, bool) {
	id, ok := r.RedoableOperation()
	if !ok {
		return "", false
	}
	r.applyRedo(id)
	return id, true
}

// VisibleStrokes merges the optimistic and confirmed sets.
func (r *Replica) VisibleStrokes() []*canvas.Stroke {
	out := make([]*canvas.Stroke, 0, len(r.local)+len(r.remote))
	for _, s := range r.remote {
		out = append(out, s)
	}
	for _, s := range r.local {
		out = append(out, s)
	}
	return out
}

func (r *Replica) StrokeCount() int {
	return len(r.local) + len(r.remote)
}

// Apply folds one server event into the mirror.
func (r *Replica) Apply(env protocol.Envelope) error {
	if !r.ready && env.Type != protocol.TypeRoomState {
		return fmt.Errorf("received %s before the join snapshot", env.Type)
	}

	switch env.Type {
	case protocol.TypeRoomState:
		var p protocol.RoomState
		if err := protocol.DecodePayload(env, &p); err != nil {
			return err
		}
		r.reset()
		if p.You != nil {
			r.userID = p.You.ID
		}
		r.roster = p.Users
		for _, s := range p.Strokes {
			r.remote[s.ID] = s
		}
		for _, op := range p.History {
			r.recordOperation(op, false)
		}
		for _, op := range p.RedoStack {
			r.recordOperation(op, true)
		}
		r.ready = true

	case protocol.TypeStrokeStarted:
		var p protocol.StrokeStarted
		if err := protocol.DecodePayload(env, &p); err != nil {
			return err
		}
		r.remote[p.StrokeID] = &canvas.Stroke{
			ID:     p.StrokeID,
			UserID: p.UserID,
			Tool:   p.Tool,
			Color:  p.Color,
			Width:  p.Width,
			Points: []canvas.Point{{X: p.X, Y: p.Y}},
		}

	case protocol.TypeStrokePointAdded:
		var p protocol.StrokePointAdded
		if err := protocol.DecodePayload(env, &p); err != nil {
			return err
		}
		if s, ok := r.remote[p.StrokeID]; ok && !s.Closed {
			s.Points = append(s.Points, canvas.Point{X: p.X, Y: p.Y})
		}

	case protocol.TypeStrokeEnded:
		var p protocol.StrokeEnded
		if err := protocol.DecodePayload(env, &p); err != nil {
			return err
		}
		if p.Stroke == nil {
			return fmt.Errorf("strokeEnded without stroke payload")
		}
		mine := p.UserID == r.userID
		if mine {
			// Authoritative echo supersedes the optimistic entry
			r.local[p.StrokeID] = p.Stroke
		} else {
			r.remote[p.StrokeID] = p.Stroke
		}
		r.ops[p.OperationID] = &operation{
			id:     p.OperationID,
			kind:   canvas.OpDraw,
			mine:   mine,
			stroke: p.Stroke,
		}
		r.history = append(r.history, p.OperationID)
		r.redo = nil

	case protocol.TypeUndoApplied:
		var p protocol.UndoApplied
		if err := protocol.DecodePayload(env, &p); err != nil {
			return err
		}
		r.applyUndo(p.OperationID)

	case protocol.TypeRedoApplied:
		var p protocol.RedoApplied
		if err := protocol.DecodePayload(env, &p); err != nil {
			return err
		}
		r.applyRedo(p.OperationID)

	case protocol.TypeCleared:
		var p protocol.Cleared
		if err := protocol.DecodePayload(env, &p); err != nil {
			return err
		}
		// Snapshot the visible set first so an undo can restore it
		r.ops[p.OperationID] = &operation{
			id:      p.OperationID,
			kind:    canvas.OpClear,
			mine:    p.UserID == r.userID,
			strokes: r.VisibleStrokes(),
		}
		r.local = make(map[string]*canvas.Stroke)
		r.remote = make(map[string]*canvas.Stroke)
		r.current = nil
		r.history = append(r.history, p.OperationID)
		r.redo = nil

	case protocol.TypeStrokesAbandoned:
		var p protocol.StrokesAbandoned
		if err := protocol.DecodePayload(env, &p); err != nil {
			return err
		}
		for _, id := range p.StrokeIDs {
			delete(r.local, id)
			delete(r.remote, id)
		}

	case protocol.TypeUserJoined:
		var p protocol.UserJoined
		if err := protocol.DecodePayload(env, &p); err != nil {
			return err
		}

	case protocol.TypeUserLeft:
		var p protocol.UserLeft
		if err := protocol.DecodePayload(env, &p); err != nil {
			return err
		}
		delete(r.cursors, p.UserID)

	case protocol.TypeRosterUpdated:
		var p protocol.RosterUpdated
		if err := protocol.DecodePayload(env, &p); err != nil {
			return err
		}
		r.roster = p.Users

	case protocol.TypeCursorMoved:
		var p protocol.CursorMoved
		if err := protocol.DecodePayload(env, &p); err != nil {
			return err
		}
		r.cursors[p.UserID] = canvas.Point{X: p.X, Y: p.Y}

	default:
		return fmt.Errorf("unknown event type %q", env.Type)
	}
	return nil
}

func (r *Replica) applyUndo(operationID string) bool {
	op, ok := r.ops[operationID]
	if !ok || !contains(r.history, operationID) {
		return false
	}

	switch op.kind {
	case canvas.OpDraw:
		delete(r.local, op.stroke.ID)
		delete(r.remote, op.stroke.ID)
	case canvas.OpClear:
		r.restore(op.strokes)
	}

	r.history = removeID(r.history, operationID)
	r.redo = append(r.redo, operationID)
	return true
}

func (r *Replica) applyRedo(operationID string) bool {
	op, ok := r.ops[operationID]
	if !ok || !contains(r.redo, operationID) {
		return false
	}

	switch op.kind {
	case canvas.OpDraw:
		r.place(op.stroke, op.mine)
	case canvas.OpClear:
		op.strokes = r.VisibleStrokes()
		r.local = make(map[string]*canvas.Stroke)
		r.remote = make(map[string]*canvas.Stroke)
	}

	r.redo = removeID(r.redo, operationID)
	r.history = append(r.history, operationID)
	return true
}

// recordOperation rebuilds the operation log from a join snapshot.
func (r *Replica) recordOperation(op *canvas.Operation, undone bool) {
	rec := &operation{
		id:      op.ID,
		kind:    op.Kind,
		stroke:  op.Stroke,
		strokes: op.Previous,
	}
	r.ops[op.ID] = rec
	if undone {
		r.redo = append(r.redo, op.ID)
	} else {
		r.history = append(r.history, op.ID)
	}
}

func (r *Replica) place(s *canvas.Stroke, mine bool) {
	if mine {
		r.local[s.ID] = s
	} else {
		r.remote[s.ID] = s
	}
}

func (r *Replica) restore(strokes []*canvas.Stroke) {
	r.local = make(map[string]*canvas.Stroke)
	r.remote = make(map[string]*canvas.Stroke)
	for _, s := range strokes {
		r.place(s, s.UserID == r.userID)
	}
}

func (r *Replica) reset() {
	r.local = make(map[string]*canvas.Stroke)
	r.remote = make(map[string]*canvas.Stroke)
	r.ops = make(map[string]*operation)
	r.cursors = make(map[string]canvas.Point)
	r.history = nil
	r.redo = nil
	r.current = nil
	r.roster = nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
