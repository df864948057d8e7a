package ws

import (
	"log"

	"github.com/Lokiisunny/collabarative-drawing-app/internal/canvas"
	"github.com/Lokiisunny/collabarative-drawing-app/internal/protocol"
)

// handleFrame applies one inbound client message to the room's drawing
// state and broadcasts the confirmed transition. Unknown references are
// silent no-ops; a malformed frame fails alone, logged, without touching
// room state or the connection.
func (h *Hub) handleFrame(c *Client, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Printf("client %s: %v", c.connID, err)
		return
	}

	r := h.rooms.Find(c.roomID)
	if r == nil {
		return
	}

	switch env.Type {
	case protocol.TypeStrokeStart:
		var p protocol.StrokeStart
		if err := protocol.DecodePayload(env, &p); err != nil {
			log.Printf("client %s: %v", c.connID, err)
			return
		}
		stroke := r.StartStroke(c.connID, canvas.StartRequest{
			StrokeID: p.StrokeID,
			Tool:     p.Tool,
			Color:    p.Color,
			Width:    p.Width,
			X:        p.X,
			Y:        p.Y,
		})
		h.broadcast(c.roomID, c, protocol.TypeStrokeStarted, protocol.StrokeStarted{
			StrokeID: stroke.ID,
			UserID:   c.connID,
			Tool:     stroke.Tool,
			Color:    stroke.Color,
			Width:    stroke.Width,
			X:        p.X,
			Y:        p.Y,
		})

	case protocol.TypeStrokePoint:
		var p protocol.StrokePoint
		if err := protocol.DecodePayload(env, &p); err != nil {
			log.Printf("client %s: %v", c.connID, err)
			return
		}
		if !r.AddPoint(p.StrokeID, canvas.Point{X: p.X, Y: p.Y}) {
			return
		}
		h.broadcast(c.roomID, c, protocol.TypeStrokePointAdded, protocol.StrokePointAdded{
			StrokeID: p.StrokeID,
			UserID:   c.connID,
			X:        p.X,
			Y:        p.Y,
		})

	case protocol.TypeStrokeEnd:
		var p protocol.StrokeEnd
		if err := protocol.DecodePayload(env, &p); err != nil {
			log.Printf("client %s: %v", c.connID, err)
			return
		}
		op, stroke := r.EndStroke(p.StrokeID)
		if op == nil {
			return
		}
		// End-confirmation goes to the author too: it carries the
		// operation id needed to undo this stroke.
		h.broadcast(c.roomID, nil, protocol.TypeStrokeEnded, protocol.StrokeEnded{
			StrokeID:    stroke.ID,
			OperationID: op.ID,
			UserID:      stroke.UserID,
			Stroke:      op.Stroke,
		})

	case protocol.TypeUndo:
		var p protocol.Undo
		if err := protocol.DecodePayload(env, &p); err != nil {
			log.Printf("client %s: %v", c.connID, err)
			return
		}
		if !r.Undo(p.OperationID) {
			return
		}
		h.broadcast(c.roomID, nil, protocol.TypeUndoApplied, protocol.UndoApplied{
			OperationID: p.OperationID,
			UserID:      c.connID,
		})

	case protocol.TypeRedo:
		var p protocol.Redo
		if err := protocol.DecodePayload(env, &p); err != nil {
			log.Printf("client %s: %v", c.connID, err)
			return
		}
		if !r.Redo(p.OperationID) {
			return
		}
		h.broadcast(c.roomID, nil, protocol.TypeRedoApplied, protocol.RedoApplied{
			OperationID: p.OperationID,
			UserID:      c.connID,
		})

	case protocol.TypeClear:
		opID := r.Clear(c.connID)
		h.broadcast(c.roomID, nil, protocol.TypeCleared, protocol.Cleared{
			OperationID: opID,
			UserID:      c.connID,
		})

	case protocol.TypeCursorMove:
		var p protocol.CursorMove
		if err := protocol.DecodePayload(env, &p); err != nil {
			log.Printf("client %s: %v", c.connID, err)
			return
		}
		h.broadcast(c.roomID, c, protocol.TypeCursorMoved, protocol.CursorMoved{
			UserID: c.connID,
			X:      p.X,
			Y:      p.Y,
		})

	default:
		log.Printf("client %s: unknown message type %q", c.connID, env.Type)
	}
}
