// Package protocol defines the wire contract between clients and the relay:
// a JSON envelope with a type tag and a typed payload. The server's drawing
// state is the single authority; every server→client message is derived from
// a confirmed authoritative transition, never from a peer's optimistic state.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/Lokiisunny/collabarative-drawing-app/internal/canvas"
	"github.com/Lokiisunny/collabarative-drawing-app/internal/room"
)

// Client → server
const (
	TypeStrokeStart = "strokeStart"
	TypeStrokePoint = "strokePoint"
	TypeStrokeEnd   = "strokeEnd"
	TypeUndo        = "undo"
	TypeRedo        = "redo"
	TypeClear       = "clear"
	TypeCursorMove  = "cursorMove"
)

// Server → client
const (
	TypeRoomState        = "roomState"
	TypeUserJoined       = "userJoined"
	TypeUserLeft         = "userLeft"
	TypeRosterUpdated    = "rosterUpdated"
	TypeStrokeStarted    = "strokeStarted"
	TypeStrokePointAdded = "strokePointAdded"
	TypeStrokeEnded      = "strokeEnded"
	TypeUndoApplied      = "undoApplied"
	TypeRedoApplied      = "redoApplied"
	TypeCleared          = "cleared"
	TypeCursorMoved      = "cursorMoved"
	TypeStrokesAbandoned = "strokesAbandoned"
)

type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound payloads

type StrokeStart struct {
	StrokeID string      `json:"strokeId,omitempty"`
	Tool     canvas.Tool `json:"tool,omitempty"`
	Color    string      `json:"color,omitempty"`
	Width    float64     `json:"width,omitempty"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
}

type StrokePoint struct {
	StrokeID string  `json:"strokeId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type StrokeEnd struct {
	StrokeID string `json:"strokeId"`
}

type Undo struct {
	OperationID string `json:"operationId"`
}

type Redo struct {
	OperationID string `json:"operationId"`
}

type CursorMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Outbound payloads

// RoomState is the atomic join snapshot, always the first frame a new
// connection receives. A replica must apply it before any incremental
// event.
type RoomState struct {
	You       *room.User          `json:"you"`
	Users     []*room.User        `json:"users"`
	Strokes   []*canvas.Stroke    `json:"strokes"`
	History   []*canvas.Operation `json:"history"`
	RedoStack []*canvas.Operation `json:"redoStack"`
}

type UserJoined struct {
	User *room.User `json:"user"`
}

type UserLeft struct {
	UserID string `json:"userId"`
}

type RosterUpdated struct {
	Users []*room.User `json:"users"`
}

type StrokeStarted struct {
	StrokeID string      `json:"strokeId"`
	UserID   string      `json:"userId"`
	Tool     canvas.Tool `json:"tool"`
	Color    string      `json:"color"`
	Width    float64     `json:"width"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
}

type StrokePointAdded struct {
	StrokeID string  `json:"strokeId"`
	UserID   string  `json:"userId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// StrokeEnded is the end-confirmation. It carries the authoritative
// operation id the author needs before it may request undo, so it goes to
// every member of the room, author included.
type StrokeEnded struct {
	StrokeID    string         `json:"strokeId"`
	OperationID string         `json:"operationId"`
	UserID      string         `json:"userId"`
	Stroke      *canvas.Stroke `json:"stroke"`
}

type UndoApplied struct {
	OperationID string `json:"operationId"`
	UserID      string `json:"userId"`
}

type RedoApplied struct {
	OperationID string `json:"operationId"`
	UserID      string `json:"userId"`
}

type Cleared struct {
	OperationID string `json:"operationId"`
	UserID      string `json:"userId"`
}

type CursorMoved struct {
	UserID string  `json:"userId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type StrokesAbandoned struct {
	StrokeIDs []string `json:"strokeIds"`
}

// Encode wraps a payload in an envelope and marshals it.
func Encode(msgType string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		raw = data
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// Decode parses an envelope without touching the payload.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("envelope missing type")
	}
	return env, nil
}

// DecodePayload unmarshals an envelope payload into dst and checks the
// fields the relay cannot work without. A failed decode rejects the single
// message only; room state is untouched.
func DecodePayload(env Envelope, dst interface{}) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("%s: malformed payload: %w", env.Type, err)
	}
	return validate(env.Type, dst)
}

func validate(msgType string, payload interface{}) error {
	switch p := payload.(type) {
	case *StrokeStart:
		if p.Width < 0 {
			return fmt.Errorf("%s: negative width", msgType)
		}
	case *StrokePoint:
		if p.StrokeID == "" {
			return fmt.Errorf("%s: missing strokeId", msgType)
		}
	case *StrokeEnd:
		if p.StrokeID == "" {
			return fmt.Errorf("%s: missing strokeId", msgType)
		}
	case *Undo:
		if p.OperationID == "" {
			return fmt.Errorf("%s: missing operationId", msgType)
		}
	case *Redo:
		if p.OperationID == "" {
			return fmt.Errorf("%s: missing operationId", msgType)
		}
	}
	return nil
}
