package replica

import (
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Lokiisunny/collabarative-drawing-app/internal/canvas"
	"github.com/Lokiisunny/collabarative-drawing-app/internal/protocol"
)

// Session drives a Replica against a live server: it dials the websocket
// endpoint, pumps inbound events into the replica, and turns drawing calls
// into protocol messages.
type Session struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	replica *Replica
	done    chan struct{}
}

// Dial connects to a server's /ws endpoint and joins the given room.
func Dial(serverURL, roomID, name string) (*Session, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("room", roomID)
	q.Set("name", name)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}

	s := &Session{
		conn:    conn,
		replica: New(),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *Session) Close() error {
	return s.conn.Close()
}

// Done is closed when the server connection ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Replica exposes the mirror for rendering. Callers must treat it as
// read-only and may race with the read loop; use View for a consistent read.
func (s *Session) Replica() *Replica {
	return s.replica
}

// View runs fn with the replica locked against the read loop.
func (s *Session) View(fn func(*Replica)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.replica)
}

func (s *Session) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			log.Printf("replica: %v", err)
			continue
		}
		s.mu.Lock()
		if err := s.replica.Apply(env); err != nil {
			log.Printf("replica: %v", err)
		}
		s.mu.Unlock()
	}
}

func (s *Session) write(msgType string, payload interface{}) error {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// StartStroke begins a gesture locally and announces it, proposing the
// locally generated stroke id.
func (s *Session) StartStroke(tool canvas.Tool, color string, width, x, y float64) (*canvas.Stroke, error) {
	s.mu.Lock()
	stroke := s.replica.BeginStroke(tool, color, width, x, y)
	s.mu.Unlock()

	return stroke, s.write(protocol.TypeStrokeStart, protocol.StrokeStart{
		StrokeID: stroke.ID,
		Tool:     stroke.Tool,
		Color:    stroke.Color,
		Width:    stroke.Width,
		X:        x,
		Y:        y,
	})
}

func (s *Session) AddPoint(x, y float64) error {
	s.mu.Lock()
	ok := s.replica.ExtendStroke(x, y)
	var strokeID string
	if ok {
		strokeID = s.replica.current.ID
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no stroke in progress")
	}
	return s.write(protocol.TypeStrokePoint, protocol.StrokePoint{StrokeID: strokeID, X: x, Y: y})
}

func (s *Session) EndStroke() error {
	s.mu.Lock()
	strokeID, ok := s.replica.FinishStroke()
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no stroke in progress")
	}
	return s.write(protocol.TypeStrokeEnd, protocol.StrokeEnd{StrokeID: strokeID})
}

// Undo reverses this user's most recent confirmed operation, optimistically
// locally and authoritatively via the server.
func (s *Session) Undo() error {
	s.mu.Lock()
	opID, ok := s.replica.RequestUndo()
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("nothing to undo")
	}
	return s.write(protocol.TypeUndo, protocol.Undo{OperationID: opID})
}

func (s *Session) Redo() error {
	s.mu.Lock()
	opID, ok := s.replica.RequestRedo()
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("nothing to redo")
	}
	return s.write(protocol.TypeRedo, protocol.Redo{OperationID: opID})
}

func (s *Session) Clear() error {
	return s.write(protocol.TypeClear, nil)
}

func (s *Session) MoveCursor(x, y float64) error {
	return s.write(protocol.TypeCursorMove, protocol.CursorMove{X: x, Y: y})
}
