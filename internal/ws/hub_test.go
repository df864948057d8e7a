package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Lokiisunny/collabarative-drawing-app/internal/protocol"
	"github.com/Lokiisunny/collabarative-drawing-app/internal/room"
)

func newTestHub() *Hub {
	return NewHub(room.NewManager())
}

func newTestClient(connID, roomID, name string) *Client {
	return &Client{
		send:   make(chan []byte, 64),
		connID: connID,
		roomID: roomID,
		name:   name,
	}
}

// received drains and decodes every queued frame for a client.
func received(t *testing.T, c *Client) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for {
		select {
		case data := <-c.send:
			env, err := protocol.Decode(data)
			if err != nil {
				t.Fatalf("client %s received malformed frame: %v", c.connID, err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func typesOf(envs []protocol.Envelope) []string {
	out := make([]string, len(envs))
	for i, env := range envs {
		out[i] = env.Type
	}
	return out
}

func send(t *testing.T, h *Hub, c *Client, msgType string, payload interface{}) {
	t.Helper()
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", msgType, err)
	}
	h.handleFrame(c, data)
}

func payloadInto(t *testing.T, env protocol.Envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		t.Fatalf("decode %s payload: %v", env.Type, err)
	}
}

func TestRegisterSendsSnapshotFirst(t *testing.T) {
	h := newTestHub()

	a := newTestClient("conn-a", "r1", "alice")
	h.handleRegister(a)

	got := received(t, a)
	if len(got) == 0 || got[0].Type != protocol.TypeRoomState {
		t.Fatalf("first frame must be the room snapshot, got %v", typesOf(got))
	}

	var snap protocol.RoomState
	payloadInto(t, got[0], &snap)
	if snap.You == nil || snap.You.ID != "conn-a" {
		t.Error("snapshot must identify the joining user")
	}
	if len(snap.Users) != 1 {
		t.Errorf("expected roster of 1, got %d", len(snap.Users))
	}
}

func TestJoinBroadcasts(t *testing.T) {
	h := newTestHub()

	a := newTestClient("conn-a", "r1", "alice")
	h.handleRegister(a)
	received(t, a)

	b := newTestClient("conn-b", "r1", "bob")
	h.handleRegister(b)

	aGot := typesOf(received(t, a))
	if len(aGot) != 2 || aGot[0] != protocol.TypeUserJoined || aGot[1] != protocol.TypeRosterUpdated {
		t.Errorf("peer should see userJoined then rosterUpdated, got %v", aGot)
	}

	bGot := typesOf(received(t, b))
	// The joiner gets the snapshot plus the roster update, never its own userJoined
	if len(bGot) != 2 || bGot[0] != protocol.TypeRoomState || bGot[1] != protocol.TypeRosterUpdated {
		t.Errorf("joiner should see roomState then rosterUpdated, got %v", bGot)
	}
}

func TestStrokeLifecycleBroadcasts(t *testing.T) {
	h := newTestHub()
	a := newTestClient("conn-a", "r1", "alice")
	b := newTestClient("conn-b", "r1", "bob")
	h.handleRegister(a)
	h.handleRegister(b)
	received(t, a)
	received(t, b)

	send(t, h, a, protocol.TypeStrokeStart, protocol.StrokeStart{
		StrokeID: "s1", Color: "#FF0000", Width: 3, X: 10, Y: 10,
	})
	send(t, h, a, protocol.TypeStrokePoint, protocol.StrokePoint{StrokeID: "s1", X: 20, Y: 20})
	send(t, h, a, protocol.TypeStrokeEnd, protocol.StrokeEnd{StrokeID: "s1"})

	// The author only hears the end-confirmation
	aGot := received(t, a)
	if len(aGot) != 1 || aGot[0].Type != protocol.TypeStrokeEnded {
		t.Fatalf("author should receive only strokeEnded, got %v", typesOf(aGot))
	}
	var ended protocol.StrokeEnded
	payloadInto(t, aGot[0], &ended)
	if ended.OperationID == "" {
		t.Error("end-confirmation must carry the operation id")
	}
	if ended.Stroke == nil || len(ended.Stroke.Points) != 2 {
		t.Error("end-confirmation must carry the full stroke")
	}

	// The peer sees the whole lifecycle
	bGot := typesOf(received(t, b))
	want := []string{protocol.TypeStrokeStarted, protocol.TypeStrokePointAdded, protocol.TypeStrokeEnded}
	if len(bGot) != len(want) {
		t.Fatalf("expected %v, got %v", want, bGot)
	}
	for i := range want {
		if bGot[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, bGot)
		}
	}
}

func TestStrokePointUnknownIDDropped(t *testing.T) {
	h := newTestHub()
	a := newTestClient("conn-a", "r1", "alice")
	b := newTestClient("conn-b", "r1", "bob")
	h.handleRegister(a)
	h.handleRegister(b)
	received(t, a)
	received(t, b)

	send(t, h, a, protocol.TypeStrokePoint, protocol.StrokePoint{StrokeID: "ghost", X: 1, Y: 1})

	if got := received(t, b); len(got) != 0 {
		t.Errorf("point for unknown stroke must not broadcast, got %v", typesOf(got))
	}
}

func TestUndoRedoBroadcastToEveryone(t *testing.T) {
	h := newTestHub()
	a := newTestClient("conn-a", "r1", "alice")
	b := newTestClient("conn-b", "r1", "bob")
	h.handleRegister(a)
	h.handleRegister(b)

	send(t, h, a, protocol.TypeStrokeStart, protocol.StrokeStart{StrokeID: "s1", X: 1, Y: 1})
	send(t, h, a, protocol.TypeStrokeEnd, protocol.StrokeEnd{StrokeID: "s1"})

	var opID string
	for _, env := range received(t, a) {
		if env.Type == protocol.TypeStrokeEnded {
			var p protocol.StrokeEnded
			payloadInto(t, env, &p)
			opID = p.OperationID
		}
	}
	if opID == "" {
		t.Fatal("author never learned the operation id")
	}
	received(t, b)

	// Peer b undoes a's stroke: collaborative undo-anything
	send(t, h, b, protocol.TypeUndo, protocol.Undo{OperationID: opID})
	aGot := typesOf(received(t, a))
	bGot := typesOf(received(t, b))
	if len(aGot) != 1 || aGot[0] != protocol.TypeUndoApplied {
		t.Errorf("author must see undoApplied, got %v", aGot)
	}
	if len(bGot) != 1 || bGot[0] != protocol.TypeUndoApplied {
		t.Errorf("requester must see undoApplied too, got %v", bGot)
	}

	send(t, h, a, protocol.TypeRedo, protocol.Redo{OperationID: opID})
	if got := typesOf(received(t, b)); len(got) != 1 || got[0] != protocol.TypeRedoApplied {
		t.Errorf("redoApplied must reach everyone, got %v", got)
	}
}

func TestUndoUnknownOperationNoBroadcast(t *testing.T) {
	h := newTestHub()
	a := newTestClient("conn-a", "r1", "alice")
	b := newTestClient("conn-b", "r1", "bob")
	h.handleRegister(a)
	h.handleRegister(b)
	received(t, a)
	received(t, b)

	send(t, h, a, protocol.TypeUndo, protocol.Undo{OperationID: "missing"})
	send(t, h, a, protocol.TypeRedo, protocol.Redo{OperationID: "missing"})

	if got := received(t, b); len(got) != 0 {
		t.Errorf("failed undo/redo must not broadcast, got %v", typesOf(got))
	}
}

func TestClearBroadcast(t *testing.T) {
	h := newTestHub()
	a := newTestClient("conn-a", "r1", "alice")
	b := newTestClient("conn-b", "r1", "bob")
	h.handleRegister(a)
	h.handleRegister(b)
	received(t, a)
	received(t, b)

	send(t, h, a, protocol.TypeClear, nil)

	for _, c := range []*Client{a, b} {
		got := received(t, c)
		if len(got) != 1 || got[0].Type != protocol.TypeCleared {
			t.Fatalf("client %s: expected cleared, got %v", c.connID, typesOf(got))
		}
		var p protocol.Cleared
		payloadInto(t, got[0], &p)
		if p.OperationID == "" || p.UserID != "conn-a" {
			t.Errorf("cleared payload incomplete: %+v", p)
		}
	}
}

func TestCursorMoveExcludesSender(t *testing.T) {
	h := newTestHub()
	a := newTestClient("conn-a", "r1", "alice")
	b := newTestClient("conn-b", "r1", "bob")
	h.handleRegister(a)
	h.handleRegister(b)
	received(t, a)
	received(t, b)

	send(t, h, a, protocol.TypeCursorMove, protocol.CursorMove{X: 5, Y: 6})

	if got := received(t, a); len(got) != 0 {
		t.Errorf("sender must not receive its own cursor, got %v", typesOf(got))
	}
	got := received(t, b)
	if len(got) != 1 || got[0].Type != protocol.TypeCursorMoved {
		t.Fatalf("peer must receive cursorMoved, got %v", typesOf(got))
	}
}

func TestMalformedFrameIgnored(t *testing.T) {
	h := newTestHub()
	a := newTestClient("conn-a", "r1", "alice")
	b := newTestClient("conn-b", "r1", "bob")
	h.handleRegister(a)
	h.handleRegister(b)
	received(t, a)
	received(t, b)

	h.handleFrame(a, []byte("not json"))
	h.handleFrame(a, []byte(`{"type":"strokePoint","payload":{}}`))
	h.handleFrame(a, []byte(`{"type":"noSuchThing"}`))

	if got := received(t, b); len(got) != 0 {
		t.Errorf("malformed frames must not broadcast, got %v", typesOf(got))
	}
	if snap := h.rooms.Find("r1").Snapshot(); len(snap.Strokes) != 0 || len(snap.History) != 0 {
		t.Error("malformed frames must not change room state")
	}
}

func TestUnregisterAbandonsOpenStrokes(t *testing.T) {
	h := newTestHub()
	a := newTestClient("conn-a", "r1", "alice")
	b := newTestClient("conn-b", "r1", "bob")
	h.handleRegister(a)
	h.handleRegister(b)

	send(t, h, a, protocol.TypeStrokeStart, protocol.StrokeStart{StrokeID: "s1", X: 1, Y: 1})
	received(t, a)
	received(t, b)

	h.handleUnregister(a)

	got := typesOf(received(t, b))
	want := []string{protocol.TypeStrokesAbandoned, protocol.TypeUserLeft, protocol.TypeRosterUpdated}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if snap := h.rooms.Find("r1").Snapshot(); len(snap.Strokes) != 0 {
		t.Error("the abandoned stroke must leave the active set")
	}
}

func TestRoomDestroyedWhenEmpty(t *testing.T) {
	h := newTestHub()
	a := newTestClient("conn-a", "r1", "alice")
	h.handleRegister(a)
	received(t, a)

	h.handleUnregister(a)

	if h.rooms.Find("r1") != nil {
		t.Fatal("empty room must be destroyed")
	}
	if h.RoomCount() != 0 || h.ClientCount() != 0 {
		t.Error("counters must drop to zero")
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	h := newTestHub()
	a := newTestClient("conn-a", "r1", "alice")
	b := newTestClient("conn-b", "r2", "bob")
	h.handleRegister(a)
	h.handleRegister(b)
	received(t, a)
	received(t, b)

	send(t, h, a, protocol.TypeStrokeStart, protocol.StrokeStart{StrokeID: "s1", X: 1, Y: 1})

	if got := received(t, b); len(got) != 0 {
		t.Errorf("events must not cross rooms, got %v", typesOf(got))
	}
}

func TestSweepDropsStaleOpenStrokes(t *testing.T) {
	h := newTestHub()
	a := newTestClient("conn-a", "r1", "alice")
	b := newTestClient("conn-b", "r1", "bob")
	h.handleRegister(a)
	h.handleRegister(b)

	send(t, h, a, protocol.TypeStrokeStart, protocol.StrokeStart{StrokeID: "s1", X: 1, Y: 1})
	received(t, a)
	received(t, b)

	// Open stroke just started: a sweep with a generous age keeps it
	h.handleSweep(time.Minute)
	if got := received(t, b); len(got) != 0 {
		t.Fatalf("fresh stroke must survive the sweep, got %v", typesOf(got))
	}

	// Zero age makes everything stale
	h.handleSweep(0)
	got := received(t, b)
	if len(got) != 1 || got[0].Type != protocol.TypeStrokesAbandoned {
		t.Fatalf("expected strokesAbandoned, got %v", typesOf(got))
	}
	if snap := h.rooms.Find("r1").Snapshot(); len(snap.Strokes) != 0 {
		t.Error("swept stroke must leave the active set")
	}
}

func TestRunLoopSerializesMessages(t *testing.T) {
	h := newTestHub()
	go h.Run()

	a := newTestClient("conn-a", "r1", "alice")
	h.register <- a

	data, _ := protocol.Encode(protocol.TypeStrokeStart, protocol.StrokeStart{StrokeID: "s1", X: 1, Y: 1})
	h.inbound <- &frame{client: a, data: data}
	data, _ = protocol.Encode(protocol.TypeStrokeEnd, protocol.StrokeEnd{StrokeID: "s1"})
	h.inbound <- &frame{client: a, data: data}

	time.Sleep(20 * time.Millisecond)

	r := h.rooms.Find("r1")
	if r == nil {
		t.Fatal("room should exist")
	}
	snap := r.Snapshot()
	if len(snap.Strokes) != 1 || !snap.Strokes[0].Closed {
		t.Error("events posted through the loop must apply in order")
	}
}
