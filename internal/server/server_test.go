package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/cardroom/internal/game"
	"github.com/cardroom/cardroom/internal/room"
)

// newWSClient spins up a server over a real listener and dials one
// websocket client against it.
func newWSClient(t *testing.T) (*httptest.Server, *websocket.Conn) {
	t.Helper()

	cfg := DefaultConfig()
	logger := log.New(io.Discard)
	rooms := room.NewManager(cfg.TableConfig(), logger, room.WithSeed(func() int64 { return 1 }))
	srv := New(cfg, rooms, logger)

	ts := httptest.NewServer(srv.http.Handler)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return ts, conn
}

func send(t *testing.T, conn *websocket.Conn, msg Message) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func sendEvent(t *testing.T, conn *websocket.Conn, roomID, requestID string, env EventEnvelope) {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	send(t, conn, Message{
		Type:      MessageTypeProcessEvent,
		RoomID:    roomID,
		RequestID: requestID,
		Data:      data,
	})
}

// readUntil reads frames until pred accepts one, failing on timeout.
func readUntil(t *testing.T, conn *websocket.Conn, pred func(Message) bool) Message {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg), "timed out waiting for frame")
		if pred(msg) {
			return msg
		}
	}
}

func stateOf(t *testing.T, msg Message) game.TableState {
	t.Helper()
	var s game.TableState
	require.NoError(t, json.Unmarshal(msg.Data, &s))
	return s
}

func TestUnknownRoomQueries(t *testing.T) {
	_, conn := newWSClient(t)

	send(t, conn, Message{Type: MessageTypeCurrentState, RoomID: "ghost", RequestID: "q1"})
	msg := readUntil(t, conn, func(m Message) bool { return m.RequestID == "q1" })
	require.Equal(t, MessageTypeError, msg.Type)

	var ed ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &ed))
	assert.Equal(t, "room_not_found", ed.Code)

	// A non-join event must not create the room either.
	sendEvent(t, conn, "ghost", "q2", EventEnvelope{
		Type: "move", PlayerID: "p1", Move: &MovePayload{Type: "fold"},
	})
	msg = readUntil(t, conn, func(m Message) bool { return m.RequestID == "q2" })
	require.Equal(t, MessageTypeError, msg.Type)
	require.NoError(t, json.Unmarshal(msg.Data, &ed))
	assert.Equal(t, "room_not_found", ed.Code)

	// Neither does a subscribe.
	send(t, conn, Message{Type: MessageTypeSubscribe, RoomID: "ghost", RequestID: "q3"})
	msg = readUntil(t, conn, func(m Message) bool { return m.RequestID == "q3" })
	require.Equal(t, MessageTypeError, msg.Type)
	require.NoError(t, json.Unmarshal(msg.Data, &ed))
	assert.Equal(t, "room_not_found", ed.Code)

	send(t, conn, Message{Type: MessageTypeListRooms, RequestID: "q4"})
	msg = readUntil(t, conn, func(m Message) bool { return m.RequestID == "q4" })
	require.Equal(t, MessageTypeRoomList, msg.Type)
	var rooms RoomListData
	require.NoError(t, json.Unmarshal(msg.Data, &rooms))
	assert.Empty(t, rooms.Rooms, "failed queries must not mint rooms")
}

func TestJoinCreatesRoomAndReturnsState(t *testing.T) {
	_, conn := newWSClient(t)

	sendEvent(t, conn, "lobby", "r1", EventEnvelope{
		Type: "table", Action: "join", PlayerID: "p1", PlayerName: "Alice",
	})
	msg := readUntil(t, conn, func(m Message) bool { return m.RequestID == "r1" })
	require.Equal(t, MessageTypeState, msg.Type)
	assert.Equal(t, "lobby", msg.RoomID)

	s := stateOf(t, msg)
	assert.Equal(t, game.StatusWaiting, s.Status)
	require.Len(t, s.Players, 1)
	assert.Equal(t, "Alice", s.Players[0].Name)

	send(t, conn, Message{Type: MessageTypeListRooms, RequestID: "r2"})
	msg = readUntil(t, conn, func(m Message) bool { return m.RequestID == "r2" })
	require.Equal(t, MessageTypeRoomList, msg.Type)
	var rooms RoomListData
	require.NoError(t, json.Unmarshal(msg.Data, &rooms))
	assert.Equal(t, []string{"lobby"}, rooms.Rooms)
}

func TestSubscribeStreamsGame(t *testing.T) {
	_, conn := newWSClient(t)

	sendEvent(t, conn, "r1", "j1", EventEnvelope{
		Type: "table", Action: "join", PlayerID: "p1",
	})
	readUntil(t, conn, func(m Message) bool { return m.RequestID == "j1" })

	send(t, conn, Message{Type: MessageTypeSubscribe, RoomID: "r1", RequestID: "sub"})
	initial := readUntil(t, conn, func(m Message) bool { return m.RequestID == "sub" })
	require.Equal(t, MessageTypeState, initial.Type)
	assert.Equal(t, game.StatusWaiting, stateOf(t, initial).Status)

	sendEvent(t, conn, "r1", "", EventEnvelope{
		Type: "table", Action: "join", PlayerID: "p2",
	})
	readUntil(t, conn, func(m Message) bool {
		return m.Type == MessageTypeState && len(stateOf(t, m).Players) == 2
	})

	send(t, conn, Message{Type: MessageTypeStartGame, RoomID: "r1"})
	playing := readUntil(t, conn, func(m Message) bool {
		return m.Type == MessageTypeState && stateOf(t, m).Status == game.StatusPlaying
	})

	s := stateOf(t, playing)
	assert.Equal(t, 1, s.Round.Number)
	assert.Equal(t, game.PreFlop, s.Phase.Street)
	// Broadcast snapshots expose every hole card; per-player redaction
	// happens only in player views.
	for _, p := range s.Players {
		assert.Len(t, p.HoleCards, 2)
	}

	// Play a move and watch it stream back.
	actor := s.Players[s.CurrentIndex].ID
	sendEvent(t, conn, "r1", "", EventEnvelope{
		Type: "move", PlayerID: actor, Move: &MovePayload{Type: "call"},
	})
	readUntil(t, conn, func(m Message) bool {
		if m.Type != MessageTypeState {
			return false
		}
		st := stateOf(t, m)
		return st.LastMove != nil && st.LastMove.PlayerID == actor
	})
}

func TestPlayerViewRedactsOpponents(t *testing.T) {
	_, conn := newWSClient(t)

	for _, id := range []string{"p1", "p2"} {
		sendEvent(t, conn, "r1", "", EventEnvelope{Type: "table", Action: "join", PlayerID: id})
		readUntil(t, conn, func(m Message) bool { return m.Type == MessageTypeState })
	}
	send(t, conn, Message{Type: MessageTypeStartGame, RoomID: "r1"})

	data, err := json.Marshal(PlayerViewRequest{PlayerID: "p2"})
	require.NoError(t, err)
	send(t, conn, Message{Type: MessageTypePlayerView, RoomID: "r1", RequestID: "v1", Data: data})

	msg := readUntil(t, conn, func(m Message) bool { return m.RequestID == "v1" })
	require.Equal(t, MessageTypeView, msg.Type)

	var view game.PlayerView
	require.NoError(t, json.Unmarshal(msg.Data, &view))
	assert.Equal(t, "p2", view.ViewerID)
	for _, p := range view.Players {
		if p.ID == "p2" {
			assert.Len(t, p.HoleCards, 2)
		} else {
			assert.Empty(t, p.HoleCards)
		}
	}
}

func TestRejectedMoveReturnsErrorFrame(t *testing.T) {
	_, conn := newWSClient(t)

	for _, id := range []string{"p1", "p2"} {
		sendEvent(t, conn, "r1", "", EventEnvelope{Type: "table", Action: "join", PlayerID: id})
		readUntil(t, conn, func(m Message) bool { return m.Type == MessageTypeState })
	}
	send(t, conn, Message{Type: MessageTypeStartGame, RoomID: "r1"})
	playing := readUntil(t, conn, func(m Message) bool {
		return m.Type == MessageTypeState && stateOf(t, m).Status == game.StatusPlaying
	})

	s := stateOf(t, playing)
	outOfTurn := s.Players[(s.CurrentIndex+1)%len(s.Players)].ID
	sendEvent(t, conn, "r1", "bad", EventEnvelope{
		Type: "move", PlayerID: outOfTurn, Move: &MovePayload{Type: "call"},
	})

	msg := readUntil(t, conn, func(m Message) bool { return m.RequestID == "bad" })
	require.Equal(t, MessageTypeError, msg.Type)
	var ed ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &ed))
	assert.Equal(t, "not_players_turn", ed.Code)
}

func TestHealthEndpoint(t *testing.T) {
	ts, conn := newWSClient(t)
	_ = conn

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}
