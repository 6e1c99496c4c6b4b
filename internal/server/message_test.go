package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/cardroom/internal/game"
)

func decodeEnvelope(t *testing.T, raw string) (game.Event, error) {
	t.Helper()
	var env EventEnvelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	return env.Event()
}

func TestEventEnvelopeDecoding(t *testing.T) {
	ev, err := decodeEnvelope(t, `{"type":"table","action":"join","playerId":"p1","playerName":"Alice"}`)
	require.NoError(t, err)
	assert.Equal(t, game.Join{PlayerID: "p1", PlayerName: "Alice"}, ev)

	ev, err = decodeEnvelope(t, `{"type":"table","action":"leave","playerId":"p1"}`)
	require.NoError(t, err)
	assert.Equal(t, game.Leave{PlayerID: "p1"}, ev)

	ev, err = decodeEnvelope(t, `{"type":"move","playerId":"p1","move":{"type":"call"}}`)
	require.NoError(t, err)
	assert.Equal(t, game.Call{PlayerID: "p1"}, ev)

	// A check travels as a call with nothing owed.
	ev, err = decodeEnvelope(t, `{"type":"move","playerId":"p1","move":{"type":"check"}}`)
	require.NoError(t, err)
	assert.Equal(t, game.Call{PlayerID: "p1"}, ev)

	ev, err = decodeEnvelope(t, `{"type":"move","playerId":"p1","move":{"type":"fold"}}`)
	require.NoError(t, err)
	assert.Equal(t, game.Fold{PlayerID: "p1"}, ev)

	ev, err = decodeEnvelope(t, `{"type":"move","playerId":"p1","move":{"type":"raise","amount":40}}`)
	require.NoError(t, err)
	assert.Equal(t, game.Raise{PlayerID: "p1", Amount: 40}, ev)
}

func TestEventEnvelopeRejectsMalformed(t *testing.T) {
	cases := []string{
		`{"type":"teleport","playerId":"p1"}`,
		`{"type":"table","action":"dance","playerId":"p1"}`,
		`{"type":"move","playerId":"p1"}`,
		`{"type":"move","playerId":"p1","move":{"type":"bluff"}}`,
	}
	for _, raw := range cases {
		_, err := decodeEnvelope(t, raw)
		assert.ErrorIs(t, err, ErrBadEnvelope, raw)
	}
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, "table_full", errorCode(game.ErrTableFull))
	assert.Equal(t, "not_players_turn", errorCode(game.ErrNotPlayersTurn))
	assert.Equal(t, "invalid_move", errorCode(game.ErrInvalidMove))
	assert.Equal(t, "game_in_progress", errorCode(game.ErrGameAlreadyInProgress))
	assert.Equal(t, "not_enough_players", errorCode(game.ErrNotEnoughPlayers))
	assert.Equal(t, "unknown_player", errorCode(game.ErrUnknownPlayer))
	assert.Equal(t, "invalid_message", errorCode(ErrBadEnvelope))
	assert.Equal(t, "internal_error", errorCode(assert.AnError))
}

func TestNewMessageCarriesPayload(t *testing.T) {
	msg, err := NewMessage(MessageTypeRoomList, RoomListData{Rooms: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, MessageTypeRoomList, msg.Type)
	assert.False(t, msg.Timestamp.IsZero())

	var data RoomListData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, []string{"a", "b"}, data.Rooms)

	empty, err := NewMessage(MessageTypeStreamEnd, nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Data)
}
