package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cardroom/cardroom/internal/game"
)

// MessageType identifies a websocket frame's purpose.
type MessageType string

const (
	// Client to server.
	MessageTypeCurrentState MessageType = "current_state"
	MessageTypePlayerView   MessageType = "player_view"
	MessageTypeProcessEvent MessageType = "process_event"
	MessageTypeStartGame    MessageType = "start_game"
	MessageTypeSubscribe    MessageType = "subscribe"
	MessageTypeUnsubscribe  MessageType = "unsubscribe"
	MessageTypeListRooms    MessageType = "list_rooms"

	// Server to client.
	MessageTypeState     MessageType = "state"
	MessageTypeView      MessageType = "view"
	MessageTypeRoomList  MessageType = "room_list"
	MessageTypeStreamEnd MessageType = "stream_end"
	MessageTypeError     MessageType = "error"
)

func (t MessageType) String() string { return string(t) }

// Message is the envelope for every frame in both directions. RequestID
// is echoed back so clients can correlate replies.
type Message struct {
	Type      MessageType     `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps a payload in an envelope.
func NewMessage(t MessageType, payload any) (*Message, error) {
	msg := &Message{Type: t, Timestamp: time.Now()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		msg.Data = data
	}
	return msg, nil
}

// EventEnvelope is the wire form of a table event: a seating change
// ("table" plus an action) or a betting move ("move").
type EventEnvelope struct {
	Type       string       `json:"type"`
	Action     string       `json:"action,omitempty"`
	PlayerID   string       `json:"playerId"`
	PlayerName string       `json:"playerName,omitempty"`
	Move       *MovePayload `json:"move,omitempty"`
}

// MovePayload carries a betting move. Amount is only meaningful for
// raises, where it is the player's new street total.
type MovePayload struct {
	Type   string `json:"type"`
	Amount int    `json:"amount,omitempty"`
}

// ErrBadEnvelope rejects event payloads that fit no known shape.
var ErrBadEnvelope = errors.New("malformed event payload")

// Event translates the wire envelope into a table event.
func (e EventEnvelope) Event() (game.Event, error) {
	switch e.Type {
	case "table":
		switch e.Action {
		case "join":
			return game.Join{PlayerID: e.PlayerID, PlayerName: e.PlayerName}, nil
		case "leave":
			return game.Leave{PlayerID: e.PlayerID}, nil
		default:
			return nil, fmt.Errorf("%w: table action %q", ErrBadEnvelope, e.Action)
		}
	case "move":
		if e.Move == nil {
			return nil, fmt.Errorf("%w: missing move", ErrBadEnvelope)
		}
		switch e.Move.Type {
		case "call", "check":
			return game.Call{PlayerID: e.PlayerID}, nil
		case "fold":
			return game.Fold{PlayerID: e.PlayerID}, nil
		case "raise":
			return game.Raise{PlayerID: e.PlayerID, Amount: e.Move.Amount}, nil
		default:
			return nil, fmt.Errorf("%w: move type %q", ErrBadEnvelope, e.Move.Type)
		}
	default:
		return nil, fmt.Errorf("%w: event type %q", ErrBadEnvelope, e.Type)
	}
}

// PlayerViewRequest asks for a snapshot with one seat's cards visible.
type PlayerViewRequest struct {
	PlayerID string `json:"playerId"`
}

// RoomListData lists the live room IDs.
type RoomListData struct {
	Rooms []string `json:"rooms"`
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorCode maps table errors onto stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrTableFull):
		return "table_full"
	case errors.Is(err, game.ErrNotPlayersTurn):
		return "not_players_turn"
	case errors.Is(err, game.ErrInvalidMove):
		return "invalid_move"
	case errors.Is(err, game.ErrGameAlreadyInProgress):
		return "game_in_progress"
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return "not_enough_players"
	case errors.Is(err, game.ErrUnknownPlayer):
		return "unknown_player"
	case errors.Is(err, ErrBadEnvelope):
		return "invalid_message"
	default:
		return "internal_error"
	}
}
