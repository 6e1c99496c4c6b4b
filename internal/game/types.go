package game

import (
	"github.com/cardroom/cardroom/internal/deck"
)

// Status is the table lifecycle status.
type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusPlaying   Status = "PLAYING"
	StatusRoundOver Status = "ROUND_OVER"
	StatusGameOver  Status = "GAME_OVER"
)

// PlayerStatus is a player's standing within the table.
type PlayerStatus string

const (
	PlayerPlaying    PlayerStatus = "PLAYING"
	PlayerFolded     PlayerStatus = "FOLDED"
	PlayerAllIn      PlayerStatus = "ALL_IN"
	PlayerEliminated PlayerStatus = "ELIMINATED"
)

// Street is one of the five betting stages.
type Street string

const (
	PreFlop  Street = "PRE_FLOP"
	Flop     Street = "FLOP"
	Turn     Street = "TURN"
	River    Street = "RIVER"
	Showdown Street = "SHOWDOWN"
)

// Position is a seat's table position label for the current round.
type Position string

const (
	PositionButton     Position = "button"
	PositionSmallBlind Position = "small_blind"
	PositionBigBlind   Position = "big_blind"
	PositionEarly      Position = "early"
	PositionMiddle     Position = "middle"
	PositionCutoff     Position = "cutoff"
)

// ActionType labels a recorded move.
type ActionType string

const (
	ActionCall  ActionType = "call"
	ActionCheck ActionType = "check"
	ActionFold  ActionType = "fold"
	ActionRaise ActionType = "raise"
)

// Bet tracks a player's chips committed during the current street.
type Bet struct {
	// Amount is the chips moved by the player's last action.
	Amount int `json:"amount"`
	// Volume is the cumulative chips committed this street.
	Volume int `json:"volume"`
}

// Player is a seated player.
type Player struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Status    PlayerStatus `json:"status"`
	Position  Position     `json:"position,omitempty"`
	HoleCards []deck.Card  `json:"holeCards,omitempty"`
	Chips     int          `json:"chips"`
	Bet       Bet          `json:"bet"`
}

// RoundState tracks the current round (one deal through showdown).
type RoundState struct {
	Number     int             `json:"number"`
	ID         string          `json:"id,omitempty"`
	Volume     int             `json:"volume"`
	CurrentBet int             `json:"currentBet"`
	Folded     map[string]bool `json:"folded"`
	AllIn      map[string]bool `json:"allIn"`
}

// PhaseState tracks the current street within a round.
type PhaseState struct {
	Street      Street `json:"street"`
	ActionCount int    `json:"actionCount"`
	Volume      int    `json:"volume"`
}

// MoveRecord is the last applied move.
type MoveRecord struct {
	PlayerID string     `json:"playerId"`
	Action   ActionType `json:"action"`
	Amount   int        `json:"amount"`
	Street   Street     `json:"street"`
}

// TableConfig holds per-table rules. Zero MaxRounds means unlimited.
type TableConfig struct {
	MaxSeats      int `json:"maxSeats"`
	MinPlayers    int `json:"minPlayers"`
	StartingChips int `json:"startingChips"`
	SmallBlind    int `json:"smallBlind"`
	BigBlind      int `json:"bigBlind"`
	MaxRounds     int `json:"maxRounds"`
}

// withDefaults fills unset config fields.
func (c TableConfig) withDefaults() TableConfig {
	if c.MaxSeats == 0 {
		c.MaxSeats = 8
	}
	if c.MinPlayers == 0 {
		c.MinPlayers = 2
	}
	if c.StartingChips == 0 {
		c.StartingChips = 1000
	}
	if c.SmallBlind == 0 {
		c.SmallBlind = 5
	}
	if c.BigBlind == 0 {
		c.BigBlind = c.SmallBlind * 2
	}
	return c
}

// TableState is a full snapshot of one table. The undealt deck lives on
// the Table itself and is deliberately absent here, so snapshots can be
// handed to any subscriber without leaking it.
type TableState struct {
	ID           string      `json:"id"`
	Status       Status      `json:"status"`
	Players      []Player    `json:"players"`
	CurrentIndex int         `json:"currentIndex"`
	Community    []deck.Card `json:"community"`
	DealerID     string      `json:"dealerId,omitempty"`
	WinnerIDs    []string    `json:"winnerIds,omitempty"`
	LastMove     *MoveRecord `json:"lastMove,omitempty"`
	Round        RoundState  `json:"round"`
	Phase        PhaseState  `json:"phase"`
	Config       TableConfig `json:"config"`
}

// PlayerView is a TableState projection where every hole card except the
// viewer's own is hidden. Produced fresh per request, never stored.
type PlayerView struct {
	ViewerID string `json:"viewerId"`
	TableState
}

// clone deep-copies a snapshot so callers and subscribers can never
// alias the table's internal state.
func (s TableState) clone() TableState {
	out := s
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		out.Players[i] = p
		if p.HoleCards != nil {
			out.Players[i].HoleCards = append([]deck.Card(nil), p.HoleCards...)
		}
	}
	if s.Community != nil {
		out.Community = append([]deck.Card(nil), s.Community...)
	}
	if s.WinnerIDs != nil {
		out.WinnerIDs = append([]string(nil), s.WinnerIDs...)
	}
	if s.LastMove != nil {
		lm := *s.LastMove
		out.LastMove = &lm
	}
	out.Round.Folded = copySet(s.Round.Folded)
	out.Round.AllIn = copySet(s.Round.AllIn)
	return out
}

func copySet(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
