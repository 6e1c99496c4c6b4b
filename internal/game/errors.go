package game

import "errors"

// All table errors are recoverable: the event is rejected, state is
// untouched and nothing is broadcast.
var (
	// ErrTableFull rejects a join when the table has no open seat.
	ErrTableFull = errors.New("table is full")

	// ErrNotPlayersTurn rejects a move from any seat other than the
	// current rotation cursor.
	ErrNotPlayersTurn = errors.New("not this player's turn")

	// ErrInvalidMove rejects a malformed raise or any action while the
	// table is not playing.
	ErrInvalidMove = errors.New("invalid move")

	// ErrGameAlreadyInProgress rejects StartGame on a playing table.
	ErrGameAlreadyInProgress = errors.New("game already in progress")

	// ErrNotEnoughPlayers rejects StartGame below the configured minimum.
	ErrNotEnoughPlayers = errors.New("not enough players to start")

	// ErrUnknownPlayer rejects events referencing an unseated player.
	ErrUnknownPlayer = errors.New("unknown player")
)
