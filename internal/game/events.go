package game

// Event is the closed set of inputs a table accepts. Each variant is
// validated in full before any state is touched.
type Event interface {
	isEvent()
}

// Join seats a new player.
type Join struct {
	PlayerID   string
	PlayerName string
}

// Leave vacates a seat. Mid-round it acts as an implicit fold first.
type Leave struct {
	PlayerID string
}

// Call matches the current table bet; with nothing to call it is a check.
type Call struct {
	PlayerID string
}

// Fold removes the player from the current round's contention.
type Fold struct {
	PlayerID string
}

// Raise lifts the table bet to Amount (the player's new total for the
// street), reopening the action for every other contender.
type Raise struct {
	PlayerID string
	Amount   int
}

func (Join) isEvent()  {}
func (Leave) isEvent() {}
func (Call) isEvent()  {}
func (Fold) isEvent()  {}
func (Raise) isEvent() {}
