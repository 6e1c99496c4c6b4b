// Package game implements the authoritative per-table state machine for
// Texas Hold'em: seating, blinds, betting streets, showdown and pot
// distribution. Each table is a single-writer entity; every exported
// method takes the table lock, so events apply strictly one at a time in
// arrival order.
//
// For deterministic play, construct the table with a seeded *rand.Rand:
//
//	rng := rand.New(rand.NewSource(42))
//	t := game.New("r1", game.TableConfig{}, rng, logger)
package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/cardroom/cardroom/internal/deck"
	"github.com/cardroom/cardroom/internal/evaluator"
	"github.com/cardroom/cardroom/internal/rotation"
)

// Table owns one table's full state. All mutation flows through
// ProcessEvent and StartGame; reads return deep-copied snapshots.
type Table struct {
	mu     sync.Mutex
	cfg    TableConfig
	rng    *rand.Rand
	logger *log.Logger

	state       TableState
	deck        *deck.Deck
	ring        *rotation.Ring
	acted       map[string]bool // acted since the last raise this street
	minRaise    int
	roundActive bool

	broadcast    *broadcaster
	lastActivity time.Time
}

// New creates a table in WAITING state with no seats taken.
func New(id string, cfg TableConfig, rng *rand.Rand, logger *log.Logger) *Table {
	cfg = cfg.withDefaults()
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Table{
		cfg:    cfg,
		rng:    rng,
		logger: logger.WithPrefix("table").With("table", id),
		state: TableState{
			ID:           id,
			Status:       StatusWaiting,
			CurrentIndex: -1,
			Config:       cfg,
		},
		broadcast:    newBroadcaster(),
		lastActivity: time.Now(),
	}
}

// ID returns the table id.
func (t *Table) ID() string {
	return t.state.ID
}

// LastActivity reports when the table last processed an event.
func (t *Table) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActivity
}

// CurrentState returns a full snapshot without mutating anything.
func (t *Table) CurrentState() TableState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.clone()
}

// PlayerView returns the current snapshot with every other seat's hole
// cards hidden.
func (t *Table) PlayerView(playerID string) (PlayerView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.playerIndex(playerID) < 0 {
		return PlayerView{}, ErrUnknownPlayer
	}
	view := PlayerView{ViewerID: playerID, TableState: t.state.clone()}
	for i := range view.Players {
		if view.Players[i].ID != playerID {
			view.Players[i].HoleCards = nil
		}
	}
	return view, nil
}

// Updates subscribes to the table's snapshot stream. Every successful
// mutation emits one snapshot; rejected events emit nothing. The channel
// closes at GAME_OVER or on Unsubscribe.
func (t *Table) Updates() (uint64, <-chan TableState) {
	return t.broadcast.subscribe()
}

// Unsubscribe removes an Updates subscription.
func (t *Table) Unsubscribe(id uint64) {
	t.broadcast.unsubscribe(id)
}

// Subscribers reports the number of live snapshot subscribers.
func (t *Table) Subscribers() int {
	return t.broadcast.count()
}

// StartGame shuffles, deals, posts blinds and begins the round loop. The
// returned stream carries every snapshot until GAME_OVER; the id lets a
// caller that abandons the stream before then release it via
// Unsubscribe, so the table is not pinned as watched forever.
func (t *Table) StartGame() (uint64, <-chan TableState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	if t.state.Status != StatusWaiting {
		return 0, nil, ErrGameAlreadyInProgress
	}
	if len(t.state.Players) < t.cfg.MinPlayers {
		return 0, nil, ErrNotEnoughPlayers
	}

	id, ch := t.broadcast.subscribe()
	t.startRound()
	return id, ch, nil
}

// ProcessEvent validates and applies one event, returning the resulting
// snapshot. On error the table state is untouched and nothing is
// broadcast.
func (t *Table) ProcessEvent(ev Event) (TableState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	var err error
	switch e := ev.(type) {
	case Join:
		err = t.join(e)
	case Leave:
		err = t.leave(e)
	case Call:
		err = t.move(e.PlayerID, ActionCall, 0)
	case Fold:
		err = t.move(e.PlayerID, ActionFold, 0)
	case Raise:
		err = t.move(e.PlayerID, ActionRaise, e.Amount)
	default:
		err = ErrInvalidMove
	}
	if err != nil {
		return TableState{}, err
	}
	return t.state.clone(), nil
}

// --- event application (all called with the lock held) ---

func (t *Table) join(e Join) error {
	if e.PlayerID == "" {
		return ErrInvalidMove
	}
	if t.state.Status == StatusGameOver || len(t.state.Players) >= t.cfg.MaxSeats {
		return ErrTableFull
	}
	if t.playerIndex(e.PlayerID) >= 0 {
		return ErrInvalidMove
	}

	p := Player{
		ID:     e.PlayerID,
		Name:   e.PlayerName,
		Status: PlayerPlaying,
		Chips:  t.cfg.StartingChips,
	}
	t.state.Players = append(t.state.Players, p)

	// A player joining mid-round sits out until the next deal.
	if t.roundActive {
		t.state.Round.Folded[e.PlayerID] = true
	}

	t.logger.Info("player joined", "player", e.PlayerID, "name", e.PlayerName, "seats", len(t.state.Players))
	t.publish()
	return nil
}

func (t *Table) leave(e Leave) error {
	idx := t.playerIndex(e.PlayerID)
	if idx < 0 {
		return ErrUnknownPlayer
	}

	p := &t.state.Players[idx]
	inRound := t.roundActive && !t.state.Round.Folded[e.PlayerID] && p.Status != PlayerEliminated
	if inRound {
		p.Status = PlayerFolded
		t.state.Round.Folded[e.PlayerID] = true
		delete(t.state.Round.AllIn, e.PlayerID)
		t.acted[e.PlayerID] = true
	}

	t.state.Players = append(t.state.Players[:idx], t.state.Players[idx+1:]...)
	t.logger.Info("player left", "player", e.PlayerID, "seats", len(t.state.Players))

	if t.ring != nil && t.ring.Index(e.PlayerID) >= 0 {
		remaining := make([]string, 0, t.ring.Len()-1)
		for _, seat := range t.ring.Seats() {
			if seat != e.PlayerID {
				remaining = append(remaining, seat)
			}
		}
		if len(remaining) == 0 {
			t.ring = nil
		} else {
			_ = t.ring.Rebuild(remaining)
		}
	}

	if t.roundActive {
		t.continueRound()
		return nil
	}
	t.publish()
	return nil
}

func (t *Table) move(playerID string, action ActionType, amount int) error {
	if t.state.Status != StatusPlaying || !t.roundActive {
		return ErrInvalidMove
	}
	idx := t.playerIndex(playerID)
	if idx < 0 {
		return ErrUnknownPlayer
	}
	if t.ring == nil || t.ring.Current() != playerID {
		return ErrNotPlayersTurn
	}

	p := &t.state.Players[idx]

	switch action {
	case ActionFold:
		p.Status = PlayerFolded
		t.state.Round.Folded[playerID] = true
		delete(t.state.Round.AllIn, playerID)
		t.acted[playerID] = true
		t.recordMove(playerID, ActionFold, 0)

	case ActionCall:
		toCall := t.state.Round.CurrentBet - p.Bet.Volume
		pay := min(toCall, p.Chips)
		p.Chips -= pay
		p.Bet.Amount = pay
		p.Bet.Volume += pay
		t.state.Round.Volume += pay
		t.state.Phase.Volume += pay
		if p.Chips == 0 {
			p.Status = PlayerAllIn
			t.state.Round.AllIn[playerID] = true
		}
		t.acted[playerID] = true
		if pay == 0 {
			t.recordMove(playerID, ActionCheck, 0)
		} else {
			t.recordMove(playerID, ActionCall, pay)
		}

	case ActionRaise:
		total := p.Chips + p.Bet.Volume
		if amount <= t.state.Round.CurrentBet {
			return ErrInvalidMove
		}
		if amount > total {
			return ErrInvalidMove
		}
		// Below-minimum raises are only legal as an all-in.
		if amount < t.state.Round.CurrentBet+t.minRaise && amount < total {
			return ErrInvalidMove
		}

		delta := amount - p.Bet.Volume
		p.Chips -= delta
		p.Bet.Amount = delta
		p.Bet.Volume = amount
		t.state.Round.Volume += delta
		t.state.Phase.Volume += delta
		t.minRaise = amount - t.state.Round.CurrentBet
		t.state.Round.CurrentBet = amount

		// A raise reopens the action for every other contender.
		t.acted = map[string]bool{playerID: true}
		if p.Chips == 0 {
			p.Status = PlayerAllIn
			t.state.Round.AllIn[playerID] = true
		}
		t.recordMove(playerID, ActionRaise, delta)

	default:
		return ErrInvalidMove
	}

	t.state.Phase.ActionCount++
	t.continueRound()
	return nil
}

func (t *Table) recordMove(playerID string, action ActionType, amount int) {
	t.state.LastMove = &MoveRecord{
		PlayerID: playerID,
		Action:   action,
		Amount:   amount,
		Street:   t.state.Phase.Street,
	}
}

// --- round flow ---

// startRound deals a fresh round: new deck, rotated dealer, blinds
// posted, sequencer on the first obligated player.
func (t *Table) startRound() {
	eligible := make([]string, 0, len(t.state.Players))
	for i := range t.state.Players {
		p := &t.state.Players[i]
		if p.Status == PlayerEliminated {
			p.Position = ""
			p.HoleCards = nil
			p.Bet = Bet{}
			continue
		}
		p.Status = PlayerPlaying
		p.Bet = Bet{}
		p.HoleCards = nil
		eligible = append(eligible, p.ID)
	}

	t.state.Round = RoundState{
		Number: t.state.Round.Number + 1,
		ID:     uuid.NewString(),
		Folded: make(map[string]bool),
		AllIn:  make(map[string]bool),
	}
	t.state.Phase = PhaseState{Street: PreFlop}
	t.state.Community = nil
	t.state.WinnerIDs = nil
	t.state.LastMove = nil
	t.acted = make(map[string]bool)
	t.minRaise = t.cfg.BigBlind

	t.deck = deck.NewShuffled(t.rng)
	t.ring, _ = rotation.New(eligible)
	t.roundActive = true
	t.state.Status = StatusPlaying

	dealerIdx := t.nextDealer(eligible)
	t.state.DealerID = eligible[dealerIdx]
	t.assignPositions(eligible, dealerIdx)

	for _, id := range eligible {
		i := t.playerIndex(id)
		t.state.Players[i].HoleCards = t.deck.DealN(2)
	}

	sb, bb := t.blindSeats(eligible, dealerIdx)
	t.postBlind(sb, t.cfg.SmallBlind)
	t.postBlind(bb, t.cfg.BigBlind)
	t.state.Round.CurrentBet = t.cfg.BigBlind

	t.logger.Info("round started",
		"round", t.state.Round.Number,
		"dealer", t.state.DealerID,
		"players", len(eligible))

	// Pre-flop action starts after the big blind; the starting seat is
	// scanned last, which hands the big blind its option.
	t.ring.MoveTo(bb)
	if err := t.ring.AdvanceUntil(t.needsToAct); err != nil {
		// Blinds put everyone all-in: run the board out.
		t.publish()
		t.advanceStreet()
		return
	}
	t.syncCursor()
	t.publish()
}

// nextDealer returns the index (within eligible) of this round's dealer:
// the first eligible seat after the previous dealer.
func (t *Table) nextDealer(eligible []string) int {
	if t.state.DealerID == "" {
		return 0
	}
	prev := -1
	for i, id := range eligible {
		if id == t.state.DealerID {
			prev = i
			break
		}
	}
	if prev < 0 {
		// Previous dealer eliminated or gone.
		return 0
	}
	return (prev + 1) % len(eligible)
}

func (t *Table) blindSeats(eligible []string, dealerIdx int) (sb, bb string) {
	n := len(eligible)
	if n == 2 {
		// Heads-up: the dealer posts the small blind.
		return eligible[dealerIdx], eligible[(dealerIdx+1)%n]
	}
	return eligible[(dealerIdx+1)%n], eligible[(dealerIdx+2)%n]
}

func (t *Table) assignPositions(eligible []string, dealerIdx int) {
	n := len(eligible)
	for off := 0; off < n; off++ {
		i := t.playerIndex(eligible[(dealerIdx+off)%n])
		p := &t.state.Players[i]
		if n == 2 {
			if off == 0 {
				p.Position = PositionSmallBlind
			} else {
				p.Position = PositionBigBlind
			}
			continue
		}
		switch {
		case off == 0:
			p.Position = PositionButton
		case off == 1:
			p.Position = PositionSmallBlind
		case off == 2:
			p.Position = PositionBigBlind
		case off == n-1:
			p.Position = PositionCutoff
		case off <= (n+2)/2:
			p.Position = PositionEarly
		default:
			p.Position = PositionMiddle
		}
	}
}

// postBlind moves a forced bet into the pot; posting is not an action,
// so the blind seats still owe one this street.
func (t *Table) postBlind(playerID string, blind int) {
	i := t.playerIndex(playerID)
	p := &t.state.Players[i]
	pay := min(blind, p.Chips)
	p.Chips -= pay
	p.Bet.Amount = pay
	p.Bet.Volume = pay
	t.state.Round.Volume += pay
	t.state.Phase.Volume += pay
	if p.Chips == 0 {
		p.Status = PlayerAllIn
		t.state.Round.AllIn[playerID] = true
	}
}

// continueRound decides what follows a successful mutation: resolve the
// round, close the street, or hand the turn to the next contender.
func (t *Table) continueRound() {
	if t.contenders() <= 1 {
		t.resolveRound()
		return
	}
	if t.streetComplete() {
		t.publish()
		t.advanceStreet()
		return
	}
	if t.ring == nil {
		t.publish()
		return
	}
	if !t.needsToAct(t.ring.Current()) {
		if err := t.ring.AdvanceUntil(t.needsToAct); err != nil {
			t.publish()
			t.advanceStreet()
			return
		}
	}
	t.syncCursor()
	t.publish()
}

// advanceStreet closes the current street and deals the next community
// cards (3/1/1), cascading when no contender can act.
func (t *Table) advanceStreet() {
	for {
		if t.state.Phase.Street == River || t.state.Phase.Street == Showdown {
			t.state.Phase.Street = Showdown
			t.resolveRound()
			return
		}

		for i := range t.state.Players {
			t.state.Players[i].Bet = Bet{}
		}
		t.acted = make(map[string]bool)
		t.minRaise = t.cfg.BigBlind
		t.state.Round.CurrentBet = 0
		t.state.Phase.ActionCount = 0
		t.state.Phase.Volume = 0

		switch t.state.Phase.Street {
		case PreFlop:
			t.state.Phase.Street = Flop
			t.state.Community = append(t.state.Community, t.deck.DealN(3)...)
		case Flop:
			t.state.Phase.Street = Turn
			t.state.Community = append(t.state.Community, t.deck.DealN(1)...)
		case Turn:
			t.state.Phase.Street = River
			t.state.Community = append(t.state.Community, t.deck.DealN(1)...)
		}

		// Post-flop action starts with the first contender after the dealer.
		t.ring.MoveTo(t.state.DealerID)
		if err := t.ring.AdvanceUntil(t.needsToAct); err != nil {
			// Everyone is all-in: run out the remaining streets.
			t.state.CurrentIndex = -1
			t.publish()
			continue
		}
		t.syncCursor()
		t.publish()
		return
	}
}

// resolveRound distributes the pot, eliminates busted players and either
// starts the next round or ends the game.
func (t *Table) resolveRound() {
	contenders := t.contenderIDs()
	var winners []string

	switch len(contenders) {
	case 0:
		// Every contender left mid-round; the pot has no claimant and the
		// round simply ends.
	case 1:
		winners = contenders
	default:
		t.state.Phase.Street = Showdown
		rankings := make([]evaluator.Ranking, len(contenders))
		for i, id := range contenders {
			p := t.state.Players[t.playerIndex(id)]
			cards := append(append([]deck.Card(nil), p.HoleCards...), t.state.Community...)
			ranking, err := evaluator.Classify(cards)
			if err != nil {
				// Unreachable with a well-formed round; treated as the
				// weakest possible hand rather than crashing the table.
				t.logger.Error("hand classification failed", "player", id, "error", err)
			}
			rankings[i] = ranking
		}
		for _, idx := range evaluator.BestIndexes(rankings) {
			winners = append(winners, contenders[idx])
		}
	}

	pot := t.state.Round.Volume
	for i, share := range splitPot(pot, len(winners)) {
		t.state.Players[t.playerIndex(winners[i])].Chips += share
	}
	t.state.Round.Volume = 0
	t.state.Round.CurrentBet = 0
	t.state.WinnerIDs = winners

	remaining := 0
	for i := range t.state.Players {
		p := &t.state.Players[i]
		p.Bet = Bet{}
		if p.Status == PlayerEliminated {
			continue
		}
		if p.Chips == 0 {
			p.Status = PlayerEliminated
			t.logger.Info("player eliminated", "player", p.ID, "round", t.state.Round.Number)
			continue
		}
		remaining++
	}

	t.roundActive = false
	t.ring = nil
	t.state.CurrentIndex = -1
	t.state.Status = StatusRoundOver

	t.logger.Info("round resolved",
		"round", t.state.Round.Number,
		"winners", winners,
		"pot", pot)
	t.publish()

	maxed := t.cfg.MaxRounds > 0 && t.state.Round.Number >= t.cfg.MaxRounds
	if maxed || remaining < 2 {
		t.state.Status = StatusGameOver
		t.logger.Info("game over", "rounds", t.state.Round.Number, "remaining", remaining)
		t.publish()
		t.broadcast.close()
		return
	}
	t.startRound()
}

// --- helpers ---

// splitPot divides a pot evenly across n winners. The remainder goes one
// chip at a time in winner order, so the shares always sum to the pot.
func splitPot(pot, n int) []int {
	if n == 0 {
		return nil
	}
	shares := make([]int, n)
	share, rem := pot/n, pot%n
	for i := range shares {
		shares[i] = share
		if i < rem {
			shares[i]++
		}
	}
	return shares
}

// contenders counts seated players still contesting the round,
// including all-ins.
func (t *Table) contenders() int {
	return len(t.contenderIDs())
}

func (t *Table) contenderIDs() []string {
	var ids []string
	for i := range t.state.Players {
		p := &t.state.Players[i]
		if p.Status == PlayerEliminated || t.state.Round.Folded[p.ID] {
			continue
		}
		if p.Status == PlayerPlaying || p.Status == PlayerAllIn {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// needsToAct reports whether a seat must still act this street: a
// contender who can act and has not acted since the last raise.
func (t *Table) needsToAct(playerID string) bool {
	idx := t.playerIndex(playerID)
	if idx < 0 {
		return false
	}
	p := &t.state.Players[idx]
	if p.Status != PlayerPlaying || t.state.Round.Folded[playerID] {
		return false
	}
	return !t.acted[playerID]
}

// streetComplete reports whether every contender who can act has matched
// the table bet and acted since the last raise.
func (t *Table) streetComplete() bool {
	for i := range t.state.Players {
		p := &t.state.Players[i]
		if p.Status != PlayerPlaying || t.state.Round.Folded[p.ID] {
			continue
		}
		if !t.acted[p.ID] || p.Bet.Volume != t.state.Round.CurrentBet {
			return false
		}
	}
	return true
}

func (t *Table) playerIndex(playerID string) int {
	for i := range t.state.Players {
		if t.state.Players[i].ID == playerID {
			return i
		}
	}
	return -1
}

func (t *Table) syncCursor() {
	if t.ring == nil {
		t.state.CurrentIndex = -1
		return
	}
	t.state.CurrentIndex = t.playerIndex(t.ring.Current())
}

func (t *Table) publish() {
	t.broadcast.publish(t.state.clone())
}

func (t *Table) touch() {
	t.lastActivity = time.Now()
}
