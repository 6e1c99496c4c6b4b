package deck

import (
	"math/rand"
)

// Size is the number of cards in a full deck.
const Size = 52

// Deck represents a deck of playing cards. The RNG is always injected so
// that callers control determinism; see the game package tests.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// New creates a new standard 52-card deck in canonical order.
func New(rng *rand.Rand) *Deck {
	d := &Deck{
		cards: make([]Card, 0, Size),
		rng:   rng,
	}
	for suit := Spades; suit <= Hearts; suit++ {
		for rank := Ace; rank <= King; rank++ {
			d.cards = append(d.cards, NewCard(rank, suit))
		}
	}
	return d
}

// NewShuffled creates a new deck and shuffles it.
func NewShuffled(rng *rand.Rand) *Deck {
	d := New(rng)
	d.Shuffle()
	return d
}

// Shuffle randomizes the order of cards in the deck (Fisher-Yates)
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.Intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes and returns the top card from the deck
func (d *Deck) Deal() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// DealN deals n cards from the deck
func (d *Deck) DealN(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	cards := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		if card, ok := d.Deal(); ok {
			cards = append(cards, card)
		}
	}
	return cards
}

// Remaining returns the number of cards left in the deck
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// Reset restores the deck to a full 52-card deck and shuffles it
func (d *Deck) Reset() {
	d.cards = d.cards[:0]
	for suit := Spades; suit <= Hearts; suit++ {
		for rank := Ace; rank <= King; rank++ {
			d.cards = append(d.cards, NewCard(rank, suit))
		}
	}
	d.Shuffle()
}
