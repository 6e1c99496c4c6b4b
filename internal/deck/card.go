package deck

import "fmt"

// Suit represents a card suit
type Suit int

const (
	Spades Suit = iota
	Diamonds
	Clubs
	Hearts
)

// String returns the string representation of a suit
func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Hearts:
		return "♥"
	default:
		return "?"
	}
}

// Name returns the lowercase suit name used on the wire
func (s Suit) Name() string {
	switch s {
	case Spades:
		return "spades"
	case Diamonds:
		return "diamonds"
	case Clubs:
		return "clubs"
	case Hearts:
		return "hearts"
	default:
		return "unknown"
	}
}

// Rank represents a card rank. Ace is low (1) for pairing and kicker
// comparisons; in straights it plays either end (A-2-3-4-5 or
// T-J-Q-K-A), which the evaluator handles.
type Rank int

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

// String returns the string representation of a rank
func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Two:
		return "2"
	case Three:
		return "3"
	case Four:
		return "4"
	case Five:
		return "5"
	case Six:
		return "6"
	case Seven:
		return "7"
	case Eight:
		return "8"
	case Nine:
		return "9"
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	default:
		return "?"
	}
}

// Card represents a playing card
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

// NewCard creates a new card
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// String returns the string representation of a card (e.g., "A♠")
func (c Card) String() string {
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// Value returns the numeric value of the card for comparison (Ace = 1)
func (c Card) Value() int {
	return int(c.Rank)
}

// IsRed returns true if the card is red (Hearts or Diamonds)
func (c Card) IsRed() bool {
	return c.Suit == Hearts || c.Suit == Diamonds
}
