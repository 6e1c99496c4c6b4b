// Package evaluator classifies showdown hands into ranked categories and
// compares them. All functions are pure and safe for concurrent use.
//
// Ranks follow the table's card model: Ace is 1. For pairing and kicker
// values the raw rank is used as-is. Straights are the one place the Ace
// plays either end: A-2-3-4-5 is the lowest straight and T-J-Q-K-A the
// highest, with the ace-high run carrying tie-break value 14.
package evaluator

import (
	"fmt"
	"sort"

	"github.com/cardroom/cardroom/internal/deck"
)

// Category is the hand category, ordered ascending by strength.
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

// String returns the string representation of a category
func (c Category) String() string {
	switch c {
	case HighCard:
		return "high_card"
	case OnePair:
		return "pair"
	case TwoPair:
		return "two_pair"
	case ThreeOfAKind:
		return "three_kind"
	case Straight:
		return "straight"
	case Flush:
		return "flush"
	case FullHouse:
		return "full_house"
	case FourOfAKind:
		return "four_kind"
	case StraightFlush:
		return "straight_flush"
	default:
		return "unknown"
	}
}

// MarshalText makes categories readable in JSON snapshots.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Ranking is a classified hand: the category plus the tie-break values
// needed to order hands within it, most significant first. Two values for
// two pair (high pair, low pair) and full house (trips, pair), one
// otherwise.
type Ranking struct {
	Category Category `json:"category"`
	Values   []int    `json:"values"`
}

// String returns e.g. "full_house[7 2]"
func (r Ranking) String() string {
	return fmt.Sprintf("%s%v", r.Category, r.Values)
}

// Classify evaluates 5 to 7 cards (hole cards plus revealed community
// cards) into a Ranking. Straights and flushes are detected over the
// whole set, not a fixed 5-card subset.
func Classify(cards []deck.Card) (Ranking, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return Ranking{}, fmt.Errorf("evaluator: need 5 to 7 cards, got %d", len(cards))
	}

	rankCount := make(map[int]int)
	suitRanks := make(map[deck.Suit][]int)
	for _, c := range cards {
		rankCount[c.Value()]++
		suitRanks[c.Suit] = append(suitRanks[c.Suit], c.Value())
	}

	// Straight flush beats everything, check it before the plain variants.
	if high, ok := bestStraightFlush(suitRanks); ok {
		return Ranking{Category: StraightFlush, Values: []int{high}}, nil
	}

	quads, trips, pairs := groupRanks(rankCount)

	if len(quads) > 0 {
		return Ranking{Category: FourOfAKind, Values: []int{quads[0]}}, nil
	}

	// Two sets of trips in 7 cards read as a full house, lower trips as the pair.
	if len(trips) >= 2 {
		return Ranking{Category: FullHouse, Values: []int{trips[0], trips[1]}}, nil
	}
	if len(trips) == 1 && len(pairs) > 0 {
		return Ranking{Category: FullHouse, Values: []int{trips[0], pairs[0]}}, nil
	}

	if high, ok := bestFlush(suitRanks); ok {
		return Ranking{Category: Flush, Values: []int{high}}, nil
	}

	if high, ok := bestStraight(rankCount); ok {
		return Ranking{Category: Straight, Values: []int{high}}, nil
	}

	if len(trips) == 1 {
		return Ranking{Category: ThreeOfAKind, Values: []int{trips[0]}}, nil
	}

	if len(pairs) >= 2 {
		return Ranking{Category: TwoPair, Values: []int{pairs[0], pairs[1]}}, nil
	}
	if len(pairs) == 1 {
		return Ranking{Category: OnePair, Values: []int{pairs[0]}}, nil
	}

	high := 0
	for r := range rankCount {
		if r > high {
			high = r
		}
	}
	return Ranking{Category: HighCard, Values: []int{high}}, nil
}

// Compare orders two rankings: negative if a < b, positive if a > b and
// zero on an exact tie. A zero result is a deliberate split-pot signal,
// never a silent preference for either hand.
func Compare(a, b Ranking) int {
	if a.Category != b.Category {
		return int(a.Category) - int(b.Category)
	}
	n := len(a.Values)
	if len(b.Values) < n {
		n = len(b.Values)
	}
	for i := 0; i < n; i++ {
		if a.Values[i] != b.Values[i] {
			return a.Values[i] - b.Values[i]
		}
	}
	return len(a.Values) - len(b.Values)
}

// BestIndexes returns the indexes of every ranking tied for best, in
// input order. Multiple indexes mean a split pot.
func BestIndexes(rankings []Ranking) []int {
	if len(rankings) == 0 {
		return nil
	}
	best := []int{0}
	for i := 1; i < len(rankings); i++ {
		switch cmp := Compare(rankings[i], rankings[best[0]]); {
		case cmp > 0:
			best = []int{i}
		case cmp == 0:
			best = append(best, i)
		}
	}
	return best
}

// groupRanks splits rank counts into quads, trips and pairs, each sorted
// descending by rank.
func groupRanks(rankCount map[int]int) (quads, trips, pairs []int) {
	for r, n := range rankCount {
		switch {
		case n >= 4:
			quads = append(quads, r)
		case n == 3:
			trips = append(trips, r)
		case n == 2:
			pairs = append(pairs, r)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(quads)))
	sort.Sort(sort.Reverse(sort.IntSlice(trips)))
	sort.Sort(sort.Reverse(sort.IntSlice(pairs)))
	return quads, trips, pairs
}

// aceHigh is the value an Ace carries at the top of a T-J-Q-K-A run.
const aceHigh = 14

// bestRun finds the highest top card of a 5-long run of consecutive
// ranks, deduplicating first. An Ace (1) is also tried as 14 so it can
// cap a broadway run.
func bestRun(ranks []int) (int, bool) {
	if len(ranks) < 5 {
		return 0, false
	}
	uniq := make([]int, 0, len(ranks)+1)
	seen := make(map[int]bool)
	for _, r := range ranks {
		if !seen[r] {
			seen[r] = true
			uniq = append(uniq, r)
		}
	}
	if seen[int(deck.Ace)] {
		uniq = append(uniq, aceHigh)
	}
	sort.Ints(uniq)

	high, found := 0, false
	run := 1
	for i := 1; i < len(uniq); i++ {
		if uniq[i] == uniq[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run >= 5 {
			high, found = uniq[i], true
		}
	}
	return high, found
}

func bestStraight(rankCount map[int]int) (int, bool) {
	ranks := make([]int, 0, len(rankCount))
	for r := range rankCount {
		ranks = append(ranks, r)
	}
	return bestRun(ranks)
}

func bestFlush(suitRanks map[deck.Suit][]int) (int, bool) {
	high, found := 0, false
	for _, ranks := range suitRanks {
		if len(ranks) < 5 {
			continue
		}
		for _, r := range ranks {
			if r > high {
				high, found = r, true
			}
		}
	}
	return high, found
}

func bestStraightFlush(suitRanks map[deck.Suit][]int) (int, bool) {
	high, found := 0, false
	for _, ranks := range suitRanks {
		if h, ok := bestRun(ranks); ok && h > high {
			high, found = h, true
		}
	}
	return high, found
}
