package cards

import "github.com/pkg/errors"

// ErrEmptyTrick is returned when resolving a trick with no cards on the board.
var ErrEmptyTrick = errors.New("EMPTY_TRICK: no cards played")

// WinValue is the comparison value of a card within a trick. Cards of the led
// suit score their face value, trumps score face value plus 13, everything
// else scores zero.
func WinValue(c Card, led, trump Suit) int {
	switch {
	case c.Suit == led:
		return c.Rank.Value()
	case c.Suit == trump:
		return c.Rank.Value() + 13
	default:
		return 0
	}
}

// ResolveTrick returns the position in played of the winning card. The first
// card sets the led suit.
func ResolveTrick(played []Card, trump Suit) (int, error) {
	if len(played) == 0 {
		return -1, ErrEmptyTrick
	}
	led := played[0].Suit
	best, bestValue := 0, WinValue(played[0], led, trump)
	for i := 1; i < len(played); i++ {
		if v := WinValue(played[i], led, trump); v > bestValue {
			best, bestValue = i, v
		}
	}
	return best, nil
}

// LegalPlays returns the cards of hand that may be played onto board. A
// player must follow the led suit when able.
func LegalPlays(hand, board []Card) []Card {
	if len(board) == 0 {
		return append([]Card(nil), hand...)
	}
	led := board[0].Suit
	var follow []Card
	for _, c := range hand {
		if c.Suit == led {
			follow = append(follow, c)
		}
	}
	if len(follow) == 0 {
		return append([]Card(nil), hand...)
	}
	return follow
}

// CanPlay reports whether card is a legal play from hand onto board.
func CanPlay(hand, board []Card, card Card) bool {
	return Contains(LegalPlays(hand, board), card)
}
