package cards

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
)

// PackSize is the number of distinct cards in a pack.
const PackSize = 52

// ErrInvalidCardID is returned for pack indices outside 0..51.
var ErrInvalidCardID = errors.New("INVALID_CARD: pack index out of range")

type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

// Suits lists every suit in pack order.
var Suits = [4]Suit{Hearts, Diamonds, Clubs, Spades}

var suitString = map[Suit]string{
	Hearts:   "Hearts",
	Diamonds: "Diamonds",
	Clubs:    "Clubs",
	Spades:   "Spades",
}

var suitLetter = map[Suit]string{
	Hearts:   "H",
	Diamonds: "D",
	Clubs:    "C",
	Spades:   "S",
}

func (s Suit) String() string {
	return suitString[s]
}

func (s Suit) IsBlack() bool {
	return s == Clubs || s == Spades
}

// Partner returns the other suit of the same colour.
func (s Suit) Partner() Suit {
	switch s {
	case Hearts:
		return Diamonds
	case Diamonds:
		return Hearts
	case Clubs:
		return Spades
	default:
		return Clubs
	}
}

type Rank int

const (
	Two Rank = iota
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
	Ace
)

var rankString = map[Rank]string{
	Two:   "Two",
	Three: "Three",
	Four:  "Four",
	Five:  "Five",
	Six:   "Six",
	Seven: "Seven",
	Eight: "Eight",
	Nine:  "Nine",
	Ten:   "Ten",
	Jack:  "Jack",
	Queen: "Queen",
	King:  "King",
	Ace:   "Ace",
}

var rankSymbol = map[Rank]string{
	Two:   "2",
	Three: "3",
	Four:  "4",
	Five:  "5",
	Six:   "6",
	Seven: "7",
	Eight: "8",
	Nine:  "9",
	Ten:   "10",
	Jack:  "J",
	Queen: "Q",
	King:  "K",
	Ace:   "A",
}

func (r Rank) String() string {
	return rankString[r]
}

// Value is the rank's face value, 2 through 14 (Ace high).
func (r Rank) Value() int {
	return int(r) + 2
}

type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

var deck = func() [PackSize]Card {
	var d [PackSize]Card
	for _, suit := range Suits {
		for rank := Two; rank <= Ace; rank++ {
			c := Card{Suit: suit, Rank: rank}
			d[c.ID()] = c
		}
	}
	return d
}()

// FromID returns the card with the given pack index.
func FromID(id int) (Card, error) {
	if id < 0 || id >= PackSize {
		return Card{}, errors.Wrapf(ErrInvalidCardID, "id %d", id)
	}
	return deck[id], nil
}

// ID is the card's pack index, used on the wire.
func (c Card) ID() int {
	return int(c.Suit)*13 + int(c.Rank)
}

func (c Card) String() string {
	return fmt.Sprintf("%s of %s", c.Rank.String(), c.Suit.String())
}

// Code is the short form used by the console client, e.g. "10H" or "QS".
func (c Card) Code() string {
	return rankSymbol[c.Rank] + suitLetter[c.Suit]
}

// Pack holds the cards not yet dealt this round.
type Pack struct {
	Cards []Card `json:"cards"`
}

func NewPack() *Pack {
	cards := make([]Card, PackSize)
	copy(cards, deck[:])
	return &Pack{Cards: cards}
}

func (p Pack) Count() int {
	return len(p.Cards)
}

// Draw pops n cards off the top of the pack.
func (p *Pack) Draw(n int) (cards []Card) {
	for range n {
		card := p.Cards[len(p.Cards)-1]
		cards = append(cards, card)
		p.Cards = p.Cards[:len(p.Cards)-1]
	}
	return
}

// Shuffle permutes the pack uniformly. A nil source uses the global generator.
func (p *Pack) Shuffle(r *rand.Rand) {
	swap := func(i, j int) {
		p.Cards[i], p.Cards[j] = p.Cards[j], p.Cards[i]
	}
	if r == nil {
		rand.Shuffle(p.Count(), swap)
		return
	}
	r.Shuffle(p.Count(), swap)
}

// IDs converts cards to pack indices.
func IDs(cards []Card) []int {
	ids := make([]int, len(cards))
	for i, c := range cards {
		ids[i] = c.ID()
	}
	return ids
}

// Contains reports whether the card is in the slice.
func Contains(cards []Card, card Card) bool {
	for _, c := range cards {
		if c == card {
			return true
		}
	}
	return false
}

// Remove returns a copy of cards without the given card.
func Remove(cards []Card, card Card) []Card {
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		if c != card {
			out = append(out, c)
		}
	}
	return out
}
