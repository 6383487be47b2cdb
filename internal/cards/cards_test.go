package cards_test

import (
	"math/rand"
	"slices"
	"testing"

	"ohhell-server/internal/cards"

	"github.com/stretchr/testify/assert"
)

func TestDeckTable(t *testing.T) {
	assert := assert.New(t)

	seen := make(map[cards.Card]bool)
	for id := range cards.PackSize {
		card, err := cards.FromID(id)
		assert.NoError(err)
		assert.Equal(id, card.ID(), "card %s stored at wrong index", card)
		assert.False(seen[card], "duplicate card %s", card)
		seen[card] = true
	}
	assert.Len(seen, cards.PackSize)

	for _, bad := range []int{-1, 52, 100} {
		_, err := cards.FromID(bad)
		assert.ErrorIs(err, cards.ErrInvalidCardID)
	}
}

func TestRankValues(t *testing.T) {
	var tests = []struct {
		rank cards.Rank
		want int
	}{
		{cards.Two, 2},
		{cards.Ten, 10},
		{cards.Jack, 11},
		{cards.King, 13},
		{cards.Ace, 14},
	}

	for _, tt := range tests {
		t.Run(tt.rank.String(), func(t *testing.T) {
			if got := tt.rank.Value(); got != tt.want {
				t.Errorf("%s valued at %d, %d expected.", tt.rank, got, tt.want)
			}
		})
	}
}

func TestPartnerKeepsColour(t *testing.T) {
	for _, suit := range cards.Suits {
		partner := suit.Partner()
		if partner == suit {
			t.Errorf("%s is its own partner", suit)
		}
		if partner.IsBlack() != suit.IsBlack() {
			t.Errorf("%s and %s differ in colour", suit, partner)
		}
		if partner.Partner() != suit {
			t.Errorf("partner of %s is not symmetric", suit)
		}
	}
}

func TestDraw(t *testing.T) {
	pack := cards.NewPack()
	drawn := pack.Draw(3)

	expected := []cards.Card{
		{Suit: cards.Spades, Rank: cards.Ace},
		{Suit: cards.Spades, Rank: cards.King},
		{Suit: cards.Spades, Rank: cards.Queen},
	}

	if pack.Count() != 49 {
		t.Errorf("Pack should have %d cards, %d given", 49, pack.Count())
	}
	if !slices.Equal(expected, drawn) {
		t.Errorf("Expected to draw %v, got %v", expected, drawn)
	}
}

func TestShuffle(t *testing.T) {
	packA := cards.NewPack()
	packB := cards.NewPack()

	if !slices.Equal(packA.Cards, packB.Cards) {
		t.Error("Packs aren't equal to start")
	}

	packB.Shuffle(rand.New(rand.NewSource(7)))

	if slices.Equal(packA.Cards, packB.Cards) {
		t.Error("Shuffling didn't work")
	}
	if packB.Count() != cards.PackSize {
		t.Errorf("Shuffle changed pack size to %d", packB.Count())
	}
}

// Dealing n cards to each of p players plus one trump never duplicates a card.
func TestDealIsDisjoint(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for players := 2; players <= 6; players++ {
		for perHand := 1; perHand <= 51/players; perHand++ {
			pack := cards.NewPack()
			pack.Shuffle(r)
			dealt := pack.Draw(1)
			for range players {
				dealt = append(dealt, pack.Draw(perHand)...)
			}

			unique := make(map[cards.Card]bool)
			for _, c := range dealt {
				unique[c] = true
			}
			want := perHand*players + 1
			if len(unique) != want || len(dealt) != want {
				t.Fatalf("players=%d perHand=%d: %d unique of %d dealt, want %d",
					players, perHand, len(unique), len(dealt), want)
			}
			if pack.Count() != cards.PackSize-want {
				t.Fatalf("players=%d perHand=%d: %d left in pack", players, perHand, pack.Count())
			}
		}
	}
}
