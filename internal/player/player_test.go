package player

import (
	"testing"

	"ohhell-server/internal/cards"

	"github.com/stretchr/testify/assert"
)

func TestValidateName_Valid(t *testing.T) {
	assert := assert.New(t)

	validNames := []string{
		"Alice",                // Simple name
		"Bob123",               // Alphanumeric
		"Player One",           // With space
		"José",                 // Accented
		"@user!",               // Special characters
		"12345678901234567890", // Exactly 20 chars
	}

	for _, name := range validNames {
		assert.NoError(ValidateName(name), "Name '%s' should be valid", name)
	}
}

func TestValidateName_Invalid(t *testing.T) {
	assert := assert.New(t)

	invalidNames := []string{
		"",                      // Empty
		"123456789012345678901", // 21 chars
		"Mary-Jane",             // Snapshot field separator
		"~",                     // Unset marker
		" Ann",                  // Leading space
		"Ann ",                  // Trailing space
	}

	for _, name := range invalidNames {
		assert.ErrorIs(ValidateName(name), ErrNameInvalid, "Name '%s' should be invalid", name)
	}
}

func TestRosterSetName(t *testing.T) {
	assert := assert.New(t)
	r := NewRoster(3)

	assert.NoError(r.SetName(0, "Ann"))
	assert.NoError(r.SetName(0, "Ann"), "renaming to own name is allowed")
	assert.ErrorIs(r.SetName(1, "Ann"), ErrNameTaken)
	assert.ErrorIs(r.SetName(7, "Cy"), ErrUnknownSlot)
	assert.False(r.AllNamed())

	assert.NoError(r.SetName(1, "Bob"))
	assert.NoError(r.SetName(2, "Cy"))
	assert.True(r.AllNamed())
	assert.Same(r.BySlot(1), r.ByName("Bob"))

	r.ClearName(1)
	assert.Nil(r.ByName("Bob"))
	assert.NoError(r.SetName(2, "Bob"), "freed names can be taken")
}

func TestRosterRotate(t *testing.T) {
	assert := assert.New(t)
	r := NewRoster(4)

	r.Rotate()

	// Seat 1 becomes seat 0 and seat 0 goes to the end.
	assert.Equal(3, r.BySlot(0).Index)
	assert.Equal(0, r.BySlot(1).Index)
	assert.Equal(2, r.BySlot(3).Index)
	assert.Same(r.BySlot(1), r.BySeat(0))

	for range 3 {
		r.Rotate()
	}
	for slot := range 4 {
		assert.Equal(slot, r.BySlot(slot).Index, "four rotations restore the table")
	}
}

func TestRosterWinnersAndLeaders(t *testing.T) {
	assert := assert.New(t)
	r := NewRoster(3)
	for slot, name := range []string{"Ann", "Bob", "Cy"} {
		assert.NoError(r.SetName(slot, name))
	}
	r.BySlot(0).TotalPoints = 30
	r.BySlot(1).TotalPoints = 42
	r.BySlot(2).TotalPoints = 42
	r.BySlot(0).GamesWon = 2

	assert.Equal([]string{"Bob", "Cy"}, Names(r.Winners()))
	assert.Equal([]string{"Ann"}, Names(r.Leaders()))

	r.Rotate()
	r.Rotate()
	assert.Equal([]string{"Cy", "Bob"}, Names(r.Winners()), "ties are listed in seat order")

	r.ResetForGame()
	assert.Len(r.Winners(), 3)
	assert.Equal(2, r.BySlot(0).GamesWon, "games won survive a reset")
	assert.Equal(NoBid, r.BySlot(1).Bid)
}

func TestRoundPoints(t *testing.T) {
	var tests = []struct {
		bid, won, want int
	}{
		{0, 0, 10},
		{2, 2, 12},
		{3, 1, 1},
		{1, 4, 4},
	}

	for _, tt := range tests {
		if got := RoundPoints(tt.bid, tt.won); got != tt.want {
			t.Errorf("RoundPoints(%d, %d) = %d, %d expected.", tt.bid, tt.won, got, tt.want)
		}
	}
}

func TestServerOps(t *testing.T) {
	assert := assert.New(t)
	p := New(0)
	ops := Server(p)

	hand := []cards.Card{
		{Suit: cards.Clubs, Rank: cards.Two},
		{Suit: cards.Hearts, Rank: cards.Ace},
		{Suit: cards.Hearts, Rank: cards.Four},
	}
	ops.Deal(hand, cards.Hearts)
	assert.Equal(cards.SortHand(hand, cards.Hearts), p.Hand)

	assert.ErrorIs(ops.PlaceBid(4, 3), ErrBidOutOfRange)
	assert.ErrorIs(ops.PlaceBid(-1, 3), ErrBidOutOfRange)
	assert.NoError(ops.PlaceBid(1, 3))
	assert.ErrorIs(ops.PlaceBid(2, 3), ErrAlreadyBid)

	board := []cards.Card{{Suit: cards.Hearts, Rank: cards.King}}
	assert.ErrorIs(ops.Play(cards.Card{Suit: cards.Spades, Rank: cards.Ace}, board, cards.Hearts), ErrCardNotInHand)
	assert.ErrorIs(ops.Play(cards.Card{Suit: cards.Clubs, Rank: cards.Two}, board, cards.Hearts), ErrMustFollowSuit)
	assert.NoError(ops.Play(cards.Card{Suit: cards.Hearts, Rank: cards.Ace}, board, cards.Hearts))
	assert.Len(p.Hand, 2)

	ops.WinTrick()
	assert.Equal(11, ops.ScoreRound())
	assert.Equal(11, p.TotalPoints)
}

func TestClientOps(t *testing.T) {
	assert := assert.New(t)
	p := New(1)
	ops := Client(p)

	assert.NoError(ops.AdoptHand([]int{51, 0, 13}))
	assert.Equal([]int{51, 0, 13}, cards.IDs(p.Hand))
	assert.Error(ops.AdoptHand([]int{52}))

	ops.EchoBid(2)
	ops.AdoptBid(-1)
	assert.Equal(2, p.Bid, "a sealed bid does not hide the client's own echo")
	ops.AdoptBid(1)
	assert.Equal(1, p.Bid)

	ops.EchoPlay(cards.Card{Suit: cards.Spades, Rank: cards.Ace}, cards.Spades)
	assert.Equal([]int{0, 13}, cards.IDs(p.Hand))
}

// Why: two-player tables must read "Both", larger ones "All".
func TestTexts(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("Both players are bidding...", BiddingWaitText(2))
	assert.Equal("All players are bidding...", BiddingWaitText(4))

	two := []*Player{{Name: "Ann", TotalPoints: 12}, {Name: "Bob", TotalPoints: 12}}
	assert.Equal("Both players tied with 12 points", ScoreText(two, 2))
	assert.Equal("Ann and Bob tied with 12 points", ScoreText(two, 3))
	assert.Equal("Ann leads with 12 points", ScoreText(two[:1], 2))

	three := append(two, &Player{Name: "Cy", TotalPoints: 12})
	assert.Equal("All players tied with 12 points", ScoreText(three, 3))
	assert.Equal("Ann, Bob and Cy tied with 12 points", ScoreText(three, 5))

	assert.Equal("Both players share the win with 12 points", WinnersText(two, 2))
	assert.Equal("Ann wins with 12 points", WinnersText(two[:1], 4))

	two[0].GamesWon, two[1].GamesWon = 1, 1
	assert.Equal("Both players lead the tournament with 1 game won", LeadersText(two, 2))
	assert.Equal("", ScoreText(nil, 2))
}
