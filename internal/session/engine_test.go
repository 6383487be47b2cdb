package session

import (
	"math/rand"
	"testing"

	"ohhell-server/internal/cards"
	"ohhell-server/internal/player"
	"ohhell-server/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tableNames = []string{"Ann", "Bob", "Cy", "Dee", "Eve", "Flo"}

// newTable seats n named, connected players.
func newTable(t *testing.T, n int, bidding BiddingSystem) *Engine {
	t.Helper()
	e, err := NewEngine(n, bidding, WithRand(rand.New(rand.NewSource(7))))
	require.NoError(t, err)
	for slot := range n {
		require.NoError(t, e.Connect(slot))
		require.NoError(t, e.Handle(slot, protocol.NameCommand(tableNames[slot])))
	}
	return e
}

func everyone(t *testing.T, e *Engine, cmd protocol.Command) {
	t.Helper()
	for slot := range e.Roster().Size() {
		require.NoError(t, e.Handle(slot, cmd), "slot %d %s", slot, cmd.Code)
	}
}

// startGame picks start and readies the whole table.
func startGame(t *testing.T, e *Engine, start int) {
	t.Helper()
	require.NoError(t, e.Handle(e.Chooser(), protocol.StartCommand(start)))
	everyone(t, e, protocol.ReadyCommand())
}

func bidAll(t *testing.T, e *Engine, bid func(cards int) int) {
	t.Helper()
	for _, p := range e.Roster().Seated() {
		require.NoError(t, e.Handle(p.Slot, protocol.BidCommand(bid(e.CardsThisRound()), p.Index)))
	}
}

// playTrick has every seat play its first legal card in turn.
func playTrick(t *testing.T, e *Engine) {
	t.Helper()
	for range e.Roster().Size() {
		seat := e.WhoseTurn()
		require.GreaterOrEqual(t, seat, 0)
		p := e.Roster().BySeat(seat)
		card := cards.LegalPlays(p.Hand, e.Board())[0]
		require.NoError(t, e.Handle(p.Slot, protocol.CardCommand(card.ID(), seat)))
	}
}

func TestNewEngineRejectsPlayerCount(t *testing.T) {
	for _, n := range []int{0, 1, 7} {
		_, err := NewEngine(n, Classic)
		assert.ErrorIs(t, err, ErrPlayerCount, "%d players", n)
	}
}

func TestMaxStartNumber(t *testing.T) {
	var tests = []struct {
		players, want int
	}{
		{2, 25},
		{3, 17},
		{4, 12},
		{5, 10},
		{6, 8},
	}

	for _, tt := range tests {
		if got := MaxStartNumber(tt.players); got != tt.want {
			t.Errorf("MaxStartNumber(%d) = %d, %d expected.", tt.players, got, tt.want)
		}
	}
}

func TestRosterPhase(t *testing.T) {
	assert := assert.New(t)
	e, err := NewEngine(3, Classic)
	require.NoError(t, err)

	assert.NoError(e.Connect(0))
	assert.ErrorIs(e.Handle(1, protocol.NameCommand("Bob")), ErrNotConnected)
	assert.ErrorIs(e.Handle(9, protocol.NameCommand("Bob")), ErrUnknownSlot)
	assert.NoError(e.Handle(0, protocol.NameCommand("Ann")))
	assert.ErrorIs(e.Handle(0, protocol.StartCommand(3)), ErrWrongPhase)

	assert.NoError(e.Connect(1))
	assert.ErrorIs(e.Handle(1, protocol.NameCommand("Ann")), player.ErrNameTaken)
	assert.NoError(e.Handle(1, protocol.NameCommand("Bob")))

	// Leaving before the roster is complete frees the seat and the name.
	assert.NoError(e.Disconnect(1))
	assert.Nil(e.Roster().ByName("Bob"))
	assert.Equal(AwaitingRoster, e.Phase())

	assert.NoError(e.Connect(1))
	assert.NoError(e.Connect(2))
	assert.NoError(e.Handle(1, protocol.NameCommand("Bob")))
	assert.NoError(e.Handle(2, protocol.NameCommand("Cy")))
	assert.Equal(AwaitingStartNumber, e.Phase())
	assert.ErrorIs(e.Connect(2), ErrWrongPhase)
}

func TestStartNumberValidation(t *testing.T) {
	assert := assert.New(t)
	e := newTable(t, 4, Classic)

	assert.ErrorIs(e.Handle(1, protocol.StartCommand(5)), ErrNotChooser)
	assert.ErrorIs(e.Handle(0, protocol.StartCommand(0)), ErrStartOutOfRange)
	assert.ErrorIs(e.Handle(0, protocol.StartCommand(13)), ErrStartOutOfRange)
	assert.Equal(0, e.Triggers()[protocol.StartNumberSet])

	assert.NoError(e.Handle(0, protocol.StartCommand(12)))
	assert.Equal(1, e.Triggers()[protocol.StartNumberSet])
	assert.Equal(AwaitingAllReady, e.Phase())

	assert.NoError(e.Handle(2, protocol.Command{Code: protocol.CodeReadyAlt}))
	assert.ErrorIs(e.Handle(2, protocol.ReadyCommand()), ErrAlreadyDone)
}

// Why: every card of a round must come out of one pack exactly once.
func TestDeal(t *testing.T) {
	assert := assert.New(t)
	e := newTable(t, 4, Classic)
	startGame(t, e, 12)

	assert.Equal(AwaitingBids, e.Phase())
	trump, ok := e.Trump()
	assert.True(ok)

	seen := map[cards.Card]bool{trump: true}
	for _, p := range e.Roster().Seated() {
		assert.Len(p.Hand, 12)
		assert.Equal(cards.SortHand(p.Hand, trump.Suit), p.Hand, "hands are dealt sorted")
		for _, c := range p.Hand {
			assert.False(seen[c], "%s dealt twice", c)
			seen[c] = true
		}
	}
	assert.Len(seen, 49)
	assert.Equal(1, e.Triggers()[protocol.NewPack])
	assert.Equal(1, e.Triggers()[protocol.CardsDealt])
}

func TestBidValidation(t *testing.T) {
	assert := assert.New(t)
	e := newTable(t, 3, Classic)
	startGame(t, e, 2)

	assert.ErrorIs(e.Handle(0, protocol.BidCommand(1, 1)), ErrSeatMismatch)
	assert.ErrorIs(e.Handle(0, protocol.BidCommand(3, 0)), player.ErrBidOutOfRange)
	assert.NoError(e.Handle(0, protocol.BidCommand(2, 0)))
	assert.ErrorIs(e.Handle(0, protocol.BidCommand(1, 0)), player.ErrAlreadyBid)
	assert.ErrorIs(e.Handle(1, protocol.CardCommand(0, 1)), ErrWrongPhase)

	assert.NoError(e.Handle(1, protocol.BidCommand(0, 1)))
	assert.NoError(e.Handle(2, protocol.BidCommand(0, 2)))
	assert.Equal(AwaitingAllReadyForTrick, e.Phase())
	assert.Equal(1, e.Triggers()[protocol.BiddingDone])
}

// Why: commands built in code bypass the wire parser, so the engine itself
// must refuse codes it does not know.
func TestHandleRejectsUnknownCode(t *testing.T) {
	assert := assert.New(t)
	e := newTable(t, 2, Classic)
	e.DrainBumps()
	before := e.Triggers()

	err := e.Handle(0, protocol.Command{Code: protocol.Code('X'), Number: 12})
	assert.ErrorIs(err, protocol.ErrUnknownCode)
	assert.Equal(AwaitingStartNumber, e.Phase())
	assert.Equal(before, e.Triggers())
	assert.Empty(e.DrainBumps())
}

func TestPlayValidation(t *testing.T) {
	assert := assert.New(t)
	e := newTable(t, 3, Classic)
	startGame(t, e, 3)
	bidAll(t, e, func(int) int { return 1 })
	everyone(t, e, protocol.AckCommand())

	assert.Equal(AwaitingAllPlays, e.Phase())
	assert.Equal(0, e.WhoseTurn(), "seat 0 leads the first round")

	lead := e.Roster().BySeat(0)
	next := e.Roster().BySeat(1)
	assert.ErrorIs(e.Handle(next.Slot, protocol.CardCommand(next.Hand[0].ID(), 1)), ErrNotYourTurn)
	assert.ErrorIs(e.Handle(lead.Slot, protocol.CardCommand(lead.Hand[0].ID(), 1)), ErrSeatMismatch)
	assert.ErrorIs(e.Handle(lead.Slot, protocol.CardCommand(next.Hand[0].ID(), 0)), player.ErrCardNotInHand)
	assert.ErrorIs(e.Handle(lead.Slot, protocol.CardCommand(52, 0)), cards.ErrInvalidCardID)

	card := lead.Hand[0]
	assert.NoError(e.Handle(lead.Slot, protocol.CardCommand(card.ID(), 0)))
	assert.Equal([]cards.Card{card}, e.Board())
	assert.Equal(1, e.WhoseTurn())

	// Holding the led suit forces a follow.
	for _, c := range next.Hand {
		if c.Suit != card.Suit && len(cards.LegalPlays(next.Hand, e.Board())) < len(next.Hand) {
			assert.ErrorIs(e.Handle(next.Slot, protocol.CardCommand(c.ID(), 1)), player.ErrMustFollowSuit)
			break
		}
	}
}

// Why: a four-seat game from seven cards down to one must hand out every
// trick and score each round as bid-exact bonus plus tricks.
func TestFullGame(t *testing.T) {
	assert := assert.New(t)
	e := newTable(t, 4, Classic)
	startGame(t, e, 7)

	expected := map[int]int{}
	tricksPlayed := 0
	for round := 1; round <= 7; round++ {
		cardsThisRound := 8 - round
		require.Equal(t, cardsThisRound, e.CardsThisRound())
		require.Equal(t, AwaitingBids, e.Phase())

		// Two each overbids the first round: 8 against 7 tricks.
		bidAll(t, e, func(n int) int { return min(2, n) })
		everyone(t, e, protocol.AckCommand())

		for trick := 1; trick <= cardsThisRound; trick++ {
			if trick == 1 {
				assert.Equal((round-1)%4, e.WhoseTurn(), "round %d leader", round)
			}
			before := map[int]int{}
			for _, p := range e.Roster().Seated() {
				before[p.Index] = p.TricksWon
			}
			playTrick(t, e)
			require.Equal(t, ResolvingTrick, e.Phase())
			tricksPlayed++
			winner := -1
			for _, p := range e.Roster().Seated() {
				if p.TricksWon > before[p.Index] {
					winner = p.Index
				}
			}
			require.GreaterOrEqual(t, winner, 0)

			if trick == cardsThisRound {
				won := 0
				for _, p := range e.Roster().Seated() {
					won += p.TricksWon
					expected[p.Slot] += player.RoundPoints(p.Bid, p.TricksWon)
				}
				assert.Equal(cardsThisRound, won, "round %d tricks", round)
			}
			everyone(t, e, protocol.AckCommand())

			if trick < cardsThisRound {
				// Each later trick waits on the ready barrier, then the winner leads.
				require.Equal(t, AwaitingAllReadyForTrick, e.Phase())
				assert.Equal(-1, e.WhoseTurn())
				everyone(t, e, protocol.AckCommand())
				assert.Equal(winner, e.WhoseTurn(), "round %d trick %d leader", round, trick+1)
			}
		}
	}

	assert.Equal(AwaitingRematchDecision, e.Phase())
	for slot, points := range expected {
		assert.Equal(points, e.Roster().BySlot(slot).TotalPoints, "slot %d", slot)
	}

	tr := e.Triggers()
	assert.Equal(28, tricksPlayed)
	assert.Equal(28, tr[protocol.TrickStart])
	assert.Equal(28, tr[protocol.TrickWinnerLogged])
	assert.Equal(28, tr[protocol.TrickEnd])
	assert.Equal(7, tr[protocol.NewPack])
	assert.Equal(7, tr[protocol.BiddingDone])
	assert.Equal(7, tr[protocol.RoundEnd])
	assert.Equal(7, tr[protocol.PointsAwarded])
	assert.Equal(1, tr[protocol.WinnersAnnounced])
	assert.Equal(1, tr[protocol.TournamentLeaders])
	assert.Equal(0, tr[protocol.NewGameReset])

	winners := e.Roster().Winners()
	assert.Equal(winners[0].Slot, e.Chooser())
	for _, w := range winners {
		assert.Equal(1, w.GamesWon)
	}

	snap := e.Snapshot(0)
	assert.False(snap.Status.InProgress)
	assert.Equal(7, snap.Status.StartNumber)
	assert.Equal(-1, snap.Status.Trump)
	assert.Empty(snap.Hand)

	// Rematch: everyone accepts, seats rotate, scores reset.
	everyone(t, e, protocol.RematchCommand(true))
	assert.Equal(AwaitingRosterRefresh, e.Phase())
	assert.Equal(1, e.Triggers()[protocol.NewGameReset])
	assert.Equal(0, e.Roster().BySlot(1).Index)
	assert.Equal(3, e.Roster().BySlot(0).Index)
	assert.Zero(e.Roster().BySlot(0).TotalPoints)
	assert.True(e.Snapshot(0).Status.Rematch)

	everyone(t, e, protocol.AckCommand())
	assert.Equal(AwaitingStartNumber, e.Phase())
	assert.False(e.Snapshot(0).Status.Rematch)

	chooser := e.Chooser()
	other := (chooser + 1) % 4
	assert.ErrorIs(e.Handle(other, protocol.StartCommand(3)), ErrNotChooser)
	assert.NoError(e.Handle(chooser, protocol.StartCommand(3)))
}

func TestRematchRefusal(t *testing.T) {
	assert := assert.New(t)
	e := newTable(t, 2, Classic)
	startGame(t, e, 1)
	bidAll(t, e, func(int) int { return 0 })
	everyone(t, e, protocol.AckCommand())
	playTrick(t, e)
	everyone(t, e, protocol.AckCommand())
	assert.Equal(AwaitingRematchDecision, e.Phase())

	assert.ErrorIs(e.Handle(0, protocol.AckCommand()), ErrWrongPhase)
	assert.NoError(e.Handle(0, protocol.RematchCommand(true)))
	assert.NoError(e.Handle(1, protocol.RematchCommand(false)))
	assert.Equal(Finished, e.Phase())
}

func TestDisconnect(t *testing.T) {
	t.Run("during a game", func(t *testing.T) {
		e := newTable(t, 3, Classic)
		startGame(t, e, 2)
		assert.ErrorIs(t, e.Disconnect(1), ErrPlayerLeft)
		assert.Equal(t, Finished, e.Phase())
	})

	t.Run("while choosing the start number", func(t *testing.T) {
		e := newTable(t, 3, Classic)
		assert.ErrorIs(t, e.Disconnect(2), ErrPlayerLeft)
	})

	t.Run("during the rematch vote", func(t *testing.T) {
		e := newTable(t, 2, Classic)
		startGame(t, e, 1)
		bidAll(t, e, func(int) int { return 1 })
		everyone(t, e, protocol.AckCommand())
		playTrick(t, e)
		everyone(t, e, protocol.AckCommand())

		assert.NoError(t, e.Disconnect(0))
		assert.Equal(t, Finished, e.Phase())
		assert.NoError(t, e.Disconnect(1))
	})
}

// Why: in the random system nobody may see another bid until all are in.
func TestSealedBids(t *testing.T) {
	assert := assert.New(t)
	e := newTable(t, 3, Random)
	startGame(t, e, 3)

	assert.NoError(e.Handle(0, protocol.BidCommand(2, 0)))
	assert.Equal(2, e.Snapshot(0).Players[0].Bid)
	assert.Equal(-1, e.Snapshot(1).Players[0].Bid)
	assert.Equal(-1, e.Status().Players[0].Bid)

	assert.NoError(e.Handle(1, protocol.BidCommand(1, 1)))
	assert.NoError(e.Handle(2, protocol.BidCommand(0, 2)))

	snap := e.Snapshot(1)
	assert.Equal(2, snap.Players[0].Bid)
	assert.Equal(0, snap.Players[2].Bid)
	assert.Equal(2, e.Status().Players[0].Bid)
}

func TestClassicBidsVisible(t *testing.T) {
	e := newTable(t, 3, Classic)
	startGame(t, e, 3)
	require.NoError(t, e.Handle(0, protocol.BidCommand(2, 0)))
	assert.Equal(t, 2, e.Snapshot(1).Players[0].Bid)
}

// Why: the exported snapshot must survive its own wire format unchanged.
func TestSnapshotWireForm(t *testing.T) {
	assert := assert.New(t)
	e := newTable(t, 3, Classic)

	before := e.Snapshot(0)
	assert.Equal(-1, before.Status.Trump)
	assert.Equal([]protocol.PlayerView{{Name: "Ann", Bid: -1}, {Name: "Bob", Bid: -1}, {Name: "Cy", Bid: -1}}, before.Players)

	startGame(t, e, 4)
	snap := e.Snapshot(2)
	trump, _ := e.Trump()
	assert.True(snap.Status.InProgress)
	assert.Zero(snap.Status.StartNumber)
	assert.Equal(trump.ID(), snap.Status.Trump)
	assert.Equal(cards.IDs(e.Roster().BySlot(2).Hand), snap.Hand)

	for _, s := range []protocol.Snapshot{before, snap} {
		parsed, err := protocol.ParseSnapshot(s.Encode())
		assert.NoError(err)
		assert.Equal(s, parsed)
	}
}

func TestDrainBumps(t *testing.T) {
	assert := assert.New(t)
	e := newTable(t, 2, Classic)
	assert.Empty(e.DrainBumps())

	startGame(t, e, 1)
	assert.Equal([]Bump{
		{Trigger: protocol.StartNumberSet, Value: 1},
		{Trigger: protocol.NewPack, Value: 1},
		{Trigger: protocol.CardsDealt, Value: 1},
	}, e.DrainBumps())
	assert.Empty(e.DrainBumps())
}
