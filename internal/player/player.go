// Package player holds the per-seat state shared by the server session and
// the client mirror, and the roster that indexes it.
package player

import (
	"ohhell-server/internal/cards"
)

// NoBid marks a player who has not bid this round.
const NoBid = -1

// Player is one participant. Slot is the fixed connection slot; Index is
// the seat around the table and rotates between games.
type Player struct {
	Name        string       `json:"name"`
	Slot        int          `json:"slot"`
	Index       int          `json:"index"`
	Hand        []cards.Card `json:"-"`
	Bid         int          `json:"bid"`
	TricksWon   int          `json:"tricksWon"`
	RoundPoints int          `json:"roundPoints"`
	TotalPoints int          `json:"totalPoints"`
	GamesWon    int          `json:"gamesWon"`
	Connected   bool         `json:"connected"`
}

func New(slot int) *Player {
	return &Player{Slot: slot, Index: slot, Bid: NoBid}
}

func (p *Player) HasName() bool {
	return p.Name != ""
}

func (p *Player) HasBid() bool {
	return p.Bid != NoBid
}

// ResetRound clears everything that only lives for one round.
func (p *Player) ResetRound() {
	p.Hand = nil
	p.Bid = NoBid
	p.TricksWon = 0
	p.RoundPoints = 0
}

// ResetGame clears the round state and the game score. Games won are kept
// for the whole tournament.
func (p *Player) ResetGame() {
	p.ResetRound()
	p.TotalPoints = 0
}

// RoundPoints scores a round: an exact bid earns a ten point bonus on top
// of one point per trick.
func RoundPoints(bid, won int) int {
	if bid == won {
		return 10 + won
	}
	return won
}
