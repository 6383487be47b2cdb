package player

import (
	"ohhell-server/internal/cards"
)

// ClientOps are the updates a client applies to its local copy of a player.
// Apart from optimistic echoes they only copy what the server decided.
type ClientOps struct {
	p *Player
}

func Client(p *Player) ClientOps {
	return ClientOps{p: p}
}

// AdoptHand replaces the hand with the server's, keeping the server's order.
func (o ClientOps) AdoptHand(ids []int) error {
	hand := make([]cards.Card, 0, len(ids))
	for _, id := range ids {
		c, err := cards.FromID(id)
		if err != nil {
			return err
		}
		hand = append(hand, c)
	}
	o.p.Hand = hand
	return nil
}

// AdoptBid copies a bid from a snapshot. A hidden bid never erases one the
// client already knows about.
func (o ClientOps) AdoptBid(bid int) {
	if bid >= 0 {
		o.p.Bid = bid
	}
}

// EchoBid shows the player's own bid before the server confirms it.
func (o ClientOps) EchoBid(bid int) {
	o.p.Bid = bid
}

// EchoPlay removes a card the player just played, re-sorting exactly as the
// server will.
func (o ClientOps) EchoPlay(card cards.Card, trump cards.Suit) {
	o.p.Hand = cards.ResortAfterPlay(o.p.Hand, card, trump)
}

func (o ClientOps) WinTrick() {
	o.p.TricksWon++
}

func (o ClientOps) ScoreRound() int {
	return o.p.scoreRound()
}
