package player

import (
	"ohhell-server/internal/cards"

	"github.com/pkg/errors"
)

var (
	ErrBidOutOfRange  = errors.New("BID_OUT_OF_RANGE: bid must be between zero and the cards dealt")
	ErrAlreadyBid     = errors.New("ALREADY_BID: player has already bid this round")
	ErrCardNotInHand  = errors.New("CARD_NOT_IN_HAND: card is not in the player's hand")
	ErrMustFollowSuit = errors.New("MUST_FOLLOW_SUIT: player holds the led suit")
)

// ServerOps are the mutations only the authoritative server performs.
type ServerOps struct {
	p *Player
}

func Server(p *Player) ServerOps {
	return ServerOps{p: p}
}

// Deal hands the player a fresh hand, sorted for the round's trump.
func (o ServerOps) Deal(hand []cards.Card, trump cards.Suit) {
	o.p.Hand = cards.SortHand(hand, trump)
}

func (o ServerOps) PlaceBid(bid, cardsThisRound int) error {
	if o.p.HasBid() {
		return ErrAlreadyBid
	}
	if bid < 0 || bid > cardsThisRound {
		return errors.Wrapf(ErrBidOutOfRange, "bid %d with %d cards", bid, cardsThisRound)
	}
	o.p.Bid = bid
	return nil
}

// Play removes card from the hand after checking it may follow board.
func (o ServerOps) Play(card cards.Card, board []cards.Card, trump cards.Suit) error {
	if !cards.Contains(o.p.Hand, card) {
		return errors.Wrapf(ErrCardNotInHand, "%s", card)
	}
	if !cards.CanPlay(o.p.Hand, board, card) {
		return errors.Wrapf(ErrMustFollowSuit, "%s", card)
	}
	o.p.Hand = cards.ResortAfterPlay(o.p.Hand, card, trump)
	return nil
}

func (o ServerOps) WinTrick() {
	o.p.TricksWon++
}

// ScoreRound settles the round and returns the points earned.
func (o ServerOps) ScoreRound() int {
	return o.p.scoreRound()
}

func (p *Player) scoreRound() int {
	p.RoundPoints = RoundPoints(p.Bid, p.TricksWon)
	p.TotalPoints += p.RoundPoints
	return p.RoundPoints
}
