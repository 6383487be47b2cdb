package mirror

import (
	"fmt"

	"ohhell-server/internal/cards"
	"ohhell-server/internal/player"
	"ohhell-server/internal/protocol"
	"ohhell-server/internal/session"

	"github.com/pkg/errors"
)

// The intent methods validate user input locally and return the command to
// send. Invalid input never reaches the network.

func (m *Mirror) Join() (protocol.Command, error) {
	if err := player.ValidateName(m.self); err != nil {
		return protocol.Command{}, err
	}
	return protocol.NameCommand(m.self), nil
}

func (m *Mirror) ChooseStart(n int) (protocol.Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stage != ChoosingStart || m.acted {
		return protocol.Command{}, ErrNotNow
	}
	if m.chooserName() != m.self {
		return protocol.Command{}, ErrNotChooser
	}
	if limit := session.MaxStartNumber(m.roster.Size()); n < 1 || n > limit {
		return protocol.Command{}, errors.Wrapf(ErrStartOutOfRange, "%d not in 1..%d", n, limit)
	}
	m.acted = true
	return protocol.StartCommand(n), nil
}

func (m *Mirror) Ready() (protocol.Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stage != Readying || m.acted {
		return protocol.Command{}, ErrNotNow
	}
	m.acted = true
	return protocol.ReadyCommand(), nil
}

// Bid checks the range and shows the bid locally before the server has it.
func (m *Mirror) Bid(n int) (protocol.Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	self := m.selfPlayer()
	if m.stage != Bidding || m.acted || self == nil {
		return protocol.Command{}, ErrNotNow
	}
	if n < 0 || n > m.cardsThisRound {
		return protocol.Command{}, errors.Wrapf(player.ErrBidOutOfRange, "%d not in 0..%d", n, m.cardsThisRound)
	}
	player.Client(self).EchoBid(n)
	m.acted = true
	return protocol.BidCommand(n, self.Index), nil
}

// Play checks turn and follow-suit, then takes the card out of the local
// hand.
func (m *Mirror) Play(id int) (protocol.Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	self := m.selfPlayer()
	if m.stage != Playing || self == nil {
		return protocol.Command{}, ErrNotNow
	}
	if m.whoseTurn() != self.Index {
		return protocol.Command{}, ErrNotYourTurn
	}
	card, err := cards.FromID(id)
	if err != nil {
		return protocol.Command{}, err
	}
	if !cards.Contains(self.Hand, card) || !cards.CanPlay(self.Hand, m.board, card) {
		return protocol.Command{}, errors.Wrapf(ErrIllegalCard, "%s", card)
	}
	player.Client(self).EchoPlay(card, m.trump.Suit)
	m.board = append(m.board, card)
	m.acted = true
	return protocol.CardCommand(id, self.Index), nil
}

// Ack acknowledges the bids, a finished trick, the cleared table before
// the next lead, or the roster reveal.
func (m *Mirror) Ack() (protocol.Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.stage {
	case ReviewingBids, ReviewingTrick, ReadyingTrick, RosterRefresh:
	default:
		return protocol.Command{}, ErrNotNow
	}
	if m.acted {
		return protocol.Command{}, ErrNotNow
	}
	m.acted = true
	return protocol.AckCommand(), nil
}

func (m *Mirror) Rematch(accept bool) (protocol.Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stage != RematchVote || m.acted {
		return protocol.Command{}, ErrNotNow
	}
	m.acted = true
	return protocol.RematchCommand(accept), nil
}

func (m *Mirror) chooserName() string {
	if m.chooser != "" {
		return m.chooser
	}
	if m.roster == nil {
		return ""
	}
	return m.roster.BySeat(0).Name
}

// CanChooseStartNumber reports whether this player is expected to pick
// the start number now.
func (m *Mirror) CanChooseStartNumber() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage == ChoosingStart && !m.acted && m.chooserName() == m.self
}

func (m *Mirror) whoseTurn() int {
	if m.stage != Playing || m.roster == nil {
		return -1
	}
	return (m.trickLeader + len(m.board)) % m.roster.Size()
}

// WhoseTurn returns the seat expected to play, or -1.
func (m *Mirror) WhoseTurn() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.whoseTurn()
}

// LegalCards returns the cards this player may play now; nil when it is
// not their turn.
func (m *Mirror) LegalCards() []cards.Card {
	m.mu.Lock()
	defer m.mu.Unlock()
	self := m.selfPlayer()
	if self == nil || m.whoseTurn() != self.Index {
		return nil
	}
	return cards.LegalPlays(self.Hand, m.board)
}

// StatusText is the one-line prompt for the current stage.
func (m *Mirror) StatusText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roster == nil {
		return "Connecting..."
	}
	n := m.roster.Size()
	waiting := "Waiting for the other players..."

	switch m.stage {
	case Joining:
		return "Waiting for players to join..."
	case ChoosingStart:
		if m.chooserName() != m.self {
			return fmt.Sprintf("Waiting for %s to choose the number of cards...", m.chooserName())
		}
		if m.acted {
			return waiting
		}
		return fmt.Sprintf("Choose the number of cards to start with (1-%d)", session.MaxStartNumber(n))
	case Readying:
		if m.acted {
			return waiting
		}
		return fmt.Sprintf("Starting with %d cards. Ready?", m.startNumber)
	case Bidding:
		if m.acted {
			return player.BiddingWaitText(n)
		}
		return fmt.Sprintf("Your bid (0-%d)", m.cardsThisRound)
	case ReviewingBids, ReviewingTrick, ReadyingTrick, RosterRefresh:
		if m.acted {
			return waiting
		}
		return "Press enter to continue"
	case Playing:
		turn := m.whoseTurn()
		if self := m.selfPlayer(); self != nil && self.Index == turn {
			return "Your turn to play"
		}
		return fmt.Sprintf("Waiting for %s to play...", m.roster.BySeat(turn).Name)
	case RematchVote:
		if m.acted {
			return waiting
		}
		return "Play again? (yes/no)"
	}
	return ""
}
