// Package mirror keeps a client's lagged copy of the session.
//
// The server only ever sends whole snapshots. The mirror compares the
// snapshot's trigger counters with its own, replays every advanced trigger
// in lifecycle order, then adopts the snapshot's names, bids, board and
// hand. Apart from echoing the player's own bid and card it never decides
// anything the server has not already decided.
package mirror

import (
	"context"
	"fmt"
	"sync"

	"ohhell-server/internal/cards"
	"ohhell-server/internal/player"
	"ohhell-server/internal/protocol"
	"ohhell-server/internal/session"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

var (
	ErrRosterSize      = errors.New("ROSTER_SIZE: snapshot does not match the table size")
	ErrNotNow          = errors.New("NOT_NOW: that action is not expected now")
	ErrNotChooser      = errors.New("NOT_CHOOSER: another player picks the start number")
	ErrStartOutOfRange = errors.New("START_OUT_OF_RANGE: start number does not fit the pack")
	ErrNotYourTurn     = errors.New("NOT_YOUR_TURN: wait for your turn")
	ErrIllegalCard     = errors.New("ILLEGAL_CARD: that card cannot be played now")
)

// Stage is what the table is doing, as far as this client can tell.
type Stage int

const (
	Joining Stage = iota
	ChoosingStart
	Readying
	Bidding
	ReviewingBids
	Playing
	ReviewingTrick
	ReadyingTrick
	RematchVote
	RosterRefresh
)

var stageString = map[Stage]string{
	Joining:        "joining",
	ChoosingStart:  "choosing start",
	Readying:       "readying",
	Bidding:        "bidding",
	ReviewingBids:  "reviewing bids",
	Playing:        "playing",
	ReviewingTrick: "reviewing trick",
	ReadyingTrick:  "readying trick",
	RematchVote:    "rematch vote",
	RosterRefresh:  "roster refresh",
}

func (s Stage) String() string {
	return stageString[s]
}

// Mirror is safe for concurrent use: the network task applies snapshots
// while the UI task reads and submits intents.
type Mirror struct {
	self string

	mu      sync.Mutex
	changed chan struct{}

	roster   *player.Roster
	triggers protocol.Triggers
	rematch  bool
	stage    Stage
	acted    bool

	startNumber    int
	cardsThisRound int
	trump          cards.Card
	hasTrump       bool
	roundLeader    int
	trickLeader    int
	trickInRound   int
	lastWinner     int
	board          []cards.Card
	chooser        string
	notes          []string
}

// New returns a mirror for the player called self.
func New(self string) *Mirror {
	return &Mirror{
		self:     self,
		changed:  make(chan struct{}),
		triggers: protocol.NewTriggers(),
	}
}

// Apply brings the mirror up to date with snap.
func (m *Mirror) Apply(snap protocol.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.roster == nil {
		if len(snap.Players) < session.MinPlayers {
			return errors.Wrapf(ErrRosterSize, "%d players", len(snap.Players))
		}
		m.roster = player.NewRoster(len(snap.Players))
	}
	if len(snap.Players) != m.roster.Size() {
		return errors.Wrapf(ErrRosterSize, "%d players, expected %d", len(snap.Players), m.roster.Size())
	}

	for _, k := range m.triggers.Advanced(snap.Triggers) {
		if err := m.handle(k, snap); err != nil {
			return err
		}
		logger.WithField("trigger", k).WithField("value", snap.Triggers[k]).Debug("trigger replayed")
	}
	m.triggers = snap.Triggers.Clone()

	// Bids and names are adopted only after the handlers ran, so a round's
	// scoring still sees the bids it was played with.
	for seat, view := range snap.Players {
		p := m.roster.BySeat(seat)
		p.Name = view.Name
		player.Client(p).AdoptBid(view.Bid)
	}
	if self := m.selfPlayer(); self != nil {
		if err := player.Client(self).AdoptHand(snap.Hand); err != nil {
			return err
		}
	}
	board, err := toCards(snap.Board)
	if err != nil {
		return err
	}
	m.board = board
	m.rematch = snap.Status.Rematch

	switch {
	case m.stage == Joining && m.roster.AllNamed():
		m.enter(ChoosingStart)
	case m.stage == RosterRefresh && !m.rematch:
		m.enter(ChoosingStart)
	}

	close(m.changed)
	m.changed = make(chan struct{})
	return nil
}

func (m *Mirror) handle(k protocol.Trigger, snap protocol.Snapshot) error {
	n := m.roster.Size()
	switch k {
	case protocol.TrickEnd:
		m.board = nil
		if m.trickInRound < m.cardsThisRound {
			m.enter(ReadyingTrick)
		}

	case protocol.RoundEnd:
		m.note("End of round %d", m.startNumber-m.cardsThisRound+1)

	case protocol.PointsAwarded:
		for _, p := range m.roster.Seated() {
			player.Client(p).ScoreRound()
		}
		m.note("%s", player.ScoreText(m.roster.Winners(), n))

	case protocol.WinnersAnnounced:
		winners := m.roster.Winners()
		for _, w := range winners {
			w.GamesWon++
		}
		m.chooser = winners[0].Name
		m.hasTrump = false
		m.note("%s", player.WinnersText(winners, n))
		m.enter(RematchVote)

	case protocol.TournamentLeaders:
		m.note("%s", player.LeadersText(m.roster.Leaders(), n))

	case protocol.NewGameReset:
		m.roster.Rotate()
		m.roster.ResetForGame()
		m.enter(RosterRefresh)

	case protocol.StartNumberSet:
		m.startNumber = snap.Status.StartNumber
		m.enter(Readying)

	case protocol.NewPack:
		m.roster.ResetForRound()
		m.board = nil

	case protocol.CardsDealt:
		m.cardsThisRound = len(snap.Hand)
		if snap.Status.Trump >= 0 {
			trump, err := cards.FromID(snap.Status.Trump)
			if err != nil {
				return err
			}
			m.trump, m.hasTrump = trump, true
		}
		m.roundLeader = (m.startNumber - m.cardsThisRound) % n
		m.trickInRound = 0
		m.enter(Bidding)

	case protocol.BiddingDone:
		m.enter(ReviewingBids)

	case protocol.TrickStart:
		m.trickLeader = m.lastWinner
		if m.trickInRound == 0 {
			m.trickLeader = m.roundLeader
		}
		m.trickInRound++
		m.enter(Playing)

	case protocol.TrickWinnerLogged:
		board, err := toCards(snap.Board)
		if err != nil {
			return err
		}
		pos, err := cards.ResolveTrick(board, m.trump.Suit)
		if err != nil {
			return err
		}
		m.lastWinner = (m.trickLeader + pos) % n
		winner := m.roster.BySeat(m.lastWinner)
		player.Client(winner).WinTrick()
		m.note("%s wins the trick", winner.Name)
		m.enter(ReviewingTrick)
	}
	return nil
}

func (m *Mirror) enter(s Stage) {
	m.stage = s
	m.acted = false
}

func (m *Mirror) note(format string, args ...any) {
	m.notes = append(m.notes, fmt.Sprintf(format, args...))
}

func (m *Mirror) selfPlayer() *player.Player {
	if m.roster == nil {
		return nil
	}
	return m.roster.ByName(m.self)
}

func toCards(ids []int) ([]cards.Card, error) {
	out := make([]cards.Card, 0, len(ids))
	for _, id := range ids {
		c, err := cards.FromID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// AttributeWait blocks until the mirrored counter for key is past after,
// and returns its value.
func (m *Mirror) AttributeWait(ctx context.Context, key protocol.Trigger, after int) (int, error) {
	for {
		m.mu.Lock()
		v, ch := m.triggers[key], m.changed
		m.mu.Unlock()
		if v > after {
			return v, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
}

// Changed is closed by the next Apply.
func (m *Mirror) Changed() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

func (m *Mirror) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// DrainNotes returns the announcements collected since the last call.
func (m *Mirror) DrainNotes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.notes
	m.notes = nil
	return out
}

// Players returns copies of the seats in seat order.
func (m *Mirror) Players() []player.Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roster == nil {
		return nil
	}
	seated := m.roster.Seated()
	out := make([]player.Player, len(seated))
	for i, p := range seated {
		out[i] = *p
		out[i].Hand = append([]cards.Card(nil), p.Hand...)
	}
	return out
}

func (m *Mirror) Hand() []cards.Card {
	m.mu.Lock()
	defer m.mu.Unlock()
	if self := m.selfPlayer(); self != nil {
		return append([]cards.Card(nil), self.Hand...)
	}
	return nil
}

func (m *Mirror) Board() []cards.Card {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]cards.Card(nil), m.board...)
}

func (m *Mirror) Trump() (cards.Card, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trump, m.hasTrump
}
