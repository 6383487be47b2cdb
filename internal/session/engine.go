// Package session runs the authoritative tournament state machine.
//
// The Engine advances through games, rounds and tricks. Every waiting phase
// is a barrier: each seat sets its action-complete flag by sending the
// command the phase expects, and only when every flag is set does the
// engine clear them, bump the matching trigger counter once and move on.
package session

import (
	"math/rand"

	"ohhell-server/internal/cards"
	"ohhell-server/internal/player"
	"ohhell-server/internal/protocol"

	"github.com/pkg/errors"
)

const (
	MinPlayers = 2
	MaxPlayers = 6
)

var (
	ErrPlayerLeft      = errors.New("PLAYER_LEFT: a player left while a game was in progress")
	ErrPlayerCount     = errors.New("PLAYER_COUNT: between 2 and 6 players are supported")
	ErrWrongPhase      = errors.New("WRONG_PHASE: command not accepted in the current phase")
	ErrNotChooser      = errors.New("NOT_CHOOSER: only the reigning seat picks the start number")
	ErrStartOutOfRange = errors.New("START_OUT_OF_RANGE: start number does not fit the pack")
	ErrSeatMismatch    = errors.New("SEAT_MISMATCH: command names another seat")
	ErrNotYourTurn     = errors.New("NOT_YOUR_TURN: another seat plays next")
	ErrAlreadyDone     = errors.New("ALREADY_DONE: action already recorded for this seat")
	ErrUnknownSlot     = errors.New("UNKNOWN_SLOT: no seat bound to that slot")
	ErrNotConnected    = errors.New("NOT_CONNECTED: slot has no live connection")
)

// MaxStartNumber is the largest hand size that leaves a trump card in the
// pack.
func MaxStartNumber(players int) int {
	return (cards.PackSize - 1) / players
}

// Bump is one trigger increment, with the counter's new value. Clients
// compare counters between snapshots to learn what happened, so a bump is
// recorded exactly once per event even when several land in one snapshot.
type Bump struct {
	Trigger protocol.Trigger
	Value   int
}

// Engine is the tournament state. It is not safe for concurrent use; the
// Machine owns it from a single goroutine.
type Engine struct {
	roster  *player.Roster
	bidding BiddingSystem
	rng     *rand.Rand

	phase    Phase
	done     []bool // by slot
	triggers protocol.Triggers
	bumps    []Bump

	gamesPlayed int
	chooser     int // slot picking the next start number
	startNumber int
	rematch     bool // set between an accepted rematch and the roster refresh
	inProgress  bool

	round          int
	cardsThisRound int
	trump          cards.Card
	dealt          bool
	roundLeader    int // seat
	trickNumber    int
	trickLeader    int // seat
	board          []cards.Card
	lastWinner     int // seat
}

// EngineCfg configures an Engine.
type EngineCfg func(*Engine) error

// WithRand fixes the shuffle source.
func WithRand(r *rand.Rand) EngineCfg {
	return func(e *Engine) error {
		e.rng = r
		return nil
	}
}

func NewEngine(players int, bidding BiddingSystem, cfgs ...EngineCfg) (*Engine, error) {
	if players < MinPlayers || players > MaxPlayers {
		return nil, errors.Wrapf(ErrPlayerCount, "%d players", players)
	}
	e := &Engine{
		roster:     player.NewRoster(players),
		bidding:    bidding,
		phase:      AwaitingRoster,
		done:       make([]bool, players),
		triggers:   protocol.NewTriggers(),
		lastWinner: -1,
	}
	for _, cfg := range cfgs {
		if err := cfg(e); err != nil {
			return nil, errors.Wrap(err, "apply Engine cfg failed")
		}
	}
	return e, nil
}

func (e *Engine) Phase() Phase {
	return e.phase
}

func (e *Engine) Roster() *player.Roster {
	return e.roster
}

func (e *Engine) Bidding() BiddingSystem {
	return e.bidding
}

func (e *Engine) Triggers() protocol.Triggers {
	return e.triggers.Clone()
}

func (e *Engine) CardsThisRound() int {
	return e.cardsThisRound
}

func (e *Engine) StartNumber() int {
	return e.startNumber
}

// Chooser returns the slot allowed to pick the next start number.
func (e *Engine) Chooser() int {
	return e.chooser
}

// Trump returns the turned-up card of the current round.
func (e *Engine) Trump() (cards.Card, bool) {
	return e.trump, e.dealt
}

func (e *Engine) Board() []cards.Card {
	return append([]cards.Card(nil), e.board...)
}

// DrainBumps returns the trigger increments since the previous call.
func (e *Engine) DrainBumps() []Bump {
	out := e.bumps
	e.bumps = nil
	return out
}

// WhoseTurn returns the seat expected to play, or -1 outside trick play.
func (e *Engine) WhoseTurn() int {
	if e.phase != AwaitingAllPlays {
		return -1
	}
	return (e.trickLeader + len(e.board)) % e.roster.Size()
}

// Connect binds a live connection to slot. Seats only fill while the
// roster is forming.
func (e *Engine) Connect(slot int) error {
	p := e.roster.BySlot(slot)
	if p == nil {
		return ErrUnknownSlot
	}
	if e.phase != AwaitingRoster {
		return errors.Wrap(ErrWrongPhase, "roster is closed")
	}
	p.Connected = true
	return nil
}

// Disconnect releases slot. Before the roster is complete the seat simply
// empties; during a rematch vote it counts as a refusal; at any other
// point the session cannot continue and ErrPlayerLeft is returned.
func (e *Engine) Disconnect(slot int) error {
	p := e.roster.BySlot(slot)
	if p == nil {
		return ErrUnknownSlot
	}
	p.Connected = false

	switch e.phase {
	case AwaitingRoster:
		e.roster.ClearName(slot)
		e.done[slot] = false
		return nil
	case AwaitingRematchDecision:
		e.finish()
		return nil
	case Finished:
		return nil
	}
	e.finish()
	return errors.Wrapf(ErrPlayerLeft, "slot %d (%s)", slot, p.Name)
}

// Handle validates cmd from slot and applies it. A rejected command leaves
// the state untouched.
func (e *Engine) Handle(slot int, cmd protocol.Command) error {
	p := e.roster.BySlot(slot)
	if p == nil {
		return ErrUnknownSlot
	}
	if !p.Connected {
		return ErrNotConnected
	}

	var err error
	switch cmd.Code {
	case protocol.CodeName:
		err = e.setName(p, cmd.Name)
	case protocol.CodeStart:
		err = e.setStartNumber(p, cmd.Number)
	case protocol.CodeReady, protocol.CodeReadyAlt:
		err = e.mark(p, AwaitingAllReady)
	case protocol.CodeBid:
		err = e.bid(p, cmd)
	case protocol.CodeCard:
		err = e.play(p, cmd)
	case protocol.CodeAck:
		err = e.mark(p, AwaitingAllReadyForTrick, ResolvingTrick, AwaitingRosterRefresh)
	case protocol.CodeRematch:
		err = e.mark(p, AwaitingRematchDecision)
	case protocol.CodeRefuse:
		if e.phase != AwaitingRematchDecision {
			return errors.Wrapf(ErrWrongPhase, "refuse in %s", e.phase)
		}
		e.finish()
		return nil
	case protocol.CodeTerminate, protocol.CodeKeepAlive:
		return nil
	default:
		return errors.Wrapf(protocol.ErrUnknownCode, "%s", cmd.Code)
	}
	if err != nil {
		return err
	}

	e.advance()
	return nil
}

func (e *Engine) setName(p *player.Player, name string) error {
	if e.phase != AwaitingRoster {
		return errors.Wrapf(ErrWrongPhase, "name in %s", e.phase)
	}
	if err := e.roster.SetName(p.Slot, name); err != nil {
		return err
	}
	e.done[p.Slot] = true
	return nil
}

// setStartNumber is the only action outside a barrier: one seat decides and
// the table moves straight to readying.
func (e *Engine) setStartNumber(p *player.Player, n int) error {
	if e.phase != AwaitingStartNumber {
		return errors.Wrapf(ErrWrongPhase, "start number in %s", e.phase)
	}
	if p.Slot != e.chooser {
		return ErrNotChooser
	}
	if n < 1 || n > MaxStartNumber(e.roster.Size()) {
		return errors.Wrapf(ErrStartOutOfRange, "%d not in 1..%d", n, MaxStartNumber(e.roster.Size()))
	}
	e.startNumber = n
	e.bump(protocol.StartNumberSet)
	e.phase = AwaitingAllReady
	return nil
}

// mark sets p's action-complete flag if the engine is in one of phases.
func (e *Engine) mark(p *player.Player, phases ...Phase) error {
	for _, ph := range phases {
		if e.phase == ph {
			if e.done[p.Slot] {
				return ErrAlreadyDone
			}
			e.done[p.Slot] = true
			return nil
		}
	}
	return errors.Wrapf(ErrWrongPhase, "in %s", e.phase)
}

func (e *Engine) bid(p *player.Player, cmd protocol.Command) error {
	if e.phase != AwaitingBids {
		return errors.Wrapf(ErrWrongPhase, "bid in %s", e.phase)
	}
	if cmd.Seat != p.Index {
		return errors.Wrapf(ErrSeatMismatch, "seat %d claimed by seat %d", cmd.Seat, p.Index)
	}
	if err := player.Server(p).PlaceBid(cmd.Number, e.cardsThisRound); err != nil {
		return err
	}
	e.done[p.Slot] = true
	return nil
}

func (e *Engine) play(p *player.Player, cmd protocol.Command) error {
	if e.phase != AwaitingAllPlays {
		return errors.Wrapf(ErrWrongPhase, "card in %s", e.phase)
	}
	if cmd.Seat != p.Index {
		return errors.Wrapf(ErrSeatMismatch, "seat %d claimed by seat %d", cmd.Seat, p.Index)
	}
	if turn := e.WhoseTurn(); turn != p.Index {
		return errors.Wrapf(ErrNotYourTurn, "seat %d to play", turn)
	}
	card, err := cards.FromID(cmd.Number)
	if err != nil {
		return err
	}
	if err := player.Server(p).Play(card, e.board, e.trump.Suit); err != nil {
		return err
	}
	e.board = append(e.board, card)
	e.done[p.Slot] = true
	return nil
}

// bump increments k and remembers the increment for the observer.
func (e *Engine) bump(k protocol.Trigger) {
	e.bumps = append(e.bumps, Bump{Trigger: k, Value: e.triggers.Bump(k)})
}

func (e *Engine) allDone() bool {
	for _, d := range e.done {
		if !d {
			return false
		}
	}
	return true
}

// clearFlags resets every action-complete flag. It runs before each
// transition so flags never leak from one barrier into the next.
func (e *Engine) clearFlags() {
	for i := range e.done {
		e.done[i] = false
	}
}

// advance applies the barrier rule until the engine rests in a phase that
// still waits on somebody.
func (e *Engine) advance() {
	for e.phase.barrier() && e.allDone() {
		e.clearFlags()
		e.transition()
	}
}

// transition leaves the current barrier phase. Triggers bump in the order
// clients replay them, so a burst delivered in one snapshot still reads as
// trick end, round end, points, winners, then the next deal.
func (e *Engine) transition() {
	switch e.phase {
	case AwaitingRoster:
		e.phase = AwaitingStartNumber
	case AwaitingAllReady:
		e.startGame()
	case AwaitingBids:
		e.bump(protocol.BiddingDone)
		e.phase = AwaitingAllReadyForTrick
	case AwaitingAllReadyForTrick:
		// The round leader opens a round; after that the last winner leads.
		leader := e.roundLeader
		if e.trickNumber > 0 {
			leader = e.lastWinner
		}
		e.startTrick(leader)
	case AwaitingAllPlays:
		e.resolveTrick()
	case ResolvingTrick:
		e.endTrick()
	case AwaitingRematchDecision:
		e.resetForRematch()
	case AwaitingRosterRefresh:
		// Clearing the flag is how clients see the refresh complete.
		e.rematch = false
		e.phase = AwaitingStartNumber
	}
}

// startGame resets per-game scores and deals the first round.
func (e *Engine) startGame() {
	e.inProgress = true
	e.round = 0
	e.cardsThisRound = e.startNumber
	e.roster.ResetForGame()
	e.deal()
}

// deal shuffles a full pack, turns up the trump and deals cardsThisRound
// cards to every seat one at a time, starting with the round leader.
func (e *Engine) deal() {
	n := e.roster.Size()
	e.round++
	e.roundLeader = (e.round - 1) % n
	e.roster.ResetForRound()
	e.board = nil
	e.trickNumber = 0
	e.lastWinner = -1

	pack := cards.NewPack()
	pack.Shuffle(e.rng)
	e.bump(protocol.NewPack)

	e.trump = pack.Draw(1)[0]
	e.dealt = true
	hands := make([][]cards.Card, n)
	for range e.cardsThisRound {
		for i := range n {
			seat := (e.roundLeader + i) % n
			hands[seat] = append(hands[seat], pack.Draw(1)...)
		}
	}
	for seat, hand := range hands {
		player.Server(e.roster.BySeat(seat)).Deal(hand, e.trump.Suit)
	}
	e.bump(protocol.CardsDealt)
	e.phase = AwaitingBids
}

// startTrick opens the board with leader to play first.
func (e *Engine) startTrick(leader int) {
	e.trickNumber++
	e.trickLeader = leader
	e.board = nil
	e.bump(protocol.TrickStart)
	e.phase = AwaitingAllPlays
}

// resolveTrick credits the trick to its winner but leaves the board in
// place; TrickWinnerLogged lets clients resolve the same board themselves.
func (e *Engine) resolveTrick() {
	pos, err := cards.ResolveTrick(e.board, e.trump.Suit)
	if err != nil {
		// Unreachable: every seat has played before the barrier opens.
		panic(err)
	}
	winner := (e.trickLeader + pos) % e.roster.Size()
	player.Server(e.roster.BySeat(winner)).WinTrick()
	e.lastWinner = winner
	e.bump(protocol.TrickWinnerLogged)
	e.phase = ResolvingTrick
}

// endTrick clears the table. Every trick but the last of a round passes
// through the ready barrier again before the next lead.
func (e *Engine) endTrick() {
	e.board = nil
	e.bump(protocol.TrickEnd)
	if e.trickNumber < e.cardsThisRound {
		e.phase = AwaitingAllReadyForTrick
		return
	}
	e.endRound()
}

// endRound scores every seat, then deals one card fewer or ends the game
// after the one-card round.
func (e *Engine) endRound() {
	for _, p := range e.roster.Seated() {
		player.Server(p).ScoreRound()
	}
	e.bump(protocol.RoundEnd)
	e.bump(protocol.PointsAwarded)

	e.cardsThisRound--
	if e.cardsThisRound > 0 {
		e.deal()
		return
	}
	e.endGame()
}

// endGame credits every seat tied on points with a game win. The first of
// them picks the next start number if the table plays again.
func (e *Engine) endGame() {
	winners := e.roster.Winners()
	for _, w := range winners {
		w.GamesWon++
	}
	e.bump(protocol.WinnersAnnounced)
	e.bump(protocol.TournamentLeaders)

	e.inProgress = false
	e.dealt = false
	e.gamesPlayed++
	e.chooser = winners[0].Slot
	e.phase = AwaitingRematchDecision
}

// resetForRematch rotates the seats one place and zeroes the scores.
// GamesWon carries over for the tournament table.
func (e *Engine) resetForRematch() {
	e.rematch = true
	e.roster.Rotate()
	e.roster.ResetForGame()
	e.board = nil
	e.bump(protocol.NewGameReset)
	e.phase = AwaitingRosterRefresh
}

func (e *Engine) finish() {
	e.inProgress = false
	e.phase = Finished
}

// Snapshot renders the state as seen from slot.
func (e *Engine) Snapshot(slot int) protocol.Snapshot {
	viewer := e.roster.BySlot(slot)

	seated := e.roster.Seated()
	players := make([]protocol.PlayerView, len(seated))
	for i, p := range seated {
		bid := p.Bid
		if e.bidding == Random && e.phase == AwaitingBids && p != viewer {
			bid = player.NoBid
		}
		players[i] = protocol.PlayerView{Name: p.Name, Bid: bid}
	}

	status := protocol.Status{Rematch: e.rematch, InProgress: e.inProgress, Trump: -1}
	if e.inProgress {
		if e.dealt {
			status.Trump = e.trump.ID()
		}
	} else {
		status.StartNumber = e.startNumber
	}

	var hand []int
	if viewer != nil && len(viewer.Hand) > 0 {
		hand = cards.IDs(viewer.Hand)
	}
	var board []int
	if len(e.board) > 0 {
		board = cards.IDs(e.board)
	}

	return protocol.Snapshot{
		Triggers: e.triggers.Clone(),
		Players:  players,
		Board:    board,
		Status:   status,
		Hand:     hand,
	}
}
