package player

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const MaxNameLength = 20

var (
	ErrNameInvalid = errors.New("USERNAME_INVALID: Username is not allowed")
	ErrNameTaken   = errors.New("USERNAME_TAKEN: Username already taken")
	ErrUnknownSlot = errors.New("UNKNOWN_SLOT: no player in that slot")
)

// ValidateName checks a requested player name. Names travel inside the
// dash-separated snapshot, so dashes are refused.
func ValidateName(name string) error {
	if name == "" {
		return errors.Wrap(ErrNameInvalid, "Username cannot be empty")
	}
	if len(name) > MaxNameLength {
		return errors.Wrapf(ErrNameInvalid, "Username too long (max %d characters)", MaxNameLength)
	}
	if strings.ContainsAny(name, "-~") || strings.TrimSpace(name) != name {
		return errors.Wrap(ErrNameInvalid, "Username contains a reserved character")
	}
	return nil
}

// Roster owns every Player of a session, indexed by slot, seat and name.
type Roster struct {
	players []*Player // by slot
}

func NewRoster(n int) *Roster {
	r := &Roster{players: make([]*Player, n)}
	for slot := range r.players {
		r.players[slot] = New(slot)
	}
	return r
}

func (r *Roster) Size() int {
	return len(r.players)
}

// BySlot returns the player bound to a connection slot, or nil.
func (r *Roster) BySlot(slot int) *Player {
	if slot < 0 || slot >= len(r.players) {
		return nil
	}
	return r.players[slot]
}

// BySeat returns the player sitting at seat, or nil.
func (r *Roster) BySeat(seat int) *Player {
	for _, p := range r.players {
		if p.Index == seat {
			return p
		}
	}
	return nil
}

// ByName returns the named player, or nil.
func (r *Roster) ByName(name string) *Player {
	if name == "" {
		return nil
	}
	for _, p := range r.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Seated returns every player ordered by seat.
func (r *Roster) Seated() []*Player {
	out := append([]*Player(nil), r.players...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// SetName names the player in slot. Renaming to the current name is a no-op.
func (r *Roster) SetName(slot int, name string) error {
	p := r.BySlot(slot)
	if p == nil {
		return ErrUnknownSlot
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	if other := r.ByName(name); other != nil && other != p {
		return ErrNameTaken
	}
	p.Name = name
	return nil
}

func (r *Roster) ClearName(slot int) {
	if p := r.BySlot(slot); p != nil {
		p.Name = ""
	}
}

func (r *Roster) AllNamed() bool {
	for _, p := range r.players {
		if !p.HasName() {
			return false
		}
	}
	return true
}

// Rotate moves everyone one seat towards the dealer: seat 1 becomes seat 0
// and seat 0 goes to the end.
func (r *Roster) Rotate() {
	n := len(r.players)
	for _, p := range r.players {
		p.Index = (p.Index - 1 + n) % n
	}
}

// ResetForGame clears scores and round state for a new game.
func (r *Roster) ResetForGame() {
	for _, p := range r.players {
		p.ResetGame()
	}
}

func (r *Roster) ResetForRound() {
	for _, p := range r.players {
		p.ResetRound()
	}
}

// Winners returns the players sharing the highest total, in seat order.
func (r *Roster) Winners() []*Player {
	return r.top(func(p *Player) int { return p.TotalPoints })
}

// Leaders returns the players sharing the most games won, in seat order.
func (r *Roster) Leaders() []*Player {
	return r.top(func(p *Player) int { return p.GamesWon })
}

func (r *Roster) top(score func(*Player) int) []*Player {
	var best []*Player
	for _, p := range r.Seated() {
		switch {
		case len(best) == 0 || score(p) > score(best[0]):
			best = []*Player{p}
		case score(p) == score(best[0]):
			best = append(best, p)
		}
	}
	return best
}

// Names returns the players' names in order.
func Names(players []*Player) []string {
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name
	}
	return names
}
