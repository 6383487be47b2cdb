// Package protocol defines the text formats exchanged over a game
// connection: client commands ("@B031") and server state snapshots.
package protocol

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	sectionSep = "---"
	playerSep  = "--"
	fieldSep   = "-"

	// UnsetName stands in for a seat that has not chosen a name.
	UnsetName = "~"
	// NoBid marks a seat that has not bid, or whose bid is still sealed.
	NoBid = "N"
	// None marks an empty card list or the absence of a trump card.
	None = "None"
)

var ErrMalformedSnapshot = errors.New("MALFORMED_SNAPSHOT: snapshot does not match the wire layout")

// PlayerView is what every client may see of a seat.
type PlayerView struct {
	// Name is empty while the seat is unnamed.
	Name string `json:"name"`
	// Bid is -1 while not bid or sealed.
	Bid int `json:"bid"`
}

// Status is the tournament/game status block.
type Status struct {
	Rematch    bool `json:"rematch"`
	InProgress bool `json:"inProgress"`
	// StartNumber is only carried while no game is in progress.
	StartNumber int `json:"startNumber"`
	// Trump is the trump pack index while a game is in progress, -1 before
	// the first deal.
	Trump int `json:"trump"`
}

// Snapshot is the full state a server exports to one seat.
type Snapshot struct {
	Triggers Triggers     `json:"triggers"`
	Players  []PlayerView `json:"players"`
	Board    []int        `json:"board"`
	Status   Status       `json:"status"`
	Hand     []int        `json:"hand"`
}

// Encode renders the snapshot in its wire layout, e.g.
//
//	0-0-0-0-0-0-1-1-1-0-0-0---Ann-N--Bob-2---None---0-1-12---3-17-40
func (s Snapshot) Encode() string {
	sections := []string{
		encodeTriggers(s.Triggers),
		encodePlayers(s.Players),
		encodeCards(s.Board),
		encodeStatus(s.Status),
		encodeCards(s.Hand),
	}
	return strings.Join(sections, sectionSep)
}

func encodeTriggers(t Triggers) string {
	values := make([]string, len(TriggerOrder))
	for i, k := range TriggerOrder {
		values[i] = strconv.Itoa(t[k])
	}
	return strings.Join(values, fieldSep)
}

func encodePlayers(players []PlayerView) string {
	pairs := make([]string, len(players))
	for i, p := range players {
		name := p.Name
		if name == "" {
			name = UnsetName
		}
		bid := NoBid
		if p.Bid >= 0 {
			bid = strconv.Itoa(p.Bid)
		}
		pairs[i] = name + fieldSep + bid
	}
	return strings.Join(pairs, playerSep)
}

func encodeCards(ids []int) string {
	if len(ids) == 0 {
		return None
	}
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = strconv.Itoa(id)
	}
	return strings.Join(values, fieldSep)
}

func encodeStatus(st Status) string {
	last := strconv.Itoa(st.StartNumber)
	if st.InProgress {
		last = None
		if st.Trump >= 0 {
			last = strconv.Itoa(st.Trump)
		}
	}
	return flag(st.Rematch) + fieldSep + flag(st.InProgress) + fieldSep + last
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ParseSnapshot decodes a snapshot produced by Encode.
func ParseSnapshot(raw string) (Snapshot, error) {
	sections := strings.Split(raw, sectionSep)
	if len(sections) != 5 {
		return Snapshot{}, errors.Wrapf(ErrMalformedSnapshot, "%d sections", len(sections))
	}

	triggers, err := parseTriggers(sections[0])
	if err != nil {
		return Snapshot{}, err
	}
	players, err := parsePlayers(sections[1])
	if err != nil {
		return Snapshot{}, err
	}
	board, err := parseCards(sections[2])
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "board")
	}
	status, err := parseStatus(sections[3])
	if err != nil {
		return Snapshot{}, err
	}
	hand, err := parseCards(sections[4])
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "hand")
	}

	return Snapshot{
		Triggers: triggers,
		Players:  players,
		Board:    board,
		Status:   status,
		Hand:     hand,
	}, nil
}

func parseTriggers(section string) (Triggers, error) {
	values := strings.Split(section, fieldSep)
	if len(values) != len(TriggerOrder) {
		return nil, errors.Wrapf(ErrMalformedSnapshot, "%d trigger values", len(values))
	}
	t := make(Triggers, len(TriggerOrder))
	for i, k := range TriggerOrder {
		v, err := strconv.Atoi(values[i])
		if err != nil || v < 0 {
			return nil, errors.Wrapf(ErrMalformedSnapshot, "trigger %s value %q", k, values[i])
		}
		t[k] = v
	}
	return t, nil
}

func parsePlayers(section string) ([]PlayerView, error) {
	if section == "" {
		return nil, nil
	}
	pairs := strings.Split(section, playerSep)
	players := make([]PlayerView, len(pairs))
	for i, pair := range pairs {
		name, bid, ok := strings.Cut(pair, fieldSep)
		if !ok || name == "" || strings.Contains(bid, fieldSep) {
			return nil, errors.Wrapf(ErrMalformedSnapshot, "player %q", pair)
		}
		if name == UnsetName {
			name = ""
		}
		players[i] = PlayerView{Name: name, Bid: -1}
		if bid != NoBid {
			v, err := strconv.Atoi(bid)
			if err != nil || v < 0 {
				return nil, errors.Wrapf(ErrMalformedSnapshot, "bid %q", bid)
			}
			players[i].Bid = v
		}
	}
	return players, nil
}

func parseCards(section string) ([]int, error) {
	if section == None {
		return nil, nil
	}
	values := strings.Split(section, fieldSep)
	ids := make([]int, len(values))
	for i, v := range values {
		id, err := strconv.Atoi(v)
		if err != nil || id < 0 || id > 51 {
			return nil, errors.Wrapf(ErrMalformedSnapshot, "card %q", v)
		}
		ids[i] = id
	}
	return ids, nil
}

func parseStatus(section string) (Status, error) {
	values := strings.Split(section, fieldSep)
	if len(values) != 3 {
		return Status{}, errors.Wrapf(ErrMalformedSnapshot, "status %q", section)
	}
	st := Status{Rematch: values[0] == "1", InProgress: values[1] == "1", Trump: -1}
	if values[2] == None {
		return st, nil
	}
	v, err := strconv.Atoi(values[2])
	if err != nil || v < 0 {
		return Status{}, errors.Wrapf(ErrMalformedSnapshot, "status value %q", values[2])
	}
	if st.InProgress {
		st.Trump = v
	} else {
		st.StartNumber = v
	}
	return st, nil
}
