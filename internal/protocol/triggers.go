package protocol

// Trigger names a lifecycle event counted by the server.
type Trigger string

const (
	TrickEnd          Trigger = "TrickEnd"
	RoundEnd          Trigger = "RoundEnd"
	PointsAwarded     Trigger = "PointsAwarded"
	WinnersAnnounced  Trigger = "WinnersAnnounced"
	TournamentLeaders Trigger = "TournamentLeaders"
	NewGameReset      Trigger = "NewGameReset"
	StartNumberSet    Trigger = "StartNumberSet"
	NewPack           Trigger = "NewPack"
	CardsDealt        Trigger = "CardsDealt"
	BiddingDone       Trigger = "BiddingDone"
	TrickStart        Trigger = "TrickStart"
	TrickWinnerLogged Trigger = "TrickWinnerLogged"
)

// TriggerOrder is both the wire order of the counters and the order in which
// a client must process advanced counters when several arrive in one
// snapshot: the tail of the previous trick or round settles before the next
// one begins.
var TriggerOrder = []Trigger{
	TrickEnd,
	RoundEnd,
	PointsAwarded,
	WinnersAnnounced,
	TournamentLeaders,
	NewGameReset,
	StartNumberSet,
	NewPack,
	CardsDealt,
	BiddingDone,
	TrickStart,
	TrickWinnerLogged,
}

// Triggers maps each lifecycle event to the number of times it occurred.
type Triggers map[Trigger]int

func NewTriggers() Triggers {
	t := make(Triggers, len(TriggerOrder))
	for _, k := range TriggerOrder {
		t[k] = 0
	}
	return t
}

// Bump increments the counter for k and returns the new value.
func (t Triggers) Bump(k Trigger) int {
	t[k]++
	return t[k]
}

func (t Triggers) Clone() Triggers {
	out := make(Triggers, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Advanced returns the keys whose counter in latest is ahead of t, in
// TriggerOrder.
func (t Triggers) Advanced(latest Triggers) []Trigger {
	var keys []Trigger
	for _, k := range TriggerOrder {
		if latest[k] > t[k] {
			keys = append(keys, k)
		}
	}
	return keys
}
