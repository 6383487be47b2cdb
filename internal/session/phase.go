package session

import (
	"strings"

	"github.com/pkg/errors"
)

// Phase is where the tournament currently waits.
type Phase int

const (
	// AwaitingRoster fills seats; a seat is done once it has a name.
	AwaitingRoster Phase = iota
	// AwaitingStartNumber waits on the chooser alone, so it is not a barrier.
	AwaitingStartNumber
	// AwaitingAllReady waits for every seat to accept the start number.
	AwaitingAllReady
	// AwaitingBids is done per seat when its bid is placed.
	AwaitingBids
	// AwaitingAllReadyForTrick precedes every trick: after the bids for the
	// first, after the cleared table for the rest.
	AwaitingAllReadyForTrick
	// AwaitingAllPlays is done per seat when its card is on the board. Turn
	// order is enforced separately.
	AwaitingAllPlays
	// ResolvingTrick holds the full board on screen until everyone acks.
	ResolvingTrick
	AwaitingRematchDecision
	// AwaitingRosterRefresh lets clients show the rotated seats before the
	// next start number is chosen.
	AwaitingRosterRefresh
	Finished
)

var phaseString = map[Phase]string{
	AwaitingRoster:           "AwaitingRoster",
	AwaitingStartNumber:      "AwaitingStartNumber",
	AwaitingAllReady:         "AwaitingAllReady",
	AwaitingBids:             "AwaitingBids",
	AwaitingAllReadyForTrick: "AwaitingAllReadyForTrick",
	AwaitingAllPlays:         "AwaitingAllPlays",
	ResolvingTrick:           "ResolvingTrick",
	AwaitingRematchDecision:  "AwaitingRematchDecision",
	AwaitingRosterRefresh:    "AwaitingRosterRefresh",
	Finished:                 "Finished",
}

func (p Phase) String() string {
	return phaseString[p]
}

// barrier reports whether the phase only advances once every seat's
// action-complete flag is set.
func (p Phase) barrier() bool {
	switch p {
	case AwaitingStartNumber, Finished:
		return false
	}
	return true
}

// BiddingSystem decides what a seat sees of the other bids.
type BiddingSystem int

const (
	// Classic shows every bid as soon as it is placed.
	Classic BiddingSystem = iota
	// Random keeps bids sealed until the whole table has bid, so nobody can
	// react to another player's bid.
	Random
)

func (b BiddingSystem) String() string {
	if b == Random {
		return "random"
	}
	return "classic"
}

var ErrUnknownBiddingSystem = errors.New("UNKNOWN_BIDDING_SYSTEM: expected classic or random")

func ParseBiddingSystem(s string) (BiddingSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "classic", "":
		return Classic, nil
	case "random":
		return Random, nil
	}
	return Classic, errors.Wrapf(ErrUnknownBiddingSystem, "%q", s)
}
