package session

import (
	"ohhell-server/internal/player"
	"ohhell-server/internal/protocol"
)

// PlayerStatus is the public view of one seat.
type PlayerStatus struct {
	Name        string `json:"name"`
	Seat        int    `json:"seat"`
	Slot        int    `json:"slot"`
	Bid         int    `json:"bid"`
	TricksWon   int    `json:"tricksWon"`
	TotalPoints int    `json:"totalPoints"`
	GamesWon    int    `json:"gamesWon"`
	Connected   bool   `json:"connected"`
}

// Status summarises the tournament for operators. It never includes hands.
type Status struct {
	Phase          string            `json:"phase"`
	Bidding        string            `json:"bidding"`
	Players        []PlayerStatus    `json:"players"`
	GamesPlayed    int               `json:"gamesPlayed"`
	InProgress     bool              `json:"inProgress"`
	Round          int               `json:"round"`
	CardsThisRound int               `json:"cardsThisRound"`
	Trick          int               `json:"trick"`
	StartNumber    int               `json:"startNumber"`
	Trump          string            `json:"trump,omitempty"`
	WhoseTurn      int               `json:"whoseTurn"`
	Triggers       protocol.Triggers `json:"triggers"`
}

func (e *Engine) Status() Status {
	sealed := e.bidding == Random && e.phase == AwaitingBids

	seated := e.roster.Seated()
	players := make([]PlayerStatus, len(seated))
	for i, p := range seated {
		bid := p.Bid
		if sealed {
			bid = player.NoBid
		}
		players[i] = PlayerStatus{
			Name:        p.Name,
			Seat:        p.Index,
			Slot:        p.Slot,
			Bid:         bid,
			TricksWon:   p.TricksWon,
			TotalPoints: p.TotalPoints,
			GamesWon:    p.GamesWon,
			Connected:   p.Connected,
		}
	}

	st := Status{
		Phase:          e.phase.String(),
		Bidding:        e.bidding.String(),
		Players:        players,
		GamesPlayed:    e.gamesPlayed,
		InProgress:     e.inProgress,
		Round:          e.round,
		CardsThisRound: e.cardsThisRound,
		Trick:          e.trickNumber,
		StartNumber:    e.startNumber,
		WhoseTurn:      e.WhoseTurn(),
		Triggers:       e.triggers.Clone(),
	}
	if e.inProgress && e.dealt {
		st.Trump = e.trump.Code()
	}
	return st
}
