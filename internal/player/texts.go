package player

import (
	"fmt"
	"strings"
)

// everyone is how a message addresses the whole table.
func everyone(playerCount int) string {
	if playerCount == 2 {
		return "Both"
	}
	return "All"
}

// BiddingWaitText is shown while bids are outstanding.
func BiddingWaitText(playerCount int) string {
	return everyone(playerCount) + " players are bidding..."
}

// ListNames joins names as "Ann", "Ann and Bob" or "Ann, Bob and Cy".
func ListNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

// ScoreText reports the leaders after a round.
func ScoreText(leaders []*Player, playerCount int) string {
	if len(leaders) == 0 {
		return ""
	}
	points := leaders[0].TotalPoints
	switch {
	case len(leaders) == 1:
		return fmt.Sprintf("%s leads with %d points", leaders[0].Name, points)
	case len(leaders) == playerCount:
		return fmt.Sprintf("%s players tied with %d points", everyone(playerCount), points)
	default:
		return fmt.Sprintf("%s tied with %d points", ListNames(Names(leaders)), points)
	}
}

// WinnersText announces the winners of a game.
func WinnersText(winners []*Player, playerCount int) string {
	if len(winners) == 0 {
		return ""
	}
	points := winners[0].TotalPoints
	switch {
	case len(winners) == 1:
		return fmt.Sprintf("%s wins with %d points", winners[0].Name, points)
	case len(winners) == playerCount:
		return fmt.Sprintf("%s players share the win with %d points", everyone(playerCount), points)
	default:
		return fmt.Sprintf("%s share the win with %d points", ListNames(Names(winners)), points)
	}
}

// LeadersText reports who has won the most games so far.
func LeadersText(leaders []*Player, playerCount int) string {
	if len(leaders) == 0 {
		return ""
	}
	games := leaders[0].GamesWon
	unit := "games"
	if games == 1 {
		unit = "game"
	}
	switch {
	case len(leaders) == 1:
		return fmt.Sprintf("%s leads the tournament with %d %s won", leaders[0].Name, games, unit)
	case len(leaders) == playerCount:
		return fmt.Sprintf("%s players lead the tournament with %d %s won", everyone(playerCount), games, unit)
	default:
		return fmt.Sprintf("%s lead the tournament with %d %s won", ListNames(Names(leaders)), games, unit)
	}
}
