package game

import (
	"sort"

	"github.com/quizdash/quizdash/internal/models"
)

// Standing is one row of the ranked leaderboard.
type Standing struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}

// Leaderboard ranks players descending by score. The sort is stable over join
// order, so equal scores keep a deterministic, reproducible order on every
// participant. Host view, per-player rank and final winner all derive from
// this one projection.
func Leaderboard(players map[string]models.Player) []Standing {
	ids := PlayersInJoinOrder(players)
	sort.SliceStable(ids, func(i, j int) bool {
		return players[ids[i]].Score > players[ids[j]].Score
	})

	standings := make([]Standing, len(ids))
	for i, id := range ids {
		standings[i] = Standing{
			PlayerID: id,
			Name:     players[id].Name,
			Score:    players[id].Score,
			Rank:     i + 1,
		}
	}
	return standings
}

// Rank returns the player's 1-based leaderboard position, or 0 when the
// player is not in the game.
func Rank(players map[string]models.Player, playerID string) int {
	for _, s := range Leaderboard(players) {
		if s.PlayerID == playerID {
			return s.Rank
		}
	}
	return 0
}

// Winner returns the rank-1 standing, reported once the game is finished.
func Winner(players map[string]models.Player) (Standing, bool) {
	standings := Leaderboard(players)
	if len(standings) == 0 {
		return Standing{}, false
	}
	return standings[0], true
}
