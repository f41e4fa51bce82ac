package game

import (
	"math"
	"sort"

	"github.com/quizdash/quizdash/internal/models"
)

// Award is one player's outcome for one question.
type Award struct {
	PlayerID string
	Points   int // includes the fastest bonus when Fastest is set
	Fastest  bool
}

// AnswerPoints computes the base award for a correct answer: the full base
// value scaled by the points multiplier decays linearly to zero across the
// answering window. Times at or past the window floor to zero but the answer
// still counts as correct.
func AnswerPoints(timeMs, multiplier int) int {
	speed := 1 - float64(timeMs)/float64(QuestionWindowMs)
	if speed < 0 {
		speed = 0
	}
	return int(math.Round(float64(BasePoints) * float64(multiplier) * speed))
}

// PlayersInJoinOrder returns player IDs ordered by join time, then ID. This
// is the deterministic base order behind every tie-break in the game: scoring
// ties at identical times and leaderboard ties at identical scores both
// resolve to it.
func PlayersInJoinOrder(players map[string]models.Player) []string {
	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := players[ids[i]], players[ids[j]]
		if a.JoinedAt != b.JoinedAt {
			return a.JoinedAt < b.JoinedAt
		}
		return ids[i] < ids[j]
	})
	return ids
}

// ScoreQuestion computes the awards for one question: every live correct
// answer earns speed-weighted points, the single fastest correct responder an
// extra flat bonus, everyone else zero. Answers whose question index does not
// match are stale and count as no answer. The result covers every player, in
// join order, and depends only on its inputs; applying it to scores is the
// caller's job and must happen exactly once per question.
func ScoreQuestion(players map[string]models.Player, questionIndex int, q models.Question) []Award {
	multiplier := q.Points
	if multiplier < 1 {
		multiplier = 1
	}

	order := PlayersInJoinOrder(players)

	// Fastest correct responder; ties go to the earlier-joined player, a
	// stand-in for submission order that every observer reproduces.
	fastest := ""
	fastestTime := 0
	for _, id := range order {
		a := players[id].AnswerFor(questionIndex)
		if a == nil || a.Option != q.CorrectAnswer {
			continue
		}
		if fastest == "" || a.TimeMs < fastestTime {
			fastest = id
			fastestTime = a.TimeMs
		}
	}

	awards := make([]Award, 0, len(order))
	for _, id := range order {
		award := Award{PlayerID: id}
		if a := players[id].AnswerFor(questionIndex); a != nil && a.Option == q.CorrectAnswer {
			award.Points = AnswerPoints(a.TimeMs, multiplier)
			if id == fastest {
				award.Points += FastestBonus
				award.Fastest = true
			}
		}
		awards = append(awards, award)
	}
	return awards
}

// ApplyAwards returns a copy of the players map with award points added to
// cumulative scores. Answers are preserved so the results view can show them.
func ApplyAwards(players map[string]models.Player, awards []Award) map[string]models.Player {
	out := make(map[string]models.Player, len(players))
	for id, p := range players {
		out[id] = p
	}
	for _, award := range awards {
		p, ok := out[award.PlayerID]
		if !ok {
			continue
		}
		p.Score += award.Points
		out[award.PlayerID] = p
	}
	return out
}
