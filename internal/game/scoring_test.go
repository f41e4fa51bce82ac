package game

import (
	"testing"

	"github.com/quizdash/quizdash/internal/models"
)

func TestAnswerPoints(t *testing.T) {
	tests := []struct {
		name       string
		timeMs     int
		multiplier int
		want       int
	}{
		{name: "instant standard", timeMs: 0, multiplier: 1, want: 1000},
		{name: "4s standard", timeMs: 4000, multiplier: 1, want: 800},
		{name: "9s standard", timeMs: 9000, multiplier: 1, want: 550},
		{name: "half window", timeMs: 10000, multiplier: 1, want: 500},
		{name: "at window", timeMs: 20000, multiplier: 1, want: 0},
		{name: "past window clamps", timeMs: 25000, multiplier: 1, want: 0},
		{name: "instant double", timeMs: 0, multiplier: 2, want: 2000},
		{name: "4s double", timeMs: 4000, multiplier: 2, want: 1600},
		{name: "at window double", timeMs: 20000, multiplier: 2, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AnswerPoints(tt.timeMs, tt.multiplier); got != tt.want {
				t.Fatalf("AnswerPoints(%d, %d) = %d, want %d", tt.timeMs, tt.multiplier, got, tt.want)
			}
		})
	}
}

func TestAnswerPointsStrictlyDecreasing(t *testing.T) {
	for _, multiplier := range []int{1, 2} {
		prev := AnswerPoints(0, multiplier)
		for timeMs := 100; timeMs < QuestionWindowMs; timeMs += 100 {
			got := AnswerPoints(timeMs, multiplier)
			if got >= prev {
				t.Fatalf("points not decreasing at t=%dms m=%d: %d -> %d", timeMs, multiplier, prev, got)
			}
			prev = got
		}
	}
}

func question(correct, points int) models.Question {
	return models.Question{
		Question:      "What is the capital of France?",
		Options:       []string{"London", "Berlin", "Paris", "Madrid"},
		CorrectAnswer: correct,
		Points:        points,
	}
}

func answered(joinedAt int64, index, option, timeMs int, correct bool) models.Player {
	return models.Player{
		Name:     "p",
		JoinedAt: joinedAt,
		Answer:   &models.Answer{QuestionIndex: index, Option: option, TimeMs: timeMs, IsCorrect: correct},
	}
}

func awardsByID(awards []Award) map[string]Award {
	out := make(map[string]Award, len(awards))
	for _, a := range awards {
		out[a.PlayerID] = a
	}
	return out
}

func TestScoreQuestionSpeedAndBonus(t *testing.T) {
	// Two correct answers at 4000ms and 9000ms, one silent player.
	players := map[string]models.Player{
		"fast": answered(1, 0, 2, 4000, true),
		"slow": answered(2, 0, 2, 9000, true),
		"none": {Name: "p", JoinedAt: 3},
	}

	got := awardsByID(ScoreQuestion(players, 0, question(2, 1)))

	if got["fast"].Points != 1300 || !got["fast"].Fastest {
		t.Fatalf("fast: want 1300 with bonus, got %+v", got["fast"])
	}
	if got["slow"].Points != 550 || got["slow"].Fastest {
		t.Fatalf("slow: want 550 no bonus, got %+v", got["slow"])
	}
	if got["none"].Points != 0 {
		t.Fatalf("none: want 0, got %+v", got["none"])
	}
}

func TestScoreQuestionBonusIsExclusive(t *testing.T) {
	players := map[string]models.Player{
		"a": answered(1, 0, 1, 3000, true),
		"b": answered(2, 0, 1, 5000, true),
		"c": answered(3, 0, 1, 7000, true),
	}

	awards := ScoreQuestion(players, 0, question(1, 1))

	bonuses := 0
	for _, a := range awards {
		if a.Fastest {
			bonuses++
		}
	}
	if bonuses != 1 {
		t.Fatalf("expected exactly one fastest bonus, got %d", bonuses)
	}
}

func TestScoreQuestionNoCorrectAnswers(t *testing.T) {
	players := map[string]models.Player{
		"a": answered(1, 0, 0, 3000, false),
		"b": {Name: "p", JoinedAt: 2},
	}

	for _, a := range ScoreQuestion(players, 0, question(2, 1)) {
		if a.Points != 0 || a.Fastest {
			t.Fatalf("expected zero award, got %+v", a)
		}
	}
}

func TestScoreQuestionTieGoesToJoinOrder(t *testing.T) {
	players := map[string]models.Player{
		"later":   answered(200, 0, 3, 5000, true),
		"earlier": answered(100, 0, 3, 5000, true),
	}

	got := awardsByID(ScoreQuestion(players, 0, question(3, 1)))

	if !got["earlier"].Fastest {
		t.Fatalf("tie should go to the earlier-joined player: %+v", got)
	}
	if got["later"].Fastest {
		t.Fatalf("only one player may carry the bonus: %+v", got)
	}
}

func TestScoreQuestionIgnoresStaleAnswers(t *testing.T) {
	players := map[string]models.Player{
		"stale": answered(1, 0, 2, 100, true), // answered question 0, correct
		"live":  answered(2, 1, 2, 8000, true),
	}

	got := awardsByID(ScoreQuestion(players, 1, question(2, 1)))

	if got["stale"].Points != 0 {
		t.Fatalf("stale answer must count as no answer, got %+v", got["stale"])
	}
	if got["live"].Points != 1100 { // 600 + 500 bonus
		t.Fatalf("live: want 1100, got %+v", got["live"])
	}
}

func TestScoreQuestionDoubleMultiplier(t *testing.T) {
	players := map[string]models.Player{
		"a": answered(1, 0, 0, 4000, true),
	}

	got := awardsByID(ScoreQuestion(players, 0, question(0, 2)))

	if got["a"].Points != 2100 { // 1600 + 500 bonus
		t.Fatalf("want 2100, got %+v", got["a"])
	}
}

func TestScoreQuestionAtWindowStillCorrect(t *testing.T) {
	// Correct at exactly the window edge earns 0 base points but is still
	// the fastest correct answer if alone.
	players := map[string]models.Player{
		"edge": answered(1, 0, 1, 20000, true),
	}

	got := awardsByID(ScoreQuestion(players, 0, question(1, 1)))

	if got["edge"].Points != FastestBonus || !got["edge"].Fastest {
		t.Fatalf("want bonus-only award, got %+v", got["edge"])
	}
}

func TestApplyAwardsLeavesInputUntouched(t *testing.T) {
	players := map[string]models.Player{
		"a": {Name: "p", Score: 100, JoinedAt: 1},
	}

	out := ApplyAwards(players, []Award{{PlayerID: "a", Points: 800}})

	if players["a"].Score != 100 {
		t.Fatalf("input mutated: %+v", players["a"])
	}
	if out["a"].Score != 900 {
		t.Fatalf("want 900, got %+v", out["a"])
	}
}

func TestPlayersInJoinOrder(t *testing.T) {
	players := map[string]models.Player{
		"c": {JoinedAt: 300},
		"a": {JoinedAt: 100},
		"b": {JoinedAt: 200},
		"d": {JoinedAt: 200}, // same instant as b, ID breaks the tie
	}

	got := PlayersInJoinOrder(players)
	want := []string{"a", "b", "d", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("join order %v, want %v", got, want)
		}
	}
}
