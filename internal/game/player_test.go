package game

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quizdash/quizdash/internal/models"
	"github.com/quizdash/quizdash/internal/store"
)

func newWaitingGame(t *testing.T) (*store.MemoryStore, string) {
	t.Helper()
	st := store.NewMemoryStore()
	gameID, err := CreateGame(context.Background(), st, "Ana")
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	return st, gameID
}

func TestJoinGameAddsPlayerRecord(t *testing.T) {
	ctx := context.Background()
	st, gameID := newWaitingGame(t)
	clk := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))

	p, err := JoinGame(ctx, st, gameID, "Bea", clk)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	t.Cleanup(p.Close)

	g := storedGame(t, st, gameID)
	rec, ok := g.Players[p.PlayerID()]
	if !ok {
		t.Fatal("player record missing")
	}
	if rec.Name != "Bea" || rec.Score != 0 || rec.Answer != nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.JoinedAt != 1_700_000_000_000 {
		t.Fatalf("joinedAt = %d, want clock epoch millis", rec.JoinedAt)
	}
}

func TestJoinGameMissingGame(t *testing.T) {
	st := store.NewMemoryStore()
	_, err := JoinGame(context.Background(), st, "NOSUCH", "Bea", clockwork.NewFakeClock())
	if err != ErrGameNotFound {
		t.Fatalf("err = %v, want ErrGameNotFound", err)
	}
}

func TestJoinGameAfterStartRejected(t *testing.T) {
	ctx := context.Background()
	st, gameID := newWaitingGame(t)

	if err := st.Write(ctx, gameID, store.Patch{Status: store.StatusPtr(models.GameStatusStarting)}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := JoinGame(ctx, st, gameID, "Bea", clockwork.NewFakeClock()); err != ErrGameStarted {
		t.Fatalf("err = %v, want ErrGameStarted", err)
	}
}

// joinDuringQuestion joins a player, then drives the stored game into the
// question phase and waits until the session has observed it.
func joinDuringQuestion(t *testing.T, st *store.MemoryStore, gameID string, clk clockwork.Clock) *PlayerSession {
	t.Helper()
	ctx := context.Background()

	p, err := JoinGame(ctx, st, gameID, "Bea", clk)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	t.Cleanup(p.Close)

	err = st.Write(ctx, gameID, store.Patch{
		Phase:           store.PhasePtr(models.PhaseQuestion),
		CurrentQuestion: store.IntPtr(0),
		TimeLeft:        store.IntPtr(QuestionSeconds),
		Questions:       []models.Question{question(2, 1)},
	})
	if err != nil {
		t.Fatalf("enter question phase: %v", err)
	}
	waitFor(t, func() bool { return p.Phase() == models.PhaseQuestion })
	return p
}

func TestSubmitAnswerRecordsTimeAndCorrectness(t *testing.T) {
	ctx := context.Background()
	st, gameID := newWaitingGame(t)
	clk := clockwork.NewFakeClock()
	p := joinDuringQuestion(t, st, gameID, clk)

	clk.Advance(4 * time.Second)
	if err := p.SubmitAnswer(ctx, 2); err != nil {
		t.Fatalf("submit: %v", err)
	}

	a := storedGame(t, st, gameID).Players[p.PlayerID()].Answer
	if a == nil {
		t.Fatal("answer not stored")
	}
	if a.QuestionIndex != 0 || a.Option != 2 || a.TimeMs != 4000 || !a.IsCorrect {
		t.Fatalf("unexpected answer: %+v", a)
	}
}

func TestSubmitAnswerWrongChoice(t *testing.T) {
	ctx := context.Background()
	st, gameID := newWaitingGame(t)
	clk := clockwork.NewFakeClock()
	p := joinDuringQuestion(t, st, gameID, clk)

	if err := p.SubmitAnswer(ctx, 1); err != nil {
		t.Fatalf("submit: %v", err)
	}
	a := storedGame(t, st, gameID).Players[p.PlayerID()].Answer
	if a == nil || a.IsCorrect {
		t.Fatalf("want stored incorrect answer, got %+v", a)
	}
}

func TestSubmitAnswerOutsideQuestionPhase(t *testing.T) {
	ctx := context.Background()
	st, gameID := newWaitingGame(t)

	p, err := JoinGame(ctx, st, gameID, "Bea", clockwork.NewFakeClock())
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	t.Cleanup(p.Close)

	// Still in the pre-game phase; the submission must be a silent no-op.
	if err := p.SubmitAnswer(ctx, 2); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if a := storedGame(t, st, gameID).Players[p.PlayerID()].Answer; a != nil {
		t.Fatalf("answer stored outside question phase: %+v", a)
	}
}

func TestSubmitAnswerOptionOutOfRange(t *testing.T) {
	ctx := context.Background()
	st, gameID := newWaitingGame(t)
	p := joinDuringQuestion(t, st, gameID, clockwork.NewFakeClock())

	for _, option := range []int{-1, OptionCount} {
		if err := p.SubmitAnswer(ctx, option); err != nil {
			t.Fatalf("submit %d: %v", option, err)
		}
	}
	if a := storedGame(t, st, gameID).Players[p.PlayerID()].Answer; a != nil {
		t.Fatalf("out-of-range option stored: %+v", a)
	}
}

func TestDuplicateSubmissionKeepsFirstAnswer(t *testing.T) {
	ctx := context.Background()
	st, gameID := newWaitingGame(t)
	clk := clockwork.NewFakeClock()
	p := joinDuringQuestion(t, st, gameID, clk)

	clk.Advance(3 * time.Second)
	if err := p.SubmitAnswer(ctx, 2); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	clk.Advance(5 * time.Second)
	if err := p.SubmitAnswer(ctx, 0); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	a := storedGame(t, st, gameID).Players[p.PlayerID()].Answer
	if a == nil || a.Option != 2 || a.TimeMs != 3000 {
		t.Fatalf("first answer not preserved: %+v", a)
	}
}

func TestNewQuestionReArmsSubmission(t *testing.T) {
	ctx := context.Background()
	st, gameID := newWaitingGame(t)
	clk := clockwork.NewFakeClock()
	p := joinDuringQuestion(t, st, gameID, clk)

	if err := p.SubmitAnswer(ctx, 2); err != nil {
		t.Fatalf("submit q0: %v", err)
	}

	// Host moves on to question 1 and clears the answer sub-field.
	err := st.Write(ctx, gameID, store.Patch{
		Phase:           store.PhasePtr(models.PhaseQuestion),
		CurrentQuestion: store.IntPtr(1),
		TimeLeft:        store.IntPtr(QuestionSeconds),
		Questions:       []models.Question{question(2, 1), question(0, 1)},
		Answers:         map[string]*models.Answer{p.PlayerID(): nil},
	})
	if err != nil {
		t.Fatalf("advance to q1: %v", err)
	}
	waitFor(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.questionIndex == 1 && p.answeredIndex == -1
	})

	clk.Advance(2 * time.Second)
	if err := p.SubmitAnswer(ctx, 0); err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	a := storedGame(t, st, gameID).Players[p.PlayerID()].Answer
	if a == nil || a.QuestionIndex != 1 || a.TimeMs != 2000 || !a.IsCorrect {
		t.Fatalf("q1 answer wrong: %+v", a)
	}
}

func TestSubmitAfterRemovalIsNoOp(t *testing.T) {
	ctx := context.Background()
	st, gameID := newWaitingGame(t)
	p := joinDuringQuestion(t, st, gameID, clockwork.NewFakeClock())

	if err := st.Write(ctx, gameID, store.Patch{RemovePlayers: []string{p.PlayerID()}}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitFor(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		_, ok := p.players[p.PlayerID()]
		return !ok
	})

	if err := p.SubmitAnswer(ctx, 2); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, ok := storedGame(t, st, gameID).Players[p.PlayerID()]; ok {
		t.Fatal("removed player reappeared in record")
	}
}

func TestLeaveGameRemovesRecordAndClosesSession(t *testing.T) {
	ctx := context.Background()
	st, gameID := newWaitingGame(t)

	p, err := JoinGame(ctx, st, gameID, "Bea", clockwork.NewFakeClock())
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := p.LeaveGame(ctx); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, ok := storedGame(t, st, gameID).Players[p.PlayerID()]; ok {
		t.Fatal("player record still present after leave")
	}
	if err := p.SubmitAnswer(ctx, 0); err != ErrSessionClosed {
		t.Fatalf("submit after leave = %v, want ErrSessionClosed", err)
	}
}

func TestGameDeletionClosesSession(t *testing.T) {
	ctx := context.Background()
	st, gameID := newWaitingGame(t)

	p, err := JoinGame(ctx, st, gameID, "Bea", clockwork.NewFakeClock())
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := st.Replace(ctx, gameID, nil); err != nil {
		t.Fatalf("delete game: %v", err)
	}
	waitFor(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.closed
	})
}

func TestScoreAndRankTrackSharedRecord(t *testing.T) {
	ctx := context.Background()
	st, gameID := newWaitingGame(t)

	p, err := JoinGame(ctx, st, gameID, "Bea", clockwork.NewFakeClock())
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	t.Cleanup(p.Close)

	err = st.Write(ctx, gameID, store.Patch{Players: map[string]models.Player{
		p.PlayerID(): {Name: "Bea", Score: 550, JoinedAt: 1},
		"other":      {Name: "Cal", Score: 1300, JoinedAt: 2},
	}})
	if err != nil {
		t.Fatalf("write scores: %v", err)
	}
	waitFor(t, func() bool { return p.Score() == 550 })

	if got := p.Rank(); got != 2 {
		t.Fatalf("rank = %d, want 2", got)
	}
}
