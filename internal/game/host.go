package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizdash/quizdash/internal/models"
	"github.com/quizdash/quizdash/internal/store"
)

// HostSession is the phase controller: the one participant allowed to write
// phase, currentQuestion, timeLeft and scores. It advances the game on
// whichever of two triggers it observes first: the 1-second question timer
// reaching zero, or the store reporting that every known player has answered
// the active question. The single-transition guard in showResults makes the
// two paths race-safe and the scoring pass exactly-once.
type HostSession struct {
	store  store.GameStore
	gameID string
	clock  clockwork.Clock
	ctx    context.Context

	mu            sync.Mutex
	phase         models.Phase
	questionIndex int
	timeLeft      int
	questions     []models.Question
	players       map[string]models.Player
	awards        []Award
	countdown     int
	started       bool
	closed        bool
	stopTick      chan struct{}
	cancelSub     store.CancelFunc
}

// CreateGame writes a fresh empty game record and returns its join code.
func CreateGame(ctx context.Context, st store.GameStore, hostName string) (string, error) {
	gameID := NewGameID()
	if err := st.Replace(ctx, gameID, models.NewGame(hostName)); err != nil {
		return "", fmt.Errorf("create game: %w", err)
	}
	log.Info().Str("game_id", gameID).Str("host", hostName).Msg("game created")
	return gameID, nil
}

// NewHostSession attaches a phase controller to an existing game record. The
// context bounds the session's subscription and its internal timer-driven
// writes.
func NewHostSession(ctx context.Context, st store.GameStore, gameID string, clock clockwork.Clock) (*HostSession, error) {
	g, err := st.Get(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}

	h := &HostSession{
		store:         st,
		gameID:        gameID,
		clock:         clock,
		ctx:           ctx,
		phase:         g.Phase,
		questionIndex: g.CurrentQuestion,
		timeLeft:      g.TimeLeft,
		questions:     g.Questions,
		players:       g.Players,
	}

	cancel, err := st.Subscribe(ctx, gameID, h.onUpdate)
	if err != nil {
		return nil, fmt.Errorf("subscribe to game %s: %w", gameID, err)
	}
	h.cancelSub = cancel
	return h, nil
}

// StartGame freezes the question list, marks the game starting and begins the
// local countdown that leads into question 0.
func (h *HostSession) StartGame(ctx context.Context, questions []models.Question) error {
	if err := ValidateQuestions(questions); err != nil {
		return fmt.Errorf("invalid questions: %w", err)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrSessionClosed
	}
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	h.questions = questions
	h.phase = models.PhaseCountdown
	h.countdown = CountdownStart
	stop := make(chan struct{})
	h.stopTick = stop
	h.mu.Unlock()

	err := h.store.Write(ctx, h.gameID, store.Patch{
		Status:          store.StatusPtr(models.GameStatusStarting),
		Phase:           store.PhasePtr(models.PhaseCountdown),
		CurrentQuestion: store.IntPtr(-1),
		Questions:       questions,
	})
	if err != nil {
		return fmt.Errorf("start game %s: %w", h.gameID, err)
	}

	log.Info().Str("game_id", h.gameID).Int("questions", len(questions)).Msg("game starting")
	go h.runCountdown(stop)
	return nil
}

// AdvanceToLeaderboard is the host's manual transition out of results.
func (h *HostSession) AdvanceToLeaderboard(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrSessionClosed
	}
	if h.phase != models.PhaseResults {
		h.mu.Unlock()
		log.Debug().Str("game_id", h.gameID).Str("phase", string(h.phase)).Msg("leaderboard transition ignored outside results")
		return nil
	}
	h.phase = models.PhaseLeaderboard
	h.mu.Unlock()

	return h.store.Write(ctx, h.gameID, store.Patch{Phase: store.PhasePtr(models.PhaseLeaderboard)})
}

// AdvanceToNextQuestion is the host's manual transition out of the
// leaderboard: to the next question if any remain, else to finished.
func (h *HostSession) AdvanceToNextQuestion(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrSessionClosed
	}
	if h.phase != models.PhaseLeaderboard {
		h.mu.Unlock()
		log.Debug().Str("game_id", h.gameID).Str("phase", string(h.phase)).Msg("next-question transition ignored outside leaderboard")
		return nil
	}
	next := h.questionIndex + 1
	h.mu.Unlock()

	return h.startQuestion(next)
}

// FinishGame moves the game to its terminal phase.
func (h *HostSession) FinishGame(ctx context.Context) error {
	return h.finish()
}

// TeardownGame deletes the shared record and closes the session. Every
// subscriber observes the deletion.
func (h *HostSession) TeardownGame(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.stopTickLocked()
	cancel := h.cancelSub
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := h.store.Replace(ctx, h.gameID, nil); err != nil {
		return fmt.Errorf("teardown game %s: %w", h.gameID, err)
	}
	log.Info().Str("game_id", h.gameID).Msg("game torn down")
	return nil
}

// Close stops timers and the subscription without touching the record.
func (h *HostSession) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.stopTickLocked()
	cancel := h.cancelSub
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Phase returns the host's authoritative current phase.
func (h *HostSession) Phase() models.Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

// QuestionIndex returns the active question index, -1 before the first.
func (h *HostSession) QuestionIndex() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.questionIndex
}

// Countdown returns the host's local pre-game countdown value.
func (h *HostSession) Countdown() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.countdown
}

// TimeLeft returns the authoritative countdown for the active question.
func (h *HostSession) TimeLeft() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timeLeft
}

// Players returns the latest known player records.
func (h *HostSession) Players() map[string]models.Player {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]models.Player, len(h.players))
	for id, p := range h.players {
		out[id] = p
	}
	return out
}

// LastAwards returns the awards computed for the most recently scored
// question, in join order.
func (h *HostSession) LastAwards() []Award {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Award(nil), h.awards...)
}

// runCountdown steps the pre-game countdown once per second, locally only,
// then starts question 0.
func (h *HostSession) runCountdown(stop chan struct{}) {
	ticker := h.clock.NewTicker(time.Second)
	defer ticker.Stop()

	remaining := CountdownStart
	for {
		select {
		case <-ticker.Chan():
			remaining--
			h.mu.Lock()
			h.countdown = remaining
			h.mu.Unlock()
			if remaining > 0 {
				continue
			}
			if err := h.startQuestion(0); err != nil {
				log.Error().Err(err).Str("game_id", h.gameID).Msg("start first question")
			}
			return
		case <-stop:
			return
		}
	}
}

// startQuestion begins the answering window for the given index, or routes
// straight to finished when the index is past the end of the question list.
func (h *HostSession) startQuestion(index int) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrSessionClosed
	}
	if index >= len(h.questions) {
		h.mu.Unlock()
		return h.finish()
	}
	h.stopTickLocked()
	h.phase = models.PhaseQuestion
	h.questionIndex = index
	h.timeLeft = QuestionSeconds
	h.awards = nil

	// Clear answers rather than leaving the previous question's in place:
	// the all-answered check must be able to tell "not yet" from "stale".
	reset := make(map[string]models.Player, len(h.players))
	for id, p := range h.players {
		p.Answer = nil
		reset[id] = p
	}
	h.players = reset

	stop := make(chan struct{})
	h.stopTick = stop
	h.mu.Unlock()

	err := h.store.Write(h.ctx, h.gameID, store.Patch{
		Phase:           store.PhasePtr(models.PhaseQuestion),
		CurrentQuestion: store.IntPtr(index),
		TimeLeft:        store.IntPtr(QuestionSeconds),
		Players:         reset,
	})
	if err != nil {
		return fmt.Errorf("start question %d: %w", index, err)
	}

	log.Info().Str("game_id", h.gameID).Int("question", index).Msg("question started")
	go h.runQuestionTimer(index, stop)
	return nil
}

// runQuestionTimer drives the per-question 1-second tick until the question
// ends or the phase is exited by another path.
func (h *HostSession) runQuestionTimer(index int, stop chan struct{}) {
	ticker := h.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if !h.handleQuestionTick(index) {
				return
			}
		case <-stop:
			return
		}
	}
}

// handleQuestionTick decrements timeLeft, republishes it, and triggers
// results at zero. It returns false once the question is over. The guard at
// the top makes a tick that out-lived its phase a no-op, since cancellation
// timing alone is not trusted.
func (h *HostSession) handleQuestionTick(index int) bool {
	h.mu.Lock()
	if h.closed || h.phase != models.PhaseQuestion || h.questionIndex != index {
		h.mu.Unlock()
		return false
	}
	h.timeLeft--
	timeLeft := h.timeLeft
	h.mu.Unlock()

	if err := h.store.Write(h.ctx, h.gameID, store.Patch{TimeLeft: store.IntPtr(timeLeft)}); err != nil {
		log.Error().Err(err).Str("game_id", h.gameID).Msg("publish time left")
	}
	if timeLeft <= 0 {
		h.showResults(index, "timeout")
		return false
	}
	return true
}

// onUpdate is the store subscription callback: adopt the latest player
// records and fire the all-answered trigger when warranted. A nil record
// means the game was deleted out from under the session.
func (h *HostSession) onUpdate(g *models.Game) {
	if g == nil {
		h.Close()
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	// The session is the only score writer. Snapshots can arrive out of
	// order, so a delayed pre-scoring one must not roll a score back: adopt
	// membership and answers from the snapshot, keep the higher local score.
	merged := make(map[string]models.Player, len(g.Players))
	for id, p := range g.Players {
		if cur, ok := h.players[id]; ok && cur.Score > p.Score {
			p.Score = cur.Score
		}
		merged[id] = p
	}
	h.players = merged

	index := h.questionIndex
	allAnswered := h.phase == models.PhaseQuestion && len(h.players) > 0
	if allAnswered {
		for _, p := range h.players {
			if p.AnswerFor(index) == nil {
				allAnswered = false
				break
			}
		}
	}
	h.mu.Unlock()

	if allAnswered {
		h.showResults(index, "all answered")
	}
}

// showResults performs the question→results transition: score the question,
// publish the new cumulative scores, stop the timer. The phase/index guard
// gives the single-transition guarantee: whichever trigger arrives second
// finds the phase already advanced and does nothing, so awards are applied
// exactly once.
func (h *HostSession) showResults(index int, trigger string) {
	h.mu.Lock()
	if h.closed || h.phase != models.PhaseQuestion || h.questionIndex != index {
		h.mu.Unlock()
		return
	}
	q := h.questions[index]
	awards := ScoreQuestion(h.players, index, q)
	updated := ApplyAwards(h.players, awards)
	h.players = updated
	h.awards = awards
	h.phase = models.PhaseResults
	h.stopTickLocked()
	h.mu.Unlock()

	log.Info().Str("game_id", h.gameID).Int("question", index).Str("trigger", trigger).Msg("question ended")

	err := h.store.Write(h.ctx, h.gameID, store.Patch{
		Phase:   store.PhasePtr(models.PhaseResults),
		Players: updated,
	})
	if err != nil {
		log.Error().Err(err).Str("game_id", h.gameID).Msg("publish results")
	}
}

// finish moves to the terminal phase from any non-terminal one.
func (h *HostSession) finish() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrSessionClosed
	}
	if h.phase == models.PhaseFinished {
		h.mu.Unlock()
		return nil
	}
	h.phase = models.PhaseFinished
	h.stopTickLocked()
	h.mu.Unlock()

	if err := h.store.Write(h.ctx, h.gameID, store.Patch{Phase: store.PhasePtr(models.PhaseFinished)}); err != nil {
		return fmt.Errorf("finish game %s: %w", h.gameID, err)
	}
	log.Info().Str("game_id", h.gameID).Msg("game finished")
	return nil
}

func (h *HostSession) stopTickLocked() {
	if h.stopTick != nil {
		close(h.stopTick)
		h.stopTick = nil
	}
}
