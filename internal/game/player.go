package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizdash/quizdash/internal/models"
	"github.com/quizdash/quizdash/internal/store"
)

// PlayerSession is a player's view of a game plus its one legal write path:
// the player's own answer sub-field. It never touches phase, scores or other
// players' records. Rejections that can legitimately arise from network lag
// (answering outside the question phase, answering twice) are silent no-ops.
type PlayerSession struct {
	store    store.GameStore
	gameID   string
	playerID string
	clock    clockwork.Clock
	ctx      context.Context

	mu            sync.Mutex
	name          string
	phase         models.Phase
	questionIndex int
	questions     []models.Question
	players       map[string]models.Player
	questionStart time.Time
	answeredIndex int // question index already answered this cycle, -1 if none
	closed        bool
	cancelSub     store.CancelFunc
}

// JoinGame adds a player to a waiting game and returns the live session.
// Joining a missing game is NotFound (terminal); joining a started game is
// rejected because there is no reconnect identity to resume.
func JoinGame(ctx context.Context, st store.GameStore, gameID, name string, clock clockwork.Clock) (*PlayerSession, error) {
	g, err := st.Get(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}
	if g.Status != models.GameStatusWaiting {
		return nil, ErrGameStarted
	}

	playerID := uuid.NewString()
	err = st.Write(ctx, gameID, store.Patch{PutPlayers: map[string]models.Player{
		playerID: {Name: name, Score: 0, JoinedAt: clock.Now().UnixMilli()},
	}})
	if err != nil {
		return nil, fmt.Errorf("join game %s: %w", gameID, err)
	}

	p := &PlayerSession{
		store:         st,
		gameID:        gameID,
		playerID:      playerID,
		clock:         clock,
		ctx:           ctx,
		name:          name,
		phase:         g.Phase,
		questionIndex: g.CurrentQuestion,
		questions:     g.Questions,
		players:       g.Players,
		answeredIndex: -1,
	}

	cancel, err := st.Subscribe(ctx, gameID, p.onUpdate)
	if err != nil {
		return nil, fmt.Errorf("subscribe to game %s: %w", gameID, err)
	}
	p.cancelSub = cancel

	log.Info().Str("game_id", gameID).Str("player_id", playerID).Str("name", name).Msg("player joined")
	return p, nil
}

// SubmitAnswer records the player's choice for the active question. At most
// one submission per question is accepted; anything invalid (wrong phase,
// duplicate, unknown player, bad option) is dropped without a store write.
func (p *PlayerSession) SubmitAnswer(ctx context.Context, option int) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrSessionClosed
	}
	index := p.questionIndex
	switch {
	case p.phase != models.PhaseQuestion:
		p.mu.Unlock()
		log.Debug().Str("game_id", p.gameID).Str("player_id", p.playerID).Str("phase", string(p.phase)).Msg("answer ignored outside question phase")
		return nil
	case option < 0 || option >= OptionCount:
		p.mu.Unlock()
		log.Debug().Str("game_id", p.gameID).Str("player_id", p.playerID).Int("option", option).Msg("answer ignored, option out of range")
		return nil
	case index < 0 || index >= len(p.questions):
		p.mu.Unlock()
		return nil
	case p.answeredIndex == index:
		p.mu.Unlock()
		log.Debug().Str("game_id", p.gameID).Str("player_id", p.playerID).Int("question", index).Msg("duplicate answer ignored")
		return nil
	}
	me, ok := p.players[p.playerID]
	if !ok {
		p.mu.Unlock()
		log.Debug().Str("game_id", p.gameID).Str("player_id", p.playerID).Msg("answer ignored, player not in game")
		return nil
	}
	if me.AnswerFor(index) != nil {
		p.answeredIndex = index
		p.mu.Unlock()
		return nil
	}

	answer := &models.Answer{
		QuestionIndex: index,
		Option:        option,
		TimeMs:        int(p.clock.Since(p.questionStart).Milliseconds()),
		IsCorrect:     option == p.questions[index].CorrectAnswer,
	}
	p.answeredIndex = index
	p.mu.Unlock()

	err := p.store.Write(ctx, p.gameID, store.Patch{
		Answers: map[string]*models.Answer{p.playerID: answer},
	})
	if err != nil {
		return fmt.Errorf("submit answer: %w", err)
	}

	log.Info().
		Str("game_id", p.gameID).
		Str("player_id", p.playerID).
		Int("question", index).
		Int("option", option).
		Int("time_ms", answer.TimeMs).
		Bool("correct", answer.IsCorrect).
		Msg("answer submitted")
	return nil
}

// LeaveGame removes the player's record and closes the session.
func (p *PlayerSession) LeaveGame(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	cancel := p.cancelSub
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	err := p.store.Write(ctx, p.gameID, store.Patch{RemovePlayers: []string{p.playerID}})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("leave game %s: %w", p.gameID, err)
	}
	log.Info().Str("game_id", p.gameID).Str("player_id", p.playerID).Msg("player left")
	return nil
}

// Close stops the subscription without removing the player from the game.
func (p *PlayerSession) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	cancel := p.cancelSub
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// PlayerID returns the identifier assigned at join.
func (p *PlayerSession) PlayerID() string { return p.playerID }

// Phase returns the phase as last observed through the store.
func (p *PlayerSession) Phase() models.Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Score returns the player's cumulative score as last observed.
func (p *PlayerSession) Score() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.players[p.playerID].Score
}

// Rank returns the player's 1-based position on the shared leaderboard.
func (p *PlayerSession) Rank() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Rank(p.players, p.playerID)
}

// onUpdate tracks the shared record. Observing a question phase with a new
// index starts the local latency marker and re-arms the one-answer guard.
func (p *PlayerSession) onUpdate(g *models.Game) {
	if g == nil {
		p.Close()
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.questions = g.Questions
	p.players = g.Players
	if g.Phase == models.PhaseQuestion &&
		(p.phase != models.PhaseQuestion || p.questionIndex != g.CurrentQuestion) {
		p.questionStart = p.clock.Now()
		p.answeredIndex = -1
	}
	p.phase = g.Phase
	p.questionIndex = g.CurrentQuestion
	p.mu.Unlock()
}
