// Package game holds the synchronization core of a trivia game: the host's
// phase controller, the player's answer submission path, the scoring engine
// and the leaderboard projection. All coordination between participants goes
// through the shared game record in a store.GameStore; nothing in here talks
// to another participant directly.
package game

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/quizdash/quizdash/internal/models"
)

const (
	// CountdownStart is the pre-game countdown value, stepped once per second.
	CountdownStart = 3
	// QuestionSeconds is the answering window per question.
	QuestionSeconds = 20
	// QuestionWindowMs is the answering window used by the speed factor.
	QuestionWindowMs = QuestionSeconds * 1000
	// BasePoints is the maximum base award for a standard question.
	BasePoints = 1000
	// FastestBonus goes to the single fastest correct responder per question.
	FastestBonus = 500
	// OptionCount is the fixed number of options per question.
	OptionCount = 4
)

var (
	// ErrGameNotFound means the game ID has no record. Terminal for the
	// session; routed back to the entry point, never retried.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameStarted means a join arrived after the host started the game.
	ErrGameStarted = errors.New("game already started")
	// ErrSessionClosed means the session was torn down.
	ErrSessionClosed = errors.New("session closed")
)

const gameIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewGameID returns a 6-character join code.
func NewGameID() string {
	buf := make([]byte, 6)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(gameIDAlphabet))))
		if err != nil {
			panic(fmt.Sprintf("read random game id: %v", err))
		}
		buf[i] = gameIDAlphabet[n.Int64()]
	}
	return string(buf)
}

// ValidateQuestions checks a question list before a game may start with it.
func ValidateQuestions(questions []models.Question) error {
	if len(questions) == 0 {
		return errors.New("at least one question is required")
	}
	for i, q := range questions {
		if q.Question == "" {
			return fmt.Errorf("question %d: empty prompt", i)
		}
		if len(q.Options) != OptionCount {
			return fmt.Errorf("question %d: expected %d options, got %d", i, OptionCount, len(q.Options))
		}
		for j, opt := range q.Options {
			if opt == "" {
				return fmt.Errorf("question %d: option %d is empty", i, j)
			}
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= OptionCount {
			return fmt.Errorf("question %d: correct answer index %d out of range", i, q.CorrectAnswer)
		}
		if q.Points != 1 && q.Points != 2 {
			return fmt.Errorf("question %d: points multiplier must be 1 or 2, got %d", i, q.Points)
		}
	}
	return nil
}
