package store

import (
	"context"
	"errors"

	"github.com/quizdash/quizdash/internal/models"
)

// ErrNotFound is returned when a game ID has no record.
var ErrNotFound = errors.New("game not found")

// UpdateFunc receives the full current record on every committed change, and
// once immediately on subscription. A nil record means the game was deleted
// (or did not exist at subscription time). Callbacks for one subscription run
// to completion in commit order; they are never invoked concurrently.
type UpdateFunc func(game *models.Game)

// CancelFunc stops a subscription. Safe to call more than once.
type CancelFunc func()

// GameStore is the shared mutable record every participant coordinates
// through. Write merges a partial record last-write-wins per field; there is
// no compare-and-swap. Correctness rests on the field-ownership partition:
// the host is the only writer of phase/currentQuestion/timeLeft/scores, each
// player only ever writes its own answer sub-field.
type GameStore interface {
	Get(ctx context.Context, gameID string) (*models.Game, error)
	Write(ctx context.Context, gameID string, patch Patch) error
	// Replace overwrites the whole record; a nil game deletes it.
	Replace(ctx context.Context, gameID string, game *models.Game) error
	Subscribe(ctx context.Context, gameID string, fn UpdateFunc) (CancelFunc, error)
}

// Patch is a partial game record. Nil fields are left untouched; non-nil
// fields replace the stored value wholesale.
type Patch struct {
	Status          *models.GameStatus
	Phase           *models.Phase
	CurrentQuestion *int
	TimeLeft        *int
	Questions       []models.Question

	// Players replaces the entire players subtree (host-only: question reset
	// and score publication).
	Players map[string]models.Player
	// PutPlayers upserts individual player records (join path).
	PutPlayers map[string]models.Player
	// RemovePlayers deletes individual player records (leave path).
	RemovePlayers []string
	// Answers writes the answer sub-field of individual players without
	// touching anything the host owns. A nil value clears the answer.
	Answers map[string]*models.Answer
}

// Apply merges the patch into the record in place. Everything written is
// deep-copied so the stored record never aliases memory the caller retains.
func (p Patch) Apply(g *models.Game) {
	if p.Status != nil {
		g.Status = *p.Status
	}
	if p.Phase != nil {
		g.Phase = *p.Phase
	}
	if p.CurrentQuestion != nil {
		g.CurrentQuestion = *p.CurrentQuestion
	}
	if p.TimeLeft != nil {
		g.TimeLeft = *p.TimeLeft
	}
	if p.Questions != nil {
		qs := make([]models.Question, len(p.Questions))
		for i, q := range p.Questions {
			q.Options = append([]string(nil), q.Options...)
			qs[i] = q
		}
		g.Questions = qs
	}
	if p.Players != nil {
		g.Players = make(map[string]models.Player, len(p.Players))
		for id, player := range p.Players {
			g.Players[id] = clonePlayer(player)
		}
	}
	if g.Players == nil {
		g.Players = map[string]models.Player{}
	}
	for id, player := range p.PutPlayers {
		g.Players[id] = clonePlayer(player)
	}
	for _, id := range p.RemovePlayers {
		delete(g.Players, id)
	}
	for id, answer := range p.Answers {
		player, ok := g.Players[id]
		if !ok {
			continue
		}
		if answer != nil {
			a := *answer
			answer = &a
		}
		player.Answer = answer
		g.Players[id] = player
	}
}

func clonePlayer(p models.Player) models.Player {
	if p.Answer != nil {
		a := *p.Answer
		p.Answer = &a
	}
	return p
}

// Ptr helpers for building patches.

func StatusPtr(s models.GameStatus) *models.GameStatus { return &s }
func PhasePtr(p models.Phase) *models.Phase            { return &p }
func IntPtr(i int) *int                                { return &i }
