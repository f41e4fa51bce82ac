package questions

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quizdash/quizdash/internal/game"
	"github.com/quizdash/quizdash/internal/models"
)

// QuestionsRepository defines what the app layer needs from the repository
type QuestionsRepository interface {
	CreateQuestionSet(ctx context.Context, req CreateQuestionSetRequest) (*QuestionSet, error)
	GetQuestionSet(ctx context.Context, id uuid.UUID) (*QuestionSet, error)
	GetQuestionSetByName(ctx context.Context, name string) (*QuestionSet, error)
	ListQuestionSets(ctx context.Context) ([]QuestionSet, error)
	DeleteQuestionSet(ctx context.Context, id uuid.UUID) error
}

// App handles question set business logic. The repository is optional: with
// no database configured only the builtin sets are served.
type App struct {
	repo QuestionsRepository
}

// NewApp creates a new questions App
func NewApp(repo QuestionsRepository) *App {
	return &App{
		repo: repo,
	}
}

// CreateQuestionSet validates and stores a new set.
func (a *App) CreateQuestionSet(ctx context.Context, req CreateQuestionSetRequest) (*QuestionSet, error) {
	if a.repo == nil {
		return nil, errors.New("no question set storage configured")
	}
	if req.Name == "" {
		return nil, errors.New("question set name is required")
	}
	if err := game.ValidateQuestions(req.Questions); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	set, err := a.repo.CreateQuestionSet(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create question set: %w", err)
	}

	log.Info().Str("set_id", set.ID.String()).Str("name", set.Name).Int("questions", len(set.Questions)).Msg("created question set")
	return set, nil
}

// GetQuestionSet retrieves a stored set by ID.
func (a *App) GetQuestionSet(ctx context.Context, id uuid.UUID) (*QuestionSet, error) {
	if a.repo == nil {
		return nil, ErrSetNotFound
	}
	return a.repo.GetQuestionSet(ctx, id)
}

// ListSetNames returns the names a host can pick from: stored sets plus the
// builtin ones, without duplicates.
func (a *App) ListSetNames(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var names []string

	if a.repo != nil {
		sets, err := a.repo.ListQuestionSets(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list question sets: %w", err)
		}
		for _, s := range sets {
			seen[s.Name] = true
			names = append(names, s.Name)
		}
	}
	var builtins []string
	for name := range BuiltinSets() {
		if !seen[name] {
			builtins = append(builtins, name)
		}
	}
	// Map iteration order would reshuffle the list between calls.
	sort.Strings(builtins)
	return append(names, builtins...), nil
}

// QuestionsForGame resolves the questions a game should run with. Stored sets
// take precedence; a name that only exists as a builtin falls back to it.
func (a *App) QuestionsForGame(ctx context.Context, name string) ([]models.Question, error) {
	if a.repo != nil {
		set, err := a.repo.GetQuestionSetByName(ctx, name)
		if err == nil {
			return set.Questions, nil
		}
		if !errors.Is(err, ErrSetNotFound) {
			return nil, fmt.Errorf("failed to load question set %q: %w", name, err)
		}
	}
	if qs, ok := BuiltinSets()[name]; ok {
		return qs, nil
	}
	return nil, ErrSetNotFound
}

// DeleteQuestionSet removes a stored set. Builtin sets cannot be deleted.
func (a *App) DeleteQuestionSet(ctx context.Context, id uuid.UUID) error {
	if a.repo == nil {
		return ErrSetNotFound
	}
	if err := a.repo.DeleteQuestionSet(ctx, id); err != nil {
		return fmt.Errorf("failed to delete question set: %w", err)
	}
	return nil
}
