package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizdash/quizdash/internal/models"
)

// ErrSetNotFound is returned when no question set matches the lookup.
var ErrSetNotFound = errors.New("question set not found")

// Repository implements question set data access on Postgres. Options are
// stored as a jsonb array per question row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new questions repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// CreateQuestionSet stores a set and its questions in one transaction.
func (r *Repository) CreateQuestionSet(ctx context.Context, req CreateQuestionSetRequest) (*QuestionSet, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	set := &QuestionSet{
		ID:        uuid.New(),
		Name:      req.Name,
		Questions: req.Questions,
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO question_sets (id, name) VALUES ($1, $2) RETURNING created_at`,
		set.ID, set.Name,
	).Scan(&set.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create question set: %w", err)
	}

	for i, q := range req.Questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO questions (id, set_id, position, prompt, options, correct_answer, points)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), set.ID, i, q.Question, options, q.CorrectAnswer, q.Points,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create question %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit question set: %w", err)
	}
	return set, nil
}

// GetQuestionSet retrieves a set with its questions in stored order.
func (r *Repository) GetQuestionSet(ctx context.Context, id uuid.UUID) (*QuestionSet, error) {
	set := &QuestionSet{ID: id}
	err := r.pool.QueryRow(ctx,
		`SELECT name, created_at FROM question_sets WHERE id = $1`, id,
	).Scan(&set.Name, &set.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSetNotFound
		}
		return nil, fmt.Errorf("failed to get question set: %w", err)
	}

	set.Questions, err = r.questionsForSet(ctx, id)
	if err != nil {
		return nil, err
	}
	return set, nil
}

// GetQuestionSetByName retrieves a set by its unique name.
func (r *Repository) GetQuestionSetByName(ctx context.Context, name string) (*QuestionSet, error) {
	set := &QuestionSet{Name: name}
	err := r.pool.QueryRow(ctx,
		`SELECT id, created_at FROM question_sets WHERE name = $1`, name,
	).Scan(&set.ID, &set.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSetNotFound
		}
		return nil, fmt.Errorf("failed to get question set by name: %w", err)
	}

	set.Questions, err = r.questionsForSet(ctx, set.ID)
	if err != nil {
		return nil, err
	}
	return set, nil
}

// ListQuestionSets retrieves all sets without their questions.
func (r *Repository) ListQuestionSets(ctx context.Context) ([]QuestionSet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, created_at FROM question_sets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list question sets: %w", err)
	}
	defer rows.Close()

	var sets []QuestionSet
	for rows.Next() {
		var set QuestionSet
		if err := rows.Scan(&set.ID, &set.Name, &set.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question set: %w", err)
		}
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list question sets: %w", err)
	}
	return sets, nil
}

// DeleteQuestionSet deletes a set; its questions go with it via the FK.
func (r *Repository) DeleteQuestionSet(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM question_sets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete question set: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSetNotFound
	}
	return nil
}

func (r *Repository) questionsForSet(ctx context.Context, setID uuid.UUID) ([]models.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT prompt, options, correct_answer, points
		 FROM questions WHERE set_id = $1 ORDER BY position`, setID)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	var qs []models.Question
	for rows.Next() {
		var q models.Question
		var options []byte
		if err := rows.Scan(&q.Question, &options, &q.CorrectAnswer, &q.Points); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options: %w", err)
		}
		qs = append(qs, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	return qs, nil
}
