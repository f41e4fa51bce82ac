package questions

import (
	"time"

	"github.com/google/uuid"

	"github.com/quizdash/quizdash/internal/models"
)

// QuestionSet is a named, ordered list of questions a host can start a game
// with.
type QuestionSet struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Questions []models.Question `json:"questions"`
	CreatedAt time.Time         `json:"created_at"`
}

// CreateQuestionSetRequest carries the data needed to store a new set.
type CreateQuestionSetRequest struct {
	Name      string            `json:"name" validate:"required"`
	Questions []models.Question `json:"questions" validate:"required"`
}
