package questions

import "github.com/quizdash/quizdash/internal/models"

// Builtin set names.
const (
	SetGeneralKnowledge = "General Knowledge"
	SetScienceTech      = "Science & Technology"
)

// BuiltinSets returns the packaged question sets. They are always available,
// even without a database, and are what the seed tool loads into Postgres.
func BuiltinSets() map[string][]models.Question {
	return map[string][]models.Question{
		SetGeneralKnowledge: {
			{
				Question:      "What is the capital of France?",
				Options:       []string{"London", "Berlin", "Paris", "Madrid"},
				CorrectAnswer: 2,
				Points:        1,
			},
			{
				Question:      "Which planet is known as the Red Planet?",
				Options:       []string{"Venus", "Mars", "Jupiter", "Saturn"},
				CorrectAnswer: 1,
				Points:        1,
			},
			{
				Question:      "What is 2 + 2?",
				Options:       []string{"3", "4", "5", "6"},
				CorrectAnswer: 1,
				Points:        1,
			},
			{
				Question:      "Who painted the Mona Lisa?",
				Options:       []string{"Van Gogh", "Picasso", "Da Vinci", "Rembrandt"},
				CorrectAnswer: 2,
				Points:        2,
			},
			{
				Question:      "Which gas do humans need to breathe to survive?",
				Options:       []string{"Carbon dioxide", "Oxygen", "Nitrogen", "Helium"},
				CorrectAnswer: 1,
				Points:        2,
			},
		},
		SetScienceTech: {
			{
				Question:      "What is the chemical symbol for gold?",
				Options:       []string{"Au", "Ag", "Gd", "Go"},
				CorrectAnswer: 0,
				Points:        1,
			},
			{
				Question:      "Which of these animals has the strongest bite?",
				Options:       []string{"Lion", "Shark", "Hippo", "Crocodile"},
				CorrectAnswer: 3,
				Points:        2,
			},
			{
				Question:      "What does CPU stand for?",
				Options:       []string{"Central Processing Unit", "Computer Personal Unit", "Central Program Utility", "Core Processor Unit"},
				CorrectAnswer: 0,
				Points:        1,
			},
		},
	}
}
