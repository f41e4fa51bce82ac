package models

// Phase defines where a running game sits in its question cycle.
type Phase string

const (
	PhaseCountdown   Phase = "countdown"
	PhaseQuestion    Phase = "question"
	PhaseResults     Phase = "results"
	PhaseLeaderboard Phase = "leaderboard"
	PhaseFinished    Phase = "finished"
)

// GameStatus defines the lifecycle state of a game record before and during play.
type GameStatus string

const (
	GameStatusWaiting  GameStatus = "waiting"
	GameStatusStarting GameStatus = "starting"
)

// Question is a single trivia question with exactly four options.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Points        int      `json:"points"` // 1 = standard, 2 = double
}

// Answer is a player's response to the question at QuestionIndex. It lives
// inside the player record and is cleared at the start of every question so
// that "no answer yet" and "stale answer from a prior question" stay
// distinguishable.
type Answer struct {
	QuestionIndex int  `json:"questionIndex"`
	Option        int  `json:"option"`
	TimeMs        int  `json:"time"` // elapsed since question start
	IsCorrect     bool `json:"isCorrect"`
}

// Player is a participant's persisted record. Answer carries no omitempty on
// purpose: the wire format must serialize an explicit null so subscribers can
// tell an unanswered player from a missing field.
type Player struct {
	Name     string  `json:"name"`
	Score    int     `json:"score"`
	JoinedAt int64   `json:"joined"` // epoch millis; leaderboard tie-break order
	Answer   *Answer `json:"answer"`
}

// Game is the single shared mutable record for one game ID. The host owns
// phase, currentQuestion, timeLeft and all score fields; each player owns only
// its own answer sub-record.
type Game struct {
	Host            string            `json:"host"`
	Status          GameStatus        `json:"status"`
	Phase           Phase             `json:"phase"`
	CurrentQuestion int               `json:"currentQuestion"` // -1 before the first question
	TimeLeft        int               `json:"timeLeft"`
	Questions       []Question        `json:"questions"`
	Players         map[string]Player `json:"players"`
}

// NewGame returns the empty record written when host setup begins.
func NewGame(host string) *Game {
	return &Game{
		Host:            host,
		Status:          GameStatusWaiting,
		Phase:           PhaseCountdown,
		CurrentQuestion: -1,
		Players:         map[string]Player{},
	}
}

// AnswerFor returns the player's answer for the given question index, or nil
// when the player has not answered it. Answers targeting any other index are
// stale and count as no answer.
func (p Player) AnswerFor(questionIndex int) *Answer {
	if p.Answer == nil || p.Answer.QuestionIndex != questionIndex {
		return nil
	}
	return p.Answer
}

// Clone returns a deep copy of the game record. Store implementations hand
// copies to subscribers so callback code can never mutate the committed state.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	out := *g
	if g.Questions != nil {
		out.Questions = make([]Question, len(g.Questions))
		for i, q := range g.Questions {
			out.Questions[i] = q
			out.Questions[i].Options = append([]string(nil), q.Options...)
		}
	}
	if g.Players != nil {
		out.Players = make(map[string]Player, len(g.Players))
		for id, p := range g.Players {
			if p.Answer != nil {
				a := *p.Answer
				p.Answer = &a
			}
			out.Players[id] = p
		}
	}
	return &out
}
