package gateway

import (
	"github.com/quizdash/quizdash/internal/game"
	"github.com/quizdash/quizdash/internal/models"
)

// CommandType identifies a client-to-server message.
type CommandType string

const (
	CommandCreateGame      CommandType = "create_game"
	CommandJoinGame        CommandType = "join_game"
	CommandStartGame       CommandType = "start_game"
	CommandAnswer          CommandType = "answer"
	CommandShowLeaderboard CommandType = "show_leaderboard"
	CommandNextQuestion    CommandType = "next_question"
	CommandFinishGame      CommandType = "finish_game"
	CommandEndGame         CommandType = "end_game"
	CommandLeaveGame       CommandType = "leave_game"
)

// Command is a client request over the WebSocket. Which fields are required
// depends on the type.
type Command struct {
	Type CommandType `json:"type"`
	// Name is the display name for create_game and join_game.
	Name string `json:"name,omitempty"`
	// GameID is the join code for join_game.
	GameID string `json:"gameId,omitempty"`
	// SetName picks a question set for start_game.
	SetName string `json:"setName,omitempty"`
	// Option is the chosen answer index for answer.
	Option *int `json:"option,omitempty"`
}

// EventType identifies a server-to-client message.
type EventType string

const (
	EventGameCreated EventType = "game_created"
	EventJoined      EventType = "joined"
	EventGameState   EventType = "game_state"
	EventGameEnded   EventType = "game_ended"
	EventError       EventType = "error"
)

// Event is a server push. game_state carries the full shared record; during
// the results, leaderboard and finished phases it also carries the computed
// standings so clients do not re-derive ordering.
type Event struct {
	Type        EventType       `json:"type"`
	GameID      string          `json:"gameId,omitempty"`
	PlayerID    string          `json:"playerId,omitempty"`
	Game        *models.Game    `json:"game,omitempty"`
	Leaderboard []game.Standing `json:"leaderboard,omitempty"`
	Error       string          `json:"error,omitempty"`
}
