package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizdash/quizdash/internal/game"
	"github.com/quizdash/quizdash/internal/models"
	"github.com/quizdash/quizdash/internal/questions"
	"github.com/quizdash/quizdash/internal/store"
)

// Service ties WebSocket connections to game sessions. A connection is
// either a host or a player for at most one game at a time; every connection
// in a game's pool receives the same game_state stream.
type Service struct {
	ctx          context.Context
	store        store.GameStore
	questionsApp *questions.App
	clock        clockwork.Clock
	manager      *ConnectionManager

	mu       sync.Mutex
	clients  map[*Connection]*client
	watchers map[string]*gameWatcher
}

type client struct {
	gameID string
	host   *game.HostSession
	player *game.PlayerSession
}

// gameWatcher is the refcounted store subscription behind a game's pool.
type gameWatcher struct {
	cancel store.CancelFunc
	refs   int
}

// NewService creates the gateway service and its connection manager.
func NewService(ctx context.Context, st store.GameStore, questionsApp *questions.App, clock clockwork.Clock) *Service {
	s := &Service{
		ctx:          ctx,
		store:        st,
		questionsApp: questionsApp,
		clock:        clock,
		clients:      make(map[*Connection]*client),
		watchers:     make(map[string]*gameWatcher),
	}
	s.manager = NewConnectionManager(DefaultConnectionConfig(), s.HandleCommand, s.handleClose)
	return s
}

// Manager exposes the connection manager for the HTTP handler.
func (s *Service) Manager() *ConnectionManager { return s.manager }

// Start runs the broadcast loop until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.manager.Start(ctx)
}

// HandleCommand dispatches a client command to the connection's session.
func (s *Service) HandleCommand(conn *Connection, cmd Command) {
	var err error
	switch cmd.Type {
	case CommandCreateGame:
		err = s.createGame(conn, cmd)
	case CommandJoinGame:
		err = s.joinGame(conn, cmd)
	case CommandStartGame:
		err = s.startGame(conn, cmd)
	case CommandAnswer:
		err = s.answer(conn, cmd)
	case CommandShowLeaderboard:
		err = s.withHost(conn, func(h *game.HostSession) error {
			return h.AdvanceToLeaderboard(s.ctx)
		})
	case CommandNextQuestion:
		err = s.withHost(conn, func(h *game.HostSession) error {
			return h.AdvanceToNextQuestion(s.ctx)
		})
	case CommandFinishGame:
		err = s.withHost(conn, func(h *game.HostSession) error {
			return h.FinishGame(s.ctx)
		})
	case CommandEndGame:
		err = s.endGame(conn)
	case CommandLeaveGame:
		err = s.leaveGame(conn)
	default:
		err = errors.New("unknown command type")
	}

	if err != nil {
		log.Debug().Err(err).Str("connection_id", conn.ID).Str("command", string(cmd.Type)).Msg("command rejected")
		s.manager.SendToConnection(conn, &Event{Type: EventError, Error: err.Error()})
	}
}

func (s *Service) createGame(conn *Connection, cmd Command) error {
	if cmd.Name == "" {
		return errors.New("host name is required")
	}
	s.mu.Lock()
	if _, ok := s.clients[conn]; ok {
		s.mu.Unlock()
		return errors.New("connection already in a game")
	}
	s.mu.Unlock()

	gameID, err := game.CreateGame(s.ctx, s.store, cmd.Name)
	if err != nil {
		return err
	}
	host, err := game.NewHostSession(s.ctx, s.store, gameID, s.clock)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.clients[conn] = &client{gameID: gameID, host: host}
	s.watchLocked(gameID)
	s.mu.Unlock()
	s.manager.JoinPool(conn, gameID)

	s.manager.SendToConnection(conn, &Event{Type: EventGameCreated, GameID: gameID})
	return nil
}

func (s *Service) joinGame(conn *Connection, cmd Command) error {
	if cmd.Name == "" {
		return errors.New("player name is required")
	}
	if cmd.GameID == "" {
		return errors.New("game code is required")
	}
	s.mu.Lock()
	if _, ok := s.clients[conn]; ok {
		s.mu.Unlock()
		return errors.New("connection already in a game")
	}
	s.mu.Unlock()

	player, err := game.JoinGame(s.ctx, s.store, cmd.GameID, cmd.Name, s.clock)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.clients[conn] = &client{gameID: cmd.GameID, player: player}
	s.watchLocked(cmd.GameID)
	s.mu.Unlock()
	s.manager.JoinPool(conn, cmd.GameID)

	s.manager.SendToConnection(conn, &Event{
		Type:     EventJoined,
		GameID:   cmd.GameID,
		PlayerID: player.PlayerID(),
	})
	return nil
}

func (s *Service) startGame(conn *Connection, cmd Command) error {
	setName := cmd.SetName
	if setName == "" {
		setName = questions.SetGeneralKnowledge
	}
	qs, err := s.questionsApp.QuestionsForGame(s.ctx, setName)
	if err != nil {
		return err
	}
	return s.withHost(conn, func(h *game.HostSession) error {
		return h.StartGame(s.ctx, qs)
	})
}

func (s *Service) answer(conn *Connection, cmd Command) error {
	if cmd.Option == nil {
		return errors.New("option is required")
	}
	s.mu.Lock()
	c, ok := s.clients[conn]
	s.mu.Unlock()
	if !ok || c.player == nil {
		return errors.New("connection is not a player")
	}
	return c.player.SubmitAnswer(s.ctx, *cmd.Option)
}

func (s *Service) withHost(conn *Connection, fn func(h *game.HostSession) error) error {
	s.mu.Lock()
	c, ok := s.clients[conn]
	s.mu.Unlock()
	if !ok || c.host == nil {
		return errors.New("connection is not a host")
	}
	return fn(c.host)
}

func (s *Service) endGame(conn *Connection) error {
	s.mu.Lock()
	c, ok := s.clients[conn]
	s.mu.Unlock()
	if !ok || c.host == nil {
		return errors.New("connection is not a host")
	}
	if err := c.host.TeardownGame(s.ctx); err != nil {
		return err
	}
	s.detach(conn)
	return nil
}

func (s *Service) leaveGame(conn *Connection) error {
	s.mu.Lock()
	c, ok := s.clients[conn]
	s.mu.Unlock()
	if !ok || c.player == nil {
		return errors.New("connection is not a player")
	}
	if err := c.player.LeaveGame(s.ctx); err != nil {
		return err
	}
	s.detach(conn)
	return nil
}

// handleClose tears down the session behind a dropped connection. A host
// vanishing ends the game for everyone; a player vanishing just leaves.
func (s *Service) handleClose(conn *Connection) {
	s.mu.Lock()
	c, ok := s.clients[conn]
	s.mu.Unlock()
	if !ok {
		return
	}

	if c.host != nil {
		if err := c.host.TeardownGame(s.ctx); err != nil {
			log.Error().Err(err).Str("game_id", c.gameID).Msg("teardown after host disconnect")
		}
	}
	if c.player != nil {
		if err := c.player.LeaveGame(s.ctx); err != nil {
			log.Error().Err(err).Str("game_id", c.gameID).Msg("leave after player disconnect")
		}
	}
	s.detach(conn)
}

// detach forgets the connection's session and releases its game watcher.
func (s *Service) detach(conn *Connection) {
	s.manager.LeavePool(conn)

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[conn]
	if !ok {
		return
	}
	delete(s.clients, conn)
	s.unwatchLocked(c.gameID)
}

// watchLocked takes a reference on the game's broadcast subscription,
// creating it on first use. Caller holds s.mu.
func (s *Service) watchLocked(gameID string) {
	if w, ok := s.watchers[gameID]; ok {
		w.refs++
		return
	}
	cancel, err := s.store.Subscribe(s.ctx, gameID, func(g *models.Game) {
		s.broadcastState(gameID, g)
	})
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID).Msg("subscribe for broadcast")
		return
	}
	s.watchers[gameID] = &gameWatcher{cancel: cancel, refs: 1}
}

// unwatchLocked drops a reference, cancelling the subscription at zero.
// Caller holds s.mu.
func (s *Service) unwatchLocked(gameID string) {
	w, ok := s.watchers[gameID]
	if !ok {
		return
	}
	w.refs--
	if w.refs <= 0 {
		w.cancel()
		delete(s.watchers, gameID)
	}
}

func (s *Service) broadcastState(gameID string, g *models.Game) {
	if g == nil {
		s.manager.BroadcastToGame(gameID, &Event{Type: EventGameEnded, GameID: gameID})
		return
	}
	ev := &Event{Type: EventGameState, GameID: gameID, Game: g}
	switch g.Phase {
	case models.PhaseResults, models.PhaseLeaderboard, models.PhaseFinished:
		ev.Leaderboard = game.Leaderboard(g.Players)
	}
	s.manager.BroadcastToGame(gameID, ev)
}
