package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// CommandFunc handles a decoded client command.
type CommandFunc func(conn *Connection, cmd Command)

// CloseFunc is called once when a connection goes away.
type CloseFunc func(conn *Connection)

// ConnectionManager owns the WebSocket connections, pooled by game code.
// Connections enter a pool when their client creates or joins a game, not at
// upgrade time.
type ConnectionManager struct {
	gameConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan broadcastMessage

	onCommand CommandFunc
	onClose   CloseFunc
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time

	mu     sync.Mutex
	gameID string
	dead   bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type broadcastMessage struct {
	gameID string
	data   []byte
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, onCommand CommandFunc, onClose CloseFunc) *ConnectionManager {
	return &ConnectionManager{
		gameConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
		onCommand:   onCommand,
		onClose:     onClose,
	}
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and starts its
// pumps. The connection belongs to no game pool until JoinPool is called.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().Str("connection_id", connection.ID).Msg("WebSocket connection established")
	return connection, nil
}

// JoinPool adds a connection to a game's broadcast pool, removing it from any
// previous pool first.
func (cm *ConnectionManager) JoinPool(conn *Connection, gameID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn.mu.Lock()
	prev := conn.gameID
	conn.gameID = gameID
	conn.mu.Unlock()

	if prev != "" {
		cm.removeFromPoolLocked(conn, prev)
	}
	if cm.gameConnections[gameID] == nil {
		cm.gameConnections[gameID] = make(map[*Connection]bool)
	}
	cm.gameConnections[gameID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("game_id", gameID).
		Int("total_connections", len(cm.gameConnections[gameID])).
		Msg("connection joined game pool")
}

// LeavePool removes a connection from its game pool without closing it.
func (cm *ConnectionManager) LeavePool(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn.mu.Lock()
	gameID := conn.gameID
	conn.gameID = ""
	conn.mu.Unlock()

	if gameID != "" {
		cm.removeFromPoolLocked(conn, gameID)
	}
}

func (cm *ConnectionManager) removeFromPoolLocked(conn *Connection, gameID string) {
	if connections, exists := cm.gameConnections[gameID]; exists {
		delete(connections, conn)
		if len(connections) == 0 {
			delete(cm.gameConnections, gameID)
		}
	}
}

// unregisterConnection removes a dead connection and fires the close hook
// exactly once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	conn.mu.Lock()
	if conn.dead {
		conn.mu.Unlock()
		return
	}
	conn.dead = true
	gameID := conn.gameID
	conn.gameID = ""
	conn.mu.Unlock()

	cm.mu.Lock()
	if gameID != "" {
		cm.removeFromPoolLocked(conn, gameID)
	}
	cm.mu.Unlock()

	if cm.onClose != nil {
		cm.onClose(conn)
	}

	log.Info().Str("connection_id", conn.ID).Msg("connection unregistered")
}

// BroadcastToGame queues an event for every connection in a game's pool.
func (cm *ConnectionManager) BroadcastToGame(gameID string, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}
	select {
	case cm.broadcastCh <- broadcastMessage{gameID: gameID, data: data}:
	default:
		log.Warn().Str("game_id", gameID).Msg("broadcast channel full, dropping message")
	}
}

// SendToConnection delivers an event to a single connection.
func (cm *ConnectionManager) SendToConnection(conn *Connection, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event")
		return
	}
	select {
	case conn.Send <- data:
	default:
		log.Warn().Str("connection_id", conn.ID).Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.gameConnections[message.gameID]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.Send <- message.data:
		default:
			log.Warn().Str("connection_id", conn.ID).Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("game_id", message.gameID).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	totalConnections := 0
	gameCounts := make(map[string]int)
	for gameID, connections := range cm.gameConnections {
		totalConnections += len(connections)
		gameCounts[gameID] = len(connections)
	}

	return map[string]interface{}{
		"total_connections": totalConnections,
		"active_games":      len(cm.gameConnections),
		"game_connections":  gameCounts,
	}
}

// GameID returns the pool the connection currently belongs to.
func (c *Connection) GameID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			break
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			log.Debug().Err(err).Str("connection_id", c.ID).Msg("malformed client command")
			c.Manager.SendToConnection(c, &Event{Type: EventError, Error: "malformed command"})
		} else if c.Manager.onCommand != nil {
			c.Manager.onCommand(c, cmd)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
