package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quizdash/quizdash/internal/models"
	"github.com/quizdash/quizdash/internal/questions"
	"github.com/quizdash/quizdash/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	s := NewService(context.Background(), st, questions.NewApp(nil), clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Start(ctx)
	return s, st
}

// testConn builds a connection that is not backed by a real socket. The Send
// buffer is large enough that tests never trip the slow-client eviction.
func testConn(s *Service, id string) *Connection {
	return &Connection{
		ID:      id,
		Send:    make(chan []byte, 256),
		Manager: s.Manager(),
	}
}

// recvEvent reads events off the connection until one of the wanted type
// arrives. Intermediate events of other types are skipped.
func recvEvent(t *testing.T, conn *Connection, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-conn.Send:
			var ev Event
			if err := json.Unmarshal(data, &ev); err != nil {
				t.Fatalf("bad event payload: %v", err)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event received", want)
		}
	}
}

func TestCreateGameCommand(t *testing.T) {
	s, st := newTestService(t)
	conn := testConn(s, "host")

	s.HandleCommand(conn, Command{Type: CommandCreateGame, Name: "Ana"})

	ev := recvEvent(t, conn, EventGameCreated)
	if len(ev.GameID) != 6 {
		t.Fatalf("gameId = %q, want 6-char code", ev.GameID)
	}
	if _, err := st.Get(context.Background(), ev.GameID); err != nil {
		t.Fatalf("game not stored: %v", err)
	}

	// The host is in the pool and receives state broadcasts.
	state := recvEvent(t, conn, EventGameState)
	if state.Game == nil || state.Game.Host != "Ana" || state.Game.Status != models.GameStatusWaiting {
		t.Fatalf("unexpected state event: %+v", state.Game)
	}
}

func TestCreateGameRequiresName(t *testing.T) {
	s, _ := newTestService(t)
	conn := testConn(s, "host")

	s.HandleCommand(conn, Command{Type: CommandCreateGame})
	if ev := recvEvent(t, conn, EventError); ev.Error == "" {
		t.Fatal("expected error detail")
	}
}

func TestJoinGameCommand(t *testing.T) {
	s, _ := newTestService(t)
	hostConn := testConn(s, "host")
	playerConn := testConn(s, "player")

	s.HandleCommand(hostConn, Command{Type: CommandCreateGame, Name: "Ana"})
	created := recvEvent(t, hostConn, EventGameCreated)

	s.HandleCommand(playerConn, Command{Type: CommandJoinGame, Name: "Bea", GameID: created.GameID})
	joined := recvEvent(t, playerConn, EventJoined)
	if joined.PlayerID == "" || joined.GameID != created.GameID {
		t.Fatalf("unexpected joined event: %+v", joined)
	}

	// Both pool members observe the join through the shared record.
	state := recvEvent(t, hostConn, EventGameState)
	for state.Game == nil || len(state.Game.Players) == 0 {
		state = recvEvent(t, hostConn, EventGameState)
	}
	if state.Game.Players[joined.PlayerID].Name != "Bea" {
		t.Fatalf("join not broadcast: %+v", state.Game.Players)
	}
}

func TestJoinUnknownGame(t *testing.T) {
	s, _ := newTestService(t)
	conn := testConn(s, "player")

	s.HandleCommand(conn, Command{Type: CommandJoinGame, Name: "Bea", GameID: "NOSUCH"})
	recvEvent(t, conn, EventError)
}

func TestStartGameUsesQuestionSet(t *testing.T) {
	s, st := newTestService(t)
	conn := testConn(s, "host")

	s.HandleCommand(conn, Command{Type: CommandCreateGame, Name: "Ana"})
	created := recvEvent(t, conn, EventGameCreated)

	s.HandleCommand(conn, Command{Type: CommandStartGame, SetName: questions.SetScienceTech})

	state := recvEvent(t, conn, EventGameState)
	for state.Game == nil || state.Game.Status != models.GameStatusStarting {
		state = recvEvent(t, conn, EventGameState)
	}
	if len(state.Game.Questions) != 3 {
		t.Fatalf("science set not loaded: %d questions", len(state.Game.Questions))
	}
	if g, _ := st.Get(context.Background(), created.GameID); g.Phase != models.PhaseCountdown {
		t.Fatalf("phase = %s, want countdown", g.Phase)
	}
}

func TestStartGameRejectsNonHost(t *testing.T) {
	s, _ := newTestService(t)
	conn := testConn(s, "stranger")

	s.HandleCommand(conn, Command{Type: CommandStartGame})
	recvEvent(t, conn, EventError)
}

func TestAnswerCommandWritesAnswer(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()
	hostConn := testConn(s, "host")
	playerConn := testConn(s, "player")

	s.HandleCommand(hostConn, Command{Type: CommandCreateGame, Name: "Ana"})
	created := recvEvent(t, hostConn, EventGameCreated)
	s.HandleCommand(playerConn, Command{Type: CommandJoinGame, Name: "Bea", GameID: created.GameID})
	joined := recvEvent(t, playerConn, EventJoined)

	// Put the game into the question phase directly.
	err := st.Write(ctx, created.GameID, store.Patch{
		Phase:           store.PhasePtr(models.PhaseQuestion),
		CurrentQuestion: store.IntPtr(0),
		TimeLeft:        store.IntPtr(20),
		Questions: []models.Question{{
			Question:      "What is the capital of France?",
			Options:       []string{"London", "Berlin", "Paris", "Madrid"},
			CorrectAnswer: 2,
			Points:        1,
		}},
	})
	if err != nil {
		t.Fatalf("enter question phase: %v", err)
	}

	// Wait for the player session to observe the phase change.
	s.mu.Lock()
	player := s.clients[playerConn].player
	s.mu.Unlock()
	deadline := time.Now().Add(2 * time.Second)
	for player.Phase() != models.PhaseQuestion {
		if time.Now().After(deadline) {
			t.Fatal("player session never saw question phase")
		}
		time.Sleep(2 * time.Millisecond)
	}

	option := 2
	s.HandleCommand(playerConn, Command{Type: CommandAnswer, Option: &option})

	g, err := st.Get(ctx, created.GameID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	a := g.Players[joined.PlayerID].Answer
	if a == nil || a.Option != 2 || !a.IsCorrect {
		t.Fatalf("answer not recorded: %+v", a)
	}

	// The broadcast during results phases carries standings.
	if err := st.Write(ctx, created.GameID, store.Patch{Phase: store.PhasePtr(models.PhaseLeaderboard)}); err != nil {
		t.Fatalf("to leaderboard: %v", err)
	}
	state := recvEvent(t, playerConn, EventGameState)
	for state.Game.Phase != models.PhaseLeaderboard {
		state = recvEvent(t, playerConn, EventGameState)
	}
	if len(state.Leaderboard) != 1 || state.Leaderboard[0].PlayerID != joined.PlayerID {
		t.Fatalf("leaderboard missing from event: %+v", state.Leaderboard)
	}
}

func TestEndGameBroadcastsGameEnded(t *testing.T) {
	s, st := newTestService(t)
	hostConn := testConn(s, "host")
	playerConn := testConn(s, "player")

	s.HandleCommand(hostConn, Command{Type: CommandCreateGame, Name: "Ana"})
	created := recvEvent(t, hostConn, EventGameCreated)
	s.HandleCommand(playerConn, Command{Type: CommandJoinGame, Name: "Bea", GameID: created.GameID})
	recvEvent(t, playerConn, EventJoined)

	s.HandleCommand(hostConn, Command{Type: CommandEndGame})

	recvEvent(t, playerConn, EventGameEnded)
	if _, err := st.Get(context.Background(), created.GameID); err != store.ErrNotFound {
		t.Fatalf("record should be deleted, got %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	s, _ := newTestService(t)
	conn := testConn(s, "c")

	s.HandleCommand(conn, Command{Type: "warp"})
	recvEvent(t, conn, EventError)
}
