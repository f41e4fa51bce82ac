package store

import (
	"context"
	"sync"

	"github.com/quizdash/quizdash/internal/models"
)

// MemoryStore is an in-process GameStore with the same delivery guarantees as
// the remote adapter: every subscriber sees an initial snapshot and then all
// committed updates in order. Used by tests and single-node deployments.
type MemoryStore struct {
	mu    sync.Mutex
	games map[string]*models.Game
	subs  map[string]map[int]*memorySub
	next  int
}

// memorySub queues snapshots without bound so a slow callback can never stall
// a commit. Callbacks that themselves write back into the store are expected.
type memorySub struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*models.Game
	closed bool
}

func newMemorySub() *memorySub {
	sub := &memorySub{}
	sub.cond = sync.NewCond(&sub.mu)
	return sub
}

func (sub *memorySub) push(g *models.Game) {
	sub.mu.Lock()
	if !sub.closed {
		sub.queue = append(sub.queue, g)
		sub.cond.Signal()
	}
	sub.mu.Unlock()
}

func (sub *memorySub) close() {
	sub.mu.Lock()
	sub.closed = true
	sub.cond.Signal()
	sub.mu.Unlock()
}

// run delivers queued snapshots in order until closed.
func (sub *memorySub) run(fn UpdateFunc) {
	for {
		sub.mu.Lock()
		for len(sub.queue) == 0 && !sub.closed {
			sub.cond.Wait()
		}
		if len(sub.queue) == 0 && sub.closed {
			sub.mu.Unlock()
			return
		}
		g := sub.queue[0]
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()
		fn(g)
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]*models.Game),
		subs:  make(map[string]map[int]*memorySub),
	}
}

func (s *MemoryStore) Get(ctx context.Context, gameID string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (s *MemoryStore) Write(ctx context.Context, gameID string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return ErrNotFound
	}
	patch.Apply(g)
	s.notifyLocked(gameID, g)
	return nil
}

func (s *MemoryStore) Replace(ctx context.Context, gameID string, game *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if game == nil {
		delete(s.games, gameID)
		s.notifyLocked(gameID, nil)
		return nil
	}
	s.games[gameID] = game.Clone()
	s.notifyLocked(gameID, game)
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, gameID string, fn UpdateFunc) (CancelFunc, error) {
	sub := newMemorySub()

	s.mu.Lock()
	if s.subs[gameID] == nil {
		s.subs[gameID] = make(map[int]*memorySub)
	}
	id := s.next
	s.next++
	s.subs[gameID][id] = sub
	// Initial snapshot, queued ahead of any later commit.
	sub.push(s.games[gameID].Clone())
	s.mu.Unlock()

	go sub.run(fn)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[gameID], id)
			s.mu.Unlock()
			sub.close()
		})
	}
	return cancel, nil
}

// notifyLocked queues the committed record for every subscriber. Pushes happen
// under the store mutex so per-subscriber order matches commit order.
func (s *MemoryStore) notifyLocked(gameID string, g *models.Game) {
	for _, sub := range s.subs[gameID] {
		sub.push(g.Clone())
	}
}
