package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/quizdash/quizdash/internal/models"
)

// KVConfig holds configuration for the JetStream-backed store.
type KVConfig struct {
	URL           string
	Bucket        string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultKVConfig returns the default JetStream KV configuration.
func DefaultKVConfig() KVConfig {
	return KVConfig{
		URL:           nats.DefaultURL,
		Bucket:        "trivia",
		MaxReconnects: -1, // infinite
		ReconnectWait: 2 * time.Second,
	}
}

// KVStore is the remote GameStore: one JetStream KeyValue bucket, one key per
// game ID, JSON records. Watch gives subscribers the current value first and
// then every committed revision in order, which is exactly the subscribe
// contract the sessions build on. Writes merge into the record at the read
// revision and commit with Update; a concurrent commit forces a re-read and
// re-merge, so one writer's fields are never erased by another's whole-record
// put.
type KVStore struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// NewKVStore connects to NATS and binds (or creates) the game bucket.
func NewKVStore(ctx context.Context, cfg KVConfig) (*KVStore, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "trivia game records",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bind KV bucket %s: %w", cfg.Bucket, err)
	}

	return &KVStore{nc: nc, kv: kv}, nil
}

// Close drains the NATS connection.
func (s *KVStore) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}

func (s *KVStore) Get(ctx context.Context, gameID string) (*models.Game, error) {
	entry, err := s.kv.Get(ctx, gameID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get game %s: %w", gameID, err)
	}
	return decodeGame(entry.Value())
}

func (s *KVStore) Write(ctx context.Context, gameID string, patch Patch) error {
	for {
		entry, err := s.kv.Get(ctx, gameID)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("get game %s: %w", gameID, err)
		}
		g, err := decodeGame(entry.Value())
		if err != nil {
			return err
		}
		patch.Apply(g)

		data, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("marshal game %s: %w", gameID, err)
		}
		_, err = s.kv.Update(ctx, gameID, data, entry.Revision())
		if err == nil {
			return nil
		}
		if !isRevisionMismatch(err) {
			return fmt.Errorf("update game %s: %w", gameID, err)
		}
		// Someone else committed between our read and write. Their fields
		// must survive, so merge again on top of the new revision.
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// isRevisionMismatch reports whether an Update failed because another write
// landed on the key first.
func isRevisionMismatch(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

func (s *KVStore) Replace(ctx context.Context, gameID string, game *models.Game) error {
	if game == nil {
		if err := s.kv.Purge(ctx, gameID); err != nil {
			return fmt.Errorf("delete game %s: %w", gameID, err)
		}
		return nil
	}
	return s.put(ctx, gameID, game)
}

func (s *KVStore) put(ctx context.Context, gameID string, g *models.Game) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal game %s: %w", gameID, err)
	}
	if _, err := s.kv.Put(ctx, gameID, data); err != nil {
		return fmt.Errorf("put game %s: %w", gameID, err)
	}
	return nil
}

func (s *KVStore) Subscribe(ctx context.Context, gameID string, fn UpdateFunc) (CancelFunc, error) {
	watchCtx, cancelWatch := context.WithCancel(ctx)
	watcher, err := s.kv.Watch(watchCtx, gameID)
	if err != nil {
		cancelWatch()
		return nil, fmt.Errorf("watch game %s: %w", gameID, err)
	}

	go func() {
		// The watcher replays the current value (if any), then signals the
		// end of the replay with a nil entry, then streams updates. A
		// subscription against a missing key sees the nil marker first, so
		// the initial callback still fires, with a nil record.
		sawInitial := false
		for entry := range watcher.Updates() {
			if entry == nil {
				if !sawInitial {
					sawInitial = true
					fn(nil)
				}
				continue
			}
			sawInitial = true

			switch entry.Operation() {
			case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
				fn(nil)
				continue
			}

			g, err := decodeGame(entry.Value())
			if err != nil {
				log.Error().Err(err).Str("game_id", gameID).Msg("dropping undecodable game update")
				continue
			}
			fn(g)
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if err := watcher.Stop(); err != nil {
				log.Debug().Err(err).Str("game_id", gameID).Msg("stop watcher")
			}
			cancelWatch()
		})
	}
	return cancel, nil
}

func decodeGame(data []byte) (*models.Game, error) {
	var g models.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("unmarshal game record: %w", err)
	}
	if g.Players == nil {
		g.Players = map[string]models.Player{}
	}
	return &g, nil
}
