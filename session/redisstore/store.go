// Package redisstore provides a session.Store backed by Redis, grounded on
// the teacher's Redis-backed streaming client usage pattern (a single
// *redis.Client shared across keyed operations) and repurposed here as a
// keyed session store instead of a pub/sub transport: each session is a
// string key holding its JSON-encoded metadata, a Redis hash holding its
// state, and a list holding its JSON-encoded event log. AppendEvent updates
// all three inside a single
// transaction so a reader never observes an event without its state delta.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/session"
)

const keyPrefix = "agentcore:session:"

// Store implements session.Store against a Redis client.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// Options configures the Redis-backed store.
type Options struct {
	Client *redis.Client
	// TTL expires idle sessions; zero disables expiry.
	TTL time.Duration
}

// New constructs a Store.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("redisstore: client is required")
	}
	return &Store{client: opts.Client, ttl: opts.TTL}, nil
}

type meta struct {
	AppName        string    `json:"app_name"`
	UserID         string    `json:"user_id"`
	SessionID      string    `json:"session_id"`
	LastUpdateTime time.Time `json:"last_update_time"`
}

func metaKey(key string) string   { return keyPrefix + key + ":meta" }
func stateKey(key string) string  { return keyPrefix + key + ":state" }
func eventsKey(key string) string { return keyPrefix + key + ":events" }

func (s *Store) CreateSession(ctx context.Context, appName, userID, sessionID string) (session.Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	key := session.Key(appName, userID, sessionID)
	exists, err := s.client.Exists(ctx, metaKey(key)).Result()
	if err != nil {
		return session.Session{}, err
	}
	if exists > 0 {
		return session.Session{}, session.ErrSessionExists
	}
	m := meta{AppName: appName, UserID: userID, SessionID: sessionID, LastUpdateTime: time.Now().UTC()}
	raw, err := json.Marshal(m)
	if err != nil {
		return session.Session{}, err
	}
	if err := s.client.Set(ctx, metaKey(key), raw, s.ttl).Err(); err != nil {
		return session.Session{}, err
	}
	return session.Session{ID: sessionID, AppName: appName, UserID: userID, State: map[string]any{}, LastUpdateTime: m.LastUpdateTime}, nil
}

func (s *Store) GetSession(ctx context.Context, appName, userID, sessionID string) (session.Session, error) {
	key := session.Key(appName, userID, sessionID)
	rawMeta, err := s.client.Get(ctx, metaKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Session{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.Session{}, err
	}
	var m meta
	if err := json.Unmarshal(rawMeta, &m); err != nil {
		return session.Session{}, err
	}
	stateRaw, err := s.client.HGetAll(ctx, stateKey(key)).Result()
	if err != nil {
		return session.Session{}, err
	}
	state := make(map[string]any, len(stateRaw))
	for k, v := range stateRaw {
		var val any
		if err := json.Unmarshal([]byte(v), &val); err == nil {
			state[k] = val
		} else {
			state[k] = v
		}
	}
	rawEvents, err := s.client.LRange(ctx, eventsKey(key), 0, -1).Result()
	if err != nil {
		return session.Session{}, err
	}
	events := make([]*event.Event, 0, len(rawEvents))
	for _, raw := range rawEvents {
		var ev event.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return session.Session{}, err
		}
		events = append(events, &ev)
	}
	return session.Session{
		ID:             sessionID,
		AppName:        appName,
		UserID:         userID,
		Events:         events,
		State:          state,
		LastUpdateTime: m.LastUpdateTime,
	}, nil
}

func (s *Store) AppendEvent(ctx context.Context, appName, userID, sessionID string, ev *event.Event) error {
	key := session.Key(appName, userID, sessionID)
	if exists, err := s.client.Exists(ctx, metaKey(key)).Result(); err != nil {
		return err
	} else if exists == 0 {
		return session.ErrSessionNotFound
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, eventsKey(key), raw)
		if ev.Actions != nil {
			for k, v := range ev.Actions.StateDelta {
				encoded, err := json.Marshal(v)
				if err != nil {
					return err
				}
				pipe.HSet(ctx, stateKey(key), k, encoded)
			}
		}
		m := meta{AppName: appName, UserID: userID, SessionID: sessionID, LastUpdateTime: time.Now().UTC()}
		encoded, err := json.Marshal(m)
		if err != nil {
			return err
		}
		pipe.Set(ctx, metaKey(key), encoded, s.ttl)
		return nil
	})
	return err
}

func (s *Store) ApplyStateDelta(ctx context.Context, appName, userID, sessionID string, delta map[string]any) error {
	key := session.Key(appName, userID, sessionID)
	if exists, err := s.client.Exists(ctx, metaKey(key)).Result(); err != nil {
		return err
	} else if exists == 0 {
		return session.ErrSessionNotFound
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range delta {
			encoded, err := json.Marshal(v)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, stateKey(key), k, encoded)
		}
		return nil
	})
	return err
}

func (s *Store) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	key := session.Key(appName, userID, sessionID)
	return s.client.Del(ctx, metaKey(key), stateKey(key), eventsKey(key)).Err()
}
