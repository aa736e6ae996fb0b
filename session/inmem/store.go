// Package inmem provides an in-process session.Store backed by a map
// guarded by a mutex. It is the default store for tests and single-process
// runs; durable deployments use session/redisstore or session/mongostore.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/session"
)

// Store is a session.Store implementation safe for concurrent use. Each
// session key is protected for the lifetime of its single CreateSession call
// and for every subsequent AppendEvent/ApplyStateDelta through the store's
// single mutex, which is coarse but sufficient: sessions are typically
// driven by one Runner invocation at a time.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

// New constructs an empty Store.
func New() *Store {
	return &Store{sessions: make(map[string]*session.Session)}
}

func (s *Store) CreateSession(_ context.Context, appName, userID, sessionID string) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	key := session.Key(appName, userID, sessionID)
	if _, ok := s.sessions[key]; ok {
		return session.Session{}, session.ErrSessionExists
	}
	sess := &session.Session{
		ID:             sessionID,
		AppName:        appName,
		UserID:         userID,
		State:          make(map[string]any),
		LastUpdateTime: time.Now(),
	}
	s.sessions[key] = sess
	return *sess, nil
}

func (s *Store) GetSession(_ context.Context, appName, userID, sessionID string) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[session.Key(appName, userID, sessionID)]
	if !ok {
		return session.Session{}, session.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

func (s *Store) AppendEvent(_ context.Context, appName, userID, sessionID string, ev *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[session.Key(appName, userID, sessionID)]
	if !ok {
		return session.ErrSessionNotFound
	}
	sess.Events = append(sess.Events, ev)
	if ev.Actions != nil {
		for k, v := range ev.Actions.StateDelta {
			sess.State[k] = v
		}
	}
	sess.LastUpdateTime = time.Now()
	return nil
}

func (s *Store) ApplyStateDelta(_ context.Context, appName, userID, sessionID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[session.Key(appName, userID, sessionID)]
	if !ok {
		return session.ErrSessionNotFound
	}
	for k, v := range delta {
		sess.State[k] = v
	}
	sess.LastUpdateTime = time.Now()
	return nil
}

func (s *Store) DeleteSession(_ context.Context, appName, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session.Key(appName, userID, sessionID))
	return nil
}

func cloneSession(s *session.Session) session.Session {
	events := make([]*event.Event, len(s.Events))
	copy(events, s.Events)
	state := make(map[string]any, len(s.State))
	for k, v := range s.State {
		state[k] = v
	}
	return session.Session{
		ID:             s.ID,
		AppName:        s.AppName,
		UserID:         s.UserID,
		Events:         events,
		State:          state,
		LastUpdateTime: s.LastUpdateTime,
	}
}
