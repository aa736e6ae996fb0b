// Package session defines the Session entity and the Store interface that
// persists it. A Session is the durable conversational container: an
// ordered, append-only event log plus an opaque key-value state map.
// Sessions are mutated only by appending events and applying state deltas;
// all Store operations on a given session id are atomic with respect to one
// another.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/relaykit/agentcore/event"
)

type (
	// Session is the durable conversational container addressed by
	// (appName, userId, id).
	Session struct {
		ID             string
		AppName        string
		UserID         string
		Events         []*event.Event
		State          map[string]any
		LastUpdateTime time.Time
	}

	// Store persists sessions. Implementations must serialize operations on
	// the same session id: AppendEvent and ApplyStateDelta racing on one
	// session must not interleave partially.
	Store interface {
		// CreateSession creates a new session. If sessionID is empty, the
		// store generates one. Returns the created session.
		CreateSession(ctx context.Context, appName, userID, sessionID string) (Session, error)
		// GetSession loads an existing session. Returns ErrSessionNotFound
		// when it does not exist.
		GetSession(ctx context.Context, appName, userID, sessionID string) (Session, error)
		// AppendEvent atomically appends ev to the session's event log and
		// bumps LastUpdateTime. If ev.Actions carries a StateDelta, it is
		// applied as part of the same atomic operation.
		AppendEvent(ctx context.Context, appName, userID, sessionID string, ev *event.Event) error
		// ApplyStateDelta atomically merges delta into the session's state,
		// independent of any event append.
		ApplyStateDelta(ctx context.Context, appName, userID, sessionID string, delta map[string]any) error
		// DeleteSession permanently removes a session. Idempotent.
		DeleteSession(ctx context.Context, appName, userID, sessionID string) error
	}
)

var (
	// ErrSessionNotFound indicates no session exists for the given key.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionExists indicates CreateSession was called for a sessionID
	// that already has a session.
	ErrSessionExists = errors.New("session: already exists")
)

// Key returns the composite identifier a Store implementation should use to
// address a session.
func Key(appName, userID, sessionID string) string {
	return appName + "/" + userID + "/" + sessionID
}
