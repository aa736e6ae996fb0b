package inmem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/session"
	"github.com/relaykit/agentcore/session/inmem"
)

func TestStore_CreateAndGetSession(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()

	created, err := store.CreateSession(ctx, "app", "user1", "sess1")
	require.NoError(t, err)
	assert.Equal(t, "sess1", created.ID)

	loaded, err := store.GetSession(ctx, "app", "user1", "sess1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Empty(t, loaded.Events)
}

func TestStore_CreateSession_Duplicate(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()
	_, err := store.CreateSession(ctx, "app", "user1", "sess1")
	require.NoError(t, err)

	_, err = store.CreateSession(ctx, "app", "user1", "sess1")
	assert.ErrorIs(t, err, session.ErrSessionExists)
}

func TestStore_GetSession_NotFound(t *testing.T) {
	store := inmem.New()
	_, err := store.GetSession(context.Background(), "app", "user1", "missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestStore_AppendEvent_AppliesStateDelta(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()
	_, err := store.CreateSession(ctx, "app", "user1", "sess1")
	require.NoError(t, err)

	ev := event.New("inv-1", "user", event.KindModelRequest, event.Root)
	ev.Actions = &event.Actions{StateDelta: map[string]any{"count": 1}}
	require.NoError(t, store.AppendEvent(ctx, "app", "user1", "sess1", ev))

	loaded, err := store.GetSession(ctx, "app", "user1", "sess1")
	require.NoError(t, err)
	require.Len(t, loaded.Events, 1)
	assert.Equal(t, 1, loaded.State["count"])
}

func TestStore_DeleteSession(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()
	_, err := store.CreateSession(ctx, "app", "user1", "sess1")
	require.NoError(t, err)

	require.NoError(t, store.DeleteSession(ctx, "app", "user1", "sess1"))
	_, err = store.GetSession(ctx, "app", "user1", "sess1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}
