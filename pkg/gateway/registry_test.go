package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRegistry_AddRemoveCount(t *testing.T) {
	registry := NewClientRegistry()
	assert.Equal(t, 0, registry.Count())

	registry.Add(&Client{ID: "c1"})
	registry.Add(&Client{ID: "c2"})
	assert.Equal(t, 2, registry.Count())
	assert.Len(t, registry.GetAll(), 2)

	registry.Remove("c1")
	assert.Equal(t, 1, registry.Count())

	// Removing an unknown id is a no-op
	registry.Remove("missing")
	assert.Equal(t, 1, registry.Count())
}

func TestClientRegistry_AuthenticatedSubset(t *testing.T) {
	registry := NewClientRegistry()
	registry.Add(&Client{ID: "anon"})
	registry.Add(&Client{ID: "authed", Authenticated: true})

	authed := registry.GetAuthenticatedClients()
	require.Len(t, authed, 1)
	assert.Equal(t, "authed", authed[0].ID)
}

func TestClientRegistry_ConnectedClientInfo(t *testing.T) {
	registry := NewClientRegistry()
	now := time.Now()

	registry.Add(&Client{
		ID:            "active",
		Authenticated: true,
		ConnectedAt:   now.Add(-time.Minute),
		LastActivity:  now,
		IPAddress:     "10.0.0.1",
	})
	registry.Add(&Client{
		ID:           "stale",
		ConnectedAt:  now.Add(-time.Hour),
		LastActivity: now.Add(-idleThreshold - time.Minute),
	})

	infos := registry.GetConnectedClients()
	require.Len(t, infos, 2)

	byID := make(map[string]ClientInfo, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}

	assert.False(t, byID["active"].Idle)
	assert.True(t, byID["active"].Authenticated)
	assert.Equal(t, "10.0.0.1", byID["active"].IPAddress)
	assert.True(t, byID["stale"].Idle)
}

func TestClientRegistry_UpdateActivity(t *testing.T) {
	registry := NewClientRegistry()
	stale := time.Now().Add(-idleThreshold - time.Minute)
	registry.Add(&Client{ID: "c1", LastActivity: stale})

	registry.UpdateActivity("c1")

	infos := registry.GetConnectedClients()
	require.Len(t, infos, 1)
	assert.False(t, infos[0].Idle)
	assert.True(t, infos[0].LastActivity.After(stale))

	// Unknown ids are ignored
	registry.UpdateActivity("missing")
}
