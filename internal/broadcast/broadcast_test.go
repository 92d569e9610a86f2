package broadcast

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiFansOutToEveryMember(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, Nop{}, nil, b}
	m.Broadcast(context.Background(), Change{Type: "race.created", EntityID: 1})
	m.Broadcast(context.Background(), Change{Type: "race.status_changed", EntityID: 1})

	assert.Equal(t, []string{"race.created", "race.status_changed"}, a.Types())
	assert.Equal(t, a.Changes(), b.Changes())
}

func TestHubDeliversChangesToConnectedClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(ctx, Change{Type: "incident.officialized", EntityKind: "incident", EntityID: 9, Record: map[string]any{"status": "official"}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var got Change
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "incident.officialized", got.Type)
	assert.Equal(t, int64(9), got.EntityID)
	assert.Equal(t, map[string]any{"status": "official"}, got.Record)
}

func TestHubDropsChangesAfterClose(t *testing.T) {
	hub := NewHub(nil)
	hub.Close()
	hub.Close()
	hub.Broadcast(context.Background(), Change{Type: "race.created"})
	assert.Zero(t, hub.ClientCount())
	assert.Len(t, hub.broadcast, 0)
}
