package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cuevacelis/1vs1core-sub000/internal/coordinator"
	"github.com/cuevacelis/1vs1core-sub000/internal/httpapi"
	"github.com/cuevacelis/1vs1core-sub000/internal/hub"
	"github.com/cuevacelis/1vs1core-sub000/internal/state"
	"github.com/cuevacelis/1vs1core-sub000/internal/store"
	"github.com/cuevacelis/1vs1core-sub000/pkg/types"
)

func newBackend(t *testing.T) (*httptest.Server, *store.MemoryStore, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := zap.NewNop()
	st := store.NewMemory()
	h := hub.NewHub(ctx, log)
	coord := coordinator.New(st, h, log, time.Minute)
	t.Cleanup(coord.Shutdown)

	srv := httptest.NewServer(httpapi.SetupRoutes(h, coord, st, log))
	t.Cleanup(srv.Close)
	return srv, st, h
}

func endpoint(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func waitForMembers(t *testing.T, h *hub.Hub, matchID int64, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		reply := make(chan []string, 1)
		h.Inbox() <- hub.Members{MatchID: matchID, Reply: reply}
		if ids := <-reply; len(ids) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %d never reached %d members", matchID, n)
}

func recvEvent(t *testing.T, ch <-chan types.Event, within time.Duration) types.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return types.Event{}
	}
}

func TestSpectatorSeesPlayerFlow(t *testing.T) {
	srv, st, h := newBackend(t)
	ctx := context.Background()
	require.NoError(t, st.CreateMatch(ctx, &store.Match{
		ID: 42, Player1ID: 10, Player2ID: 20, State: state.Active,
	}))

	events := make(chan types.Event, 16)
	spectator, err := Dial(ctx, Options{
		URL:     endpoint(srv),
		OnEvent: func(ev types.Event) { events <- ev },
	})
	require.NoError(t, err)
	defer spectator.Close()
	require.True(t, spectator.IsConnected())

	require.NoError(t, spectator.Subscribe(ctx, 42, 0, true))
	waitForMembers(t, h, 42, 1)

	player, err := Dial(ctx, Options{URL: endpoint(srv)})
	require.NoError(t, err)
	defer player.Close()

	require.NoError(t, player.Subscribe(ctx, 42, 10, false))
	ev := recvEvent(t, events, 2*time.Second)
	require.Equal(t, types.TypeMatchUpdate, ev.Type)
	require.Equal(t, string(state.Player1Connected), ev.Data.State)

	require.NoError(t, player.SelectChampion(ctx, 42, 10, 7, "mid"))
	ev = recvEvent(t, events, 2*time.Second)
	require.Equal(t, types.TypeChampionSelected, ev.Type)
	require.Equal(t, int64(7), ev.ChampionID)

	require.NoError(t, player.LockSelection(ctx, 42, 10))
	ev = recvEvent(t, events, 2*time.Second)
	require.Equal(t, types.TypeChampionLocked, ev.Type)
	require.Equal(t, int64(10), ev.PlayerID)

	last, ok := spectator.LastMessage()
	require.True(t, ok)
	require.Equal(t, types.TypeChampionLocked, last.Type)
}

func TestRejectedCommandSurfacesAsErrorEvent(t *testing.T) {
	srv, st, _ := newBackend(t)
	ctx := context.Background()
	require.NoError(t, st.CreateMatch(ctx, &store.Match{
		ID: 42, Player1ID: 10, Player2ID: 20, State: state.Active,
	}))

	events := make(chan types.Event, 16)
	c, err := Dial(ctx, Options{
		URL:     endpoint(srv),
		OnEvent: func(ev types.Event) { events <- ev },
	})
	require.NoError(t, err)
	defer c.Close()

	// Not a participant: the connect is rejected back to this caller only.
	require.NoError(t, c.Subscribe(ctx, 42, 999, false))
	ev := recvEvent(t, events, 2*time.Second)
	require.Equal(t, types.TypeError, ev.Type)
	require.Equal(t, types.CodeForbidden, ev.Data.Code)
}

func TestCloseCancelsPendingReconnect(t *testing.T) {
	srv, _, _ := newBackend(t)
	c, err := Dial(context.Background(), Options{URL: endpoint(srv), Backoff: 50 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.False(t, c.IsConnected())

	// The run loop has exited; no reconnect may flip the flag back.
	time.Sleep(150 * time.Millisecond)
	require.False(t, c.IsConnected())
}

func TestDialFailsFastOnBadEndpoint(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := Dial(ctx, Options{URL: "ws://127.0.0.1:1/ws"})
	require.Error(t, err)
}
