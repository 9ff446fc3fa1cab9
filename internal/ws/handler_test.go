package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cuevacelis/1vs1core-sub000/internal/coordinator"
	"github.com/cuevacelis/1vs1core-sub000/internal/hub"
	"github.com/cuevacelis/1vs1core-sub000/internal/state"
	"github.com/cuevacelis/1vs1core-sub000/internal/store"
	"github.com/cuevacelis/1vs1core-sub000/pkg/types"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := zap.NewNop()
	st := store.NewMemory()
	h := hub.NewHub(ctx, log)
	coord := coordinator.New(st, h, log, time.Minute)
	t.Cleanup(coord.Shutdown)

	srv := httptest.NewServer(Handler(h, coord, log))
	t.Cleanup(srv.Close)
	return srv, st, h
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func writeRaw(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(payload)))
}

func readEvent(t *testing.T, conn *websocket.Conn) types.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev types.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
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

func seedActiveMatch(t *testing.T, st *store.MemoryStore) *store.Match {
	t.Helper()
	m := &store.Match{ID: 42, Player1ID: 10, Player2ID: 20, State: state.Active}
	require.NoError(t, st.CreateMatch(context.Background(), m))
	return m
}

func TestMalformedFrameGetsErrorAndKeepsConnection(t *testing.T) {
	srv, st, h := newTestServer(t)
	seedActiveMatch(t, st)
	conn := dial(t, srv)

	writeRaw(t, conn, `this is not json`)
	ev := readEvent(t, conn)
	require.Equal(t, types.TypeError, ev.Type)
	require.Equal(t, types.CodeDecodeError, ev.Data.Code)

	// Same connection still works: an admin subscribe lands in the room.
	writeRaw(t, conn, `{"type":"subscribe","matchId":42,"data":{"isAdmin":true}}`)
	waitForMembers(t, h, 42, 1)
}

func TestMalformedFrameDoesNotDisturbOtherConnections(t *testing.T) {
	srv, st, h := newTestServer(t)
	seedActiveMatch(t, st)

	admin := dial(t, srv)
	writeRaw(t, admin, `{"type":"subscribe","matchId":42,"data":{"isAdmin":true}}`)
	waitForMembers(t, h, 42, 1)

	vandal := dial(t, srv)
	writeRaw(t, vandal, `}}}garbage{{{`)
	_ = readEvent(t, vandal) // the vandal's own error frame

	// The room still delivers: a player connect broadcasts to the admin.
	player := dial(t, srv)
	writeRaw(t, player, `{"type":"subscribe","matchId":42,"data":{"userId":10}}`)

	ev := readEvent(t, admin)
	require.Equal(t, types.TypeMatchUpdate, ev.Type)
	require.Equal(t, int64(42), ev.MatchID)
	require.Equal(t, string(state.Player1Connected), ev.Data.State)
}

func TestNonParticipantConnectIsRejectedWithoutSubscription(t *testing.T) {
	srv, st, h := newTestServer(t)
	seedActiveMatch(t, st)

	conn := dial(t, srv)
	writeRaw(t, conn, `{"type":"subscribe","matchId":42,"data":{"userId":999}}`)

	ev := readEvent(t, conn)
	require.Equal(t, types.TypeError, ev.Type)
	require.Equal(t, types.CodeForbidden, ev.Data.Code)

	waitForMembers(t, h, 42, 0)
	m, err := st.GetMatch(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, state.Active, m.State, "match state must be unchanged")
}

func TestSelectionFanOutExcludesActingConnection(t *testing.T) {
	srv, st, h := newTestServer(t)
	seedActiveMatch(t, st)

	admin := dial(t, srv)
	writeRaw(t, admin, `{"type":"subscribe","matchId":42,"data":{"isAdmin":true}}`)
	waitForMembers(t, h, 42, 1)

	playerA := dial(t, srv)
	writeRaw(t, playerA, `{"type":"subscribe","matchId":42,"data":{"userId":10}}`)
	waitForMembers(t, h, 42, 2)

	// Admin sees the connect; player A does not get its own echo later.
	ev := readEvent(t, admin)
	require.Equal(t, types.TypeMatchUpdate, ev.Type)
	evA := readEvent(t, playerA)
	require.Equal(t, types.TypeMatchUpdate, evA.Type)

	writeRaw(t, playerA, `{"type":"champion_selected","matchId":42,"playerId":10,"championId":7}`)

	got := readEvent(t, admin)
	require.Equal(t, types.TypeChampionSelected, got.Type)
	require.Equal(t, int64(10), got.PlayerID)
	require.Equal(t, int64(7), got.ChampionID)

	// The acting connection's next frame is the lock broadcast, not an echo
	// of its own selection.
	writeRaw(t, playerA, `{"type":"champion_locked","matchId":42,"playerId":10}`)
	lockEv := readEvent(t, admin)
	require.Equal(t, types.TypeChampionLocked, lockEv.Type)
	require.Equal(t, int64(7), lockEv.ChampionID)

	sels, err := st.Selections(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, sels, 1)
	require.True(t, sels[0].IsLocked)
}

func TestLockWithoutSelectionReturnsBadRequest(t *testing.T) {
	srv, st, h := newTestServer(t)
	seedActiveMatch(t, st)

	conn := dial(t, srv)
	writeRaw(t, conn, `{"type":"subscribe","matchId":42,"data":{"userId":10}}`)
	waitForMembers(t, h, 42, 1)
	_ = readEvent(t, conn) // own connect match_update

	writeRaw(t, conn, `{"type":"champion_locked","matchId":42,"playerId":10}`)
	ev := readEvent(t, conn)
	require.Equal(t, types.TypeError, ev.Type)
	require.Equal(t, types.CodeBadRequest, ev.Data.Code)
}

func TestParticipantRejoinOutsideConnectWindowKeepsRoomView(t *testing.T) {
	srv, st, h := newTestServer(t)
	m := &store.Match{ID: 42, Player1ID: 10, Player2ID: 20, State: state.InSelection}
	require.NoError(t, st.CreateMatch(context.Background(), m))

	conn := dial(t, srv)
	writeRaw(t, conn, `{"type":"subscribe","matchId":42,"data":{"userId":10}}`)

	ev := readEvent(t, conn)
	require.Equal(t, types.TypeError, ev.Type)
	require.Equal(t, types.CodeInvalidState, ev.Data.Code)

	// Still a member: the reconnecting player keeps watching the room.
	waitForMembers(t, h, 42, 1)
}

func TestDisconnectCleansUpRoomMembership(t *testing.T) {
	srv, st, h := newTestServer(t)
	seedActiveMatch(t, st)

	conn := dial(t, srv)
	writeRaw(t, conn, `{"type":"subscribe","matchId":42,"data":{"isAdmin":true}}`)
	waitForMembers(t, h, 42, 1)

	conn.Close(websocket.StatusNormalClosure, "leaving")
	waitForMembers(t, h, 42, 0)
}
