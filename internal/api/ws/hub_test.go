package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/zenboard/internal/api/ws"
	"github.com/gosuda/zenboard/internal/domain"
	"github.com/gosuda/zenboard/internal/router"
	"github.com/gosuda/zenboard/internal/session"
	"github.com/gosuda/zenboard/internal/store/memory"
)

// ---------------------------------------------------------------------------
// Test server
// ---------------------------------------------------------------------------

type fakeSubscriber struct {
	channels chan []string
	messages chan []byte
}

func (f *fakeSubscriber) Subscribe(_ context.Context, channels ...string) (<-chan []byte, func(), error) {
	f.channels <- channels
	return f.messages, func() {}, nil
}

type testServer struct {
	url      string
	store    *memory.Store
	sessions *session.Registry
	router   *router.Router
}

func newTestServer(t *testing.T, sub ws.Subscriber) *testServer {
	t.Helper()

	store := memory.New("Main Board")
	sessions := session.NewRegistry()
	rt := router.New(store, sessions)

	hub := ws.NewHub(rt, sub, nil, ws.Options{SendBuffer: 64, WriteTimeout: time.Second, ReadLimit: 1 << 20})

	r := chi.NewRouter()
	r.Get("/ws", hub.ServeBoard)
	r.Get("/ws/boards/{boardID}/observe", hub.ServeObserve)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{
		url:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		store:    store,
		sessions: sessions,
		router:   rt,
	}
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (ts *testServer) dial(t *testing.T) *client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, ts.url+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })

	c := &client{t: t, conn: conn}
	require.Equal(t, domain.EventBoardList, c.read().Type)
	require.Equal(t, domain.EventInitState, c.read().Type)
	return c
}

func (c *client) send(et domain.EventType, data any) {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(c.t, wsjson.Write(ctx, c.conn, map[string]any{"type": et, "data": data}))
}

func (c *client) read() domain.Envelope {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var env domain.Envelope
	require.NoError(c.t, wsjson.Read(ctx, c.conn, &env))
	return env
}

func decode[T any](t *testing.T, env domain.Envelope) T {
	t.Helper()

	v, err := domain.DecodePayload[T](env.Data)
	require.NoError(t, err)
	return v
}

// ---------------------------------------------------------------------------
// ServeBoard
// ---------------------------------------------------------------------------

func TestServeBoard_Handshake(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	require.NoError(t, ts.store.Append(domain.DefaultBoardID, domain.NewSticky("N1", domain.Sticky{Text: "hello"})))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, ts.url+"/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var list domain.Envelope
	require.NoError(t, wsjson.Read(ctx, conn, &list))
	assert.Equal(t, domain.EventBoardList, list.Type)
	assert.Equal(t, []domain.BoardSummary{{ID: domain.DefaultBoardID, Name: "Main Board"}}, decode[[]domain.BoardSummary](t, list))

	var state domain.Envelope
	require.NoError(t, wsjson.Read(ctx, conn, &state))
	assert.Equal(t, domain.EventInitState, state.Type)
	snap := decode[domain.InitState](t, state)
	assert.Equal(t, domain.DefaultBoardID, snap.BoardID)
	require.Len(t, snap.Elements, 1)
	assert.Equal(t, "hello", snap.Elements[0].Sticky.Text)

	assert.Eventually(t, func() bool { return ts.sessions.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeBoard_DrawLineReachesPeerOnly(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	c1 := ts.dial(t)
	c2 := ts.dial(t)

	c1.send(domain.EventDrawLine, map[string]any{"id": "L1", "points": []float64{0, 0, 10, 10}, "stroke": "#fff"})

	got := c2.read()
	assert.Equal(t, domain.EventDrawLine, got.Type)
	assert.Equal(t, "L1", decode[domain.Element](t, got).ID)

	// c1's queue is FIFO: had the line been echoed it would arrive first.
	c1.send(domain.EventRequestBoardList, nil)
	assert.Equal(t, domain.EventBoardList, c1.read().Type)

	els, err := ts.store.Elements(domain.DefaultBoardID)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "L1", els[0].ID)
}

func TestServeBoard_ClearReachesEveryBoard(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	b1 := ts.router.CreateBoard("Team A")

	c1 := ts.dial(t)
	c2 := ts.dial(t)

	c2.send(domain.EventJoinBoard, domain.JoinBoardRequest{BoardID: b1.ID})
	joined := c2.read()
	require.Equal(t, domain.EventInitState, joined.Type)
	assert.Equal(t, b1.ID, decode[domain.InitState](t, joined).BoardID)

	c1.send(domain.EventClearBoard, nil)

	for _, c := range []*client{c1, c2} {
		got := c.read()
		assert.Equal(t, domain.EventClearBoard, got.Type)
		assert.Equal(t, domain.DefaultBoardID, decode[domain.BoardCleared](t, got).BoardID)
	}
}

func TestServeBoard_MalformedFrameKeepsConnection(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	c1 := ts.dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c1.conn.Write(ctx, websocket.MessageText, []byte("not json")))
	require.NoError(t, c1.conn.Write(ctx, websocket.MessageBinary, []byte{0x01}))
	c1.send("explode", nil)

	c1.send(domain.EventRequestBoardList, nil)
	assert.Equal(t, domain.EventBoardList, c1.read().Type)
}

func TestServeBoard_DisconnectUnregisters(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	c1 := ts.dial(t)
	c2 := ts.dial(t)
	require.Eventually(t, func() bool { return ts.sessions.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c1.conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Eventually(t, func() bool { return ts.sessions.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	// The remaining peer keeps working.
	c2.send(domain.EventRequestBoardList, nil)
	assert.Equal(t, domain.EventBoardList, c2.read().Type)
}

// ---------------------------------------------------------------------------
// ServeObserve
// ---------------------------------------------------------------------------

func TestServeObserve(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(t, nil)
		resp, err := http.Get("http" + strings.TrimPrefix(ts.url, "ws") + "/ws/boards/default/observe")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	})

	t.Run("unknown board", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(t, &fakeSubscriber{channels: make(chan []string, 1), messages: make(chan []byte)})
		resp, err := http.Get("http" + strings.TrimPrefix(ts.url, "ws") + "/ws/boards/nope/observe")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("streams mirrored events", func(t *testing.T) {
		t.Parallel()

		sub := &fakeSubscriber{channels: make(chan []string, 1), messages: make(chan []byte, 1)}
		ts := newTestServer(t, sub)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		conn, _, err := websocket.Dial(ctx, ts.url+"/ws/boards/default/observe", nil)
		require.NoError(t, err)
		defer conn.CloseNow()

		select {
		case chs := <-sub.channels:
			assert.Equal(t, []string{"zenboard:board:default", "zenboard:boards"}, chs)
		case <-ctx.Done():
			t.Fatal("no subscription")
		}

		sub.messages <- []byte(`{"type":"draw-line","data":{"id":"L1"}}`)

		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"draw-line","data":{"id":"L1"}}`, string(data))
	})
}

// ---------------------------------------------------------------------------
// Origin checks
// ---------------------------------------------------------------------------

func TestServeBoard_OriginPatterns(t *testing.T) {
	t.Parallel()

	store := memory.New("Main Board")
	rt := router.New(store, session.NewRegistry())
	hub := ws.NewHub(rt, nil, nil, ws.Options{
		SendBuffer:     8,
		OriginPatterns: []string{"https://board.example.com"},
	})
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeBoard))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://board.example.com"}},
	})
	require.NoError(t, err)
	_ = conn.CloseNow()

	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example.com"}},
	})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}
