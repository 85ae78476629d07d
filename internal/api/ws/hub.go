package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gosuda/zenboard/internal/domain"
	"github.com/gosuda/zenboard/internal/metrics"
	"github.com/gosuda/zenboard/internal/session"
	redisstore "github.com/gosuda/zenboard/internal/store/redis"
)

// Dispatcher is the event router as seen by the gateway.
// *router.Router satisfies this interface.
type Dispatcher interface {
	Connect(s *session.Session) error
	Disconnect(s *session.Session)
	Dispatch(s *session.Session, raw []byte) error
	HasBoard(boardID string) bool
}

// Subscriber streams Redis channels. *redis.PubSub satisfies this interface.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (<-chan []byte, func(), error)
}

// Options tunes connection handling.
type Options struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	ReadLimit      int64
	EventRate      float64
	EventBurst     int
	OriginPatterns []string
}

// Hub accepts board WebSocket connections and wires each one to a session.
type Hub struct {
	router  Dispatcher
	pubsub  Subscriber // nil when Redis is not configured
	metrics *metrics.Metrics
	opts    Options
}

// NewHub creates a new WebSocket hub. pubsub may be nil.
func NewHub(router Dispatcher, pubsub Subscriber, m *metrics.Metrics, opts Options) *Hub {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Hub{router: router, pubsub: pubsub, metrics: m, opts: opts}
}

// Observable reports whether ServeObserve has a feed to serve.
func (h *Hub) Observable() bool { return h.pubsub != nil }

func (h *Hub) acceptOptions() *websocket.AcceptOptions {
	if len(h.opts.OriginPatterns) == 0 || slices.Contains(h.opts.OriginPatterns, "*") {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: originHosts(h.opts.OriginPatterns)}
}

// originHosts reduces origins such as "https://board.example.com" to the
// host patterns websocket.Accept matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}

// clearDeadlines lifts the server's read and write timeouts, which would
// otherwise cut long-lived connections. Writes are bounded per message.
func clearDeadlines(w http.ResponseWriter) {
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})
}

// ServeBoard handles a collaborating client. The connection starts on the
// default board; inbound frames go to the router and queued outbound
// messages are written by a separate goroutine.
func (h *Hub) ServeBoard(w http.ResponseWriter, r *http.Request) {
	clearDeadlines(w)
	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	if h.opts.ReadLimit > 0 {
		conn.SetReadLimit(h.opts.ReadLimit)
	}

	sess := session.New(uuid.NewString(), domain.DefaultBoardID, session.Options{
		SendBuffer: h.opts.SendBuffer,
		EventRate:  h.opts.EventRate,
		EventBurst: h.opts.EventBurst,
		RemoteAddr: r.RemoteAddr,
	})
	if err := h.router.Connect(sess); err != nil {
		log.Error().Err(err).Msg("websocket connect")
		_ = conn.Close(websocket.StatusInternalError, "connect failed")
		return
	}
	log.Info().Str("conn_id", sess.ID()).Str("remote_addr", r.RemoteAddr).Msg("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	defer func() {
		h.router.Disconnect(sess)
		log.Info().Str("conn_id", sess.ID()).Dur("duration", time.Since(sess.ConnectedAt())).Msg("client disconnected")
	}()

	go h.writeLoop(ctx, cancel, conn, sess)

	for {
		typ, data, readErr := conn.Read(ctx)
		if readErr != nil {
			if status := websocket.CloseStatus(readErr); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(readErr, context.Canceled) {
				log.Debug().Err(readErr).Str("conn_id", sess.ID()).Msg("websocket read")
			}
			return
		}
		if typ != websocket.MessageText {
			log.Debug().Str("conn_id", sess.ID()).Msg("binary frame dropped")
			continue
		}
		if dispatchErr := h.router.Dispatch(sess, data); dispatchErr != nil {
			log.Debug().Err(dispatchErr).Str("conn_id", sess.ID()).Msg("event dropped")
		}
	}
}

// writeLoop drains the session queue onto the socket until the session
// closes, a write fails, or ctx ends. It cancels ctx on the way out so the
// read loop stops too.
func (h *Hub) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sess *session.Session) {
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sess.Outbound():
			if !ok {
				if sess.Overflowed() {
					h.metrics.SlowConsumer()
					log.Warn().Str("conn_id", sess.ID()).Msg("slow consumer disconnected")
					_ = conn.Close(websocket.StatusPolicyViolation, "slow consumer")
				}
				return
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			writeCancel()
			if err != nil {
				log.Debug().Err(err).Str("conn_id", sess.ID()).Msg("websocket write")
				return
			}
		}
	}
}

// ServeObserve streams a board's mirrored events read-only, together with
// board list changes.
func (h *Hub) ServeObserve(w http.ResponseWriter, r *http.Request) {
	if h.pubsub == nil {
		http.Error(w, "observer feed not configured", http.StatusNotImplemented)
		return
	}

	boardID := chi.URLParam(r, "boardID")
	if !h.router.HasBoard(boardID) {
		http.Error(w, "board not found", http.StatusNotFound)
		return
	}

	clearDeadlines(w)
	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// Observers never send; reading in the background handles pings and
	// notices the peer going away.
	ctx := conn.CloseRead(r.Context())
	messages, cleanup, err := h.pubsub.Subscribe(ctx, redisstore.BoardChannel(boardID), redisstore.BoardsChannel())
	if err != nil {
		log.Error().Err(err).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
