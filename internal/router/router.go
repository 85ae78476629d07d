// Package router applies inbound board events to the store and fans the
// results out to sessions.
package router

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/zenboard/internal/domain"
	"github.com/gosuda/zenboard/internal/metrics"
	"github.com/gosuda/zenboard/internal/session"
	"github.com/gosuda/zenboard/internal/store/memory"
)

// ErrRateLimited is returned by Dispatch when the session exceeded its
// inbound event budget. The event is dropped.
var ErrRateLimited = errors.New("router: rate limited") //nolint:gochecknoglobals // sentinel error

// Mirror receives every applied board event for out-of-process observers.
// Implementations must not block.
type Mirror interface {
	Board(boardID string, payload []byte)
	Boards(payload []byte)
}

// handlerFunc applies one event from s and returns the metrics result label.
type handlerFunc func(s *session.Session, data json.RawMessage) (string, error)

// Router owns no board state; it maps event types to store operations and
// fan-out rules. All mutations and their broadcasts for a board run under
// that board's lock, which gives every recipient the store's apply order.
type Router struct {
	store    *memory.Store
	sessions *session.Registry
	mirror   Mirror
	metrics  *metrics.Metrics
	handlers map[domain.EventType]handlerFunc
}

// Option configures a Router.
type Option func(*Router)

// WithMirror publishes applied events to m.
func WithMirror(m Mirror) Option {
	return func(r *Router) {
		r.mirror = m
	}
}

// WithMetrics records event and session counts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// New creates a Router over store and sessions.
func New(store *memory.Store, sessions *session.Registry, opts ...Option) *Router {
	r := &Router{
		store:    store,
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.handlers = map[domain.EventType]handlerFunc{
		domain.EventDrawLine:         r.appendElement(domain.EventDrawLine, domain.ElementLine),
		domain.EventNewShape:         r.appendElement(domain.EventNewShape, domain.ElementShape),
		domain.EventNewObject:        r.appendElement(domain.EventNewObject, domain.ElementSticky),
		domain.EventUpdateText:       updateElement[domain.TextUpdate](r, domain.EventUpdateText),
		domain.EventUpdateStyle:      updateElement[domain.StyleUpdate](r, domain.EventUpdateStyle),
		domain.EventUpdateTransform:  updateElement[domain.TransformUpdate](r, domain.EventUpdateTransform),
		domain.EventDeleteObject:     r.deleteObject,
		domain.EventClearBoard:       r.clearBoard,
		domain.EventCreateBoard:      r.createBoard,
		domain.EventJoinBoard:        r.joinBoard,
		domain.EventRequestBoardList: r.requestBoardList,
		domain.EventCursorMove:       r.cursorMove,
	}

	r.metrics.SetBoards(store.Len())
	return r
}

// Handles reports whether t has a handler.
func (r *Router) Handles(t domain.EventType) bool {
	_, ok := r.handlers[t]
	return ok
}

// Connect registers s and queues the board list followed by a snapshot of
// its current board. Registration and snapshot happen under the board lock,
// so s receives every later event of that board exactly once.
func (r *Router) Connect(s *session.Session) error {
	err := r.store.Do(s.BoardID(), func(tx *memory.Tx) {
		r.sessions.Add(s)
		r.send(s, r.boardListMessage())
		r.send(s, initStateMessage(tx))
	})
	if err != nil {
		return fmt.Errorf("router.Router.Connect: %w", err)
	}
	r.metrics.SessionOpened()
	return nil
}

// Disconnect unregisters and closes s. Nothing is broadcast.
func (r *Router) Disconnect(s *session.Session) {
	if r.sessions.Remove(s.ID()) {
		r.metrics.SessionClosed()
	}
	s.Close()
}

// Dispatch decodes one inbound frame from s and applies it. Malformed,
// unknown and rate-limited events return an error and change nothing; the
// caller is expected to log and carry on.
func (r *Router) Dispatch(s *session.Session, raw []byte) error {
	env, err := domain.DecodeEnvelope(raw)
	if err != nil {
		r.metrics.EventHandled("", metrics.ResultMalformed)
		return fmt.Errorf("router.Router.Dispatch: %w", err)
	}

	handler, ok := r.handlers[env.Type]
	if !ok {
		r.metrics.EventHandled("", metrics.ResultUnknown)
		return fmt.Errorf("router.Router.Dispatch: %q: %w", env.Type, domain.ErrUnknownEvent)
	}

	if !s.Allow() {
		r.metrics.EventHandled(string(env.Type), metrics.ResultLimited)
		return fmt.Errorf("router.Router.Dispatch: %s: %w", env.Type, ErrRateLimited)
	}

	result, err := handler(s, env.Data)
	if err != nil {
		r.metrics.EventHandled(string(env.Type), metrics.ResultMalformed)
		return fmt.Errorf("router.Router.Dispatch: %s: %w", env.Type, err)
	}
	r.metrics.EventHandled(string(env.Type), result)
	return nil
}

// HasBoard reports whether boardID exists.
func (r *Router) HasBoard(boardID string) bool {
	return r.store.Exists(boardID)
}

// ListBoards returns every board.
func (r *Router) ListBoards() []domain.BoardSummary {
	return r.store.ListBoards()
}

// Elements returns a snapshot of a board's elements.
func (r *Router) Elements(boardID string) ([]domain.Element, error) {
	els, err := r.store.Elements(boardID)
	if err != nil {
		return nil, fmt.Errorf("router.Router.Elements: %w", err)
	}
	return els, nil
}

// CreateBoard adds a board and broadcasts the new board list to every
// session.
func (r *Router) CreateBoard(name string) domain.BoardSummary {
	return r.addBoard(name, nil)
}

// send queues msg on s. A false return from Send means s is closed; the
// connection writer notices and tears it down.
func (r *Router) send(s *session.Session, msg []byte) {
	if msg == nil {
		return
	}
	if s.Send(msg) {
		r.metrics.MessagesQueued(1)
	}
}

// fanOut queues msg on every session on boardID except exceptID.
func (r *Router) fanOut(boardID, exceptID string, msg []byte) {
	for _, s := range r.sessions.OnBoard(boardID, exceptID) {
		r.send(s, msg)
	}
}

// broadcastAll queues msg on every session, whatever its board.
func (r *Router) broadcastAll(msg []byte) {
	for _, s := range r.sessions.All() {
		r.send(s, msg)
	}
}

func (r *Router) mirrorBoard(boardID string, msg []byte) {
	if r.mirror != nil {
		r.mirror.Board(boardID, msg)
	}
}

func (r *Router) boardListMessage() []byte {
	msg, err := domain.EncodeMessage(domain.EventBoardList, r.store.ListBoards())
	if err != nil {
		log.Error().Err(err).Msg("encode board list")
		return nil
	}
	return msg
}

func initStateMessage(tx *memory.Tx) []byte {
	msg, err := domain.EncodeMessage(domain.EventInitState, domain.InitState{
		BoardID:  tx.ID(),
		Elements: tx.Elements(),
	})
	if err != nil {
		log.Error().Err(err).Str("board_id", tx.ID()).Msg("encode init state")
		return nil
	}
	return msg
}
