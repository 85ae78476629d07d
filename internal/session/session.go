// Package session tracks which board each connection is on and buffers the
// messages queued for it.
package session

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Options configures a Session.
type Options struct {
	// SendBuffer is the outbound queue capacity. A session whose queue is
	// full when a message arrives is closed as a slow consumer.
	SendBuffer int
	// EventRate and EventBurst bound inbound events per second. Zero
	// EventRate disables limiting.
	EventRate  float64
	EventBurst int
	// RemoteAddr is informational.
	RemoteAddr string
}

// Session is one connection's membership record and outbound queue.
type Session struct {
	id          string
	remoteAddr  string
	connectedAt time.Time

	boardMu sync.RWMutex
	boardID string

	sendMu   sync.Mutex
	out      chan []byte
	closed   bool
	overflow bool
	done     chan struct{}

	limiter *rate.Limiter
}

// New creates a session on boardID.
func New(id, boardID string, opts Options) *Session {
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 1
	}
	s := &Session{
		id:          id,
		remoteAddr:  opts.RemoteAddr,
		connectedAt: time.Now(),
		boardID:     boardID,
		out:         make(chan []byte, opts.SendBuffer),
		done:        make(chan struct{}),
	}
	if opts.EventRate > 0 {
		burst := opts.EventBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.EventRate), burst)
	}
	return s
}

// ID returns the connection id.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the peer address given at creation.
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// ConnectedAt returns when the session was created.
func (s *Session) ConnectedAt() time.Time { return s.connectedAt }

// BoardID returns the board the session is currently on.
func (s *Session) BoardID() string {
	s.boardMu.RLock()
	defer s.boardMu.RUnlock()
	return s.boardID
}

// MoveTo switches the session's board membership. Callers that need the move
// ordered against board broadcasts do it while holding the target board.
func (s *Session) MoveTo(boardID string) {
	s.boardMu.Lock()
	s.boardID = boardID
	s.boardMu.Unlock()
}

// Send queues msg without blocking. It returns false if the session is
// closed or its queue was full, in which case the session is closed.
func (s *Session) Send(msg []byte) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.out <- msg:
		return true
	default:
		s.overflow = true
		s.closeLocked()
		return false
	}
}

// Outbound is drained by the connection writer. It is closed when the
// session closes; messages queued before that are still delivered.
func (s *Session) Outbound() <-chan []byte { return s.out }

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the session. It is safe to call more than once.
func (s *Session) Close() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
	close(s.done)
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.closed
}

// Overflowed reports whether the session was closed for falling behind.
func (s *Session) Overflowed() bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.overflow
}

// Allow consumes one inbound event token.
func (s *Session) Allow() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}
