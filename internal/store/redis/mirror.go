package redis

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Publisher is the publishing half of PubSub.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type mirrored struct {
	channel string
	payload []byte
}

// Mirror republishes board events to Redis from a single goroutine, so
// messages leave in the order they were enqueued. Enqueue never blocks:
// when the buffer is full the message is dropped and onDrop is called.
type Mirror struct {
	pub    Publisher
	queue  chan mirrored
	onDrop func()
}

// NewMirror creates a Mirror with room for buffer pending messages.
func NewMirror(pub Publisher, buffer int, onDrop func()) *Mirror {
	if buffer < 1 {
		buffer = 1
	}
	if onDrop == nil {
		onDrop = func() {}
	}
	return &Mirror{
		pub:    pub,
		queue:  make(chan mirrored, buffer),
		onDrop: onDrop,
	}
}

// Board queues payload for the board's channel.
func (m *Mirror) Board(boardID string, payload []byte) {
	m.enqueue(BoardChannel(boardID), payload)
}

// Boards queues payload for the process-wide channel.
func (m *Mirror) Boards(payload []byte) {
	m.enqueue(BoardsChannel(), payload)
}

func (m *Mirror) enqueue(channel string, payload []byte) {
	select {
	case m.queue <- mirrored{channel: channel, payload: payload}:
	default:
		m.onDrop()
	}
}

// Run publishes queued messages until ctx is done.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.queue:
			if err := m.pub.Publish(ctx, msg.channel, msg.payload); err != nil {
				log.Warn().Err(err).Str("channel", msg.channel).Msg("mirror publish")
			}
		}
	}
}
