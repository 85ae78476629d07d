package redis_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstore "github.com/gosuda/zenboard/internal/store/redis"
)

func TestBoardChannel(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		got := redisstore.BoardChannel("default")
		assert.Equal(t, "zenboard:board:default", got)
	})

	t.Run("prefix", func(t *testing.T) {
		t.Parallel()

		got := redisstore.BoardChannel("11111111-2222-3333-4444-555555555555")
		assert.True(t, strings.HasPrefix(got, "zenboard:board:"), "expected prefix, got %q", got)
		assert.Contains(t, got, "11111111-2222-3333-4444-555555555555")
	})

	t.Run("different inputs produce different outputs", func(t *testing.T) {
		t.Parallel()

		assert.NotEqual(t, redisstore.BoardChannel("a"), redisstore.BoardChannel("b"))
	})
}

func TestChannelFunctions_NoCollisionAcrossTypes(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, redisstore.BoardChannel(""), redisstore.BoardsChannel())
	assert.NotEqual(t, redisstore.BoardChannel("boards"), redisstore.BoardsChannel())
}

// ---------------------------------------------------------------------------
// Mirror
// ---------------------------------------------------------------------------

type published struct {
	channel string
	payload string
}

type fakePublisher struct {
	mu     sync.Mutex
	got    []published
	failOn string
}

func (f *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if string(payload) == f.failOn {
		return errors.New("connection refused")
	}
	f.got = append(f.got, published{channel: channel, payload: string(payload)})
	return nil
}

func (f *fakePublisher) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.got...)
}

func TestMirror_PublishesInOrder(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	m := redisstore.NewMirror(pub, 16, nil)

	m.Board("B1", []byte("1"))
	m.Board("B1", []byte("2"))
	m.Boards([]byte("list"))
	m.Board("B2", []byte("3"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 4 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []published{
		{channel: "zenboard:board:B1", payload: "1"},
		{channel: "zenboard:board:B1", payload: "2"},
		{channel: "zenboard:boards", payload: "list"},
		{channel: "zenboard:board:B2", payload: "3"},
	}, pub.snapshot())
}

func TestMirror_DropsWhenFull(t *testing.T) {
	t.Parallel()

	drops := 0
	m := redisstore.NewMirror(&fakePublisher{}, 2, func() { drops++ })

	m.Board("B1", []byte("1"))
	m.Board("B1", []byte("2"))
	m.Board("B1", []byte("3"))
	m.Boards([]byte("4"))

	assert.Equal(t, 2, drops)
}

func TestMirror_PublishErrorDoesNotStop(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{failOn: "lost"}
	m := redisstore.NewMirror(pub, 4, nil)
	m.Board("B1", []byte("lost"))
	m.Board("B1", []byte("kept"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "kept", pub.snapshot()[0].payload)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mirror did not stop")
	}
}

// ---------------------------------------------------------------------------
// PubSub
// ---------------------------------------------------------------------------

func TestNew_UnreachableRedis(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ps, err := redisstore.New(ctx, "127.0.0.1:1", "", 0)
	require.Error(t, err)
	assert.Nil(t, ps)
	assert.Contains(t, err.Error(), "redis.New: ping")
}
