package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/zenboard/internal/metrics"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.EventHandled("draw-line", metrics.ResultApplied)
		m.SessionOpened()
		m.SessionClosed()
		m.SetBoards(3)
		m.MessagesQueued(2)
		m.SlowConsumer()
		m.MirrorDropped()
	})
}

func TestMetrics_Exposition(t *testing.T) {
	t.Parallel()

	m := metrics.New("zenboard")
	m.EventHandled("draw-line", metrics.ResultApplied)
	m.EventHandled("draw-line", metrics.ResultApplied)
	m.EventHandled("update-text", metrics.ResultNoop)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.SetBoards(4)

	count, err := testutil.GatherAndCount(m.Registry(), "zenboard_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `zenboard_events_total{result="applied",type="draw-line"} 2`)
	assert.Contains(t, body, "zenboard_active_sessions 1")
	assert.Contains(t, body, "zenboard_boards 4")
}
