package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj1618/deskmirror/internal/desktop"
)

var _ desktop.Recorder = (*Metrics)(nil)

func TestRecorderCounts(t *testing.T) {
	m := New()
	m.EventPublished("WindowTitleChangedEvent")
	m.EventPublished("WindowTitleChangedEvent")
	m.WriteIssued("window.title")
	m.WriteSettled("window.title", desktop.OutcomeConfirmed)
	m.WriteSettled("window.position", desktop.OutcomeOverridden)
	m.ReadFailed("application.hidden")
	m.ProtocolError("unknown window")
	m.EntitiesKnown(2, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("WindowTitleChangedEvent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WritesIssued.WithLabelValues("window.title")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WritesSettled.WithLabelValues("window.title", desktop.OutcomeConfirmed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WritesSettled.WithLabelValues("window.position", desktop.OutcomeOverridden)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadFailures.WithLabelValues("application.hidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProtocolErrors.WithLabelValues("unknown window")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Applications))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Windows))
}

func TestInstancesDoNotShareState(t *testing.T) {
	a, b := New(), New()
	a.ProtocolError("duplicate window")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ProtocolErrors.WithLabelValues("duplicate window")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.EntitiesKnown(1, 4)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "deskmirror_windows 4")
	assert.Contains(t, string(body), "go_goroutines")
}
