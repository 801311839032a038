package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj1618/deskmirror/internal/model"
)

func get(t *testing.T, h http.Handler, path string) (int, []byte) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, body
}

func TestHTTPWindows(t *testing.T) {
	e := newEnv(t)
	h := e.srv.Handler()

	code, body := get(t, h, "/windows?app=A2")
	require.Equal(t, http.StatusOK, code)
	var windows []model.Window
	require.NoError(t, json.Unmarshal(body, &windows))
	require.Len(t, windows, 1)
	assert.Equal(t, "W2", windows[0].ID)

	code, body = get(t, h, "/windows/W1")
	require.Equal(t, http.StatusOK, code)
	var w model.Window
	require.NoError(t, json.Unmarshal(body, &w))
	assert.Equal(t, model.Size{Width: 400, Height: 300}, w.Size)

	code, _ = get(t, h, "/windows/W9")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHTTPApps(t *testing.T) {
	e := newEnv(t)
	code, body := get(t, e.srv.Handler(), "/apps")
	require.Equal(t, http.StatusOK, code)
	var apps []model.App
	require.NoError(t, json.Unmarshal(body, &apps))
	assert.Len(t, apps, 2)
}

func TestHTTPEvents(t *testing.T) {
	e := newEnv(t)
	h := e.srv.Handler()
	require.NoError(t, e.desk.Minimize("W1", true))
	require.Eventually(t, func() bool { return e.srv.Events().Total() == 1 }, waitFor, tick)

	code, body := get(t, h, "/events?limit=10")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"property":"minimized"`)

	code, _ = get(t, h, "/events?limit=-1")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHTTPHealthAndMetrics(t *testing.T) {
	e := newEnv(t)
	h := e.srv.Handler()

	code, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	code, body = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "deskmirror_windows 2")

	e.state.Close()
	code, _ = get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
