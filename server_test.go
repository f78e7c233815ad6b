package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-soundlevel/internal/audio"
	"github.com/oszuidwest/zwfm-soundlevel/internal/metrics"
	"github.com/oszuidwest/zwfm-soundlevel/internal/sampler"
	"github.com/oszuidwest/zwfm-soundlevel/internal/server"
)

func newTestServer(t *testing.T) (*httptest.Server, *metrics.Metrics, *server.Hub) {
	t.Helper()
	m := metrics.New("Test Mic")
	hub := server.NewHub("Test Mic")
	srv := httptest.NewServer(NewServer(0, "Test Mic", m, hub).SetupRoutes())
	t.Cleanup(srv.Close)
	return srv, m, hub
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, m, _ := newTestServer(t)

	_, body := get(t, srv.URL+"/metrics")
	assert.NotContains(t, body, "sound_level_rms{")

	m.Publish(sampler.Summary{RMS: 50, DB: 33.5, Frames: 130})

	resp, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `sound_level_rms{device_name="Test Mic"} 50`)
	assert.Contains(t, body, `sound_level_level{device_name="Test Mic"} 33.5`)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestIndexPage(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	assert.Contains(t, body, "Test Mic")
	assert.Contains(t, body, `href="/metrics"`)

	resp, _ = get(t, srv.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketReceivesLevels(t *testing.T) {
	srv, _, hub := newTestServer(t)
	hub.Publish(sampler.Summary{RMS: 10, DB: 20, Frames: 5})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first server.LevelsMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "levels", first.Type)
	assert.Equal(t, "Test Mic", first.DeviceName)
	assert.Equal(t, 10.0, first.RMS)

	// Wait for the handler to register before publishing the next window.
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)
	hub.Publish(sampler.Summary{RMS: 30, DB: 29.5, Frames: 5})

	var next server.LevelsMessage
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, 30.0, next.RMS)
	assert.Equal(t, 29.5, next.Level)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	srv, _, hub := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, hub.Subscribers())
}

func TestStartReportsBindFailure(t *testing.T) {
	m := metrics.New("Test Mic")
	hub := server.NewHub("Test Mic")

	first, err := NewServer(0, "Test Mic", m, hub).Start()
	require.NoError(t, err)
	defer first.Close()

	_, err = NewServer(-1, "Test Mic", m, hub).Start()
	assert.Error(t, err)
}

type stubDevices struct {
	devices []audio.Device
	err     error
}

func (s stubDevices) Devices() ([]audio.Device, error) { return s.devices, s.err }

func TestAPILevels(t *testing.T) {
	srv, _, hub := newTestServer(t)

	resp, body := get(t, srv.URL+"/api/levels")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, `"error"`)

	hub.Publish(sampler.Summary{RMS: 50, DB: 33.5, Frames: 130, Duration: 3 * time.Second})

	resp, body = get(t, srv.URL+"/api/levels")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var msg server.LevelsMessage
	require.NoError(t, json.Unmarshal([]byte(body), &msg))
	assert.Equal(t, 50.0, msg.RMS)
	assert.Equal(t, 33.5, msg.Level)
	assert.Equal(t, int64(3000), msg.DurationMs)

	resp, err := http.Post(srv.URL+"/api/levels", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAPIDevices(t *testing.T) {
	m := metrics.New("mic")
	hub := server.NewHub("mic")

	tests := []struct {
		name   string
		lister DeviceLister
		status int
		want   string
	}{
		{"not configured", nil, http.StatusNotFound, `"error"`},
		{"listed", stubDevices{devices: []audio.Device{{ID: "1", Name: "USB Audio"}}}, http.StatusOK, `{"devices":[{"id":"1","name":"USB Audio"}]}`},
		{"empty", stubDevices{}, http.StatusOK, `{"devices":[]}`},
		{"failure", stubDevices{err: errors.New("pa error")}, http.StatusInternalServerError, "Failed to list audio devices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(0, "mic", m, hub)
			if tt.lister != nil {
				s.WithDevices(tt.lister)
			}
			rec := httptest.NewRecorder()
			s.SetupRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}
