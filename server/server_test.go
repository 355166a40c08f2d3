package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V-Sekai-fire/forge/metrics"
	"github.com/V-Sekai-fire/forge/zimage"
)

type fakeConn struct {
	up atomic.Bool
}

func (f *fakeConn) IsConnected() bool { return f.up.Load() }

func TestHealth(t *testing.T) {
	conn := &fakeConn{}
	h := NewHandler(conn, prometheus.NewRegistry(), nil)

	cases := []struct {
		name   string
		up     bool
		code   int
		status string
	}{
		{"connected", true, http.StatusOK, "healthy"},
		{"disconnected", false, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn.up.Store(tc.up)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.code, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.status, body["status"])
		})
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveRequest(zimage.StatusSuccess, 10*time.Millisecond)

	conn := &fakeConn{}
	conn.up.Store(true)
	h := NewHandler(conn, reg, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `zimage_responder_requests_total{status="success"} 1`)
}

func TestServices(t *testing.T) {
	services := NewServices()
	services.Update("forge/services/qwen3vl", true)
	services.Update("forge/services/audio", true)
	services.Update("forge/services/audio", false)
	services.Update("forge/services/zeta", true)

	h := NewHandler(&fakeConn{}, prometheus.NewRegistry(), services)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/services", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var list []ServiceInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "forge/services/qwen3vl", list[0].Name)
	assert.Equal(t, "forge/services/zeta", list[1].Name)
}

func TestServicesNotRouted(t *testing.T) {
	h := NewHandler(&fakeConn{}, prometheus.NewRegistry(), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/services", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	conn := &fakeConn{}
	conn.up.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeListener(ctx, ln, NewHandler(conn, prometheus.NewRegistry(), nil)) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/health")
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
