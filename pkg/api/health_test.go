package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/replicad/pkg/metrics"
)

func markReady(healthy bool) {
	metrics.RegisterComponent("control", healthy, "test")
	metrics.RegisterComponent("store", true, "test")
	metrics.RegisterComponent("supervisor", true, "test")
}

// TestHealthServerRoutes tests the registered endpoints
func TestHealthServerRoutes(t *testing.T) {
	markReady(true)
	hs := NewHealthServer()

	tests := []struct {
		path           string
		expectedStatus int
	}{
		{path: "/health", expectedStatus: http.StatusOK},
		{path: "/ready", expectedStatus: http.StatusOK},
		{path: "/live", expectedStatus: http.StatusOK},
		{path: "/metrics", expectedStatus: http.StatusOK},
		{path: "/nonexistent", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			hs.GetHandler().ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, "Path: %s", tt.path)
		})
	}
}

// TestHealthServerMethodValidation tests that only GET is accepted
func TestHealthServerMethodValidation(t *testing.T) {
	markReady(true)
	hs := NewHealthServer()

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		for _, path := range []string{"/health", "/ready"} {
			req := httptest.NewRequest(method, path, nil)
			w := httptest.NewRecorder()

			hs.GetHandler().ServeHTTP(w, req)

			assert.Equal(t, http.StatusMethodNotAllowed, w.Code, "%s %s", method, path)
		}
	}
}

// TestReadyHandlerControlDown tests readiness while the control socket is down
func TestReadyHandlerControlDown(t *testing.T) {
	markReady(false)
	defer markReady(true)
	hs := NewHealthServer()

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	hs.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response metrics.HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, metrics.StatusNotReady, response.Status)
	assert.False(t, response.Components["control"].Healthy)
	assert.Equal(t, "control: test", response.Message)
}

// TestHealthServerServe tests serving over TCP and shutdown on cancel
func TestHealthServerServe(t *testing.T) {
	markReady(true)

	// reserve a free port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewHealthServer().Serve(ctx, addr)
	}()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + addr + "/live")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("health server did not stop")
	}
}
