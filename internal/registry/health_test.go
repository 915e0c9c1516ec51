package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dyluth/chalk/internal/testutil"
	"github.com/dyluth/chalk/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckEndpoint_MethodNotAllowed(t *testing.T) {
	server := NewHealthServer(":0", nil)

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	w := httptest.NewRecorder()

	server.healthCheckHandler(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthCheckResponse(t *testing.T) {
	t.Run("healthy reports boards and dirty boards", func(t *testing.T) {
		ctx := context.Background()
		m := board.NewMemoryAdapter()
		r, _ := setupRegistry(t, m, Config{})

		require.NoError(t, r.Apply(ctx, "clean", mustParse(t, `{"type":"line","id":"l1"}`)))
		_, err := r.Get(ctx, "dirty")
		require.NoError(t, err)
		m.FailNext(errors.New("write failed"), 1)
		require.Error(t, r.Apply(ctx, "dirty", mustParse(t, `{"type":"line","id":"l1"}`)))

		server := NewHealthServer(":0", r)
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		server.healthCheckHandler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "connected", response.Backend)
		assert.Equal(t, 2, response.Boards)
		assert.Equal(t, []string{"dirty"}, response.DirtyBoards)
	})

	t.Run("unhealthy when Redis unavailable", func(t *testing.T) {
		adapter, mr := testutil.NewRedisAdapter(t)
		r, _ := setupRegistry(t, adapter, Config{})
		mr.Close()

		server := NewHealthServer(":0", r)
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		server.healthCheckHandler(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "unhealthy", response.Status)
		assert.Equal(t, "disconnected", response.Backend)
		assert.NotEmpty(t, response.Error)
	})
}

func TestHealthServerShutdownWithoutStart(t *testing.T) {
	server := NewHealthServer(":0", nil)
	assert.NoError(t, server.Shutdown(context.Background()))
}
