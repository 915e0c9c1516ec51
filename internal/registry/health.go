package registry

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/dyluth/chalk/pkg/board"
)

// HealthServer provides HTTP health check endpoints for the daemon.
type HealthServer struct {
	addr     string
	registry *Registry
	server   *http.Server
}

// NewHealthServer creates a new health check server listening on addr.
func NewHealthServer(addr string, registry *Registry) *HealthServer {
	return &HealthServer{
		addr:     addr,
		registry: registry,
	}
}

// Start starts the HTTP health check server in the background.
func (h *HealthServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[Registry] Health server error: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the health check server.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if the backend answers a ping, 503 Service Unavailable otherwise.
func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:      "healthy",
		Backend:     "connected",
		DirtyBoards: []string{},
	}
	for _, st := range h.registry.Status() {
		response.Boards++
		if st.Dirty {
			response.DirtyBoards = append(response.DirtyBoards, st.Name)
		}
	}

	status := http.StatusOK
	if pinger, ok := h.registry.Adapter().(board.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			response.Status = "unhealthy"
			response.Backend = "disconnected"
			response.Error = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status      string   `json:"status"`
	Backend     string   `json:"backend,omitempty"`
	Boards      int      `json:"boards"`
	DirtyBoards []string `json:"dirty_boards"`
	Error       string   `json:"error,omitempty"`
}
