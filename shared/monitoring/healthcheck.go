package monitoring

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// StateReader exposes closed-loop state to the status endpoints.
type StateReader interface {
	GetRaw(key string) json.RawMessage
}

type HealthServer struct {
	monitor *Monitor
	state   StateReader
	port    string
	mux     *http.ServeMux
}

// NewHealthServer serves /health, /status and, when state is non-nil,
// /state/{key}.
func NewHealthServer(monitor *Monitor, state StateReader, port string) *HealthServer {
	if port == "" {
		port = "8080"
	}
	h := &HealthServer{
		monitor: monitor,
		state:   state,
		port:    port,
		mux:     http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /health", h.healthHandler)
	h.mux.HandleFunc("GET /status", h.statusHandler)
	if state != nil {
		h.mux.HandleFunc("GET /state/{key}", h.stateHandler)
	}
	return h
}

func (h *HealthServer) Handler() http.Handler {
	return h.mux
}

func (h *HealthServer) Start() {
	log.Printf("Health check server starting on port %s", h.port)
	go func() {
		if err := http.ListenAndServe(":"+h.port, h.mux); err != nil {
			log.Printf("Health server error: %v", err)
		}
	}()
}

func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if h.monitor.IsHealthy() {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK - %s", h.monitor.GetStatusSummary())
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "Service unhealthy - %s", h.monitor.GetStatusSummary())
	}
}

func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, h.monitor.Status())
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%s", h.monitor.GetStatusSummary())
}

func (h *HealthServer) stateHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	raw := h.state.GetRaw(key)
	if raw == nil {
		http.Error(w, fmt.Sprintf("no state for %q", key), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
