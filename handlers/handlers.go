// Package handlers wires the HTTP and websocket surface of the monitor.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Antkuz17/Mickey-Hackies/hub"
	"github.com/Antkuz17/Mickey-Hackies/metrics"
	"github.com/Antkuz17/Mickey-Hackies/sampler"
	"github.com/Antkuz17/Mickey-Hackies/workload"
)

// DefaultStreamInterval is the telemetry push cadence.
const DefaultStreamInterval = 150 * time.Millisecond

// Deps holds shared dependencies injected into handlers.
type Deps struct {
	Monitor      *sampler.Monitor
	Hub          *hub.Hub
	Orchestrator *workload.Orchestrator
	Metrics      *metrics.Metrics

	// StreamInterval overrides DefaultStreamInterval when non-zero.
	StreamInterval time.Duration
}

func (d *Deps) interval() time.Duration {
	if d.StreamInterval > 0 {
		return d.StreamInterval
	}
	return DefaultStreamInterval
}

// RegisterRoutes registers all monitor routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	h := &monitorHandler{deps: deps}

	mux.HandleFunc("/ws", h.stream)
	mux.HandleFunc("/cpu", h.snapshot)
	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/workload/start", h.startWorkload)
	mux.HandleFunc("/workload/status", h.workloadStatus)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics.Handler())
	}
}

type monitorHandler struct {
	deps *Deps
}

// telemetry matches the wire schema pushed on every tick.
type telemetry struct {
	CPU           float64   `json:"cpu"`
	PerCPU        []float64 `json:"per_cpu"`
	MemoryPercent float64   `json:"memory_percent"`
	Timestamp     float64   `json:"timestamp"`
}

// snapshotPayload is the one-shot /cpu schema: same fields, no timestamp.
type snapshotPayload struct {
	CPU           float64   `json:"cpu"`
	PerCPU        []float64 `json:"per_cpu"`
	MemoryPercent float64   `json:"memory_percent"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The frontend is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stream upgrades the connection and pushes telemetry every tick until the
// client goes away. Workload events arriving through the hub are written
// between ticks on the same connection; this goroutine is the connection's
// only writer.
func (h *monitorHandler) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Println("Client connected to CPU stream")
	defer log.Println("Client disconnected from CPU stream")

	client := hub.NewClient()
	h.deps.Hub.Register(client)
	defer h.deps.Hub.Unregister(client)

	// Nothing meaningful arrives from the client; the reader only observes
	// the close handshake. Two consecutive read failures end the session.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		failures := 0
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				failures++
				if failures >= 2 || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return
				}
				continue
			}
			failures = 0
		}
	}()

	ticker := time.NewTicker(h.deps.interval())
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-client.Events():
			if !ok {
				// Dropped by the hub after a failed delivery.
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("Failed to send event to client: %v", err)
				return
			}
		case <-ticker.C:
			s := h.deps.Monitor.Sample()
			payload := telemetry{
				CPU:           s.CPU,
				PerCPU:        s.PerCPU,
				MemoryPercent: s.MemoryPercent,
				Timestamp:     float64(s.CapturedAt.UnixNano()) / 1e9,
			}
			if err := conn.WriteJSON(payload); err != nil {
				log.Printf("Error in websocket loop: %v", err)
				return
			}
			if h.deps.Metrics != nil {
				h.deps.Metrics.SamplesStreamed.Inc()
			}
		}
	}
}

// snapshot serves a single reading without opening a session.
func (h *monitorHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	s := h.deps.Monitor.Sample()
	writeJSON(w, http.StatusOK, snapshotPayload{
		CPU:           s.CPU,
		PerCPU:        s.PerCPU,
		MemoryPercent: s.MemoryPercent,
	})
}

func (h *monitorHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// startWorkload launches a named workload. Conflicts surface as client
// errors; anything unexpected is a server error and leaves the orchestrator
// startable.
func (h *monitorHandler) startWorkload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = workload.DefaultWorkload
	}

	err := h.deps.Orchestrator.Start(name)
	switch {
	case errors.Is(err, workload.ErrAlreadyActive):
		writeJSONError(w, http.StatusBadRequest, "Workload already running")
	case errors.Is(err, workload.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "Unknown workload: "+name)
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": name + " started"})
	}
}

func (h *monitorHandler) workloadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"active": h.deps.Orchestrator.Active()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
