// Package cpumon is a real-time system-metrics broadcaster: it samples host
// CPU and memory state, smooths the readings, and streams them to any number
// of websocket subscribers, interleaved with events from a synthetic-load
// orchestrator.
package cpumon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Antkuz17/Mickey-Hackies/handlers"
	"github.com/Antkuz17/Mickey-Hackies/hub"
	"github.com/Antkuz17/Mickey-Hackies/metrics"
	"github.com/Antkuz17/Mickey-Hackies/sampler"
	"github.com/Antkuz17/Mickey-Hackies/workload"
)

// Server is the monitor instance. Create one with New(), then call Start()
// to run the HTTP server.
type Server struct {
	host       string
	port       int
	configFile string
	monitorCfg *MonitorConfig

	srv          *http.Server
	orchestrator *workload.Orchestrator
}

// Option configures a Server.
type Option func(*Server)

// WithPort sets the listen port (default 8767).
func WithPort(port int) Option {
	return func(s *Server) { s.port = port }
}

// WithHost sets the listen host (default "0.0.0.0").
func WithHost(host string) Option {
	return func(s *Server) { s.host = host }
}

// WithConfigFile sets the path to a monitor.yaml config file.
func WithConfigFile(path string) Option {
	return func(s *Server) { s.configFile = path }
}

// WithMonitorConfig supplies the monitor configuration directly, bypassing
// any config file.
func WithMonitorConfig(cfg *MonitorConfig) Option {
	return func(s *Server) { s.monitorCfg = cfg }
}

// New creates a new Server with the given options.
func New(opts ...Option) *Server {
	s := &Server{
		host: "0.0.0.0",
		port: 8767,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start initializes dependencies, builds routes, and runs the HTTP server.
// It blocks until the server is shut down via signal or Shutdown().
func (s *Server) Start() error {
	cfg := s.monitorCfg
	if cfg == nil {
		if s.configFile != "" {
			log.Printf("Loading config from %s", s.configFile)
			loaded, err := LoadMonitorConfig(s.configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = loaded
		} else {
			cfg = DefaultMonitorConfig()
		}
	}

	m := metrics.New()
	monitor := sampler.New(cfg.SmoothingWindow)
	h := hub.New(m)
	s.orchestrator = workload.New(h, workload.Config{
		PhaseDuration: ms(cfg.Workload.PhaseDurationMS),
		DecayPause:    ms(cfg.Workload.DecayPauseMS),
		NoteStep:      ms(cfg.Workload.NoteStepMS),
	})

	deps := &handlers.Deps{
		Monitor:        monitor,
		Hub:            h,
		Orchestrator:   s.orchestrator,
		Metrics:        m,
		StreamInterval: cfg.StreamInterval(),
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      corsExceptStream(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // disable for long-lived streams
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on signal
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.srv.Shutdown(ctx)
	}()

	log.Printf("CPU monitor starting on %s (stream interval %s)", addr, cfg.StreamInterval())
	log.Printf("WebSocket endpoint: ws://%s/ws", addr)
	log.Printf("HTTP endpoint: http://%s/cpu", addr)

	err := s.srv.ListenAndServe()

	// Let in-flight workload goroutines finish before returning; they are
	// bounded, so this does not hang.
	s.orchestrator.Close()

	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	if s.orchestrator != nil {
		s.orchestrator.Close()
	}
	return err
}

// corsExceptStream applies permissive CORS headers to every route except the
// websocket upgrade endpoint, which browsers exempt from CORS anyway and
// which must see the raw request.
func corsExceptStream(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
