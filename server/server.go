// Package server exposes the job ledger to UI clients over HTTP and
// pushes live job updates over WebSocket.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dreamtide/veod/gen"
	"github.com/dreamtide/veod/job"
	"github.com/dreamtide/veod/logger"
)

// Server fans job-store mutations out to connected WebSocket clients and
// serves the REST API.
type Server struct {
	service *gen.Service
	store   *job.Store
	port    int
	logger  *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	register   chan *Client
	unregister chan *Client
	clients    map[*Client]bool
	upgrader   websocket.Upgrader

	httpServer *http.Server
}

// NewServer wires the API around an existing service and store.
func NewServer(service *gen.Service, store *job.Store, port int, allowedOrigins ...string) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		service:    service,
		store:      store,
		port:       port,
		logger:     logger.Logger.Named("server"),
		ctx:        ctx,
		cancel:     cancel,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		upgrader:   newUpgrader(allowedOrigins),
	}

	mux := http.NewServeMux()
	s.routes(mux)
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return s
}

// Handler returns the HTTP handler, for tests running under httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/api/jobs/", s.handleJobByID)
	mux.HandleFunc("/api/credits", s.handleCredits)
	mux.HandleFunc("/ws", s.handleWebSocket)
}

// Run starts the broadcast loop and the HTTP listener; it blocks until
// Shutdown or a listener error.
func (s *Server) Run() error {
	go s.run()

	s.logger.Infow("Server listening", "port", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// run owns the client set: registration, unregistration, and fan-out of
// store mutations.
func (s *Server) run() {
	updates := s.store.Subscribe()
	defer s.store.Unsubscribe(updates)

	for {
		select {
		case <-s.ctx.Done():
			for client := range s.clients {
				client.close()
				delete(s.clients, client)
			}
			return

		case client := <-s.register:
			s.clients[client] = true
			s.logger.Debugw("WebSocket client connected", "client_id", client.id, "clients", len(s.clients))

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.close()
				s.logger.Debugw("WebSocket client disconnected", "client_id", client.id, "clients", len(s.clients))
			}

		case j, ok := <-updates:
			if !ok {
				return
			}
			s.broadcast(j)
		}
	}
}

// broadcast pushes one job update to every client without blocking; slow
// clients miss updates rather than stall the loop.
func (s *Server) broadcast(j *job.Job) {
	msg := updateMessage{Type: "job_update", Job: j}
	for client := range s.clients {
		select {
		case client.send <- msg:
		default:
			// Client buffer full, skip
		}
	}
}

// Shutdown stops the broadcast loop and drains the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

type updateMessage struct {
	Type string   `json:"type"`
	Job  *job.Job `json:"job"`
}
