// Package server exposes pyrunner to editor front ends: a WebSocket run
// protocol on /ws, LSP completion on /lsp and a small JSON API.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/teranos/pyrunner/complete"
	"github.com/teranos/pyrunner/config"
	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/interp"
	"github.com/teranos/pyrunner/logger"
)

// Options configures a Server
type Options struct {
	Config     *config.Config
	Adapter    *complete.Adapter
	NewSession interp.SessionFactory
	Logger     *zap.SugaredLogger
}

// Server owns the WebSocket clients and the shared session behind the
// JSON API. Every /ws client gets its own session.
type Server struct {
	cfg        *config.Config
	adapter    *complete.Adapter
	newSession interp.SessionFactory
	logger     *zap.SugaredLogger

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	// Shared session for /api/execute, started on first use
	shared      *interp.Session
	sharedOut   *interp.Capture
	sharedMu    sync.Mutex
	sharedStart sync.Mutex

	mux        *http.ServeMux
	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	state  atomic.Int32
}

// New creates a server. Call Run (or Start) before accepting connections.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server config is required")
	}
	if opts.Adapter == nil {
		return nil, errors.New("completion adapter is required")
	}
	if opts.NewSession == nil {
		return nil, errors.New("session factory is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        opts.Config,
		adapter:    opts.Adapter,
		newSession: opts.NewSession,
		logger:     opts.Logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sharedOut:  &interp.Capture{},
		ctx:        ctx,
		cancel:     cancel,
	}
	s.mux = http.NewServeMux()
	s.setupHTTPRoutes()
	return s, nil
}

// Handler returns the HTTP handler with every route mounted
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ClientCount returns the number of connected /ws clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) engineName() string {
	if e := s.adapter.Engine(); e != nil {
		return e.Name()
	}
	return ""
}

// handleClientRegister handles a new client connection
func (s *Server) handleClientRegister(client *Client) {
	s.mu.Lock()

	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			logger.FieldClientID, client.id,
			"max_clients", MaxClients,
		)
		client.shutdown()
		return
	}

	s.clients[client] = true
	totalClients := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		logger.FieldClientID, client.id,
		"total_clients", totalClients,
	)
}

// handleClientUnregister handles a client disconnection
func (s *Server) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, client)
	totalClients := len(s.clients)
	s.mu.Unlock()

	client.shutdown()

	s.logger.Infow("Client disconnected",
		logger.FieldClientID, client.id,
		"total_clients", totalClients,
	)
}

// Run starts the server hub event loop
func (s *Server) Run() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("Server hub stopping due to context cancellation")
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		}
	}
}

// sharedSession returns the session behind the JSON API, starting it on
// first use
func (s *Server) sharedSession(ctx context.Context) (*interp.Session, error) {
	s.sharedStart.Lock()
	defer s.sharedStart.Unlock()

	if s.shared != nil {
		return s.shared, nil
	}
	sess, err := s.newSession(ctx, s.sharedOut.Stdout(), s.sharedOut.Stderr(), interp.NoInput)
	if err != nil {
		return nil, err
	}
	s.shared = sess
	s.logger.Infow("Shared session started", logger.FieldSessionID, sess.ID(), logger.FieldPython, sess.Version())
	return sess, nil
}

// currentShared returns the shared session without starting one
func (s *Server) currentShared() *interp.Session {
	s.sharedStart.Lock()
	defer s.sharedStart.Unlock()
	return s.shared
}
