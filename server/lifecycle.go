package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/logger"
)

// getState returns the current server state
func (s *Server) getState() ServerState {
	return ServerState(s.state.Load())
}

// setState atomically updates the server state
func (s *Server) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("Server state changed", "new_state", stateString(newState))
}

// stateString returns human-readable state name
func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Start runs the hub and serves HTTP on port, falling back to a nearby
// port when it is taken. It blocks until the listener fails or Stop is
// called.
func (s *Server) Start(port int) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run()
	}()

	actualPort, err := findAvailablePort(port)
	if err != nil {
		return errors.Wrap(err, "failed to find available port")
	}
	if actualPort != port {
		s.logger.Infow("Port in use, using alternative",
			"requested_port", port,
			"actual_port", actualPort,
		)
	}

	addr := fmt.Sprintf(":%d", actualPort)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Infow("Server ready",
		"url", fmt.Sprintf("http://localhost:%d", actualPort),
		"port", actualPort,
		logger.FieldEngine, s.engineName(),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "HTTP server on %s failed", addr)
	}
	return nil
}

// Stop closes every client and session, then shuts the HTTP server down
func (s *Server) Stop() error {
	if s.getState() != ServerStateRunning {
		return nil
	}
	s.logger.Infow("Initiating server shutdown")
	s.setState(ServerStateDraining)

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	clientsToClose := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clientsToClose = append(clientsToClose, client)
		delete(s.clients, client)
	}
	s.mu.Unlock()

	for _, client := range clientsToClose {
		client.shutdown()
		client.wait(ctx)
	}
	if len(clientsToClose) > 0 {
		s.logger.Infow("Closed client connections", "count", len(clientsToClose))
	}

	var firstErr error
	if shared := s.currentShared(); shared != nil {
		if err := shared.Close(ctx); err != nil {
			s.logger.Warnw("Failed to close shared session", "error", err)
			firstErr = err
		}
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warnw("HTTP server shutdown error", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.cancel()
	s.wg.Wait()

	s.setState(ServerStateStopped)
	s.logger.Infow("Server shutdown complete")
	return firstErr
}

// isPortAvailable checks if a port is available for binding
func isPortAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = listener.Close() // best-effort check, the real bind follows
	return true
}

// findAvailablePort tries the requested port, then up to 10 ports above it
func findAvailablePort(requestedPort int) (int, error) {
	for i := 0; i <= 10; i++ {
		if isPortAvailable(requestedPort + i) {
			return requestedPort + i, nil
		}
	}
	return 0, errors.Newf("no available ports found (tried %d-%d)", requestedPort, requestedPort+10)
}
