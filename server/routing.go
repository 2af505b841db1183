package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/teranos/pyrunner/logger"
)

// requestIDHeader carries the request ID back to the caller
const requestIDHeader = "X-Request-ID"

// setupHTTPRoutes configures all HTTP handlers
func (s *Server) setupHTTPRoutes() {
	s.mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket))      // Run protocol (execute, stdin, completion)
	s.mux.HandleFunc("/lsp", s.corsMiddleware(s.HandleGLSPWebSocket)) // LSP completion over WebSocket
	s.mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
	s.mux.HandleFunc("/api/execute", s.corsMiddleware(withRequestID(s.HandleExecute)))   // Run code on the shared session (POST)
	s.mux.HandleFunc("/api/complete", s.corsMiddleware(withRequestID(s.HandleComplete))) // Completion items (POST)
	s.mux.HandleFunc("/api/reset", s.corsMiddleware(withRequestID(s.HandleReset)))       // Clear the shared namespace (POST)
	s.mux.HandleFunc("/api/status", s.corsMiddleware(withRequestID(s.HandleStatus)))     // Worker and server status (GET)
}

// corsMiddleware adds CORS headers for allowed origins
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// withRequestID tags the request context with an ID for log correlation,
// reusing the caller's X-Request-ID when present
func withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	}
}
