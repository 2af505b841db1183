package server

import (
	"net/http"
	"time"

	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/logger"
	"github.com/teranos/pyrunner/version"
)

// HandleWebSocket upgrades to the run protocol. Each connection owns one
// python session, started on init or on the first run.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.getState() != ServerStateRunning {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("WebSocket upgrade failed", "error", err, logger.FieldRemote, r.RemoteAddr)
		return
	}

	client := newClient(s, conn)
	select {
	case s.register <- client:
	case <-s.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// HandleHealth reports liveness
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if s.getState() != ServerStateRunning {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"status":  stateString(s.getState()),
		"version": version.Get().Version,
	})
}

// HandleExecute runs code on the shared session. Executed code sees end of
// input on every read.
func (s *Server) HandleExecute(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req ExecuteRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	log := logger.LoggerFromContext(r.Context(), s.logger)
	start := time.Now()
	s.sharedMu.Lock()
	defer s.sharedMu.Unlock()

	sess, err := s.sharedSession(r.Context())
	if err != nil {
		log.Warnw("Shared session unavailable", "error", err)
		writeErrorFor(w, errors.Mark(err, errors.ErrServiceUnavailable))
		return
	}

	s.sharedOut.Take()
	result, err := sess.Execute(r.Context(), req.Code, req.Filename)
	stdout, stderr := s.sharedOut.Take()
	if err != nil {
		log.Warnw("Execute failed", "error", err)
		writeErrorFor(w, err)
		return
	}

	log.Debugw("Executed via API",
		"ok", result.OK,
		logger.FieldSize, len(req.Code),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, ExecuteResponse{
		OK:     result.OK,
		Error:  result.Error,
		Stdout: stdout,
		Stderr: stderr,
	})
}

// HandleComplete returns the completion JSON array. It never fails: bad
// requests and engine errors produce [].
func (s *Server) HandleComplete(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req CompletePayload
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.adapter.CompleteJSON(r.Context(), req.Source, req.Line, req.Column)))
}

// HandleReset clears the shared namespace
func (s *Server) HandleReset(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	s.sharedMu.Lock()
	defer s.sharedMu.Unlock()

	sess := s.currentShared()
	if sess == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	if err := sess.Reset(r.Context()); err != nil {
		logger.LoggerFromContext(r.Context(), s.logger).Warnw("Reset failed", "error", err)
		writeErrorFor(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleStatus reports the server and the shared worker
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	resp := StatusResponse{
		Version: version.Get().Version,
		Engine:  s.engineName(),
		Clients: s.ClientCount(),
		State:   stateString(s.getState()),
	}
	if sess := s.currentShared(); sess != nil {
		stats, err := sess.Stats()
		if err != nil {
			s.logger.Debugw("Worker stats incomplete", "error", err)
		}
		resp.Session = stats
	}
	writeJSON(w, http.StatusOK, resp)
}
