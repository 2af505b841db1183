package server

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/pyrunner/complete"
	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/interp"
	"github.com/teranos/pyrunner/logger"
	"github.com/teranos/pyrunner/version"
)

// WebSocket timeouts follow the gorilla chat example
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer (source files included)
	maxMessageSize = 4 * 1024 * 1024
)

// Client is one /ws connection with its own python session
type Client struct {
	server  *Server
	conn    *websocket.Conn
	send    chan *Reply
	id      string
	logger  *zap.SugaredLogger
	limiter *rate.Limiter

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}

	sessMu  sync.Mutex
	session *interp.Session

	running atomic.Bool
	stdin   chan StdinPayload
}

func newClient(s *Server, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(s.ctx)
	return &Client{
		server:  s,
		conn:    conn,
		send:    make(chan *Reply, MaxClientMessageQueueSize),
		id:      id,
		logger:  s.logger.With(logger.FieldClientID, id),
		limiter: newCompletionLimiter(s.cfg.Completion.RequestsPerSecond, s.cfg.Completion.Burst),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		stdin:   make(chan StdinPayload, 1),
	}
}

// newCompletionLimiter returns an unlimited limiter when rps is not positive
func newCompletionLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.ctx.Done():
			c.shutdown()
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.logger.Debugw("Read pump started")

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warnw("JSON unmarshal error", "error", err.Error())
			c.sendReply(&Reply{Type: ReplyError, Error: "invalid message: " + err.Error()})
			continue
		}

		c.routeMessage(&msg)
	}
}

// handleReadError logs unexpected WebSocket read errors.
// Expected closure codes are ignored.
func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
		websocket.CloseNormalClosure,
	) {
		c.logger.Warnw("WebSocket read error", "error", err)
	}
}

// routeMessage dispatches a client message. Anything that may block on
// the worker runs in its own goroutine so stdin and interrupt stay live.
func (c *Client) routeMessage(msg *Message) {
	switch msg.Type {
	case MsgInit:
		go c.handleInit(msg)
	case MsgRun:
		c.handleRun(msg)
	case MsgComplete:
		go c.handleComplete(msg)
	case MsgStdin:
		c.handleStdin(msg)
	case MsgInterrupt:
		c.handleInterrupt(msg)
	case MsgReset:
		go c.handleReset(msg)
	case MsgPing:
		c.sendReply(&Reply{ID: msg.ID, Type: ReplyPong, OK: true})
	default:
		c.logger.Debugw("Unknown message type", "type", msg.Type)
		c.sendReply(&Reply{ID: msg.ID, Type: ReplyError, Error: "unknown message type: " + msg.Type})
	}
}

// writePump writes replies and keepalive pings to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	c.logger.Debugw("Write pump started")

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case r := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(r); err != nil {
				c.logger.Debugw("Reply write error", "type", r.Type, "error", err.Error())
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendReply queues a reply. Output must not be dropped, so this blocks
// until the write pump takes it or the client goes away.
func (c *Client) sendReply(r *Reply) {
	select {
	case c.send <- r:
	case <-c.ctx.Done():
	}
}

func (c *Client) sendError(id, typ string, err error) {
	c.sendReply(&Reply{ID: id, Type: typ, OK: false, Error: err.Error()})
}

// ensureSession starts the client's session on first use
func (c *Client) ensureSession() (*interp.Session, error) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()

	if c.session != nil {
		return c.session, nil
	}
	if c.ctx.Err() != nil {
		return nil, errors.WithStack(errors.ErrSessionClosed)
	}

	stdout := &replyWriter{client: c, typ: ReplyStdout}
	input := interp.NewPrompterWithReader(stdout, &replyLineReader{client: c})
	sess, err := c.server.newSession(c.ctx, stdout, &replyWriter{client: c, typ: ReplyStderr}, input)
	if err != nil {
		return nil, err
	}
	c.session = sess
	c.logger.Infow("Session started", logger.FieldSessionID, sess.ID(), logger.FieldPython, sess.Version())
	return sess, nil
}

func (c *Client) currentSession() *interp.Session {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	return c.session
}

// handleInit starts the session and announces the interpreter
func (c *Client) handleInit(msg *Message) {
	sess, err := c.ensureSession()
	if err != nil {
		c.logger.Warnw("Failed to start session", "error", err)
		c.sendError(msg.ID, ReplyInit, err)
		return
	}
	c.sendReply(&Reply{Type: ReplyLoaded, OK: true, Result: version.PythonBanner(sess.Version())})
	c.sendReply(&Reply{ID: msg.ID, Type: ReplyInit, OK: true, Result: map[string]interface{}{
		"session_id": sess.ID(),
		"python":     sess.Version(),
		"jedi":       sess.JediAvailable(),
	}})
}

// handleRun executes source in the client's session. One run at a time.
func (c *Client) handleRun(msg *Message) {
	var p RunPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		c.sendError(msg.ID, ReplyRunFinished, errors.NewInvalidRequestError("invalid run payload: %v", err))
		return
	}
	if !c.running.CompareAndSwap(false, true) {
		c.sendError(msg.ID, ReplyError, errors.ErrBusy)
		return
	}

	go func() {
		defer c.running.Store(false)
		c.drainStdin()

		sess, err := c.ensureSession()
		if err != nil {
			c.sendError(msg.ID, ReplyRunFinished, err)
			return
		}

		ctx := logger.WithRequestID(logger.WithSessionID(c.ctx, sess.ID()), msg.ID)
		result, err := sess.Execute(ctx, p.Source, p.Filename)
		if err != nil {
			logger.LoggerFromContext(ctx, c.logger).Warnw("Run failed", "error", err, logger.FieldFile, p.Filename)
			c.sendError(msg.ID, ReplyRunFinished, err)
			return
		}
		c.sendReply(&Reply{ID: msg.ID, Type: ReplyRunFinished, OK: true, Result: result})
	}()
}

// handleComplete answers with at most complete.MaxItems items. Requests
// over the rate limit get an empty list.
func (c *Client) handleComplete(msg *Message) {
	var p CompletePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		c.sendReply(&Reply{ID: msg.ID, Type: ReplyComplete, OK: true, Result: []complete.Item{}})
		return
	}
	if !c.limiter.Allow() {
		c.logger.Debugw("Completion rate limited")
		c.sendReply(&Reply{ID: msg.ID, Type: ReplyComplete, OK: true, Result: []complete.Item{}})
		return
	}
	items := c.server.adapter.Complete(c.ctx, p.Source, p.Line, p.Column)
	c.sendReply(&Reply{ID: msg.ID, Type: ReplyComplete, OK: true, Result: items})
}

// handleStdin hands a line to a pending input() call
func (c *Client) handleStdin(msg *Message) {
	var p StdinPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		c.logger.Debugw("Invalid stdin payload", "error", err)
		return
	}
	select {
	case c.stdin <- p:
	default:
		c.logger.Debugw("Dropping stdin line, no input pending")
	}
}

func (c *Client) drainStdin() {
	for {
		select {
		case <-c.stdin:
		default:
			return
		}
	}
}

// handleInterrupt raises KeyboardInterrupt in the running code
func (c *Client) handleInterrupt(msg *Message) {
	sess := c.currentSession()
	if sess == nil || !c.running.Load() {
		c.sendReply(&Reply{ID: msg.ID, Type: ReplyInterrupt, OK: false, Error: "nothing is running"})
		return
	}
	if err := sess.Interrupt(); err != nil {
		c.sendError(msg.ID, ReplyInterrupt, err)
		return
	}
	c.sendReply(&Reply{ID: msg.ID, Type: ReplyInterrupt, OK: true})
}

// handleReset clears the session namespace
func (c *Client) handleReset(msg *Message) {
	if c.running.Load() {
		c.sendError(msg.ID, ReplyReset, errors.ErrBusy)
		return
	}
	sess, err := c.ensureSession()
	if err != nil {
		c.sendError(msg.ID, ReplyReset, err)
		return
	}
	if err := sess.Reset(c.ctx); err != nil {
		c.sendError(msg.ID, ReplyReset, err)
		return
	}
	c.sendReply(&Reply{ID: msg.ID, Type: ReplyReset, OK: true})
}

// shutdown stops the pumps and closes the session in the background
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.cancel()
		go func() {
			defer close(c.done)
			sess := c.currentSession()
			if sess == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
			defer cancel()
			if err := sess.Close(ctx); err != nil {
				c.logger.Debugw("Session close error", "error", err)
			}
		}()
	})
}

// wait blocks until shutdown finished or ctx expires
func (c *Client) wait(ctx context.Context) {
	select {
	case <-c.done:
	case <-ctx.Done():
	}
}

// replyWriter turns session output into stdout/stderr frames
type replyWriter struct {
	client *Client
	typ    string
}

func (w *replyWriter) Write(p []byte) (int, error) {
	if w.client.ctx.Err() != nil {
		return 0, io.ErrClosedPipe
	}
	w.client.sendReply(&Reply{Type: w.typ, OK: true, Result: string(p)})
	return len(p), nil
}

// replyLineReader asks the front end for a line and waits for the answer
type replyLineReader struct {
	client *Client
}

func (r *replyLineReader) ReadLine(ctx context.Context) (string, error) {
	c := r.client
	c.sendReply(&Reply{Type: ReplyStdin, OK: true})
	select {
	case p := <-c.stdin:
		if p.EOF {
			return "", io.EOF
		}
		return p.Line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.ctx.Done():
		return "", io.EOF
	}
}
