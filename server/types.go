package server

import (
	"encoding/json"
	"time"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket clients
	MaxClients = 100
	// MaxClientMessageQueueSize is the size of per-client message queues
	MaxClientMessageQueueSize = 256
	// ShutdownTimeout bounds graceful shutdown, including worker teardown
	ShutdownTimeout = 10 * time.Second
)

// ServerState represents the server lifecycle state
type ServerState int

const (
	ServerStateRunning  ServerState = iota // Normal operation
	ServerStateDraining                    // Graceful shutdown in progress
	ServerStateStopped                     // Shutdown complete
)

// Client → server message types on /ws
const (
	MsgInit      = "init"
	MsgRun       = "run"
	MsgComplete  = "complete"
	MsgStdin     = "stdin"
	MsgInterrupt = "interrupt"
	MsgReset     = "reset"
	MsgPing      = "ping"
)

// Server → client message types on /ws
const (
	ReplyLoaded      = "stdout_loaded"
	ReplyStdout      = "stdout"
	ReplyStderr      = "stderr"
	ReplyStdin       = "stdin"
	ReplyRunFinished = "run_finished"
	ReplyComplete    = "complete"
	ReplyInit        = "init"
	ReplyReset       = "reset"
	ReplyInterrupt   = "interrupt"
	ReplyPong        = "pong"
	ReplyError       = "error"
)

// Message is a client frame. Payload depends on Type.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Reply is a server frame
type Reply struct {
	ID     string      `json:"id,omitempty"`
	Type   string      `json:"type"`
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// RunPayload is the payload of a run message
type RunPayload struct {
	Source   string `json:"source"`
	Filename string `json:"filename,omitempty"`
}

// CompletePayload is the payload of a complete message and the body of
// POST /api/complete. Line is 1-based, column 0-based.
type CompletePayload struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// StdinPayload answers a stdin request. EOF ends input.
type StdinPayload struct {
	Line string `json:"line"`
	EOF  bool   `json:"eof,omitempty"`
}

// ExecuteRequest is the body of POST /api/execute
type ExecuteRequest struct {
	Code     string `json:"code"`
	Filename string `json:"filename,omitempty"`
}

// ExecuteResponse carries the execution result plus captured output
type ExecuteResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// StatusResponse is returned by GET /api/status
type StatusResponse struct {
	Version string      `json:"version"`
	Engine  string      `json:"engine"`
	Clients int         `json:"clients"`
	State   string      `json:"state"`
	Session interface{} `json:"session"`
}
