package pyworker

// Request operations understood by the bootstrap
const (
	OpRun      = "run"
	OpComplete = "complete"
	OpReset    = "reset"
	OpInput    = "input"
)

// Event kinds emitted by the bootstrap
const (
	EventReady  = "ready"
	EventStdout = "stdout"
	EventStderr = "stderr"
	EventInput  = "input"
	EventResult = "result"
	EventError  = "error"
)

// Request is one line on the worker's request descriptor
type Request struct {
	ID int64  `json:"id,omitempty"`
	Op string `json:"op"`

	// run
	Code     string `json:"code,omitempty"`
	Filename string `json:"filename,omitempty"`

	// complete
	Source string `json:"source,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column"`
	Limit  int    `json:"limit,omitempty"`

	// input reply
	Text string `json:"text,omitempty"`
	EOF  bool   `json:"eof,omitempty"`
}

// Event is one line on the worker's event descriptor.
// ID is zero for events emitted outside any request.
type Event struct {
	ID    int64  `json:"id,omitempty"`
	Event string `json:"event"`

	Data   string `json:"data,omitempty"`   // stdout, stderr
	Prompt string `json:"prompt,omitempty"` // input

	// ready
	Version      string `json:"version,omitempty"`
	VersionShort string `json:"version_short,omitempty"`
	Jedi         bool   `json:"jedi,omitempty"`
	PID          int    `json:"pid,omitempty"`

	// result of run / reset
	OK    bool   `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`

	// result of complete
	Completions []RawCompletion `json:"completions,omitempty"`
	Unavailable bool            `json:"unavailable,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// Terminal reports whether the event ends a request
func (e *Event) Terminal() bool {
	return e.Event == EventResult || e.Event == EventError
}

// RawCompletion is a jedi candidate as the worker reports it.
// Signatures is nil when signature extraction failed or is unsupported.
type RawCompletion struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Complete   string     `json:"complete"`
	Signatures [][]string `json:"signatures"`
}
