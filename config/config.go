// Package config loads pyrunner configuration from TOML files and PYRUNNER_*
// environment variables using Viper.
package config

// Config represents the pyrunner configuration
type Config struct {
	Python     PythonConfig     `mapstructure:"python" toml:"python"`
	Completion CompletionConfig `mapstructure:"completion" toml:"completion"`
	Server     ServerConfig     `mapstructure:"server" toml:"server"`
	Log        LogConfig        `mapstructure:"log" toml:"log"`
}

// PythonConfig configures the python worker processes
type PythonConfig struct {
	Command          string `mapstructure:"command" toml:"command"`                       // Interpreter command line, shell-quoted (e.g. "uv run python")
	MinVersion       string `mapstructure:"min_version" toml:"min_version"`               // Oldest interpreter accepted at handshake
	Filename         string `mapstructure:"filename" toml:"filename"`                     // Default filename tagged on executed code
	WorkDir          string `mapstructure:"work_dir" toml:"work_dir"`                     // Worker working directory ("" = inherit)
	InterruptGraceMS int    `mapstructure:"interrupt_grace_ms" toml:"interrupt_grace_ms"` // Wait after SIGINT before killing the worker
}

// CompletionConfig configures the completion adapter
type CompletionConfig struct {
	Engine            string  `mapstructure:"engine" toml:"engine"`                           // jedi, treesitter, auto
	RequestsPerSecond float64 `mapstructure:"requests_per_second" toml:"requests_per_second"` // Per-connection limit (0 = unlimited)
	Burst             int     `mapstructure:"burst" toml:"burst"`
}

// ServerConfig configures the HTTP/WebSocket server
type ServerConfig struct {
	Port           int      `mapstructure:"port" toml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
}

// LogConfig configures logging output
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json"`
}

// Completion engine names
const (
	EngineJedi       = "jedi"
	EngineTreeSitter = "treesitter"
	EngineAuto       = "auto"
)

// DefaultServerPort is used when server.port is not configured
const DefaultServerPort = 8765
