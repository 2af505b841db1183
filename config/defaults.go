package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Python worker defaults
	v.SetDefault("python.command", "python3")
	v.SetDefault("python.min_version", "3.8")
	v.SetDefault("python.filename", "main.py")
	v.SetDefault("python.work_dir", "")
	v.SetDefault("python.interrupt_grace_ms", 2000)

	// Completion defaults
	v.SetDefault("completion.engine", EngineAuto)
	v.SetDefault("completion.requests_per_second", 20.0) // Keystroke-driven, bursts while typing
	v.SetDefault("completion.burst", 10)

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
	})

	v.SetDefault("log.json", false)
}

// Default returns a Config populated only from defaults.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		// Defaults always unmarshal; reaching this is a programming error
		panic(err)
	}
	return cfg
}
