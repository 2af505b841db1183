package config

import (
	"github.com/Masterminds/semver/v3"
	"github.com/kballard/go-shellquote"

	"github.com/teranos/pyrunner/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	argv, err := shellquote.Split(c.Python.Command)
	if err != nil {
		return errors.Wrapf(err, "python.command %q is not a valid command line", c.Python.Command)
	}
	if len(argv) == 0 {
		return errors.New("python.command cannot be empty")
	}

	if c.Python.MinVersion != "" {
		if _, err := semver.NewVersion(c.Python.MinVersion); err != nil {
			return errors.Wrapf(err, "python.min_version %q is not a version", c.Python.MinVersion)
		}
	}

	if c.Python.InterruptGraceMS < 0 {
		return errors.Newf("python.interrupt_grace_ms must be >= 0, got %d", c.Python.InterruptGraceMS)
	}

	switch c.Completion.Engine {
	case EngineJedi, EngineTreeSitter, EngineAuto:
	default:
		return errors.WithHint(
			errors.Newf("completion.engine %q is not supported", c.Completion.Engine),
			"use one of: jedi, treesitter, auto",
		)
	}

	// 0 = unlimited, negative = invalid
	if c.Completion.RequestsPerSecond < 0 {
		return errors.Newf("completion.requests_per_second must be >= 0, got %f", c.Completion.RequestsPerSecond)
	}
	if c.Completion.RequestsPerSecond > 0 && c.Completion.Burst <= 0 {
		return errors.Newf("completion.burst must be > 0 when rate limiting is enabled, got %d", c.Completion.Burst)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

// PythonArgv splits python.command into an argv slice
func (c *Config) PythonArgv() ([]string, error) {
	argv, err := shellquote.Split(c.Python.Command)
	if err != nil {
		return nil, errors.Wrapf(err, "python.command %q is not a valid command line", c.Python.Command)
	}
	if len(argv) == 0 {
		return nil, errors.New("python.command cannot be empty")
	}
	return argv, nil
}
