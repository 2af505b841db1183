package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/pyrunner/errors"
)

// WriteFile serializes cfg as TOML to path, keeping the previous file as
// path.back1 when one exists.
func WriteFile(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "failed to create config directory for %s", path)
	}

	if err := createBackup(path); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write config to %s", path)
	}
	return nil
}

// WriteDefault writes the default configuration to path
func WriteDefault(path string) error {
	return WriteFile(Default(), path)
}

func createBackup(configPath string) error {
	content, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(configPath+".back1", content, 0644); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}
