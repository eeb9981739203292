// Package connstore persists the MySQL connection settings used by every
// backup, restore and catalog operation.
package connstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"
	"github.com/supporttools/GoSQLRestore/pkg/outcome"
	"gopkg.in/yaml.v3"
)

// ConnectionConfig holds the credentials for the MySQL server
type ConnectionConfig struct {
	Host     string `yaml:"host" json:"host"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Default returns the built-in configuration written on first run
func Default() ConnectionConfig {
	return ConnectionConfig{
		Host:     "localhost",
		Username: "root",
		Password: "",
	}
}

// Store reads and writes a ConnectionConfig as a YAML file
type Store struct {
	path   string
	logger *logrus.Logger
	mu     sync.RWMutex
}

// NewStore creates a store backed by the file at path
func NewStore(path string, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted configuration. If the file is missing or cannot
// be parsed, the defaults are written and returned; Load never fails.
func (s *Store) Load() ConnectionConfig {
	s.mu.RLock()
	cfg, err := s.read()
	s.mu.RUnlock()
	if err == nil {
		return cfg
	}

	if !os.IsNotExist(err) {
		s.logger.WithError(err).WithField("file", s.path).Warn("Connection config unreadable, regenerating defaults")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have written the file while we waited for the lock
	if cfg, err := s.read(); err == nil {
		return cfg
	}

	cfg = Default()
	if err := s.write(cfg); err != nil {
		s.logger.WithError(err).WithField("file", s.path).Error("Failed to write default connection config")
	}
	return cfg
}

// Save replaces the persisted configuration. The write goes to a temporary
// file that is renamed over the old one, so readers never see a partial file.
func (s *Store) Save(cfg ConnectionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(cfg); err != nil {
		return outcome.ConfigError("Failed to save configuration.", err)
	}

	s.logger.WithFields(logrus.Fields{
		"file":     s.path,
		"host":     cfg.Host,
		"username": cfg.Username,
	}).Info("Connection configuration saved")
	return nil
}

func (s *Store) read() (ConnectionConfig, error) {
	var cfg ConnectionConfig

	data, err := os.ReadFile(s.path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return cfg, nil
}

func (s *Store) write(cfg ConnectionConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal connection config: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}

	// The file holds a plain-text password
	if err := os.Chmod(s.path, 0600); err != nil {
		return fmt.Errorf("failed to restrict permissions on %s: %w", s.path, err)
	}
	return nil
}
