// Package adminserver provides the HTTP front end for GoSQLRestore: the
// operator form and its JSON endpoints.
package adminserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/supporttools/GoSQLRestore/pkg/catalog"
	"github.com/supporttools/GoSQLRestore/pkg/connstore"
	"github.com/supporttools/GoSQLRestore/pkg/outcome"
	"github.com/supporttools/GoSQLRestore/pkg/restore"
)

// ConfigStore loads and saves the connection settings
type ConfigStore interface {
	Load() connstore.ConnectionConfig
	Save(cfg connstore.ConnectionConfig) error
}

// Catalog lists databases and artifacts
type Catalog interface {
	ListDatabases(ctx context.Context, conn connstore.ConnectionConfig) []string
	ProbeDatabases(ctx context.Context, conn connstore.ConnectionConfig) ([]string, error)
	ListBackupFiles() []string
	ListArtifacts() []catalog.Artifact
}

// Backupper creates artifacts
type Backupper interface {
	Backup(ctx context.Context, databaseName string, conn connstore.ConnectionConfig) (catalog.Artifact, error)
}

// Restorer applies artifacts
type Restorer interface {
	Restore(ctx context.Context, target restore.Target, artifactFilename string, conn connstore.ConnectionConfig) (restore.Result, error)
}

// Deps groups the collaborators of the server
type Deps struct {
	Store    ConfigStore
	Catalog  Catalog
	Backups  Backupper
	Restores Restorer
	Logger   *logrus.Logger
}

// Server represents the admin HTTP server
type Server struct {
	deps       Deps
	logger     *logrus.Logger
	httpServer *http.Server
}

// NewServer creates a new admin server instance
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{deps: deps, logger: logger}
}

// Handler returns the routed handler, wrapped in request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return s.logRequestMiddleware(mux)
}

// Start starts the admin HTTP server in the background. writeTimeout should
// cover the longest backup or restore since requests wait for completion.
func (s *Server) Start(port string, writeTimeout time.Duration) *http.Server {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		s.logger.WithField("port", port).Info("Admin server running")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	return s.httpServer
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.indexHandler)

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.healthCheckHandler)

	mux.HandleFunc("/api/config", s.configHandler)
	mux.HandleFunc("/api/databases", s.databasesHandler)
	mux.HandleFunc("/api/artifacts", s.artifactsHandler)
	mux.HandleFunc("/api/backups/run", s.runBackupHandler)
	mux.HandleFunc("/api/restore", s.restoreHandler)
}

// healthCheckHandler returns a simple health status
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// configResponse never echoes the stored password
type configResponse struct {
	Host        string `json:"host"`
	Username    string `json:"username"`
	PasswordSet bool   `json:"password_set"`
}

func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg := s.deps.Store.Load()
		s.writeJSON(w, http.StatusOK, configResponse{
			Host:        cfg.Host,
			Username:    cfg.Username,
			PasswordSet: cfg.Password != "",
		})
	case http.MethodPost, http.MethodPut:
		var req connstore.ConnectionConfig
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeOutcome(w, outcome.FromError(outcome.ValidationError(fmt.Sprintf("Invalid request body: %v", err))))
			return
		}
		s.writeOutcome(w, s.saveConfig(req))
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) databasesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conn := s.deps.Store.Load()
	if r.URL.Query().Get("strict") == "true" {
		names, err := s.deps.Catalog.ProbeDatabases(r.Context(), conn)
		if err != nil {
			s.writeOutcome(w, outcome.FromError(err))
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"databases": names})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"databases": s.deps.Catalog.ListDatabases(r.Context(), conn),
	})
}

func (s *Server) artifactsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	artifacts := s.deps.Catalog.ListArtifacts()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"artifacts": artifacts,
		"count":     len(artifacts),
	})
}

// backupRequest is the JSON body of /api/backups/run
type backupRequest struct {
	Database string `json:"database"`
}

func (s *Server) runBackupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req backupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeOutcome(w, outcome.FromError(outcome.ValidationError(fmt.Sprintf("Invalid request body: %v", err))))
		return
	}
	s.writeOutcome(w, s.runBackup(r.Context(), req.Database))
}

// restoreRequest is the JSON body of /api/restore. NewDatabase selects the
// create-new target; otherwise Database names an existing one.
type restoreRequest struct {
	Database    string `json:"database"`
	NewDatabase string `json:"new_database"`
	CreateNew   bool   `json:"create_new"`
	BackupFile  string `json:"backup_file"`
}

func (s *Server) restoreHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeOutcome(w, outcome.FromError(outcome.ValidationError(fmt.Sprintf("Invalid request body: %v", err))))
		return
	}

	target := restore.ExistingTarget(req.Database)
	if req.CreateNew {
		target = restore.NewTarget(req.NewDatabase)
	}
	s.writeOutcome(w, s.runRestore(r.Context(), target, req.BackupFile))
}

func (s *Server) saveConfig(cfg connstore.ConnectionConfig) outcome.Outcome {
	if err := s.deps.Store.Save(cfg); err != nil {
		return outcome.FromError(err)
	}
	return outcome.Success("Configuration saved successfully!")
}

func (s *Server) runBackup(ctx context.Context, database string) outcome.Outcome {
	artifact, err := s.deps.Backups.Backup(ctx, database, s.deps.Store.Load())
	if err != nil {
		return outcome.FromError(err)
	}
	return outcome.Success("Backup created successfully! File: %s", artifact.Filename)
}

func (s *Server) runRestore(ctx context.Context, target restore.Target, backupFile string) outcome.Outcome {
	res, err := s.deps.Restores.Restore(ctx, target, backupFile, s.deps.Store.Load())
	if err != nil {
		return outcome.FromError(err)
	}
	return outcome.Success("Database restored successfully to '%s'.", res.Database)
}

// statusFor maps an outcome to the HTTP status of the JSON endpoints
func statusFor(o outcome.Outcome) int {
	if o.Status == outcome.StatusSuccess {
		return http.StatusOK
	}
	switch o.Kind {
	case outcome.KindValidation:
		return http.StatusBadRequest
	case outcome.KindNotFound:
		return http.StatusNotFound
	case outcome.KindConnection:
		return http.StatusBadGateway
	case outcome.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeOutcome(w http.ResponseWriter, o outcome.Outcome) {
	s.writeJSON(w, statusFor(o), o)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Error encoding response")
	}
}

func (s *Server) logRequestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"remote": r.RemoteAddr,
		}).Debug("HTTP request")
		next.ServeHTTP(w, r)
	})
}
