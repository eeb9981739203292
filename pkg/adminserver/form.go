package adminserver

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/supporttools/GoSQLRestore/pkg/catalog"
	"github.com/supporttools/GoSQLRestore/pkg/connstore"
	"github.com/supporttools/GoSQLRestore/pkg/outcome"
	"github.com/supporttools/GoSQLRestore/pkg/restore"
)

// newDatabaseOption is the database_option value that selects a new target
const newDatabaseOption = "new"

// Form actions accepted by POST /
const (
	actionSaveConfig = "save_config"
	actionBackup     = "backup"
	actionRestore    = "restore"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type indexData struct {
	Config      connstore.ConnectionConfig
	PasswordSet bool
	Databases   []string
	Artifacts   []catalog.Artifact
	NewOption   string
}

// indexHandler serves the operator page and its single-endpoint form protocol
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.renderIndex(w, r)
	case http.MethodPost:
		s.handleFormAction(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request) {
	cfg := s.deps.Store.Load()
	data := indexData{
		Config:      connstore.ConnectionConfig{Host: cfg.Host, Username: cfg.Username},
		PasswordSet: cfg.Password != "",
		Databases:   s.deps.Catalog.ListDatabases(r.Context(), cfg),
		Artifacts:   s.deps.Catalog.ListArtifacts(),
		NewOption:   newDatabaseOption,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.WithError(err).Error("Error rendering index page")
	}
}

// handleFormAction always answers 200 with a {status, message} body; the
// page script reads the status field rather than the HTTP code.
func (s *Server) handleFormAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeJSON(w, http.StatusOK, outcome.FromError(outcome.ValidationError("Invalid form submission.")))
		return
	}

	var result outcome.Outcome
	switch r.PostForm.Get("action") {
	case actionSaveConfig:
		result = s.saveConfig(s.formConfig(r))
	case actionBackup:
		result = s.runBackup(r.Context(), r.PostForm.Get("database"))
	case actionRestore:
		result = s.runRestore(r.Context(), formTarget(r), r.PostForm.Get("backup_file"))
	default:
		result = outcome.FromError(outcome.ValidationError("Unknown action."))
	}
	s.writeJSON(w, http.StatusOK, result)
}

// formConfig reads the connection form. The page never renders the stored
// password, so an empty password field keeps the saved one.
func (s *Server) formConfig(r *http.Request) connstore.ConnectionConfig {
	cfg := connstore.ConnectionConfig{
		Host:     r.PostForm.Get("host"),
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	if cfg.Password == "" {
		cfg.Password = s.deps.Store.Load().Password
	}
	return cfg
}

func formTarget(r *http.Request) restore.Target {
	option := r.PostForm.Get("database_option")
	if option == newDatabaseOption {
		return restore.NewTarget(r.PostForm.Get("new_db_name"))
	}
	return restore.ExistingTarget(option)
}
