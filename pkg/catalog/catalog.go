// Package catalog observes what exists right now: databases on the live
// server and backup artifacts in the backup directory. Nothing is indexed.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/supporttools/GoSQLRestore/pkg/config"
	"github.com/supporttools/GoSQLRestore/pkg/connstore"
	"github.com/supporttools/GoSQLRestore/pkg/mysql"
	"github.com/supporttools/GoSQLRestore/pkg/outcome"
)

const (
	// ArtifactExt is the extension of every backup artifact
	ArtifactExt = ".sql"

	// TimestampLayout formats the creation time embedded in artifact names
	TimestampLayout = "2006-01-02_15-04-05"
)

// Artifact is a backup file in the backup directory
type Artifact struct {
	Filename     string    `json:"filename"`
	DatabaseName string    `json:"database"`
	FilePath     string    `json:"path"`
	CreatedAt    time.Time `json:"createdAt"`
	Size         int64     `json:"size"`
}

// Describe renders the artifact for selection lists
func (a Artifact) Describe() string {
	return fmt.Sprintf("%s (%s, %s)", a.Filename, humanize.Bytes(uint64(a.Size)), humanize.Time(a.CreatedAt))
}

// ArtifactFileName builds "<database>_<YYYY-MM-DD_HH-MM-SS>.sql". A positive
// seq yields "<database>_<timestamp>-<seq>.sql" for same-second collisions.
func ArtifactFileName(database string, createdAt time.Time, seq int) string {
	name := database + "_" + createdAt.Format(TimestampLayout)
	if seq > 0 {
		name += "-" + strconv.Itoa(seq)
	}
	return name + ArtifactExt
}

// DatabaseNameFromArtifact returns the part of the base filename before the
// first underscore. Database names that themselves contain '_' are not
// recovered intact ("my_db_2024-..." yields "my").
func DatabaseNameFromArtifact(filename string) string {
	base := filepath.Base(filename)
	name, _, _ := strings.Cut(base, "_")
	return name
}

// TimestampFromArtifact parses the creation time embedded in an artifact name
func TimestampFromArtifact(filename string) (time.Time, bool) {
	base := strings.TrimSuffix(filepath.Base(filename), ArtifactExt)
	_, rest, found := strings.Cut(base, "_")
	if !found || len(rest) < len(TimestampLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(TimestampLayout, rest[:len(TimestampLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Lister answers catalog queries
type Lister struct {
	backupDir string
	tools     config.ToolsConfig
	opener    mysql.Opener
	logger    *logrus.Logger
}

// NewLister creates a Lister. opener may be nil to use database/sql directly.
func NewLister(backupDir string, tools config.ToolsConfig, opener mysql.Opener, logger *logrus.Logger) *Lister {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Lister{
		backupDir: backupDir,
		tools:     tools,
		opener:    opener,
		logger:    logger,
	}
}

// BackupDir returns the directory scanned for artifacts
func (l *Lister) BackupDir() string {
	return l.backupDir
}

// ListDatabases returns the server's databases in server order. A failed
// connection yields an empty list; use ProbeDatabases to see the error.
func (l *Lister) ListDatabases(ctx context.Context, conn connstore.ConnectionConfig) []string {
	names, err := l.ProbeDatabases(ctx, conn)
	if err != nil {
		l.logger.WithError(err).WithField("host", conn.Host).Warn("Could not list databases")
		return []string{}
	}
	return names
}

// ProbeDatabases is ListDatabases with connection failures reported as a
// ConnectionError.
func (l *Lister) ProbeDatabases(ctx context.Context, conn connstore.ConnectionConfig) ([]string, error) {
	provider := mysql.NewProvider(conn, l.tools, l.opener)
	names, err := provider.ListDatabases(ctx)
	if err != nil {
		return nil, outcome.ConnectionError("Could not connect to the MySQL server. Check your configuration.", err)
	}
	return names, nil
}

// DatabaseExists reports whether name is among the server's databases
func (l *Lister) DatabaseExists(ctx context.Context, conn connstore.ConnectionConfig, name string) (bool, error) {
	names, err := l.ProbeDatabases(ctx, conn)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ListBackupFiles returns the base names of *.sql files in the backup
// directory, in directory-read order. A missing directory yields an empty list.
func (l *Lister) ListBackupFiles() []string {
	entries, err := os.ReadDir(l.backupDir)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.WithError(err).WithField("dir", l.backupDir).Warn("Could not read backup directory")
		}
		return []string{}
	}

	files := []string{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if matched, _ := filepath.Match("*"+ArtifactExt, entry.Name()); matched {
			files = append(files, entry.Name())
		}
	}
	return files
}

// ListArtifacts returns ListBackupFiles with size and creation time. The
// time comes from the filename, falling back to the file's mtime.
func (l *Lister) ListArtifacts() []Artifact {
	files := l.ListBackupFiles()
	artifacts := make([]Artifact, 0, len(files))

	for _, name := range files {
		path := filepath.Join(l.backupDir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		createdAt, ok := TimestampFromArtifact(name)
		if !ok {
			createdAt = info.ModTime()
		}

		artifacts = append(artifacts, Artifact{
			Filename:     name,
			DatabaseName: DatabaseNameFromArtifact(name),
			FilePath:     path,
			CreatedAt:    createdAt,
			Size:         info.Size(),
		})
	}
	return artifacts
}

// ResolveArtifact maps a caller-supplied artifact name to a path inside the
// backup directory. Only the base name is used, so directory components
// cannot escape the directory.
func (l *Lister) ResolveArtifact(filename string) (string, error) {
	base := filepath.Base(filepath.Clean(strings.ReplaceAll(filename, "\\", "/")))
	if filename == "" || base == "." || base == ".." || base == "/" {
		return "", outcome.ValidationError("Please select a backup file to restore.")
	}

	path := filepath.Join(l.backupDir, base)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", outcome.NotFoundError("Selected backup file does not exist.")
	}
	return path, nil
}
