// Package mysql talks to the MySQL server, either over the wire protocol for
// catalog queries or through the mysqldump/mysql client binaries.
package mysql

import (
	"context"
	"database/sql"
	"io"
	"net"
	"regexp"
	"strconv"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/supporttools/GoSQLRestore/pkg/config"
	"github.com/supporttools/GoSQLRestore/pkg/connstore"
	"github.com/supporttools/GoSQLRestore/pkg/outcome"
	"github.com/supporttools/GoSQLRestore/pkg/runner"
)

// DefaultPort is used when the configured host carries no port
const DefaultPort = 3306

// maxIdentifierLength is MySQL's limit for database names
const maxIdentifierLength = 64

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_$][A-Za-z0-9_$-]*$`)

// Opener opens a database handle; sql.Open in production, sqlmock in tests
type Opener func(driverName, dsn string) (*sql.DB, error)

// Provider holds the connection parameters for one MySQL server
type Provider struct {
	Host     string
	Port     int
	User     string
	Password string

	tools  config.ToolsConfig
	opener Opener
}

// NewProvider builds a provider from the stored connection settings
func NewProvider(conn connstore.ConnectionConfig, tools config.ToolsConfig, opener Opener) *Provider {
	if opener == nil {
		opener = sql.Open
	}
	host, port := SplitHostPort(conn.Host)
	return &Provider{
		Host:     host,
		Port:     port,
		User:     conn.Username,
		Password: conn.Password,
		tools:    tools,
		opener:   opener,
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "mysql"
}

// SplitHostPort accepts "host", "host:port" or "[v6]:port"
func SplitHostPort(hostport string) (string, int) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, DefaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return host, DefaultPort
	}
	return host, port
}

// DSN returns the driver connection string for the server (no default schema)
func (p *Provider) DSN() string {
	cfg := driver.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	cfg.Timeout = p.tools.ConnectTimeout
	return cfg.FormatDSN()
}

// ListDatabases connects, runs SHOW DATABASES and returns the names in the
// order the server reports them.
func (p *Provider) ListDatabases(ctx context.Context) ([]string, error) {
	db, err := p.opener("mysql", p.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open MySQL connection")
	}
	defer db.Close()

	if timeout := p.tools.ConnectTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout+5*time.Second)
		defer cancel()
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to ping MySQL server")
	}

	rows, err := db.QueryContext(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch databases")
	}
	defer rows.Close()

	databases := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "failed to scan database name")
		}
		databases = append(databases, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating database rows")
	}

	return databases, nil
}

// connectionArgs are shared by mysqldump and mysql. The password travels in
// the environment (see credentialsEnv), never on the command line.
func (p *Provider) connectionArgs() []string {
	return []string{
		"--host=" + p.Host,
		"--port=" + strconv.Itoa(p.Port),
		"--user=" + p.User,
		"--protocol=TCP",
	}
}

func (p *Provider) credentialsEnv() []string {
	return []string{"MYSQL_PWD=" + p.Password}
}

// DumpCommand returns the mysqldump invocation for dbName writing to output
func (p *Provider) DumpCommand(dbName string, output io.Writer) runner.Command {
	args := append(p.connectionArgs(),
		"--single-transaction",
		"--quick",
		"--triggers",
		"--routines",
		"--events",
		dbName,
	)
	return runner.Command{
		Name:   p.tools.DumpBinary,
		Args:   args,
		Env:    p.credentialsEnv(),
		Stdout: output,
	}
}

// CreateDatabaseCommand returns the mysql invocation that creates dbName.
// dbName must already have passed ValidateIdentifier.
func (p *Provider) CreateDatabaseCommand(dbName string) runner.Command {
	args := append(p.connectionArgs(),
		"--execute=CREATE DATABASE "+QuoteIdentifier(dbName),
	)
	return runner.Command{
		Name: p.tools.ClientBinary,
		Args: args,
		Env:  p.credentialsEnv(),
	}
}

// RestoreCommand returns the mysql invocation that applies input to dbName
func (p *Provider) RestoreCommand(dbName string, input io.Reader) runner.Command {
	args := append(p.connectionArgs(),
		"--database="+dbName,
	)
	return runner.Command{
		Name:  p.tools.ClientBinary,
		Args:  args,
		Env:   p.credentialsEnv(),
		Stdin: input,
	}
}

// ValidateIdentifier rejects database names that are empty, too long, or
// contain anything beyond letters, digits, '_', '$' and '-' (no leading '-').
func ValidateIdentifier(name string) error {
	if name == "" {
		return outcome.ValidationError("Database name is required.")
	}
	if len(name) > maxIdentifierLength {
		return outcome.ValidationError("Database name must be at most 64 characters.")
	}
	if !identifierPattern.MatchString(name) {
		return outcome.ValidationError("Database name may only contain letters, digits, '_', '$' and '-'.")
	}
	return nil
}

// QuoteIdentifier back-quotes a MySQL identifier
func QuoteIdentifier(name string) string {
	quoted := make([]byte, 0, len(name)+2)
	quoted = append(quoted, '`')
	for i := 0; i < len(name); i++ {
		if name[i] == '`' {
			quoted = append(quoted, '`')
		}
		quoted = append(quoted, name[i])
	}
	return string(append(quoted, '`'))
}
