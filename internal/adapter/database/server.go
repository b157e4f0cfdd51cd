package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/semmidev/mdump/internal/config"
	"github.com/semmidev/mdump/internal/domain"
)

const sizeQuery = `SELECT COALESCE(SUM(data_length + index_length), 0)
		FROM information_schema.tables
		WHERE table_schema = ?`

// MySQLServer answers catalog queries and runs database level DDL over a
// regular client connection.
type MySQLServer struct {
	db      *sql.DB
	address string
}

// DSN builds the driver connection string for cfg.
func DSN(cfg config.MySQLConfig) string {
	dsn := mysql.NewConfig()
	dsn.User = cfg.Username
	dsn.Passwd = cfg.Password
	if cfg.Socket != "" {
		dsn.Net = "unix"
		dsn.Addr = cfg.Socket
	} else {
		dsn.Net = "tcp"
		dsn.Addr = cfg.Address()
	}
	if cfg.ConnectTimeout > 0 {
		dsn.Timeout = cfg.ConnectTimeout
	}
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}

// OpenServer connects to the server described by cfg. A server that cannot
// be reached yields a *domain.ConnectionError.
func OpenServer(ctx context.Context, cfg config.MySQLConfig) (*MySQLServer, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, &domain.ConnectionError{Address: cfg.Address(), Err: err}
	}
	db.SetMaxOpenConns(2)

	server := NewServer(db, cfg.Address())
	if err := server.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return server, nil
}

func NewServer(db *sql.DB, address string) *MySQLServer {
	return &MySQLServer{db: db, address: address}
}

func (s *MySQLServer) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.ConnectionError{Address: s.address, Err: err}
	}
	return nil
}

func (s *MySQLServer) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan database name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	return names, nil
}

// DatabaseSize returns the data and index size of name in bytes.
func (s *MySQLServer) DatabaseSize(ctx context.Context, name string) (int64, error) {
	var raw sql.NullString
	if err := s.db.QueryRowContext(ctx, sizeQuery, name).Scan(&raw); err != nil {
		return 0, fmt.Errorf("failed to query size of %s: %w", name, err)
	}
	if !raw.Valid || raw.String == "" {
		return 0, nil
	}

	// SUM over DECIMAL columns comes back as a decimal string
	whole, _, _ := strings.Cut(raw.String, ".")
	size, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected size %q for %s: %w", raw.String, name, err)
	}
	return size, nil
}

func (s *MySQLServer) CreateDatabase(ctx context.Context, name string, ifNotExists bool) error {
	stmt := "CREATE DATABASE " + QuoteIdentifier(name)
	if ifNotExists {
		stmt = "CREATE DATABASE IF NOT EXISTS " + QuoteIdentifier(name)
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

func (s *MySQLServer) DropDatabase(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", name, err)
	}
	return nil
}

func (s *MySQLServer) Close() error {
	return s.db.Close()
}

// QuoteIdentifier quotes name as a MySQL identifier.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
