package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/semmidev/mdump/internal/config"
	"github.com/semmidev/mdump/internal/domain"
)

// dumpOptions is the fixed option set every database is dumped with.
var dumpOptions = []string{
	"--single-transaction",
	"--routines",
	"--triggers",
	"--events",
	"--add-drop-database",
	"--create-options",
}

// maxOutput bounds how much of a tool's stderr is kept in an ExitError.
const maxOutput = 4096

// MySQLTools runs the mysqldump and mysql client binaries against one server.
type MySQLTools struct {
	config config.MySQLConfig
}

func NewMySQL(cfg config.MySQLConfig) *MySQLTools {
	if cfg.DumpBinary == "" {
		cfg.DumpBinary = "mysqldump"
	}
	if cfg.ClientBinary == "" {
		cfg.ClientBinary = "mysql"
	}
	return &MySQLTools{config: cfg}
}

func (m *MySQLTools) connectionArgs() []string {
	args := []string{fmt.Sprintf("--user=%s", m.config.Username)}
	if m.config.Socket != "" {
		return append(args, fmt.Sprintf("--socket=%s", m.config.Socket))
	}
	return append(args,
		fmt.Sprintf("--host=%s", m.config.Host),
		fmt.Sprintf("--port=%d", m.config.Port),
	)
}

// command passes the password through MYSQL_PWD, never on the command line.
func (m *MySQLTools) command(ctx context.Context, binary string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("MYSQL_PWD=%s", m.config.Password))
	return cmd
}

// Dump writes a logical dump of database to outputPath. A partial file is
// removed when mysqldump fails.
func (m *MySQLTools) Dump(ctx context.Context, database, outputPath string) error {
	args := append(m.connectionArgs(), dumpOptions...)
	args = append(args,
		fmt.Sprintf("--result-file=%s", outputPath),
		database,
	)

	cmd := m.command(ctx, m.config.DumpBinary, args...)
	if err := run(cmd, "mysqldump"); err != nil {
		_ = os.Remove(outputPath)
		return err
	}

	return nil
}

// Load feeds sqlPath to the mysql client connected to database.
func (m *MySQLTools) Load(ctx context.Context, database, sqlPath string) error {
	input, err := os.Open(sqlPath)
	if err != nil {
		return fmt.Errorf("failed to open dump file: %w", err)
	}
	defer input.Close()

	args := append(m.connectionArgs(), database)

	cmd := m.command(ctx, m.config.ClientBinary, args...)
	cmd.Stdin = input
	return run(cmd, "mysql")
}

// Versions reports the version line of both client tools.
func (m *MySQLTools) Versions(ctx context.Context) (map[string]string, error) {
	versions := make(map[string]string, 2)
	for tool, binary := range map[string]string{
		"mysqldump": m.config.DumpBinary,
		"mysql":     m.config.ClientBinary,
	} {
		if _, err := exec.LookPath(binary); err != nil {
			return versions, fmt.Errorf("%s not found in PATH: %w", tool, err)
		}

		out, err := exec.CommandContext(ctx, binary, "--version").Output()
		if err != nil {
			return versions, fmt.Errorf("%s is not working properly: %w", tool, err)
		}
		versions[tool] = strings.TrimSpace(string(out))
	}
	return versions, nil
}

// run executes cmd and maps a failure onto *domain.ExitError.
func run(cmd *exec.Cmd, tool string) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	status := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		status = exitErr.ExitCode()
	}

	output := stderr.String()
	if len(output) > maxOutput {
		output = output[len(output)-maxOutput:]
	}

	return &domain.ExitError{Tool: tool, Status: status, Output: output, Err: err}
}
