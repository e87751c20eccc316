package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	stateDir = ".planboard"
	fileName = "planboard.db"
)

type Config struct {
	Workspace string
}

func stateDirFor(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, stateDir)
}

// EnsureWorkspace creates the workspace state directory if missing and
// returns its path.
func EnsureWorkspace(workspace string) (string, error) {
	dir := stateDirFor(workspace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return dir, nil
}

// Path returns the database file for the workspace.
func Path(workspace string) string {
	return filepath.Join(stateDirFor(workspace), fileName)
}

// Open opens the workspace database. Writers take the lock up front so
// concurrent budget checks serialize on BEGIN.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate", Path(cfg.Workspace))
	return sql.Open("sqlite", dsn)
}
