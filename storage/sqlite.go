package storage

import (
	"database/sql"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/saiset-co/sai-request/types"
)

type SQLiteStore struct {
	db     *sql.DB
	logger types.Logger
	path   string
	state  atomic.Value
}

func NewSQLiteStore(logger types.Logger, config *types.StorageConfig) (*SQLiteStore, error) {
	dsn := config.Path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, types.Errorf(types.ErrStorageOpenFailed, "sqlite: %v", err)
	}

	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:     db,
		logger: logger,
		path:   dsn,
	}

	if err = store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	store.state.Store(StateStopped)
	return store, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return types.Errorf(types.ErrStorageOpenFailed, "sqlite init: %v", err)
		}
	}

	return nil
}

func (s *SQLiteStore) Start() error {
	if !s.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServerAlreadyRunning
	}

	s.logger.Debug("SQLite storage started", zap.String("path", s.path))
	return nil
}

func (s *SQLiteStore) Stop() error {
	if !s.state.CompareAndSwap(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer s.state.Store(StateStopped)

	if err := s.db.Close(); err != nil {
		return types.WrapError(err, "failed to close sqlite storage")
	}

	return nil
}

func (s *SQLiteStore) IsRunning() bool {
	return s.state.Load().(State) == StateRunning
}

func (s *SQLiteStore) Get(key string) (string, bool) {
	var value string

	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("Failed to read storage key", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}

	return value, true
}

func (s *SQLiteStore) Set(key, value string) error {
	if key == "" {
		return types.ErrStorageKeyEmpty
	}

	_, err := s.db.Exec(`INSERT INTO kv(key, value) VALUES(?, ?)
	ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return types.WrapError(err, "failed to write storage key")
	}

	return nil
}

func (s *SQLiteStore) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return types.WrapError(err, "failed to remove storage key")
	}
	return nil
}
