package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"tether/model"

	_ "modernc.org/sqlite"
)

// BulkStore holds per-thread message histories and the virtual file store
// snapshot.
type BulkStore interface {
	// LoadMessages returns the stored history for a thread. ok is false when
	// nothing was stored for it.
	LoadMessages(ctx context.Context, threadID string) (msgs []model.Message, ok bool, err error)
	SaveMessages(ctx context.Context, threadID string, msgs []model.Message) error
	DeleteMessages(ctx context.Context, threadID string) error
	LoadFiles(ctx context.Context) (map[string]string, error)
	SaveFiles(ctx context.Context, files map[string]string) error
	Clear(ctx context.Context) error
	Close() error
}

// filesKey is the single row id of the file store snapshot.
const filesKey = "snapshot"

// SQLiteBulkStore is the on-disk BulkStore.
type SQLiteBulkStore struct {
	db *sql.DB
}

// NewSQLiteBulkStore opens (or creates) <dataDir>/<name>.db.
func NewSQLiteBulkStore(dataDir, name string) (*SQLiteBulkStore, error) {
	dbPath := filepath.Join(dataDir, SanitizeFilename(name)+".db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteBulkStore{db: db}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *SQLiteBulkStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		thread_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteBulkStore) LoadMessages(ctx context.Context, threadID string) ([]model.Message, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM messages WHERE thread_id = ?`, threadID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load messages: %w", err)
	}

	var msgs []model.Message
	if err := json.Unmarshal([]byte(data), &msgs); err != nil {
		return nil, false, fmt.Errorf("failed to parse messages: %w", err)
	}
	return msgs, true, nil
}

func (s *SQLiteBulkStore) SaveMessages(ctx context.Context, threadID string, msgs []model.Message) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (thread_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, threadID, string(data), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save messages: %w", err)
	}
	return nil
}

func (s *SQLiteBulkStore) DeleteMessages(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}

func (s *SQLiteBulkStore) LoadFiles(ctx context.Context) (map[string]string, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM files WHERE id = ?`, filesKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load files: %w", err)
	}

	files := map[string]string{}
	if err := json.Unmarshal([]byte(data), &files); err != nil {
		return nil, fmt.Errorf("failed to parse files: %w", err)
	}
	return files, nil
}

func (s *SQLiteBulkStore) SaveFiles(ctx context.Context, files map[string]string) error {
	data, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("failed to marshal files: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO files (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, filesKey, string(data), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save files: %w", err)
	}
	return nil
}

// Clear removes every history and the file snapshot in one transaction.
func (s *SQLiteBulkStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files`); err != nil {
		return fmt.Errorf("failed to clear files: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteBulkStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// MemoryBulkStore keeps histories in process memory. Histories are stored as
// copies so later mutation by the caller does not leak in.
type MemoryBulkStore struct {
	mu       sync.RWMutex
	messages map[string][]model.Message
	files    map[string]string
}

// NewMemoryBulkStore creates an empty in-memory bulk store.
func NewMemoryBulkStore() *MemoryBulkStore {
	return &MemoryBulkStore{
		messages: make(map[string][]model.Message),
		files:    make(map[string]string),
	}
}

func (s *MemoryBulkStore) LoadMessages(_ context.Context, threadID string) ([]model.Message, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.messages[threadID]
	if !ok {
		return nil, false, nil
	}
	return model.CloneMessages(msgs), true, nil
}

func (s *MemoryBulkStore) SaveMessages(_ context.Context, threadID string, msgs []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[threadID] = model.CloneMessages(msgs)
	return nil
}

func (s *MemoryBulkStore) DeleteMessages(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, threadID)
	return nil
}

func (s *MemoryBulkStore) LoadFiles(context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryBulkStore) SaveFiles(_ context.Context, files map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string]string, len(files))
	for k, v := range files {
		s.files[k] = v
	}
	return nil
}

func (s *MemoryBulkStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make(map[string][]model.Message)
	s.files = make(map[string]string)
	return nil
}

func (s *MemoryBulkStore) Close() error { return nil }
