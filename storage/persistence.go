package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"tether/model"
)

// Persistence pairs the metadata store with the bulk store under one
// namespace. Metadata keys are "<namespace>-threads" and
// "<namespace>-active-thread".
type Persistence struct {
	meta      MetaStore
	bulk      BulkStore
	namespace string
	inMemory  bool
	logger    *slog.Logger
}

// New wraps existing stores.
func New(meta MetaStore, bulk BulkStore, namespace string, logger *slog.Logger) *Persistence {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Persistence{
		meta:      meta,
		bulk:      bulk,
		namespace: namespace,
		logger:    logger.With("component", "storage"),
	}
}

// NewMemory returns a Persistence that never touches disk.
func NewMemory(namespace string, logger *slog.Logger) *Persistence {
	p := New(NewMemoryMetaStore(), NewMemoryBulkStore(), namespace, logger)
	p.inMemory = true
	return p
}

// Open opens the on-disk stores under dataDir. When either cannot be opened
// it logs a warning and falls back to memory so the agent keeps working for
// the life of the process.
func Open(dataDir, namespace string, logger *slog.Logger) *Persistence {
	if dataDir == "" {
		return NewMemory(namespace, logger)
	}

	meta, err := NewFileMetaStore(filepath.Join(dataDir, "meta"))
	if err != nil {
		p := NewMemory(namespace, logger)
		p.logger.Warn("metadata store unavailable, keeping state in memory", "err", err)
		return p
	}

	bulk, err := NewSQLiteBulkStore(dataDir, namespace)
	if err != nil {
		p := New(meta, NewMemoryBulkStore(), namespace, logger)
		p.inMemory = true
		p.logger.Warn("bulk store unavailable, keeping histories in memory", "err", err)
		return p
	}

	return New(meta, bulk, namespace, logger)
}

// InMemory reports whether histories are kept only in process memory.
func (p *Persistence) InMemory() bool {
	return p.inMemory
}

func (p *Persistence) threadsKey() string { return p.namespace + "-threads" }
func (p *Persistence) activeKey() string  { return p.namespace + "-active-thread" }

// LoadThreads returns the stored thread list. A missing or corrupted list
// reads as empty.
func (p *Persistence) LoadThreads() []model.ThreadMeta {
	raw, ok := p.meta.Get(p.threadsKey())
	if !ok || strings.TrimSpace(raw) == "" {
		return []model.ThreadMeta{}
	}

	var threads []model.ThreadMeta
	if err := json.Unmarshal([]byte(raw), &threads); err != nil {
		p.logger.Warn("thread list is corrupted, starting fresh", "err", err)
		return []model.ThreadMeta{}
	}
	if threads == nil {
		threads = []model.ThreadMeta{}
	}
	return threads
}

// SaveThreads replaces the stored thread list.
func (p *Persistence) SaveThreads(threads []model.ThreadMeta) error {
	data, err := json.Marshal(threads)
	if err != nil {
		return fmt.Errorf("failed to marshal thread list: %w", err)
	}
	return p.meta.Set(p.threadsKey(), string(data))
}

// ActiveThread returns the stored active thread id, or "" when unset.
func (p *Persistence) ActiveThread() string {
	id, _ := p.meta.Get(p.activeKey())
	return strings.TrimSpace(id)
}

// SetActiveThread stores the active thread id.
func (p *Persistence) SetActiveThread(id string) error {
	return p.meta.Set(p.activeKey(), id)
}

func (p *Persistence) LoadMessages(ctx context.Context, threadID string) ([]model.Message, bool, error) {
	return p.bulk.LoadMessages(ctx, threadID)
}

func (p *Persistence) SaveMessages(ctx context.Context, threadID string, msgs []model.Message) error {
	return p.bulk.SaveMessages(ctx, threadID, msgs)
}

func (p *Persistence) DeleteMessages(ctx context.Context, threadID string) error {
	return p.bulk.DeleteMessages(ctx, threadID)
}

func (p *Persistence) LoadFiles(ctx context.Context) (map[string]string, error) {
	return p.bulk.LoadFiles(ctx)
}

func (p *Persistence) SaveFiles(ctx context.Context, files map[string]string) error {
	return p.bulk.SaveFiles(ctx, files)
}

// Clear wipes the thread list, the active pointer and all bulk data.
func (p *Persistence) Clear(ctx context.Context) error {
	if err := p.meta.Delete(p.threadsKey()); err != nil {
		return err
	}
	if err := p.meta.Delete(p.activeKey()); err != nil {
		return err
	}
	if err := p.bulk.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear bulk store: %w", err)
	}
	return nil
}

func (p *Persistence) Close() error {
	return p.bulk.Close()
}

// ThreadName derives a thread name from the first user message, keeping the
// first 50 characters and marking truncation with "...".
func ThreadName(firstMessage string) string {
	const maxRunes = 50
	runes := []rune(firstMessage)
	if len(runes) <= maxRunes {
		return firstMessage
	}
	return string(runes[:maxRunes]) + "..."
}
