package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"

	"tether/model"
	"tether/storage"
)

const defaultThreadName = "New Thread"

var now = time.Now

func threadName(text string) string {
	return storage.ThreadName(strings.TrimSpace(text))
}

func (a *Agent) threadIndex(id string) int {
	for i, t := range a.threads {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (a *Agent) setThreadName(id, name string) {
	if i := a.threadIndex(id); i >= 0 {
		a.threads[i].Name = name
	}
}

// ListThreads returns the known threads in creation order.
func (a *Agent) ListThreads() []model.ThreadMeta {
	return append([]model.ThreadMeta(nil), a.threads...)
}

// ActiveThread returns the metadata of the active thread.
func (a *Agent) ActiveThread() model.ThreadMeta {
	if i := a.threadIndex(a.active); i >= 0 {
		return a.threads[i]
	}
	return model.ThreadMeta{ID: a.active}
}

// Messages returns a copy of the active thread's history.
func (a *Agent) Messages() []model.Message {
	return model.CloneMessages(a.messages)
}

// NewThread persists the active thread and starts an empty one.
func (a *Agent) NewThread(ctx context.Context) (model.ThreadMeta, error) {
	if err := a.persist(ctx); err != nil {
		return model.ThreadMeta{}, err
	}
	return a.createThread()
}

// createThread appends a fresh thread and makes it active.
func (a *Agent) createThread() (model.ThreadMeta, error) {
	t := model.ThreadMeta{
		ID:        uuid.NewString(),
		Name:      defaultThreadName,
		CreatedAt: now(),
	}
	t.UpdatedAt = t.CreatedAt

	a.threads = append(a.threads, t)
	a.active = t.ID
	a.messages = []model.Message{model.SystemMessage(a.systemPrompt())}

	if err := a.store.SaveThreads(a.threads); err != nil {
		return model.ThreadMeta{}, fmt.Errorf("failed to save thread list: %w", err)
	}
	if err := a.store.SetActiveThread(t.ID); err != nil {
		return model.ThreadMeta{}, fmt.Errorf("failed to save active thread: %w", err)
	}
	a.logger.Debug("thread created", "thread", t.ID)
	return t, nil
}

// SwitchThread persists the active thread and activates id. Switching to the
// active thread does nothing.
func (a *Agent) SwitchThread(ctx context.Context, id string) error {
	if id == a.active {
		return nil
	}
	if a.threadIndex(id) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownThread, id)
	}
	if err := a.persist(ctx); err != nil {
		return err
	}
	return a.activate(ctx, id)
}

// activate loads id's history. A thread with no stored or unreadable
// messages starts with only the system message.
func (a *Agent) activate(ctx context.Context, id string) error {
	msgs, ok, err := a.store.LoadMessages(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("failed to load thread %s: %w", id, err)
		}
		a.logger.Warn("discarding unreadable thread history", "thread", id, "err", err)
		msgs, ok = nil, false
	}
	if !ok || len(msgs) == 0 || msgs[0].Role != model.RoleSystem {
		msgs = append([]model.Message{model.SystemMessage(a.systemPrompt())}, msgs...)
	}

	a.active = id
	a.messages = msgs
	if err := a.store.SetActiveThread(id); err != nil {
		return fmt.Errorf("failed to save active thread: %w", err)
	}
	return nil
}

// DeleteThread removes a thread and its history. Deleting the active thread
// starts a new one in its place.
func (a *Agent) DeleteThread(ctx context.Context, id string) error {
	i := a.threadIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownThread, id)
	}
	if id != a.active {
		if err := a.persist(ctx); err != nil {
			return err
		}
	}

	a.threads = append(a.threads[:i], a.threads[i+1:]...)
	if err := a.store.DeleteMessages(ctx, id); err != nil {
		a.logger.Warn("failed to delete thread messages", "thread", id, "err", err)
	}

	if id == a.active {
		_, err := a.createThread()
		return err
	}
	if err := a.store.SaveThreads(a.threads); err != nil {
		return fmt.Errorf("failed to save thread list: %w", err)
	}
	return nil
}

// RenameThread sets a thread's name.
func (a *Agent) RenameThread(ctx context.Context, id, name string) error {
	if a.threadIndex(id) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownThread, id)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("thread name cannot be empty")
	}
	if err := a.persist(ctx); err != nil {
		return err
	}
	a.setThreadName(id, name)
	if err := a.store.SaveThreads(a.threads); err != nil {
		return fmt.Errorf("failed to save thread list: %w", err)
	}
	return nil
}

// Reset wipes every thread and the file store, unloads all extensions and
// skills, reloads the static ones and starts a new thread.
func (a *Agent) Reset(ctx context.Context) error {
	if err := a.persist(ctx); err != nil {
		a.logger.Warn("failed to persist before reset", "err", err)
	}
	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear storage: %w", err)
	}
	if err := a.manager.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to stop extensions", "err", err)
	}
	a.extensions.Clear()
	a.skills.Clear()
	a.fs.Clear()

	a.loadRegistries(ctx)

	a.threads = nil
	_, err := a.createThread()
	return err
}

type threadSource []model.ThreadMeta

func (s threadSource) String(i int) string { return s[i].Name }
func (s threadSource) Len() int            { return len(s) }

// FindThreads returns the threads whose names fuzzily match query, best
// match first. An empty query returns every thread.
func (a *Agent) FindThreads(query string) []model.ThreadMeta {
	if strings.TrimSpace(query) == "" {
		return a.ListThreads()
	}
	matches := fuzzy.FindFrom(query, threadSource(a.threads))
	out := make([]model.ThreadMeta, len(matches))
	for i, m := range matches {
		out[i] = a.threads[m.Index]
	}
	return out
}

// SearchMessages searches the stored messages of every thread. The active
// thread is saved first so its latest messages are included.
func (a *Agent) SearchMessages(ctx context.Context, query string, limit int) ([]storage.Match, error) {
	if err := a.persist(ctx); err != nil {
		return nil, err
	}
	return a.store.Search(ctx, query, limit)
}
