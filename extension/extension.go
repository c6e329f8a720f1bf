// Package extension lets code outside the agent add tools and observe turns.
//
// An Extension receives an API when it is loaded. Everything registered
// through that API is tagged with the extension's owner name, so unloading
// the extension removes exactly what it added. Extensions loaded at runtime
// are MCP servers described by a TOML manifest (see Manifest).
package extension

import (
	"context"
	"errors"

	"tether/filestore"
	"tether/model"
)

var (
	ErrDuplicateExtension = errors.New("extension already loaded")
	ErrUnknownExtension   = errors.New("extension not loaded")
	ErrNoInputHandler     = errors.New("no input handler configured")
)

// EventHandler observes every turn event before the consumer sees it.
type EventHandler func(model.Event)

// API is the capability set an extension is given.
type API interface {
	RegisterTool(def model.ToolDefinition)
	On(handler EventHandler)
	// RequestInput asks the user a question out of band.
	RequestInput(ctx context.Context, prompt string) (string, error)
	// AddExtension loads a manifest at runtime and returns its name.
	AddExtension(ctx context.Context, source string) (string, error)
	RemoveExtension(ctx context.Context, name string) error
	FS() *filestore.Store
}

// Extension is loaded by calling Register with a scoped API.
type Extension interface {
	Register(api API) error
}

// Func adapts a plain function to Extension.
type Func func(api API) error

func (f Func) Register(api API) error { return f(api) }

// Host provides the capabilities the registry cannot provide itself.
type Host interface {
	RequestInput(ctx context.Context, prompt string) (string, error)
	AddExtension(ctx context.Context, source string) (string, error)
	RemoveExtension(ctx context.Context, name string) error
	FS() *filestore.Store
}
