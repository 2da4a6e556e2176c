// Package blob defines the attachment blob store contract: put an object
// under a caller-chosen path and get back a durable fetch URL.
package blob

import (
	"context"
	"fmt"
	"io"
)

// BlobStore is the object store backing attachment uploads.
type BlobStore interface {
	// Put stores the object under key and returns a durable fetch URL.
	Put(ctx context.Context, key string, data io.Reader, size int64, contentType string) (string, error)
}

// Loader creates a BlobStore from config carried in the context.
type Loader func(ctx context.Context) (BlobStore, error)

// Plugin represents a blob store backend.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a blob store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered blob store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named blob store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown blob store %q; valid: %v", name, Names())
}
