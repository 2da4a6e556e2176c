package store

import (
	"context"
	"fmt"
)

// Loader creates a ConversationStore from config carried in the context.
type Loader func(ctx context.Context) (ConversationStore, error)

// Plugin represents a conversation store backend.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a conversation store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown conversation store %q; valid: %v", name, Names())
}
