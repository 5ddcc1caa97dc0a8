// Package blobconfig opens one or more blob store backends from JSON.
package blobconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"onigiri.dev/shake/storage"
	"onigiri.dev/shake/storage/blobregistry"
)

// Config describes how to open blob store backends via blobregistry.
//
// Callers still need to link the desired backend packages via blank imports.
//
// WritePolicy values:
// - "first" (default): write only to the first backend; reads fall back in order
// - "all": write to all backends and require equal blob ids (see storage.ReplicatingStore)
//
// Example:
//
//	{
//	  "write_policy": "all",
//	  "backends": [
//	    {"name": "aggregator", "config": {"publisher-url": "https://publisher.example", "aggregator-url": "https://aggregator.example"}},
//	    {"name": "localfs", "id": "mirror", "config": {"localfs-dir": "/var/lib/shake/blobs"}}
//	  ]
//	}
type Config struct {
	WritePolicy string          `json:"write_policy,omitempty"`
	Backends    []BackendConfig `json:"backends"`
}

type BackendConfig struct {
	// Name is the blobregistry backend name to open.
	Name string `json:"name"`
	// ID is an optional stable alias used in per-backend id maps. Defaults to Name.
	ID     string            `json:"id,omitempty"`
	Config map[string]string `json:"config,omitempty"`
}

func (b BackendConfig) alias() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("blobconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("blobconfig: %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("blobconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("blobconfig: backend name is required")
		}
		id := b.alias()
		if _, ok := seen[id]; ok {
			return fmt.Errorf("blobconfig: duplicate backend id %q", id)
		}
		seen[id] = struct{}{}
	}
	switch c.WritePolicy {
	case "", "first", "all":
		return nil
	default:
		return fmt.Errorf("blobconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens a Store per config.
//
// If preferred is non-empty, the backend with that name or id is moved first
// (and thus receives writes under the "first" policy).
func (c Config) Open(usage blobregistry.Usage, preferred string) (storage.Store, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	ordered := append([]BackendConfig(nil), c.Backends...)
	if preferred != "" {
		idx := -1
		for i := range ordered {
			if ordered[i].Name == preferred || ordered[i].ID == preferred {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil, fmt.Errorf("blobconfig: preferred backend %q not found in config", preferred)
		}
		if idx != 0 {
			b := ordered[idx]
			copy(ordered[1:idx+1], ordered[0:idx])
			ordered[0] = b
		}
	}

	named := make([]storage.NamedStore, 0, len(ordered))
	closers := make([]func() error, 0, len(ordered))
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, b := range ordered {
		s, closeFn, err := blobregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("blobconfig: open %q: %w", b.alias(), err)
		}
		named = append(named, storage.NamedStore{Name: b.alias(), Store: s})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].Store, closeAll, nil
	}

	switch c.WritePolicy {
	case "", "first":
		stores := make([]storage.Store, 0, len(named))
		for _, n := range named {
			stores = append(stores, n.Store)
		}
		return storage.MultiStore{Stores: stores}, closeAll, nil
	default:
		return storage.ReplicatingStore{Backends: named}, closeAll, nil
	}
}
