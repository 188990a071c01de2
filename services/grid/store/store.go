// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store keeps named layout snapshots in an embedded BadgerDB.
//
// Keys are "layout/<name>"; values are YAML documents holding the layout
// and the time it was saved.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/tesseract/services/grid/layout"
)

const keyPrefix = "layout/"

var (
	// ErrNotFound is returned when no snapshot has the requested name.
	ErrNotFound = errors.New("snapshot not found")

	// ErrInvalidName is returned for empty names or names with a slash.
	ErrInvalidName = errors.New("invalid snapshot name")
)

// Info describes a stored snapshot.
type Info struct {
	Name    string    `json:"name"`
	Tiles   int       `json:"tiles"`
	SavedAt time.Time `json:"saved_at"`
}

type record struct {
	SavedAt time.Time      `yaml:"saved_at"`
	Layout  *layout.Layout `yaml:"layout"`
}

// Store is a snapshot store.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db *badger.DB

	gcStop    chan struct{}
	gcDone    chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

// Open opens the store described by cfg and starts value log GC when
// configured.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, now: time.Now}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go gcLoop(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger, s.gcStop, s.gcDone)
	}
	return s, nil
}

// Close stops GC and closes the database. Safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.gcStop != nil {
			close(s.gcStop)
			<-s.gcDone
		}
		err = s.db.Close()
	})
	return err
}

func key(name string) ([]byte, error) {
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return []byte(keyPrefix + name), nil
}

// Save stores l under name, replacing any snapshot with that name.
func (s *Store) Save(ctx context.Context, name string, l *layout.Layout) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	k, err := key(name)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(record{SavedAt: s.now().UTC(), Layout: l})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, data)
	})
}

// Load returns the snapshot stored under name.
func (s *Store) Load(ctx context.Context, name string) (*layout.Layout, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	k, err := key(name)
	if err != nil {
		return nil, err
	}

	var rec record
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return yaml.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	if rec.Layout == nil {
		rec.Layout = &layout.Layout{Name: name}
	}
	return rec.Layout, nil
}

// List returns every snapshot ordered by name.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var out []Info
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec record
			if err := item.Value(func(val []byte) error {
				return yaml.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			info := Info{
				Name:    strings.TrimPrefix(string(item.Key()), keyPrefix),
				SavedAt: rec.SavedAt,
			}
			if rec.Layout != nil {
				info.Tiles = len(rec.Layout.Tiles)
			}
			out = append(out, info)
		}
		return nil
	})
	return out, err
}

// Delete removes the snapshot stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	k, err := key(name)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		} else if err != nil {
			return err
		}
		return txn.Delete(k)
	})
}
