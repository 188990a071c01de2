// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tesseract/services/grid/layout"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sample(name string, tiles int) *layout.Layout {
	l := &layout.Layout{Name: name}
	for i := 0; i < tiles; i++ {
		l.Tiles = append(l.Tiles, layout.TileSpec{X: i, Kind: "pipe", Faces: []string{"east", "west"}, Capacity: 2})
	}
	return l
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	require.NoError(t, s.Save(ctx, "alpha", sample("alpha", 3)))

	got, err := s.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, sample("alpha", 3), got)

	require.NoError(t, s.Save(ctx, "alpha", sample("alpha", 1)))
	got, err = s.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Len(t, got.Tiles, 1, "save replaces")

	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListDelete(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Save(ctx, "b", sample("b", 2)))
	require.NoError(t, s.Save(ctx, "a", sample("a", 5)))

	infos, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Info{
		{Name: "a", Tiles: 5, SavedAt: fixed},
		{Name: "b", Tiles: 2, SavedAt: fixed},
	}, infos)

	require.NoError(t, s.Delete(ctx, "a"))
	assert.ErrorIs(t, s.Delete(ctx, "a"), ErrNotFound)

	infos, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "b", infos[0].Name)
}

func TestStore_InvalidInput(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Save(ctx, "", sample("x", 1)), ErrInvalidName)
	assert.ErrorIs(t, s.Save(ctx, "a/b", sample("x", 1)), ErrInvalidName)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.Save(cancelled, "x", sample("x", 1)), context.Canceled)
	_, err := s.List(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Persistent(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.SyncWrites = false

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "kept", sample("kept", 4)))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Load(ctx, "kept")
	require.NoError(t, err)
	assert.Len(t, got.Tiles, 4)

	_, err = Open(Config{})
	assert.Error(t, err)
}
