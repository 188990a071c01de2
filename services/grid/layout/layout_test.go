// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layout

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tesseract/services/grid/pipenet"
)

const lineYAML = `
name: line
tiles:
  - {x: 0, y: 0, z: 0, kind: machine, role: producer, faces: [east]}
  - {x: 1, y: 0, z: 0, kind: pipe, faces: [east, west], capacity: 8}
  - {x: 2, y: 0, z: 0, kind: pipe, faces: [east, west], capacity: 8}
  - {x: 3, y: 0, z: 0, kind: machine, role: consumer, faces: [west]}
`

func TestParse(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		l, err := Parse([]byte(lineYAML))
		require.NoError(t, err)
		assert.Equal(t, "line", l.Name)
		require.Len(t, l.Tiles, 4)

		spec, err := l.Tiles[0].Spec()
		require.NoError(t, err)
		assert.Equal(t, pipenet.Spec{
			Kind:     pipenet.KindMachine,
			Faces:    pipenet.FacesOf(pipenet.East),
			Capacity: 1,
			Role:     pipenet.RoleProducer,
			Active:   true,
		}, spec)
	})

	t.Run("empty document", func(t *testing.T) {
		l, err := Parse(nil)
		require.NoError(t, err)
		assert.Empty(t, l.Tiles)
	})

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "unknown field", yaml: "tiles:\n  - {x: 0, kind: pipe, colour: red}\n", want: "colour"},
		{name: "bad kind", yaml: "tiles:\n  - {x: 0, kind: valve}\n", want: "oneof"},
		{name: "bad role", yaml: "tiles:\n  - {x: 0, kind: machine, role: hoarder}\n", want: "oneof"},
		{name: "bad face", yaml: "tiles:\n  - {x: 0, kind: pipe, faces: [sideways]}\n", want: "sideways"},
		{name: "negative capacity", yaml: "tiles:\n  - {x: 0, kind: pipe, capacity: -1}\n", want: "gte"},
		{name: "duplicate", yaml: "tiles:\n  - {x: 0, kind: pipe}\n  - {x: 0, kind: machine}\n", want: "duplicates"},
		{name: "pipe role", yaml: "tiles:\n  - {x: 0, kind: pipe, role: producer}\n", want: "pipes have no role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.ErrorIs(t, err, ErrInvalidLayout)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCapture(t *testing.T) {
	ctx := context.Background()
	l, err := Parse([]byte(lineYAML))
	require.NoError(t, err)
	w := pipenet.NewWorld(pipenet.Options{})
	_, err = Apply(ctx, w, l)
	require.NoError(t, err)

	captured := Capture(w, "line")

	data, err := Marshal(captured)
	require.NoError(t, err)
	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, captured, again)

	w2 := pipenet.NewWorld(pipenet.Options{})
	_, err = Apply(ctx, w2, again)
	require.NoError(t, err)
	assert.Equal(t, captured, Capture(w2, "line"))
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "line.yaml")
	l, err := Parse([]byte(lineYAML))
	require.NoError(t, err)

	require.NoError(t, WriteFile(path, l))
	read, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, l.Name, read.Name)
	assert.Len(t, read.Tiles, 4)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	_, err = ReadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	w := pipenet.NewWorld(pipenet.Options{})
	l, err := Parse([]byte(lineYAML))
	require.NoError(t, err)

	res, err := Apply(ctx, w, l)
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Placed: 4}, res)
	require.Len(t, w.Grid().Networks(), 1)

	t.Run("reapplying changes nothing", func(t *testing.T) {
		ref := w.Grid().Networks()[0].Ref()
		res, err := Apply(ctx, w, l)
		require.NoError(t, err)
		assert.Equal(t, ApplyResult{Unchanged: 4}, res)
		assert.Equal(t, ref, w.Grid().Networks()[0].Ref())
	})

	t.Run("diff removes and replaces", func(t *testing.T) {
		edited := Sorted(l)
		edited.Tiles = edited.Tiles[:3]
		edited.Tiles[1].Capacity = 2

		res, err := Apply(ctx, w, edited)
		require.NoError(t, err)
		assert.Equal(t, ApplyResult{Placed: 1, Removed: 1, Unchanged: 2}, res)
		assert.Equal(t, 3, w.Len())
		assert.NoError(t, w.Grid().CheckInvariants())
	})

	t.Run("invalid layout changes nothing", func(t *testing.T) {
		before := w.Len()
		_, err := Apply(ctx, w, &Layout{Tiles: []TileSpec{{Kind: "valve"}}})
		assert.ErrorIs(t, err, ErrInvalidLayout)
		assert.Equal(t, before, w.Len())
	})
}

// mesh builds a layout of several disjoint rings and lines.
func mesh() *Layout {
	l := &Layout{Name: "mesh"}
	all := []string{"all"}
	for x := 0; x < 6; x++ {
		for z := 0; z < 6; z++ {
			if x == 3 || (z == 2 && x > 3) {
				continue
			}
			kind := "pipe"
			if (x+z)%5 == 0 {
				kind = "machine"
			}
			l.Tiles = append(l.Tiles, TileSpec{X: x, Z: z, Kind: kind, Faces: all, Capacity: x + 1})
		}
	}
	return l
}

func TestBulkLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("matches incremental placement", func(t *testing.T) {
		l := mesh()
		bulk := pipenet.NewWorld(pipenet.Options{})
		res, err := BulkLoad(ctx, bulk, l)
		require.NoError(t, err)
		require.NoError(t, bulk.Grid().CheckInvariants())

		incremental := pipenet.NewWorld(pipenet.Options{})
		_, err = Apply(ctx, incremental, l)
		require.NoError(t, err)

		assert.Equal(t, len(l.Tiles), res.Tiles)
		assert.Equal(t, len(incremental.Grid().Networks()), res.Networks)
		assert.Equal(t, incremental.Grid().Stats(), bulk.Grid().Stats())
		assert.Equal(t, 3, res.Networks)

		bulk.Tick(ctx)
		incremental.Tick(ctx)
		for _, tile := range incremental.Tiles() {
			if tile.Kind() != pipenet.KindMachine {
				continue
			}
			want, err := incremental.Routes(tile.Pos())
			require.NoError(t, err)
			got, err := bulk.Routes(tile.Pos())
			require.NoError(t, err)
			require.Len(t, got, len(want), tile.String())
			for i := range want {
				assert.Equal(t, want[i].Info, got[i].Info)
				assert.Equal(t, want[i].Dest.(pipenet.Tile).Pos(), got[i].Dest.(pipenet.Tile).Pos())
			}
		}
	})

	t.Run("refuses a populated world", func(t *testing.T) {
		w := pipenet.NewWorld(pipenet.Options{})
		_, err := w.Place(ctx, pipenet.Pos{}, pipenet.Spec{Kind: pipenet.KindPipe, Capacity: 1})
		require.NoError(t, err)

		_, err = BulkLoad(ctx, w, mesh())
		assert.ErrorIs(t, err, ErrWorldNotEmpty)
	})

	t.Run("invalid layout stages nothing", func(t *testing.T) {
		w := pipenet.NewWorld(pipenet.Options{})
		_, err := BulkLoad(ctx, w, &Layout{Tiles: []TileSpec{{Kind: "pipe"}, {Kind: "pipe"}}})
		assert.ErrorIs(t, err, ErrInvalidLayout)
		assert.Zero(t, w.Len())
	})
}

func TestUnionFind(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e"}
	uf := newUnionFind(keys)
	assert.True(t, uf.union("a", "b"))
	assert.True(t, uf.union("d", "c"))
	assert.True(t, uf.union("b", "d"))
	assert.False(t, uf.union("a", "c"))

	assert.Equal(t, [][]string{{"a", "b", "c", "d"}, {"e"}}, uf.components(keys))
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "live.yaml")
	require.NoError(t, os.WriteFile(path, []byte(lineYAML), 0o644))

	got := make(chan *Layout, 4)
	w, err := NewWatcher(path, func(_ context.Context, l *Layout) { got <- l }, WatcherOptions{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// unrelated files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))
	// broken edits are skipped
	require.NoError(t, os.WriteFile(path, []byte("tiles: [{kind: valve}]"), 0o644))
	time.Sleep(80 * time.Millisecond)

	edited := strings.Replace(lineYAML, "name: line", "name: edited", 1)
	l, err := Parse([]byte(edited))
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, l))

	select {
	case reloaded := <-got:
		assert.Equal(t, "edited", reloaded.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("layout was not reloaded")
	}

	cancel()
	require.NoError(t, <-done)
	assert.NoError(t, w.Close())
}
