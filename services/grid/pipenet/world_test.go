// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipenet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tesseract/services/grid"
)

var eastWest = FacesOf(East, West)

func pipe(capacity int) Spec {
	return Spec{Kind: KindPipe, Faces: eastWest, Capacity: capacity}
}

func machine(faces FaceSet, role Role) Spec {
	return Spec{Kind: KindMachine, Faces: faces, Capacity: 100, Role: role, Active: true}
}

func place(t *testing.T, w *World, pos Pos, spec Spec) Tile {
	t.Helper()
	tile, err := w.Place(context.Background(), pos, spec)
	require.NoError(t, err)
	return tile
}

// buildLine places producer - pipes - consumer along X.
func buildLine(t *testing.T, w *World, pipes int, capacity int) (Tile, Tile) {
	t.Helper()
	src := place(t, w, Pos{}, machine(FacesOf(East), RoleProducer))
	for i := 1; i <= pipes; i++ {
		place(t, w, Pos{X: i}, pipe(capacity))
	}
	dst := place(t, w, Pos{X: pipes + 1}, machine(FacesOf(West), RoleConsumer))
	return src, dst
}

func TestWorld_Line(t *testing.T) {
	ctx := context.Background()
	w := NewWorld(Options{Name: "line"})
	src, dst := buildLine(t, w, 2, 8)

	require.Len(t, w.Grid().Networks(), 1)
	assert.Equal(t, 4, w.Grid().Networks()[0].Len())
	require.NoError(t, w.Grid().CheckInvariants())

	assert.Equal(t, 1, w.Tick(ctx))

	routes, err := w.Routes(src.Pos())
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, dst, routes[0].Dest)
	assert.Equal(t, Route{Hops: 3, Capacity: 8}, routes[0].Info)

	back, err := w.Routes(dst.Pos())
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, src, back[0].Dest)
}

func TestWorld_FacesMustMatch(t *testing.T) {
	w := NewWorld(Options{})
	place(t, w, Pos{}, machine(FacesOf(East), RoleNone))
	place(t, w, Pos{X: 1}, Spec{Kind: KindPipe, Faces: FacesOf(East), Capacity: 1})

	assert.Len(t, w.Grid().Networks(), 2)
	assert.Equal(t, 0, w.Grid().Stats().Edges)
}

func TestWorld_RemoveSplits(t *testing.T) {
	ctx := context.Background()
	w := NewWorld(Options{})
	src, dst := buildLine(t, w, 3, 5)
	w.Tick(ctx)

	require.NoError(t, w.Remove(ctx, Pos{X: 2}))

	assert.Len(t, w.Grid().Networks(), 2)
	assert.NotEqual(t, src.NetworkRef(), dst.NetworkRef())
	require.NoError(t, w.Grid().CheckInvariants())

	w.Tick(ctx)
	routes, err := w.Routes(src.Pos())
	require.NoError(t, err)
	assert.Empty(t, routes)

	assert.ErrorIs(t, w.Remove(ctx, Pos{X: 2}), ErrNoTile)
}

func TestWorld_SetFaces(t *testing.T) {
	ctx := context.Background()
	w := NewWorld(Options{})
	src, dst := buildLine(t, w, 1, 5)

	require.NoError(t, w.SetFaces(ctx, Pos{X: 1}, FacesOf(East)))
	assert.Len(t, w.Grid().Networks(), 2)
	assert.Equal(t, dst.NetworkRef(), w.Grid().NetworkOf(mustTile(t, w, Pos{X: 1})).Ref())
	assert.NotEqual(t, src.NetworkRef(), dst.NetworkRef())

	require.NoError(t, w.SetFaces(ctx, Pos{X: 1}, eastWest))
	assert.Len(t, w.Grid().Networks(), 1)
	require.NoError(t, w.Grid().CheckInvariants())

	assert.ErrorIs(t, w.SetFaces(ctx, Pos{X: 9}, AllFaces), ErrNoTile)
}

func mustTile(t *testing.T, w *World, pos Pos) Tile {
	t.Helper()
	tile, ok := w.Tile(pos)
	require.True(t, ok, pos.String())
	return tile
}

func TestWorld_SetActive(t *testing.T) {
	ctx := context.Background()
	w := NewWorld(Options{})
	src, dst := buildLine(t, w, 1, 5)

	require.NoError(t, w.SetActive(ctx, dst.Pos(), false))
	w.Tick(ctx)
	routes, err := w.Routes(src.Pos())
	require.NoError(t, err)
	assert.Empty(t, routes)
	assert.Len(t, w.Grid().NetworkOf(src).Tracker().Endpoints(), 1)

	require.NoError(t, w.SetActive(ctx, dst.Pos(), true))
	w.Tick(ctx)
	routes, err = w.Routes(src.Pos())
	require.NoError(t, err)
	assert.Len(t, routes, 1)

	assert.ErrorIs(t, w.SetActive(ctx, Pos{X: 1}, true), ErrNotMachine)
	_, err = w.Routes(Pos{X: 1})
	assert.ErrorIs(t, err, ErrNotMachine)
}

func TestWorld_Components(t *testing.T) {
	w := NewWorld(Options{})
	src, dst := buildLine(t, w, 1, 5)
	n := w.Grid().NetworkOf(src)

	assert.ElementsMatch(t, []*Machine{src.(*Machine), dst.(*Machine)}, grid.ComponentsOf(n, MachineKey))
	assert.Equal(t, []*Machine{src.(*Machine)}, grid.ComponentsOf(n, ProducerKey))
	assert.Equal(t, []*Machine{dst.(*Machine)}, grid.ComponentsOf(n, ConsumerKey))
}

func TestWorld_RouteOrderAndInterning(t *testing.T) {
	ctx := context.Background()
	w := NewWorld(Options{})
	// p1 and p2 both feed the hub pipe; c is one pipe further east.
	p1 := place(t, w, Pos{}, machine(FacesOf(East), RoleProducer))
	place(t, w, Pos{X: 1}, Spec{Kind: KindPipe, Faces: AllFaces, Capacity: 4})
	p2 := place(t, w, Pos{X: 1, Z: 1}, machine(FacesOf(North), RoleProducer))
	c := place(t, w, Pos{X: 2}, machine(FacesOf(West), RoleConsumer))
	w.Tick(ctx)

	r1, err := w.Routes(p1.Pos())
	require.NoError(t, err)
	r2, err := w.Routes(p2.Pos())
	require.NoError(t, err)
	require.Len(t, r1, 2)
	require.Len(t, r2, 2)

	// both equal-hop destinations order by position
	assert.Equal(t, p2, r1[0].Dest)
	assert.Equal(t, c, r1[1].Dest)
	assert.Equal(t, Route{Hops: 2, Capacity: 4}, r1[1].Info)
	assert.Same(t, r1[1], r2[1], "equal routes to c are shared")
}

func TestWorld_Place(t *testing.T) {
	ctx := context.Background()
	w := NewWorld(Options{})

	t.Run("replaces the occupant", func(t *testing.T) {
		first := place(t, w, Pos{}, pipe(1))
		second := place(t, w, Pos{}, machine(AllFaces, RoleNone))

		assert.NotEqual(t, first.ID(), second.ID())
		assert.False(t, w.Grid().Contains(first))
		assert.True(t, w.Grid().Contains(second))
		assert.Nil(t, first.Neighbours())
		assert.Equal(t, 1, w.Len())
	})

	t.Run("invalid specs", func(t *testing.T) {
		for name, spec := range map[string]Spec{
			"unknown kind":  {Kind: "valve", Capacity: 1},
			"zero capacity": {Kind: KindPipe},
			"pipe role":     {Kind: KindPipe, Capacity: 1, Role: RoleProducer},
			"bad role":      {Kind: KindMachine, Capacity: 1, Role: "hoarder"},
		} {
			_, err := w.Place(ctx, Pos{X: 5}, spec)
			assert.ErrorIs(t, err, ErrInvalidSpec, name)
		}
	})

	t.Run("stage refuses occupied positions", func(t *testing.T) {
		_, err := w.Stage(Pos{}, pipe(1))
		assert.ErrorIs(t, err, ErrOccupied)
	})

	t.Run("tiles are ordered", func(t *testing.T) {
		place(t, w, Pos{X: -1}, pipe(1))
		tiles := w.Tiles()
		require.Len(t, tiles, 2)
		assert.Equal(t, Pos{X: -1}, tiles[0].Pos())
		assert.Equal(t, SpecOf(tiles[1]), machine(AllFaces, RoleNone))
	})
}
