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
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/AleutianAI/tesseract/services/grid"
	"github.com/AleutianAI/tesseract/services/grid/telemetry"
)

// Spec describes a tile to place.
type Spec struct {
	Kind     Kind
	Faces    FaceSet
	Capacity int
	Role     Role
	Active   bool
}

// Validate checks that s describes a placeable tile.
func (s Spec) Validate() error {
	switch s.Kind {
	case KindPipe:
		if s.Role != RoleNone {
			return fmt.Errorf("%w: pipes have no role", ErrInvalidSpec)
		}
	case KindMachine:
		switch s.Role {
		case RoleNone, RoleProducer, RoleConsumer:
		default:
			return fmt.Errorf("%w: unknown role %q", ErrInvalidSpec, s.Role)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, s.Kind)
	}
	if s.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidSpec, s.Capacity)
	}
	return nil
}

// SpecOf returns the Spec that would recreate t.
func SpecOf(t Tile) Spec {
	s := Spec{Kind: t.Kind(), Faces: t.Faces(), Capacity: t.Capacity()}
	if m, ok := t.(*Machine); ok {
		s.Role = m.role
		s.Active = m.active
	}
	return s
}

// Options configures a World.
type Options struct {
	// Name labels the world's grid.
	Name string

	// Diagnostics is passed to the grid.
	Diagnostics grid.Diagnostics

	// OnNetworkCreated and OnNetworkRemoved are passed to the grid.
	OnNetworkCreated func(n *grid.Network[Route])
	OnNetworkRemoved func(n *grid.Network[Route])

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// World owns the tiles of one pipe network grid.
//
// Description:
//
//	World is the external owner the grid expects: it decides which tiles
//	exist and where, and tells the grid about every change. Tiles are
//	removed from the position map before the grid is told, so their former
//	neighbours no longer report them.
//
// Thread Safety:
//
//	Not safe for concurrent use.
type World struct {
	grid   *grid.Grid[Route]
	tiles  map[Pos]Tile
	logger *slog.Logger
}

// NewWorld creates an empty world.
func NewWorld(opts Options) *World {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &World{
		grid: grid.New(grid.Options[Route]{
			Name:             opts.Name,
			CompareRoutes:    CompareRoutes,
			OnNetworkCreated: opts.OnNetworkCreated,
			OnNetworkRemoved: opts.OnNetworkRemoved,
			Diagnostics:      opts.Diagnostics,
			Logger:           logger,
		}),
		tiles:  make(map[Pos]Tile),
		logger: logger,
	}
}

// Grid returns the underlying grid.
func (w *World) Grid() *grid.Grid[Route] {
	return w.grid
}

// Len returns the number of tiles.
func (w *World) Len() int {
	return len(w.tiles)
}

// Tile returns the tile at pos.
func (w *World) Tile(pos Pos) (Tile, bool) {
	t, ok := w.tiles[pos]
	return t, ok
}

// Tiles returns every tile ordered by position.
func (w *World) Tiles() []Tile {
	out := make([]Tile, 0, len(w.tiles))
	for _, t := range w.tiles {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Tile) int { return a.Pos().Compare(b.Pos()) })
	return out
}

// Place puts a new tile at pos, replacing any tile already there, and adds
// it to the grid.
//
// Outputs:
//
//	Tile - The placed tile.
//	error - ErrInvalidSpec if spec is rejected.
func (w *World) Place(ctx context.Context, pos Pos, spec Spec) (Tile, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if old, ok := w.tiles[pos]; ok {
		delete(w.tiles, pos)
		w.grid.RemoveElement(ctx, old)
	}

	t := w.newTile(pos, spec)
	w.tiles[pos] = t
	w.grid.AddElement(ctx, t)

	telemetry.LoggerWithTrace(ctx, w.logger).Debug("pipenet: tile placed",
		slog.String("tile", t.String()),
		slog.String("network", t.NetworkRef().String()),
	)
	return t, nil
}

// Stage puts a new tile at pos without telling the grid. It is meant for
// bulk loads that register tiles through the grid's quiet operations.
func (w *World) Stage(pos Pos, spec Spec) (Tile, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if _, ok := w.tiles[pos]; ok {
		return nil, fmt.Errorf("%w: %s", ErrOccupied, pos)
	}
	t := w.newTile(pos, spec)
	w.tiles[pos] = t
	return t, nil
}

// Remove takes the tile at pos out of the world and the grid.
func (w *World) Remove(ctx context.Context, pos Pos) error {
	t, ok := w.tiles[pos]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTile, pos)
	}
	delete(w.tiles, pos)
	w.grid.RemoveElement(ctx, t)

	telemetry.LoggerWithTrace(ctx, w.logger).Debug("pipenet: tile removed", slog.String("tile", t.String()))
	return nil
}

// SetFaces changes which faces of the tile at pos are open. The tile is
// re-added to the grid, which resets its adjacency and network.
func (w *World) SetFaces(ctx context.Context, pos Pos, faces FaceSet) error {
	t, ok := w.tiles[pos]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTile, pos)
	}
	switch v := t.(type) {
	case *Pipe:
		v.faces = faces
	case *Machine:
		v.faces = faces
	}
	w.grid.AddElement(ctx, t)
	return nil
}

// SetActive turns the machine at pos into, or out of, a route endpoint.
func (w *World) SetActive(ctx context.Context, pos Pos, active bool) error {
	t, ok := w.tiles[pos]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTile, pos)
	}
	m, ok := t.(*Machine)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotMachine, t)
	}
	if m.active == active {
		return nil
	}
	m.active = active
	w.grid.AddElement(ctx, m)
	return nil
}

// Routes returns the current route table entry of the machine at pos. The
// table is refreshed on Tick.
func (w *World) Routes(pos Pos) ([]*grid.RoutedNode[Route], error) {
	t, ok := w.tiles[pos]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTile, pos)
	}
	m, ok := t.(*Machine)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotMachine, t)
	}
	n := w.grid.NetworkOf(m)
	if n == nil {
		return nil, nil
	}
	return n.Tracker().Paths(m), nil
}

// Tick ticks the grid and returns how many networks rebuilt routes.
func (w *World) Tick(ctx context.Context) int {
	return w.grid.Tick(ctx)
}

func (w *World) newTile(pos Pos, spec Spec) Tile {
	base := tile{id: uuid.New(), world: w, pos: pos, faces: spec.Faces, capacity: spec.Capacity}
	if spec.Kind == KindMachine {
		return &Machine{tile: base, role: spec.Role, active: spec.Active}
	}
	return &Pipe{tile: base}
}
