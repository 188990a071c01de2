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
	"fmt"
	"log/slog"
	"slices"

	"github.com/AleutianAI/tesseract/services/grid/pipenet"
	"github.com/AleutianAI/tesseract/services/grid/telemetry"
)

// ApplyResult counts what Apply changed.
type ApplyResult struct {
	Placed    int `json:"placed"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// Apply makes w match l.
//
// Description:
//
//	Tiles absent from l are removed, tiles whose spec differs are replaced
//	and new tiles are placed, all through the grid's incremental
//	operations. Tiles that already match are left alone, so their networks
//	and route tables survive.
//
// Inputs:
//
//	ctx - Context for tracing.
//	w - The world to change.
//	l - The desired layout. It is validated first; nothing changes if it
//	    is invalid.
//
// Outputs:
//
//	ApplyResult - What changed.
//	error - Validation or placement failure.
func Apply(ctx context.Context, w *pipenet.World, l *Layout) (ApplyResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "tesseract.layout", "layout.Apply")
	defer span.End()

	var res ApplyResult
	if err := l.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return res, err
	}

	desired := make(map[pipenet.Pos]pipenet.Spec, len(l.Tiles))
	for _, ts := range l.Tiles {
		spec, err := ts.Spec()
		if err != nil {
			return res, err
		}
		desired[ts.Pos()] = spec
	}

	for _, t := range w.Tiles() {
		if _, keep := desired[t.Pos()]; keep {
			continue
		}
		if err := w.Remove(ctx, t.Pos()); err != nil {
			return res, err
		}
		res.Removed++
	}

	for _, ts := range l.Tiles {
		pos := ts.Pos()
		spec := desired[pos]
		if t, ok := w.Tile(pos); ok && pipenet.SpecOf(t) == spec {
			res.Unchanged++
			continue
		}
		if _, err := w.Place(ctx, pos, spec); err != nil {
			telemetry.RecordError(span, err)
			return res, fmt.Errorf("place %s: %w", pos, err)
		}
		res.Placed++
	}

	telemetry.LoggerWithTrace(ctx, slog.Default()).Info("layout: applied",
		slog.String("layout", l.Name),
		slog.Int("placed", res.Placed),
		slog.Int("removed", res.Removed),
		slog.Int("unchanged", res.Unchanged),
	)
	return res, nil
}

// Capture describes every tile of w as a layout.
func Capture(w *pipenet.World, name string) *Layout {
	tiles := w.Tiles()
	l := &Layout{Name: name, Tiles: make([]TileSpec, 0, len(tiles))}
	for _, t := range tiles {
		l.Tiles = append(l.Tiles, FromTile(t))
	}
	return l
}

// Sorted returns a copy of l with tiles ordered by position.
func Sorted(l *Layout) *Layout {
	out := &Layout{Name: l.Name, Tiles: slices.Clone(l.Tiles)}
	slices.SortFunc(out.Tiles, func(a, b TileSpec) int { return a.Pos().Compare(b.Pos()) })
	return out
}
