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
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/tesseract/services/grid/pipenet"
	"github.com/AleutianAI/tesseract/services/grid/telemetry"
)

// unionFind groups keys into components, with path compression and union
// by size.
type unionFind[K comparable] struct {
	parent map[K]K
	size   map[K]int
}

func newUnionFind[K comparable](keys []K) *unionFind[K] {
	uf := &unionFind[K]{
		parent: make(map[K]K, len(keys)),
		size:   make(map[K]int, len(keys)),
	}
	for _, k := range keys {
		uf.parent[k] = k
		uf.size[k] = 1
	}
	return uf
}

func (uf *unionFind[K]) find(k K) K {
	root := k
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[k] != root {
		next := uf.parent[k]
		uf.parent[k] = root
		k = next
	}
	return root
}

func (uf *unionFind[K]) union(a, b K) bool {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return false
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
	return true
}

// components returns the groups in order of each group's first key.
func (uf *unionFind[K]) components(keys []K) [][]K {
	index := make(map[K]int)
	var out [][]K
	for _, k := range keys {
		root := uf.find(k)
		i, ok := index[root]
		if !ok {
			i = len(out)
			index[root] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], k)
	}
	return out
}

// BulkResult summarizes a bulk load.
type BulkResult struct {
	Tiles    int           `json:"tiles"`
	Networks int           `json:"networks"`
	Elapsed  time.Duration `json:"elapsed"`
}

// BulkLoad fills an empty world with l without running merges.
//
// Description:
//
//	Every tile is staged first so neighbour queries see the whole layout.
//	Connected components are computed with union-find over the tiles'
//	reported neighbours; each becomes one network populated through
//	AddElementQuietly. Adjacency is then seeded with RefreshNeighbours.
//	The result is the same partition incremental placement would build,
//	without the walk and subsume work per tile.
//
// Outputs:
//
//	BulkResult - Tile and network counts.
//	error - ErrWorldNotEmpty, or a validation error. Nothing is staged if
//	        validation fails.
func BulkLoad(ctx context.Context, w *pipenet.World, l *Layout) (BulkResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "tesseract.layout", "layout.BulkLoad")
	defer span.End()

	start := time.Now()
	if w.Len() != 0 {
		return BulkResult{}, fmt.Errorf("%w: %d tiles", ErrWorldNotEmpty, w.Len())
	}
	if err := l.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return BulkResult{}, err
	}

	tiles := make([]pipenet.Tile, 0, len(l.Tiles))
	for _, ts := range Sorted(l).Tiles {
		spec, err := ts.Spec()
		if err != nil {
			return BulkResult{}, err
		}
		t, err := w.Stage(ts.Pos(), spec)
		if err != nil {
			return BulkResult{}, err
		}
		tiles = append(tiles, t)
	}

	uf := newUnionFind(tiles)
	for _, t := range tiles {
		for _, nb := range t.Neighbours() {
			uf.union(t, nb.(pipenet.Tile))
		}
	}

	g := w.Grid()
	groups := uf.components(tiles)
	for _, group := range groups {
		n := g.CreateNetwork()
		for _, t := range group {
			g.AddElementQuietly(ctx, n, t)
		}
	}
	for _, t := range tiles {
		g.RefreshNeighbours(ctx, t)
	}

	res := BulkResult{Tiles: len(tiles), Networks: len(groups), Elapsed: time.Since(start)}
	span.SetAttributes(
		attribute.Int("layout.tiles", res.Tiles),
		attribute.Int("layout.networks", res.Networks),
	)
	return res, nil
}
