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
	"cmp"

	"github.com/AleutianAI/tesseract/services/grid"
)

// Route is the routing info of a pipe network: how many tiles a path
// enters and the smallest capacity along it.
type Route struct {
	Hops     int `json:"hops"`
	Capacity int `json:"capacity"`
}

// Merge appends other to r.
func (r Route) Merge(other Route) Route {
	return Route{Hops: r.Hops + other.Hops, Capacity: min(r.Capacity, other.Capacity)}
}

// CompareRoutes orders routes by hops ascending, then capacity descending,
// then destination position.
func CompareRoutes(a, b *grid.RoutedNode[Route]) int {
	if c := cmp.Compare(a.Info.Hops, b.Info.Hops); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Info.Capacity, a.Info.Capacity); c != 0 {
		return c
	}
	return posOf(a.Dest).Compare(posOf(b.Dest))
}

func posOf(e grid.NotableElement[Route]) Pos {
	if t, ok := e.(Tile); ok {
		return t.Pos()
	}
	return Pos{}
}
