// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package grid

import (
	"context"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// routeKey identifies equal route entries for interning.
type routeKey[R RoutingInfo[R]] struct {
	dest NotableElement[R]
	info R
}

// RouteTracker keeps the route table of one network.
//
// Description:
//
//	Tracks which members are notable elements flagged as route endpoints.
//	UpdateEdges asks every endpoint for its routed neighbours, sorts each
//	list with the network kind's order and interns equal (destination, info)
//	entries across all sources, so symmetric paths share one *RoutedNode.
//
// Thread Safety:
//
//	Not safe for concurrent use; owned by its Network.
type RouteTracker[R RoutingInfo[R]] struct {
	network   *Network[R]
	compare   func(a, b *RoutedNode[R]) int
	diag      Diagnostics
	endpoints *orderedSet[NotableElement[R]]
	routes    map[NotableElement[R]][]*RoutedNode[R]
	updates   int
}

func newRouteTracker[R RoutingInfo[R]](n *Network[R], compare func(a, b *RoutedNode[R]) int, diag Diagnostics) *RouteTracker[R] {
	return &RouteTracker[R]{
		network:   n,
		compare:   compare,
		diag:      diag,
		endpoints: newOrderedSet[NotableElement[R]](4),
		routes:    make(map[NotableElement[R]][]*RoutedNode[R]),
	}
}

// Paths returns a copy of the sorted route list of source, or nil if it has
// none. The nodes are interned and shared between sources; treat them as
// read-only.
func (t *RouteTracker[R]) Paths(source NotableElement[R]) []*RoutedNode[R] {
	return slices.Clone(t.routes[source])
}

// Endpoints returns a snapshot of the tracked endpoints.
func (t *RouteTracker[R]) Endpoints() []NotableElement[R] {
	return t.endpoints.values()
}

// IsEndpoint reports whether e is tracked as a route endpoint.
func (t *RouteTracker[R]) IsEndpoint(e NotableElement[R]) bool {
	return t.endpoints.has(e)
}

// Updates returns how many times UpdateEdges has run.
func (t *RouteTracker[R]) Updates() int {
	return t.updates
}

// UpdateEdges rebuilds the route table from the endpoints' routed neighbours.
//
// Description:
//
//	Clears the table, recomputes and sorts every endpoint's list, stores the
//	non-empty ones, then walks the lists in endpoint order and replaces each
//	entry equal to an earlier one with the first-seen instance.
//
// Inputs:
//
//	ctx - Context for tracing and diagnostics.
//
// Complexity: O(E log E) over the total number of route entries.
func (t *RouteTracker[R]) UpdateEdges(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "RouteTracker.UpdateEdges",
		trace.WithAttributes(
			attribute.String("grid.network", t.network.ref.String()),
			attribute.Int("grid.endpoints", t.endpoints.len()),
		),
	)
	defer span.End()

	start := time.Now()
	t.updates++
	clear(t.routes)

	total := 0
	for _, source := range t.endpoints.items {
		paths := t.makePaths(source)
		if len(paths) > 0 {
			t.routes[source] = paths
			total += len(paths)
		}
	}

	interned := make(map[routeKey[R]]*RoutedNode[R], total)
	for _, source := range t.endpoints.items {
		list, ok := t.routes[source]
		if !ok {
			continue
		}
		for j, node := range list {
			key := routeKey[R]{dest: node.Dest, info: node.Info}
			if first, seen := interned[key]; seen {
				list[j] = first
			} else {
				interned[key] = node
			}
		}
	}

	span.SetAttributes(
		attribute.Int("grid.routes", total),
		attribute.Int("grid.unique_routes", len(interned)),
	)
	t.diag.Timing(ctx, OpUpdateEdges, time.Since(start), total)
}

func (t *RouteTracker[R]) makePaths(source NotableElement[R]) []*RoutedNode[R] {
	raw := source.RoutedNeighbours()
	if len(raw) == 0 {
		return nil
	}
	paths := make([]*RoutedNode[R], len(raw))
	for i := range raw {
		node := raw[i]
		paths[i] = &node
	}
	slices.SortStableFunc(paths, t.compare)
	return paths
}

func (t *RouteTracker[R]) onElementAdded(e Element[R]) {
	if notable, ok := e.(NotableElement[R]); ok && notable.IsRouteEndpoint() {
		t.endpoints.add(notable)
	}
}

// onElementRemoved drops e whatever its current endpoint flag. Its table
// entry stays until the next UpdateEdges.
func (t *RouteTracker[R]) onElementRemoved(e Element[R]) {
	if notable, ok := e.(NotableElement[R]); ok {
		t.endpoints.remove(notable)
	}
}
