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

import "fmt"

// RoutingInfo is the path metadata carried on a route between two notable
// elements (distance, throughput, ...).
//
// Merge combines the info of two consecutive route segments and must be
// associative. The grid never calls Merge itself; collaborators use it when
// composing multi-hop routes for RoutedNeighbours. Values must be comparable
// so equal routes can be interned by the RouteTracker.
type RoutingInfo[R any] interface {
	comparable
	Merge(other R) R
}

// Element is a vertex of the grid: a pipe, machine, junction, or anything
// else that participates in a factory network.
//
// Element implementations must have comparable dynamic types (in practice,
// pointers) because the grid keys its bookkeeping by element identity.
type Element[R RoutingInfo[R]] interface {
	// Neighbours returns the elements currently adjacent to this one,
	// regardless of which network they belong to. It is called on every
	// adjacency refresh and must reflect the live world. The relation must be
	// symmetric: if A reports B then B must report A.
	Neighbours() []Element[R]

	// NetworkRef returns the element's current network back-reference.
	NetworkRef() NetworkRef

	// SetNetworkRef is called by the grid only.
	SetNetworkRef(ref NetworkRef)

	// OnNeighbourAdded is called after an adjacency edge to neighbour appeared.
	OnNeighbourAdded(neighbour Element[R])

	// OnNeighbourRemoved is called after an adjacency edge to neighbour vanished.
	OnNeighbourRemoved(neighbour Element[R])

	// Components returns the capabilities this element publishes to its
	// network. It must return the same set when the element joins and when it
	// leaves a network.
	Components() []Component
}

// NotableElement is an element that is also a routing endpoint.
type NotableElement[R RoutingInfo[R]] interface {
	Element[R]

	// IsRouteEndpoint reports whether the element currently acts as a route
	// endpoint. Only endpoints are tracked by the RouteTracker. The flag is
	// sampled when the element joins a network; re-add the element after
	// changing it.
	IsRouteEndpoint() bool

	// RoutedNeighbours returns the notable elements this one can reach,
	// each with its merged routing info. Computing them (pathfinding) is the
	// implementation's job.
	RoutedNeighbours() []RoutedNode[R]
}

// RoutedNode is one entry of a route table: a destination endpoint and the
// merged routing info needed to reach it.
type RoutedNode[R RoutingInfo[R]] struct {
	Dest NotableElement[R]
	Info R
}

// NetworkRef is a non-owning reference from an element to its network.
//
// It indexes the grid's network arena and carries the generation of the
// slot at the time the network was created. The zero value means "no
// network". A reference to a destroyed network never resolves, even if the
// slot has been reused.
type NetworkRef struct {
	index      uint32
	generation uint32
}

// IsZero reports whether the reference points at no network.
func (r NetworkRef) IsZero() bool {
	return r.generation == 0
}

// Index returns the arena slot of the referenced network.
func (r NetworkRef) Index() int {
	return int(r.index)
}

// Generation returns the slot generation of the referenced network.
func (r NetworkRef) Generation() int {
	return int(r.generation)
}

// String returns "network#<index>.<generation>" or "network#none".
func (r NetworkRef) String() string {
	if r.IsZero() {
		return "network#none"
	}
	return fmt.Sprintf("network#%d.%d", r.index, r.generation)
}

// BaseElement provides the bookkeeping every Element needs. Embed it in a
// concrete element type and implement Neighbours.
//
// Example:
//
//	type Pipe struct {
//	    grid.BaseElement[Route]
//	    pos Pos
//	}
//
//	func (p *Pipe) Neighbours() []grid.Element[Route] { ... }
type BaseElement[R RoutingInfo[R]] struct {
	ref NetworkRef
}

// NetworkRef implements Element.
func (b *BaseElement[R]) NetworkRef() NetworkRef {
	return b.ref
}

// SetNetworkRef implements Element.
func (b *BaseElement[R]) SetNetworkRef(ref NetworkRef) {
	b.ref = ref
}

// OnNeighbourAdded implements Element. It does nothing.
func (b *BaseElement[R]) OnNeighbourAdded(Element[R]) {}

// OnNeighbourRemoved implements Element. It does nothing.
func (b *BaseElement[R]) OnNeighbourRemoved(Element[R]) {}

// Components implements Element. It publishes nothing.
func (b *BaseElement[R]) Components() []Component {
	return nil
}
