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
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Options configures a Grid.
type Options[R RoutingInfo[R]] struct {
	// Name labels the grid in logs and spans.
	Name string

	// CompareRoutes orders each source's route list. Required.
	CompareRoutes func(a, b *RoutedNode[R]) int

	// OnNetworkCreated is called after a network is registered.
	OnNetworkCreated func(n *Network[R])

	// OnNetworkRemoved is called after a network is destroyed, either because
	// its last element left or because it was subsumed.
	OnNetworkRemoved func(n *Network[R])

	// Diagnostics receives timings and contract violations. Nil disables them.
	Diagnostics Diagnostics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Stats is a point-in-time summary of a grid.
type Stats struct {
	Vertices  int `json:"vertices"`
	Edges     int `json:"edges"`
	Networks  int `json:"networks"`
	Endpoints int `json:"endpoints"`
}

type networkSlot[R RoutingInfo[R]] struct {
	network    *Network[R]
	generation uint32
}

// Grid is the incremental connectivity maintainer.
//
// Description:
//
//	Owns the vertex set, the adjacency relation derived from the elements'
//	reported neighbours, and an arena of live networks. Every mutation keeps
//	the partition invariant: each vertex belongs to exactly one network and
//	each network is one connected component of the adjacency relation.
//
// Thread Safety:
//
//	Not safe for concurrent use. All calls, including Tick, must be
//	serialized by the caller (see package sim). Mutations must not be issued
//	from inside element callbacks.
type Grid[R RoutingInfo[R]] struct {
	name      string
	compare   func(a, b *RoutedNode[R]) int
	onCreated func(*Network[R])
	onRemoved func(*Network[R])
	diag      Diagnostics
	logger    *slog.Logger

	vertices  *orderedSet[Element[R]]
	adjacency map[Element[R]]*orderedSet[Element[R]]

	slots []networkSlot[R]
	free  []uint32
	live  int
}

// New creates an empty grid. It panics if opts.CompareRoutes is nil.
func New[R RoutingInfo[R]](opts Options[R]) *Grid[R] {
	if opts.CompareRoutes == nil {
		panic("grid: Options.CompareRoutes is required")
	}
	diag := opts.Diagnostics
	if diag == nil {
		diag = nopDiagnostics{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Name != "" {
		logger = logger.With(slog.String("grid", opts.Name))
	}
	return &Grid[R]{
		name:      opts.Name,
		compare:   opts.CompareRoutes,
		onCreated: opts.OnNetworkCreated,
		onRemoved: opts.OnNetworkRemoved,
		diag:      diag,
		logger:    logger,
		vertices:  newOrderedSet[Element[R]](64),
		adjacency: make(map[Element[R]]*orderedSet[Element[R]], 64),
	}
}

// AddElement registers e and merges it into the topology.
//
// Description:
//
//	Any previous registration of e is removed first, so re-adding an
//	element resets it. The element's adjacency is refreshed, then a bounded
//	walk from e collects the un-networked region it belongs to and the
//	networks touching that region:
//
//	  - none: a new network is created
//	  - one: the region joins it
//	  - several: the largest absorbs the others (ties go to the lowest arena
//	    index) and the region joins it
//
//	Back-references are set before each element is added to its network.
//
// Inputs:
//
//	ctx - Context for tracing and diagnostics.
//	e - The element. Nil is ignored.
//
// Thread Safety: Not safe for concurrent use.
func (g *Grid[R]) AddElement(ctx context.Context, e Element[R]) {
	if e == nil {
		return
	}
	ctx, span := tracer.Start(ctx, "Grid.AddElement",
		trace.WithAttributes(attribute.String("grid.element", fmt.Sprint(e))),
	)
	defer span.End()

	g.RemoveElement(ctx, e)

	g.vertices.add(e)
	g.updateNeighbours(ctx, e, newRefresh[R]())

	start := time.Now()
	var adjacent []*Network[R]
	discovered := g.walk(e, &adjacent, false)
	g.diag.Timing(ctx, OpWalk, time.Since(start), discovered.len())

	var target *Network[R]
	switch len(adjacent) {
	case 0:
		target = g.CreateNetwork()
	case 1:
		target = adjacent[0]
	default:
		target = adjacent[0]
		for _, n := range adjacent[1:] {
			if n.Len() > target.Len() || (n.Len() == target.Len() && n.ref.index < target.ref.index) {
				target = n
			}
		}
		start = time.Now()
		for _, n := range adjacent {
			if n != target {
				g.Subsume(ctx, target, n)
			}
		}
		g.diag.Timing(ctx, OpSubsume, time.Since(start), len(adjacent)-1)
	}

	for _, d := range discovered.items {
		if d.NetworkRef() != target.ref {
			d.SetNetworkRef(target.ref)
			target.addElement(d)
		}
	}

	span.SetAttributes(
		attribute.String("grid.network", target.ref.String()),
		attribute.Int("grid.adjacent_networks", len(adjacent)),
		attribute.Int("grid.discovered", discovered.len()),
	)
}

// AddElementQuietly registers e directly into n without refreshing adjacency
// or evaluating merges.
//
// Description:
//
//	Meant for bulk loads where the caller already knows the components.
//	The caller is responsible for the partition invariant, and is expected
//	to call RefreshNeighbours for every element once the load is done.
//	An element that already belongs to n is left in place; one registered
//	elsewhere is quietly removed first. A network that is not live in this
//	grid is rejected with a warning.
func (g *Grid[R]) AddElementQuietly(ctx context.Context, n *Network[R], e Element[R]) {
	if e == nil || n == nil {
		return
	}
	if g.Network(n.ref) != n {
		g.logger.Warn("grid: quiet add into a network that is not live",
			slog.String("network", n.ref.String()),
			slog.Any("element", e),
		)
		return
	}
	if g.vertices.has(e) {
		if e.NetworkRef() == n.ref {
			return
		}
		g.RemoveElementQuietly(ctx, e)
	}
	g.vertices.add(e)
	e.SetNetworkRef(n.ref)
	n.addElement(e)
}

// RemoveElement unregisters e and splits its network if e was an
// articulation element.
//
// Description:
//
//	No-op if e is not registered. If the network is left empty it is
//	destroyed. Otherwise the former neighbours refresh their adjacency and,
//	when e had two or more of them, each neighbour's clump is walked through
//	the whole network. The largest clump keeps the network (ties go to the
//	clump found first); every other clump moves to a new network.
//
// Inputs:
//
//	ctx - Context for tracing and diagnostics.
//	e - The element. Unknown and nil elements are ignored.
//
// Thread Safety: Not safe for concurrent use.
func (g *Grid[R]) RemoveElement(ctx context.Context, e Element[R]) {
	if e == nil || !g.vertices.has(e) {
		return
	}
	ctx, span := tracer.Start(ctx, "Grid.RemoveElement",
		trace.WithAttributes(attribute.String("grid.element", fmt.Sprint(e))),
	)
	defer span.End()

	g.vertices.remove(e)
	neighbours := g.adjacency[e]
	delete(g.adjacency, e)

	network := g.Network(e.NetworkRef())
	if network != nil {
		network.removeElement(e)
	}
	e.SetNetworkRef(NetworkRef{})

	if network != nil && network.Len() == 0 {
		g.destroyNetwork(network)
		return
	}

	r := newRefresh[R](e)
	for _, nb := range neighbours.values() {
		g.updateNeighbours(ctx, nb, r)
	}

	if network == nil || neighbours.len() <= 1 {
		return
	}

	start := time.Now()
	var clumps []*orderedSet[Element[R]]
	seen := make(map[Element[R]]struct{}, network.Len())
	for _, nb := range neighbours.items {
		if _, ok := seen[nb]; ok {
			continue
		}
		clump := g.walk(nb, nil, true)
		if clump.len() == 0 {
			continue
		}
		clumps = append(clumps, clump)
		for _, c := range clump.items {
			seen[c] = struct{}{}
		}
	}
	if len(clumps) <= 1 {
		return
	}

	biggest := 0
	for i, clump := range clumps {
		if clump.len() > clumps[biggest].len() {
			biggest = i
		}
	}
	for i, clump := range clumps {
		if i == biggest {
			continue
		}
		for _, c := range clump.items {
			network.removeElement(c)
		}
		split := g.CreateNetwork()
		for _, c := range clump.items {
			c.SetNetworkRef(split.ref)
			split.addElement(c)
		}
	}
	g.diag.Timing(ctx, OpSplit, time.Since(start), len(clumps)-1)
	span.SetAttributes(attribute.Int("grid.split_networks", len(clumps)-1))
}

// RemoveElementQuietly unregisters e and refreshes its former neighbours
// without evaluating splits. The caller is responsible for the partition
// invariant. An emptied network is destroyed.
func (g *Grid[R]) RemoveElementQuietly(ctx context.Context, e Element[R]) {
	if e == nil || !g.vertices.has(e) {
		return
	}
	network := g.Network(e.NetworkRef())
	if network != nil {
		network.removeElement(e)
	}
	g.vertices.remove(e)
	e.SetNetworkRef(NetworkRef{})

	neighbours := g.adjacency[e]
	delete(g.adjacency, e)
	r := newRefresh[R](e)
	for _, nb := range neighbours.values() {
		g.updateNeighbours(ctx, nb, r)
	}

	if network != nil && network.Len() == 0 {
		g.destroyNetwork(network)
	}
}

// Subsume moves every element of src into dest and destroys src.
//
// Both networks must be live in this grid; otherwise, or when they are the
// same network, the call is a no-op.
func (g *Grid[R]) Subsume(ctx context.Context, dest, src *Network[R]) {
	if dest == nil || src == nil || dest == src {
		return
	}
	if g.Network(dest.ref) != dest || g.Network(src.ref) != src {
		return
	}
	_, span := tracer.Start(ctx, "Grid.Subsume",
		trace.WithAttributes(
			attribute.String("grid.dest", dest.ref.String()),
			attribute.String("grid.src", src.ref.String()),
			attribute.Int("grid.moved", src.Len()),
		),
	)
	defer span.End()

	for _, e := range src.Elements() {
		src.removeElement(e)
		e.SetNetworkRef(dest.ref)
		dest.addElement(e)
	}
	g.destroyNetwork(src)
}

// RefreshNeighbours re-reads e's reported neighbours and updates the
// adjacency relation, cascading into neighbours whose edges changed. It does
// not merge or split networks; callers that changed e's connectivity should
// re-add it with AddElement instead.
func (g *Grid[R]) RefreshNeighbours(ctx context.Context, e Element[R]) {
	if e == nil {
		return
	}
	g.updateNeighbours(ctx, e, newRefresh[R]())
}

// Tick ticks every live network in arena order and returns how many of them
// rebuilt their route tables.
func (g *Grid[R]) Tick(ctx context.Context) int {
	rebuilt := 0
	for i := range g.slots {
		if n := g.slots[i].network; n != nil && n.Tick(ctx) {
			rebuilt++
		}
	}
	return rebuilt
}

// CreateNetwork registers a new empty network, for use with
// AddElementQuietly. An empty network is only destroyed when an element
// leaves it, so callers must populate it.
func (g *Grid[R]) CreateNetwork() *Network[R] {
	var index uint32
	if k := len(g.free); k > 0 {
		index = g.free[k-1]
		g.free = g.free[:k-1]
	} else {
		if len(g.slots) == math.MaxUint32 {
			panic("grid: network arena exhausted")
		}
		index = uint32(len(g.slots))
		g.slots = append(g.slots, networkSlot[R]{})
	}

	slot := &g.slots[index]
	slot.generation++
	if slot.generation == 0 {
		slot.generation = 1
	}
	n := newNetwork(NetworkRef{index: index, generation: slot.generation}, g.compare, g.diag)
	slot.network = n
	g.live++

	g.logger.Debug("grid: network created", slog.String("network", n.ref.String()))
	if g.onCreated != nil {
		g.onCreated(n)
	}
	return n
}

func (g *Grid[R]) destroyNetwork(n *Network[R]) {
	slot := &g.slots[n.ref.index]
	slot.network = nil
	g.free = append(g.free, n.ref.index)
	g.live--

	g.logger.Debug("grid: network removed", slog.String("network", n.ref.String()))
	if g.onRemoved != nil {
		g.onRemoved(n)
	}
}

// Network resolves ref, or returns nil if it names no live network.
func (g *Grid[R]) Network(ref NetworkRef) *Network[R] {
	if ref.IsZero() || int(ref.index) >= len(g.slots) {
		return nil
	}
	slot := g.slots[ref.index]
	if slot.network == nil || slot.generation != ref.generation {
		return nil
	}
	return slot.network
}

// NetworkOf returns the network e belongs to, or nil.
func (g *Grid[R]) NetworkOf(e Element[R]) *Network[R] {
	if e == nil {
		return nil
	}
	return g.Network(e.NetworkRef())
}

// Networks returns the live networks in arena order.
func (g *Grid[R]) Networks() []*Network[R] {
	out := make([]*Network[R], 0, g.live)
	for i := range g.slots {
		if n := g.slots[i].network; n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Contains reports whether e is a registered vertex.
func (g *Grid[R]) Contains(e Element[R]) bool {
	return e != nil && g.vertices.has(e)
}

// Neighbours returns the recorded adjacency of e.
func (g *Grid[R]) Neighbours(e Element[R]) []Element[R] {
	return g.adjacency[e].values()
}

// Stats summarizes the grid.
func (g *Grid[R]) Stats() Stats {
	s := Stats{Vertices: g.vertices.len(), Networks: g.live}
	directed := 0
	for _, set := range g.adjacency {
		directed += set.len()
	}
	s.Edges = directed / 2
	for i := range g.slots {
		if n := g.slots[i].network; n != nil {
			s.Endpoints += n.tracker.endpoints.len()
		}
	}
	return s
}

// CheckInvariants verifies the partition and adjacency invariants.
//
// Description:
//
//	Checks that every vertex points at a live network containing it, that
//	every network member is a vertex pointing back at it, that no edge
//	between vertices crosses networks, that every edge between vertices is
//	symmetric, and that every network is connected. This walks the whole
//	grid and is meant for tests and the verify endpoint.
//
// Outputs:
//
//	error - Nil if all invariants hold; otherwise every violation joined,
//	        each wrapping ErrPartitionViolation or ErrContractViolation.
func (g *Grid[R]) CheckInvariants() error {
	var errs []error

	for _, v := range g.vertices.items {
		n := g.Network(v.NetworkRef())
		switch {
		case n == nil:
			errs = append(errs, fmt.Errorf("%w: %v has no live network (%s)", ErrPartitionViolation, v, v.NetworkRef()))
		case !n.Contains(v):
			errs = append(errs, fmt.Errorf("%w: %v is not a member of %s", ErrPartitionViolation, v, n.ref))
		}
		for _, nb := range g.edges(v) {
			if !g.vertices.has(nb) {
				continue
			}
			if nb.NetworkRef() != v.NetworkRef() {
				errs = append(errs, fmt.Errorf("%w: edge %v -> %v crosses %s and %s",
					ErrPartitionViolation, v, nb, v.NetworkRef(), nb.NetworkRef()))
			}
			if !g.adjacency[nb].has(v) {
				errs = append(errs, &ContractViolation{Kind: ViolationEdgeMissing, A: v, B: nb})
			}
		}
	}

	for _, n := range g.Networks() {
		if n.Len() == 0 {
			errs = append(errs, fmt.Errorf("%w: %s is empty", ErrPartitionViolation, n.ref))
			continue
		}
		for _, m := range n.elements.items {
			if !g.vertices.has(m) {
				errs = append(errs, fmt.Errorf("%w: %s holds unregistered %v", ErrPartitionViolation, n.ref, m))
			} else if m.NetworkRef() != n.ref {
				errs = append(errs, fmt.Errorf("%w: %s holds %v which points at %s",
					ErrPartitionViolation, n.ref, m, m.NetworkRef()))
			}
		}
		if reached := g.reachableWithin(n); reached != n.Len() {
			errs = append(errs, fmt.Errorf("%w: %s is disconnected (%d of %d reachable)",
				ErrPartitionViolation, n.ref, reached, n.Len()))
		}
	}

	return errors.Join(errs...)
}

func (g *Grid[R]) reachableWithin(n *Network[R]) int {
	start := n.elements.items[0]
	seen := map[Element[R]]struct{}{start: {}}
	queue := []Element[R]{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range g.edges(cur) {
			if _, ok := seen[nb]; ok || !n.Contains(nb) {
				continue
			}
			seen[nb] = struct{}{}
			queue = append(queue, nb)
		}
	}
	return len(seen)
}

// edges returns e's recorded adjacency without copying.
func (g *Grid[R]) edges(e Element[R]) []Element[R] {
	if set := g.adjacency[e]; set != nil {
		return set.items
	}
	return nil
}

// walk runs a breadth-first search over the adjacency relation from start
// and returns every vertex it reached.
//
// An element is expanded when it is start, when recurse is set, or when it
// has no live network. With networks non-nil, the distinct live networks of
// the reached elements are appended in discovery order.
func (g *Grid[R]) walk(start Element[R], networks *[]*Network[R], recurse bool) *orderedSet[Element[R]] {
	discovered := newOrderedSet[Element[R]](8)
	var seenNetworks map[*Network[R]]struct{}
	if networks != nil {
		seenNetworks = make(map[*Network[R]]struct{})
	}

	queue := []Element[R]{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if !g.vertices.has(cur) || !discovered.add(cur) {
			continue
		}

		n := g.Network(cur.NetworkRef())
		if networks != nil && n != nil {
			if _, ok := seenNetworks[n]; !ok {
				seenNetworks[n] = struct{}{}
				*networks = append(*networks, n)
			}
		}
		if cur == start || recurse || n == nil {
			queue = append(queue, g.edges(cur)...)
		}
	}
	return discovered
}

// refresh is the state of one cascading adjacency refresh.
type refresh[R RoutingInfo[R]] struct {
	visited  map[Element[R]]struct{}
	notified map[edgeChange[R]]struct{}
}

type edgeChange[R RoutingInfo[R]] struct {
	a, b  Element[R]
	added bool
}

func newRefresh[R RoutingInfo[R]](skip ...Element[R]) *refresh[R] {
	r := &refresh[R]{
		visited:  make(map[Element[R]]struct{}),
		notified: make(map[edgeChange[R]]struct{}),
	}
	for _, e := range skip {
		r.visited[e] = struct{}{}
	}
	return r
}

// once reports whether the change of edge a-b has not been notified yet in
// this refresh, and records it. Both endpoints of an edge refresh in the
// same cascade, so each would otherwise fire the pair of callbacks.
func (r *refresh[R]) once(a, b Element[R], added bool) bool {
	if _, ok := r.notified[edgeChange[R]{a: b, b: a, added: added}]; ok {
		return false
	}
	k := edgeChange[R]{a: a, b: b, added: added}
	if _, ok := r.notified[k]; ok {
		return false
	}
	r.notified[k] = struct{}{}
	return true
}

// updateNeighbours replaces e's recorded adjacency with its reported
// neighbours and cascades into every neighbour whose edge appeared or
// vanished. Each element is refreshed at most once per cascade.
func (g *Grid[R]) updateNeighbours(ctx context.Context, e Element[R], r *refresh[R]) {
	if _, ok := r.visited[e]; ok {
		return
	}
	r.visited[e] = struct{}{}

	reported := e.Neighbours()
	current := newOrderedSet[Element[R]](len(reported))
	for _, nb := range reported {
		if nb == nil || nb == e {
			continue
		}
		current.add(nb)
	}

	old := g.adjacency[e]
	if current.len() > 0 {
		g.adjacency[e] = current
	} else {
		delete(g.adjacency, e)
	}

	for _, nb := range old.values() {
		if current.has(nb) {
			continue
		}
		g.updateNeighbours(ctx, nb, r)
		if g.adjacency[nb].has(e) {
			g.diag.ContractViolation(ctx, &ContractViolation{Kind: ViolationEdgeKept, A: e, B: nb})
		}
		if r.once(e, nb, false) {
			nb.OnNeighbourRemoved(e)
			e.OnNeighbourRemoved(nb)
		}
	}

	for _, nb := range current.values() {
		if old.has(nb) {
			continue
		}
		g.updateNeighbours(ctx, nb, r)
		if !g.adjacency[nb].has(e) {
			g.diag.ContractViolation(ctx, &ContractViolation{Kind: ViolationEdgeMissing, A: e, B: nb})
		}
		if r.once(e, nb, true) {
			nb.OnNeighbourAdded(e)
			e.OnNeighbourAdded(nb)
		}
	}
}
