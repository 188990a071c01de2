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
	"fmt"
	"sync"
	"time"
)

// hops is a minimal routing info: path length, summed on merge.
type hops int

func (h hops) Merge(other hops) hops { return h + other }

func compareHops(a, b *RoutedNode[hops]) int {
	return int(a.Info) - int(b.Info)
}

// world is the external owner of test elements. Adjacency is stored per
// element so tests can break symmetry on purpose.
type world struct {
	links map[Element[hops]][]Element[hops]
}

func newWorld() *world {
	return &world{links: make(map[Element[hops]][]Element[hops])}
}

func (w *world) linkOneWay(a, b Element[hops]) {
	for _, x := range w.links[a] {
		if x == b {
			return
		}
	}
	w.links[a] = append(w.links[a], b)
}

func (w *world) unlinkOneWay(a, b Element[hops]) {
	list := w.links[a]
	for i, x := range list {
		if x == b {
			w.links[a] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (w *world) link(a, b Element[hops]) {
	w.linkOneWay(a, b)
	w.linkOneWay(b, a)
}

func (w *world) unlink(a, b Element[hops]) {
	w.unlinkOneWay(a, b)
	w.unlinkOneWay(b, a)
}

// isolate drops every link touching e.
func (w *world) isolate(e Element[hops]) {
	for _, nb := range append([]Element[hops](nil), w.links[e]...) {
		w.unlink(e, nb)
	}
}

// chain links consecutive elements.
func (w *world) chain(elems ...Element[hops]) {
	for i := 1; i < len(elems); i++ {
		w.link(elems[i-1], elems[i])
	}
}

// node is a plain element.
type node struct {
	BaseElement[hops]
	name  string
	w     *world
	self  Element[hops]
	comps []Component

	added   []string
	removed []string
}

func newNode(w *world, name string) *node {
	n := &node{name: name, w: w}
	n.self = n
	return n
}

func (n *node) Neighbours() []Element[hops] {
	return append([]Element[hops](nil), n.w.links[n.self]...)
}

func (n *node) OnNeighbourAdded(nb Element[hops]) {
	n.added = append(n.added, fmt.Sprint(nb))
}

func (n *node) OnNeighbourRemoved(nb Element[hops]) {
	n.removed = append(n.removed, fmt.Sprint(nb))
}

func (n *node) Components() []Component { return n.comps }

func (n *node) String() string { return n.name }

// machine is a notable element with scripted routes.
type machine struct {
	node
	endpoint bool
	routes   []RoutedNode[hops]
}

func newMachine(w *world, name string, endpoint bool) *machine {
	m := &machine{endpoint: endpoint}
	m.name = name
	m.w = w
	m.self = m
	return m
}

func (m *machine) IsRouteEndpoint() bool { return m.endpoint }

func (m *machine) RoutedNeighbours() []RoutedNode[hops] {
	return append([]RoutedNode[hops](nil), m.routes...)
}

// recorder captures diagnostics.
type recorder struct {
	mu         sync.Mutex
	violations []*ContractViolation
	timings    map[Operation]int
}

func newRecorder() *recorder {
	return &recorder{timings: make(map[Operation]int)}
}

func (r *recorder) ContractViolation(_ context.Context, v *ContractViolation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, v)
}

func (r *recorder) Timing(_ context.Context, op Operation, _ time.Duration, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings[op]++
}

type fixture struct {
	ctx     context.Context
	w       *world
	g       *Grid[hops]
	diag    *recorder
	created []NetworkRef
	removed []NetworkRef
}

func newFixture() *fixture {
	f := &fixture{ctx: context.Background(), w: newWorld(), diag: newRecorder()}
	f.g = New(Options[hops]{
		Name:             "test",
		CompareRoutes:    compareHops,
		Diagnostics:      f.diag,
		OnNetworkCreated: func(n *Network[hops]) { f.created = append(f.created, n.Ref()) },
		OnNetworkRemoved: func(n *Network[hops]) { f.removed = append(f.removed, n.Ref()) },
	})
	return f
}

func (f *fixture) nodes(names ...string) []*node {
	out := make([]*node, len(names))
	for i, name := range names {
		out[i] = newNode(f.w, name)
	}
	return out
}

func (f *fixture) add(elems ...Element[hops]) {
	for _, e := range elems {
		f.g.AddElement(f.ctx, e)
	}
}

func elems[E Element[hops]](in ...E) []Element[hops] {
	out := make([]Element[hops], len(in))
	for i, e := range in {
		out[i] = e
	}
	return out
}
