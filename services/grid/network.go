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

import "context"

// Network is one maximal connected component of the grid.
//
// A network is created and destroyed by its Grid only. It owns its element
// set, a capability registry mirroring the components its members publish,
// and a RouteTracker. Element-set changes mark the network dirty; the next
// Tick rebuilds the route table once, however many changes happened.
type Network[R RoutingInfo[R]] struct {
	ref        NetworkRef
	elements   *orderedSet[Element[R]]
	components componentRegistry
	tracker    *RouteTracker[R]
	dirty      bool
}

func newNetwork[R RoutingInfo[R]](ref NetworkRef, compare func(a, b *RoutedNode[R]) int, diag Diagnostics) *Network[R] {
	n := &Network[R]{
		ref:        ref,
		elements:   newOrderedSet[Element[R]](8),
		components: make(componentRegistry),
	}
	n.tracker = newRouteTracker(n, compare, diag)
	return n
}

// Ref returns the reference elements of this network carry.
func (n *Network[R]) Ref() NetworkRef {
	return n.ref
}

// Len returns the number of member elements.
func (n *Network[R]) Len() int {
	return n.elements.len()
}

// Contains reports whether e is a member.
func (n *Network[R]) Contains(e Element[R]) bool {
	return n.elements.has(e)
}

// Elements returns a snapshot of the member elements.
func (n *Network[R]) Elements() []Element[R] {
	return n.elements.values()
}

// Tracker returns the network's route tracker.
func (n *Network[R]) Tracker() *RouteTracker[R] {
	return n.tracker
}

// Dirty reports whether the member set changed since the last Tick.
func (n *Network[R]) Dirty() bool {
	return n.dirty
}

// MarkDirty forces the next Tick to rebuild the route table, for
// collaborators whose routes changed without a membership change.
func (n *Network[R]) MarkDirty() {
	n.dirty = true
}

// AddComponent registers a component directly on the network, outside of
// any member element.
func (n *Network[R]) AddComponent(c Component) {
	n.components.add(c)
}

// RemoveComponent unregisters a component added with AddComponent or
// published by a member.
func (n *Network[R]) RemoveComponent(c Component) {
	n.components.remove(c)
}

// ComponentKeys returns the names of every key with at least one
// registered implementation, with their implementation counts.
func (n *Network[R]) ComponentKeys() map[string]int {
	out := make(map[string]int, len(n.components))
	for k, set := range n.components {
		out[k.name] += set.len()
	}
	return out
}

// Tick rebuilds the route table if the network changed since the last tick.
// It returns true when a rebuild happened.
func (n *Network[R]) Tick(ctx context.Context) bool {
	if !n.dirty {
		return false
	}
	n.dirty = false
	n.tracker.UpdateEdges(ctx)
	return true
}

// addElement adds e and folds its components into the registry. The
// element's back-reference must already point at n.
func (n *Network[R]) addElement(e Element[R]) {
	if !n.elements.add(e) {
		return
	}
	n.tracker.onElementAdded(e)
	n.dirty = true
	for _, c := range e.Components() {
		n.components.add(c)
	}
}

// removeElement removes e. Its components are only withdrawn while e still
// points at n; once it has moved on, they belong to the new network.
func (n *Network[R]) removeElement(e Element[R]) {
	if !n.elements.remove(e) {
		return
	}
	n.tracker.onElementRemoved(e)
	n.dirty = true
	if e.NetworkRef() == n.ref {
		for _, c := range e.Components() {
			n.components.remove(c)
		}
	}
}
