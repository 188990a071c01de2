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

// keyID is the identity of a component key. Two keys created with the same
// name are still distinct.
type keyID struct {
	name string
}

// Key is a typed handle for one kind of network-wide capability.
//
// Elements publish implementations under a key through Components, and any
// code holding the network can list every implementation published under
// that key with ComponentsOf.
//
// Example:
//
//	var ConsumerKey = grid.NewKey[Consumer]("consumer")
//
//	func (m *Machine) Components() []grid.Component {
//	    return []grid.Component{grid.Provide(ConsumerKey, Consumer(m))}
//	}
//
//	for _, c := range grid.ComponentsOf(network, ConsumerKey) {
//	    c.Accept(item)
//	}
type Key[T any] struct {
	id *keyID
}

// NewKey creates a new component key. Keys are usually package-level vars.
func NewKey[T any](name string) Key[T] {
	return Key[T]{id: &keyID{name: name}}
}

// Name returns the name the key was created with.
func (k Key[T]) Name() string {
	if k.id == nil {
		return ""
	}
	return k.id.name
}

// Component is a type-erased (key, implementation) pair.
type Component struct {
	key  *keyID
	impl any
}

// Provide pairs an implementation with its key. The implementation must be
// comparable (usually a pointer): the registry stores each implementation at
// most once per key.
func Provide[T any](key Key[T], impl T) Component {
	return Component{key: key.id, impl: impl}
}

// KeyName returns the name of the component's key.
func (c Component) KeyName() string {
	if c.key == nil {
		return ""
	}
	return c.key.name
}

// componentRegistry maps a key to the set of implementations published under it.
type componentRegistry map[*keyID]*orderedSet[any]

func (r componentRegistry) add(c Component) {
	if c.key == nil || c.impl == nil {
		return
	}
	set, ok := r[c.key]
	if !ok {
		set = newOrderedSet[any](1)
		r[c.key] = set
	}
	set.add(c.impl)
}

func (r componentRegistry) remove(c Component) {
	if c.key == nil || c.impl == nil {
		return
	}
	set, ok := r[c.key]
	if !ok {
		return
	}
	set.remove(c.impl)
	if set.len() == 0 {
		delete(r, c.key)
	}
}

// ComponentsOf returns every implementation published under key in network n.
// Order is unspecified. Returns nil when nothing is registered.
func ComponentsOf[T any, R RoutingInfo[R]](n *Network[R], key Key[T]) []T {
	if n == nil || key.id == nil {
		return nil
	}
	set, ok := n.components[key.id]
	if !ok {
		return nil
	}
	out := make([]T, 0, set.len())
	for _, impl := range set.items {
		if v, ok := impl.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
