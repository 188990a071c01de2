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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// star links every machine to a central pipe.
func star(f *fixture, ms ...*machine) *node {
	hub := newNode(f.w, "hub")
	for _, m := range ms {
		f.w.link(hub, m)
	}
	f.add(hub)
	for _, m := range ms {
		f.add(m)
	}
	return hub
}

func TestRouteTracker_UpdateEdges(t *testing.T) {
	t.Run("equal routes are interned", func(t *testing.T) {
		f := newFixture()
		m1 := newMachine(f.w, "m1", true)
		m2 := newMachine(f.w, "m2", true)
		m3 := newMachine(f.w, "m3", true)
		m1.routes = []RoutedNode[hops]{{Dest: m3, Info: 2}}
		m2.routes = []RoutedNode[hops]{{Dest: m3, Info: 2}, {Dest: m1, Info: 1}}
		star(f, m1, m2, m3)
		n := f.g.NetworkOf(m1)

		f.g.Tick(f.ctx)

		tr := n.Tracker()
		p1 := tr.Paths(m1)
		p2 := tr.Paths(m2)
		require.Len(t, p1, 1)
		require.Len(t, p2, 2)
		assert.Equal(t, hops(1), p2[0].Info, "sorted by hops")
		assert.Same(t, p1[0], p2[1])
	})

	t.Run("different info is not shared", func(t *testing.T) {
		f := newFixture()
		m1 := newMachine(f.w, "m1", true)
		m2 := newMachine(f.w, "m2", true)
		m3 := newMachine(f.w, "m3", true)
		m1.routes = []RoutedNode[hops]{{Dest: m3, Info: 2}}
		m2.routes = []RoutedNode[hops]{{Dest: m3, Info: 3}}
		star(f, m1, m2, m3)

		f.g.Tick(f.ctx)

		tr := f.g.NetworkOf(m1).Tracker()
		assert.NotSame(t, tr.Paths(m1)[0], tr.Paths(m2)[0])
	})

	t.Run("empty lists are not stored", func(t *testing.T) {
		f := newFixture()
		m1 := newMachine(f.w, "m1", true)
		star(f, m1)

		f.g.Tick(f.ctx)

		assert.Nil(t, f.g.NetworkOf(m1).Tracker().Paths(m1))
	})

	t.Run("paths are a copy", func(t *testing.T) {
		f := newFixture()
		m1 := newMachine(f.w, "m1", true)
		m2 := newMachine(f.w, "m2", true)
		m3 := newMachine(f.w, "m3", true)
		m1.routes = []RoutedNode[hops]{{Dest: m2, Info: 1}, {Dest: m3, Info: 2}}
		f.w.chain(m1, m2, m3)
		f.add(m1, m2, m3)
		f.g.Tick(f.ctx)
		tr := f.g.NetworkOf(m1).Tracker()

		paths := tr.Paths(m1)
		require.Len(t, paths, 2)
		paths[0], paths[1] = paths[1], nil

		again := tr.Paths(m1)
		require.Len(t, again, 2)
		assert.Equal(t, NotableElement[hops](m2), again[0].Dest)
		assert.Equal(t, NotableElement[hops](m3), again[1].Dest)
	})
}

func TestRouteTracker_Endpoints(t *testing.T) {
	t.Run("only active notable elements are tracked", func(t *testing.T) {
		f := newFixture()
		on := newMachine(f.w, "on", true)
		off := newMachine(f.w, "off", false)
		off.routes = []RoutedNode[hops]{{Dest: on, Info: 1}}
		hub := star(f, on, off)

		tr := f.g.NetworkOf(hub).Tracker()
		assert.Equal(t, []NotableElement[hops]{on}, tr.Endpoints())
		assert.True(t, tr.IsEndpoint(on))
		assert.False(t, tr.IsEndpoint(off))

		f.g.Tick(f.ctx)
		assert.Nil(t, tr.Paths(off))
	})

	t.Run("flag is sampled on add", func(t *testing.T) {
		f := newFixture()
		m := newMachine(f.w, "m", false)
		f.add(m)
		m.endpoint = true
		assert.Empty(t, f.g.NetworkOf(m).Tracker().Endpoints())

		f.add(m)
		assert.Len(t, f.g.NetworkOf(m).Tracker().Endpoints(), 1)
	})

	t.Run("routes of a removed source stay until the next tick", func(t *testing.T) {
		f := newFixture()
		m1 := newMachine(f.w, "m1", true)
		m2 := newMachine(f.w, "m2", true)
		m1.routes = []RoutedNode[hops]{{Dest: m2, Info: 1}}
		f.w.link(m1, m2)
		f.add(m1, m2)
		f.g.Tick(f.ctx)
		tr := f.g.NetworkOf(m2).Tracker()
		require.NotNil(t, tr.Paths(m1))

		f.w.isolate(m1)
		f.g.RemoveElement(f.ctx, m1)

		assert.False(t, tr.IsEndpoint(m1))
		assert.NotNil(t, tr.Paths(m1))

		f.g.Tick(f.ctx)
		assert.Nil(t, tr.Paths(m1))
	})

	t.Run("endpoints move with subsume", func(t *testing.T) {
		f := newFixture()
		m1 := newMachine(f.w, "m1", true)
		m2 := newMachine(f.w, "m2", true)
		f.add(m1, m2)
		dest := f.g.NetworkOf(m1)
		src := f.g.NetworkOf(m2)

		f.g.Subsume(f.ctx, dest, src)

		assert.ElementsMatch(t, []NotableElement[hops]{m1, m2}, dest.Tracker().Endpoints())
		assert.Empty(t, src.Tracker().Endpoints())
	})
}
