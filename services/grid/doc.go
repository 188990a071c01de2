// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package grid maintains the topology of a mutable undirected graph of
// factory elements (pipes, machines, junctions) and keeps it partitioned into
// maximal connected components called networks.
//
// # Overview
//
// A Grid owns the adjacency relation and every live Network. Callers report
// topology changes through AddElement, RemoveElement and their quiet
// variants; the grid merges networks when a new element bridges them and
// splits a network when an articulation element is removed. Work is bounded
// to the region around the mutation rather than the whole graph.
//
//	        AddElement / RemoveElement
//	                   │
//	                   ▼
//	┌─────────────────────────────────────┐
//	│                Grid                 │
//	│  vertices · adjacency · net arena   │
//	└──────────┬────────────┬─────────────┘
//	           │            │
//	           ▼            ▼
//	  ┌────────────┐  ┌────────────┐
//	  │  Network   │  │  Network   │ ...
//	  │ components │  │ components │
//	  │  tracker   │  │  tracker   │
//	  └────────────┘  └────────────┘
//
// Each Network owns a capability registry (typed component keys to the
// implementations its members publish) and a RouteTracker holding the sorted,
// interned route table between its notable elements. Route tables are
// recomputed lazily: a network only rebuilds them on Tick when its membership
// changed since the previous tick.
//
// # Network Kinds
//
// A network kind is fixed once by the RoutingInfo type parameter R and the
// Options passed to New (route ordering, lifecycle hooks, diagnostics). The
// concrete element types live outside this package; see package pipenet for
// one such kind.
//
// # Back-References
//
// Elements do not hold pointers to their network. They hold a NetworkRef, an
// index into the grid's network arena tagged with a generation. Networks are
// destroyed and recreated by merges and splits, and a stale NetworkRef never
// resolves to a newer network that happens to reuse the same slot.
//
// # Diagnostics
//
// Elements that break the adjacency contract (A reports B but B does not
// report A) are reported through the Diagnostics sink as *ContractViolation
// values. The grid keeps running with the adjacency as reported; nothing is
// auto-corrected.
//
// # Thread Safety
//
// Grid, Network and RouteTracker are NOT safe for concurrent use. All
// mutations and ticks must be serialized by the caller, typically on a single
// simulation goroutine (see package sim). Mutating the grid from inside an
// element callback (OnNeighbourAdded, OnNeighbourRemoved) is unsupported.
package grid
