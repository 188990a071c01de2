// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipenet is a tile world of pipes and machines built on package
// grid.
//
// Tiles sit on integer positions. Each tile opens a set of faces; two
// adjacent tiles connect when both open the faces that touch, which keeps
// adjacency symmetric by construction. Pipes are plain elements. Machines
// are notable elements: an active machine is a route endpoint, publishes
// itself under MachineKey and, depending on its Role, under ProducerKey or
// ConsumerKey.
//
// A machine's routed neighbours are found by a breadth-first search through
// pipes that stops at other machines. Each step merges a one-hop Route
// limited by the capacity of the tile entered, so a Route carries the hop
// count and the bottleneck capacity of the path.
//
// World is not safe for concurrent use; see package sim for a runner that
// serializes access.
package pipenet
