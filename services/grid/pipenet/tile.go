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
	"fmt"

	"github.com/google/uuid"

	"github.com/AleutianAI/tesseract/services/grid"
)

// Kind is the type of a tile.
type Kind string

const (
	KindPipe    Kind = "pipe"
	KindMachine Kind = "machine"
)

// Role is what a machine does with the network's contents.
type Role string

const (
	RoleNone     Role = ""
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
)

// Component keys published by machines.
var (
	MachineKey  = grid.NewKey[*Machine]("machine")
	ProducerKey = grid.NewKey[*Machine]("producer")
	ConsumerKey = grid.NewKey[*Machine]("consumer")
)

// Tile is a pipe or a machine placed in a World.
type Tile interface {
	grid.Element[Route]
	ID() uuid.UUID
	Pos() Pos
	Faces() FaceSet
	Capacity() int
	Kind() Kind
	String() string
}

type tile struct {
	grid.BaseElement[Route]
	id       uuid.UUID
	world    *World
	pos      Pos
	faces    FaceSet
	capacity int
}

func (t *tile) ID() uuid.UUID  { return t.id }
func (t *tile) Pos() Pos       { return t.pos }
func (t *tile) Faces() FaceSet { return t.faces }
func (t *tile) Capacity() int  { return t.capacity }

// connected returns the tiles self currently connects to. A tile that is no
// longer the occupant of its position reports nothing.
func (t *tile) connected(self Tile) []Tile {
	if t.world.tiles[t.pos] != self {
		return nil
	}
	var out []Tile
	for _, f := range Faces {
		if !t.faces.Has(f) {
			continue
		}
		nb, ok := t.world.tiles[t.pos.Offset(f)]
		if ok && nb.Faces().Has(f.Opposite()) {
			out = append(out, nb)
		}
	}
	return out
}

func asElements(tiles []Tile) []grid.Element[Route] {
	if len(tiles) == 0 {
		return nil
	}
	out := make([]grid.Element[Route], len(tiles))
	for i, t := range tiles {
		out[i] = t
	}
	return out
}

// Pipe carries contents between machines.
type Pipe struct {
	tile
}

func (p *Pipe) Neighbours() []grid.Element[Route] { return asElements(p.connected(p)) }
func (p *Pipe) Kind() Kind                         { return KindPipe }
func (p *Pipe) String() string                     { return "pipe@" + p.pos.String() }

// Machine is a notable element. An active machine is a route endpoint.
type Machine struct {
	tile
	role   Role
	active bool
}

func (m *Machine) Neighbours() []grid.Element[Route] { return asElements(m.connected(m)) }
func (m *Machine) Kind() Kind                         { return KindMachine }
func (m *Machine) String() string                     { return "machine@" + m.pos.String() }

// Role returns the machine's role.
func (m *Machine) Role() Role { return m.role }

// Active reports whether the machine is a route endpoint.
func (m *Machine) Active() bool { return m.active }

// IsRouteEndpoint implements grid.NotableElement.
func (m *Machine) IsRouteEndpoint() bool { return m.active }

// Components publishes the machine under MachineKey and its role key.
func (m *Machine) Components() []grid.Component {
	out := []grid.Component{grid.Provide(MachineKey, m)}
	switch m.role {
	case RoleProducer:
		out = append(out, grid.Provide(ProducerKey, m))
	case RoleConsumer:
		out = append(out, grid.Provide(ConsumerKey, m))
	}
	return out
}

// RoutedNeighbours finds every active machine reachable through pipes.
//
// The search is breadth-first from m, enters pipes freely and stops at
// machines, so each destination appears once with its fewest-hop route.
// Among equal-hop paths the first discovered in face order wins.
func (m *Machine) RoutedNeighbours() []grid.RoutedNode[Route] {
	type step struct {
		at    Tile
		route Route
	}

	visited := map[Tile]struct{}{m: {}}
	var queue []step
	for _, nb := range m.connected(m) {
		visited[nb] = struct{}{}
		queue = append(queue, step{at: nb, route: Route{Hops: 1, Capacity: nb.Capacity()}})
	}

	var out []grid.RoutedNode[Route]
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if dest, ok := cur.at.(*Machine); ok {
			if dest.active {
				out = append(out, grid.RoutedNode[Route]{Dest: dest, Info: cur.route})
			}
			continue
		}
		for _, next := range connectedOf(cur.at) {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, step{
				at:    next,
				route: cur.route.Merge(Route{Hops: 1, Capacity: next.Capacity()}),
			})
		}
	}
	return out
}

func connectedOf(t Tile) []Tile {
	switch v := t.(type) {
	case *Pipe:
		return v.connected(v)
	case *Machine:
		return v.connected(v)
	default:
		panic(fmt.Sprintf("pipenet: unexpected tile %T", t))
	}
}
