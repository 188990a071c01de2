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
	"cmp"
	"fmt"
	"strings"
)

// Pos is a tile position.
type Pos struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// String returns "x,y,z".
func (p Pos) String() string {
	return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z)
}

// Offset returns the position across face f.
func (p Pos) Offset(f Face) Pos {
	d := faceOffsets[f]
	return Pos{X: p.X + d.X, Y: p.Y + d.Y, Z: p.Z + d.Z}
}

// Compare orders positions by X, then Y, then Z.
func (p Pos) Compare(o Pos) int {
	if c := cmp.Compare(p.X, o.X); c != 0 {
		return c
	}
	if c := cmp.Compare(p.Y, o.Y); c != 0 {
		return c
	}
	return cmp.Compare(p.Z, o.Z)
}

// Face is one of the six sides of a tile.
type Face uint8

const (
	North Face = iota
	South
	East
	West
	Up
	Down
)

// Faces lists every face in neighbour-discovery order.
var Faces = [...]Face{North, South, East, West, Up, Down}

var faceNames = [...]string{"north", "south", "east", "west", "up", "down"}

var faceOffsets = [...]Pos{
	North: {Z: -1},
	South: {Z: 1},
	East:  {X: 1},
	West:  {X: -1},
	Up:    {Y: 1},
	Down:  {Y: -1},
}

// String returns the lower-case face name.
func (f Face) String() string {
	if int(f) < len(faceNames) {
		return faceNames[f]
	}
	return fmt.Sprintf("face(%d)", f)
}

// Opposite returns the face on the other side.
func (f Face) Opposite() Face {
	return f ^ 1
}

// ParseFace parses a face name, case-insensitively.
func ParseFace(s string) (Face, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range faceNames {
		if n == name {
			return Face(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFace, s)
}

// FaceSet is a set of open faces.
type FaceSet uint8

// AllFaces opens every side.
const AllFaces FaceSet = 1<<len(faceNames) - 1

// FacesOf builds a set from faces.
func FacesOf(faces ...Face) FaceSet {
	var s FaceSet
	for _, f := range faces {
		s |= 1 << f
	}
	return s
}

// Has reports whether f is open.
func (s FaceSet) Has(f Face) bool {
	return s&(1<<f) != 0
}

// Names returns the open faces' names in discovery order, or nil.
func (s FaceSet) Names() []string {
	if s == 0 {
		return nil
	}
	out := make([]string, 0, len(Faces))
	for _, f := range Faces {
		if s.Has(f) {
			out = append(out, f.String())
		}
	}
	return out
}

// ParseFaces parses face names. "all" opens every side; an empty list
// opens none.
func ParseFaces(names []string) (FaceSet, error) {
	var s FaceSet
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), "all") {
			s |= AllFaces
			continue
		}
		f, err := ParseFace(n)
		if err != nil {
			return 0, err
		}
		s |= FacesOf(f)
	}
	return s, nil
}
