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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tesseract/services/grid"
)

func TestFace(t *testing.T) {
	for _, f := range Faces {
		assert.Equal(t, f, f.Opposite().Opposite())
		assert.NotEqual(t, f, f.Opposite())
		p := Pos{X: 3, Y: 4, Z: 5}
		assert.Equal(t, p, p.Offset(f).Offset(f.Opposite()), f.String())
	}
	assert.Equal(t, South, North.Opposite())
	assert.Equal(t, Pos{X: 1}, Pos{}.Offset(East))
}

func TestParseFaces(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    FaceSet
		wantErr error
	}{
		{name: "empty", in: nil, want: 0},
		{name: "case insensitive", in: []string{"North", " up "}, want: FacesOf(North, Up)},
		{name: "all", in: []string{"all"}, want: AllFaces},
		{name: "unknown", in: []string{"sideways"}, wantErr: ErrUnknownFace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFaces(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, []string{"north", "south", "east", "west", "up", "down"}, AllFaces.Names())
}

func TestRoute(t *testing.T) {
	r := Route{Hops: 1, Capacity: 10}.Merge(Route{Hops: 2, Capacity: 3})
	assert.Equal(t, Route{Hops: 3, Capacity: 3}, r)

	w := NewWorld(Options{})
	near, err := w.Stage(Pos{X: 1}, machine(AllFaces, RoleNone))
	require.NoError(t, err)
	far, err := w.Stage(Pos{X: 2}, machine(AllFaces, RoleNone))
	require.NoError(t, err)
	node := func(dest Tile, hops, capacity int) *grid.RoutedNode[Route] {
		return &grid.RoutedNode[Route]{Dest: dest.(*Machine), Info: Route{Hops: hops, Capacity: capacity}}
	}

	assert.Negative(t, CompareRoutes(node(far, 1, 1), node(near, 2, 9)), "fewer hops first")
	assert.Negative(t, CompareRoutes(node(far, 2, 9), node(near, 2, 1)), "wider first")
	assert.Negative(t, CompareRoutes(node(near, 2, 5), node(far, 2, 5)), "then by position")
	assert.Zero(t, CompareRoutes(node(near, 2, 5), node(near, 2, 5)))
}
