// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package layout reads, writes and applies YAML tile layouts for a
// pipenet.World.
//
// A layout is a named list of tiles:
//
//	name: smelter
//	tiles:
//	  - {x: 0, y: 0, z: 0, kind: machine, role: producer, faces: [east]}
//	  - {x: 1, y: 0, z: 0, kind: pipe, faces: [east, west], capacity: 8}
//	  - {x: 2, y: 0, z: 0, kind: machine, role: consumer, faces: [west]}
//
// Apply diffs a layout onto a live world through the grid's incremental
// operations. BulkLoad fills an empty world through the quiet operations,
// computing the networks up front.
package layout

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/tesseract/services/grid/pipenet"
)

var (
	// ErrInvalidLayout wraps every layout validation failure.
	ErrInvalidLayout = errors.New("invalid layout")

	// ErrWorldNotEmpty is returned by BulkLoad for a world that has tiles.
	ErrWorldNotEmpty = errors.New("world is not empty")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Layout is a named set of tiles.
type Layout struct {
	Name  string     `yaml:"name" json:"name"`
	Tiles []TileSpec `yaml:"tiles" json:"tiles" validate:"dive"`
}

// TileSpec is one tile of a layout.
type TileSpec struct {
	X        int      `yaml:"x" json:"x"`
	Y        int      `yaml:"y" json:"y"`
	Z        int      `yaml:"z" json:"z"`
	Kind     string   `yaml:"kind" json:"kind" validate:"required,oneof=pipe machine"`
	Faces    []string `yaml:"faces,omitempty" json:"faces,omitempty"`
	Capacity int      `yaml:"capacity,omitempty" json:"capacity,omitempty" validate:"gte=0"`
	Role     string   `yaml:"role,omitempty" json:"role,omitempty" validate:"omitempty,oneof=producer consumer"`
	Active   *bool    `yaml:"active,omitempty" json:"active,omitempty"`
}

// Pos returns the tile's position.
func (s TileSpec) Pos() pipenet.Pos {
	return pipenet.Pos{X: s.X, Y: s.Y, Z: s.Z}
}

// Spec converts s to a placeable spec. Capacity defaults to 1 and machines
// default to active.
func (s TileSpec) Spec() (pipenet.Spec, error) {
	faces, err := pipenet.ParseFaces(s.Faces)
	if err != nil {
		return pipenet.Spec{}, err
	}
	spec := pipenet.Spec{
		Kind:     pipenet.Kind(s.Kind),
		Faces:    faces,
		Capacity: s.Capacity,
		Role:     pipenet.Role(s.Role),
		Active:   s.Kind == string(pipenet.KindMachine),
	}
	if spec.Capacity == 0 {
		spec.Capacity = 1
	}
	if s.Active != nil {
		spec.Active = *s.Active
	}
	if err := spec.Validate(); err != nil {
		return pipenet.Spec{}, err
	}
	return spec, nil
}

// FromTile describes a placed tile.
func FromTile(t pipenet.Tile) TileSpec {
	pos := t.Pos()
	spec := pipenet.SpecOf(t)
	ts := TileSpec{
		X:        pos.X,
		Y:        pos.Y,
		Z:        pos.Z,
		Kind:     string(spec.Kind),
		Faces:    spec.Faces.Names(),
		Capacity: spec.Capacity,
		Role:     string(spec.Role),
	}
	if spec.Kind == pipenet.KindMachine {
		active := spec.Active
		ts.Active = &active
	}
	return ts
}

// Validate checks field constraints, face names and duplicate positions.
// All problems are reported, joined, each wrapping ErrInvalidLayout.
func (l *Layout) Validate() error {
	var errs []error
	if err := validate.Struct(l); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%w: %s failed %q", ErrInvalidLayout, fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidLayout, err))
		}
	}

	seen := make(map[pipenet.Pos]int, len(l.Tiles))
	for i, ts := range l.Tiles {
		if first, ok := seen[ts.Pos()]; ok {
			errs = append(errs, fmt.Errorf("%w: tiles[%d] duplicates tiles[%d] at %s", ErrInvalidLayout, i, first, ts.Pos()))
			continue
		}
		seen[ts.Pos()] = i
		if _, err := ts.Spec(); err != nil {
			errs = append(errs, fmt.Errorf("%w: tiles[%d]: %w", ErrInvalidLayout, i, err))
		}
	}
	return errors.Join(errs...)
}

// Decode reads and validates a YAML layout. Unknown fields are rejected.
func Decode(r io.Reader) (*Layout, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var l Layout
	if err := dec.Decode(&l); err != nil {
		if errors.Is(err, io.EOF) {
			return &l, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Parse decodes a layout from data.
func Parse(data []byte) (*Layout, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes l as YAML.
func Encode(w io.Writer, l *Layout) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	return enc.Close()
}

// Marshal returns l as YAML.
func Marshal(l *Layout) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFile decodes the layout at path.
func ReadFile(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layout: %w", err)
	}
	defer f.Close()

	l, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// WriteFile writes l to path through a temporary file in the same
// directory, so watchers never see a partial layout.
func WriteFile(path string, l *Layout) error {
	data, err := Marshal(l)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".layout-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp layout: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp layout: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp layout: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename layout: %w", err)
	}
	return nil
}
