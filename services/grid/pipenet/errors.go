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

import "errors"

var (
	// ErrNoTile is returned when no tile occupies a position.
	ErrNoTile = errors.New("no tile at position")

	// ErrOccupied is returned by Stage when a position is taken.
	ErrOccupied = errors.New("position occupied")

	// ErrNotMachine is returned for machine-only operations on a pipe.
	ErrNotMachine = errors.New("tile is not a machine")

	// ErrInvalidSpec is returned for a tile spec that cannot be placed.
	ErrInvalidSpec = errors.New("invalid tile spec")

	// ErrUnknownFace is returned when parsing an unknown face name.
	ErrUnknownFace = errors.New("unknown face")
)
