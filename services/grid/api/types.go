// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"github.com/AleutianAI/tesseract/services/grid"
	"github.com/AleutianAI/tesseract/services/grid/layout"
	"github.com/AleutianAI/tesseract/services/grid/pipenet"
	"github.com/AleutianAI/tesseract/services/grid/store"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details lists individual problems when there are several.
	Details []string `json:"details,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	grid.Stats
	Tiles       int   `json:"tiles"`
	Subscribers int   `json:"subscribers"`
	Dropped     int64 `json:"dropped_events"`
}

// NetworkSummary describes one network.
type NetworkSummary struct {
	Ref        string         `json:"ref"`
	Index      int            `json:"index"`
	Generation int            `json:"generation"`
	Size       int            `json:"size"`
	Endpoints  int            `json:"endpoints"`
	Components map[string]int `json:"components,omitempty"`
	Dirty      bool           `json:"dirty"`
}

// NetworkDetail is a network with its tiles.
type NetworkDetail struct {
	NetworkSummary
	Tiles []layout.TileSpec `json:"tiles"`
}

// PlaceRequest is the body of POST /tiles. Tiles are placed in order.
type PlaceRequest struct {
	Tiles []layout.TileSpec `json:"tiles" binding:"required,min=1"`
}

// PlacedTile reports where a tile ended up.
type PlacedTile struct {
	Pos     pipenet.Pos `json:"pos"`
	Tile    string      `json:"tile"`
	Network string      `json:"network"`
}

// PlaceResponse is returned by POST /tiles.
type PlaceResponse struct {
	Placed []PlacedTile `json:"placed"`
}

// RemoveRequest is the body of DELETE /tiles.
type RemoveRequest struct {
	Positions []pipenet.Pos `json:"positions" binding:"required,min=1"`
}

// RemoveResponse is returned by DELETE /tiles.
type RemoveResponse struct {
	Removed int `json:"removed"`
}

// RouteEntry is one destination in a machine's route table.
type RouteEntry struct {
	Dest     pipenet.Pos `json:"dest"`
	Hops     int         `json:"hops"`
	Capacity int         `json:"capacity"`
}

// RoutesResponse is returned by GET /routes.
type RoutesResponse struct {
	Source pipenet.Pos  `json:"source"`
	Routes []RouteEntry `json:"routes"`
}

// TickResponse is returned by POST /tick.
type TickResponse struct {
	Rebuilt int `json:"rebuilt"`
}

// VerifyResponse is returned by POST /verify.
type VerifyResponse struct {
	OK         bool       `json:"ok"`
	Violations []string   `json:"violations,omitempty"`
	Stats      grid.Stats `json:"stats"`
}

// SnapshotsResponse is returned by GET /snapshots.
type SnapshotsResponse struct {
	Snapshots []store.Info `json:"snapshots"`
}
