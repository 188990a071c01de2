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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/tesseract/services/grid"
	"github.com/AleutianAI/tesseract/services/grid/layout"
	"github.com/AleutianAI/tesseract/services/grid/pipenet"
	"github.com/AleutianAI/tesseract/services/grid/sim"
	"github.com/AleutianAI/tesseract/services/grid/store"
)

// ServiceVersion is the grid API version.
const ServiceVersion = "0.1.0"

// Options configures Handlers.
type Options struct {
	// Store enables the snapshot endpoints. Nil makes them return 503.
	Store *store.Store

	// MutationsPerSecond limits tile edits. Zero disables the limit.
	MutationsPerSecond float64
	MutationBurst      int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Handlers contains the HTTP handlers for a simulated grid.
//
// Every handler reaches the world through the runner, so requests are
// serialised with ticks and with each other.
type Handlers struct {
	runner  *sim.Runner
	store   *store.Store
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewHandlers creates handlers for runner.
func NewHandlers(runner *sim.Runner, opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{runner: runner, store: opts.Store, logger: logger}
	if opts.MutationsPerSecond > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(opts.MutationsPerSecond), max(opts.MutationBurst, 1))
	}
	return h
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return h.logger.With(
		slog.String("request_id", getOrCreateRequestID(c)),
		slog.String("handler", handler),
	)
}

// fail maps err to a status and error code and writes it.
func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, pipenet.ErrNoTile):
		status, code = http.StatusNotFound, "NO_TILE"
	case errors.Is(err, pipenet.ErrNotMachine):
		status, code = http.StatusBadRequest, "NOT_MACHINE"
	case errors.Is(err, layout.ErrInvalidLayout),
		errors.Is(err, pipenet.ErrInvalidSpec),
		errors.Is(err, pipenet.ErrUnknownFace):
		status, code = http.StatusBadRequest, "INVALID_TILE"
	case errors.Is(err, layout.ErrWorldNotEmpty):
		status, code = http.StatusConflict, "WORLD_NOT_EMPTY"
	case errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, "SNAPSHOT_NOT_FOUND"
	case errors.Is(err, store.ErrInvalidName):
		status, code = http.StatusBadRequest, "INVALID_NAME"
	case errors.Is(err, sim.ErrRunnerStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusServiceUnavailable, "UNAVAILABLE"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
	} else {
		logger.Warn("request rejected", slog.String("error", err.Error()))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code, Details: details(err)})
}

// details splits a joined error into its messages.
func details(err error) []string {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return nil
	}
	var out []string
	for _, e := range joined.Unwrap() {
		out = append(out, e.Error())
	}
	return out
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "INVALID_REQUEST"})
}

// HandleHealth handles GET /grid/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: ServiceVersion})
}

// HandleStats handles GET /grid/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	logger := h.requestLogger(c, "HandleStats")

	var resp StatsResponse
	err := h.runner.Do(c.Request.Context(), func(w *pipenet.World) error {
		resp.Stats = w.Grid().Stats()
		resp.Tiles = w.Len()
		return nil
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	resp.Subscribers = h.runner.Hub().Subscribers()
	resp.Dropped = h.runner.Hub().Dropped()
	c.JSON(http.StatusOK, resp)
}

func summarize(n *grid.Network[pipenet.Route]) NetworkSummary {
	ref := n.Ref()
	return NetworkSummary{
		Ref:        ref.String(),
		Index:      ref.Index(),
		Generation: ref.Generation(),
		Size:       n.Len(),
		Endpoints:  len(n.Tracker().Endpoints()),
		Components: n.ComponentKeys(),
		Dirty:      n.Dirty(),
	}
}

// HandleListNetworks handles GET /grid/networks.
func (h *Handlers) HandleListNetworks(c *gin.Context) {
	logger := h.requestLogger(c, "HandleListNetworks")

	var out []NetworkSummary
	err := h.runner.Do(c.Request.Context(), func(w *pipenet.World) error {
		networks := w.Grid().Networks()
		out = make([]NetworkSummary, 0, len(networks))
		for _, n := range networks {
			out = append(out, summarize(n))
		}
		return nil
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// HandleGetNetwork handles GET /grid/networks/:index.
//
// Response:
//
//	200 OK: NetworkDetail, tiles ordered by position
//	400 Bad Request: index is not a number
//	404 Not Found: no live network in that slot
func (h *Handlers) HandleGetNetwork(c *gin.Context) {
	logger := h.requestLogger(c, "HandleGetNetwork")

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		badRequest(c, "index must be a non-negative integer")
		return
	}

	var (
		detail NetworkDetail
		found  bool
	)
	err = h.runner.Do(c.Request.Context(), func(w *pipenet.World) error {
		for _, n := range w.Grid().Networks() {
			if n.Ref().Index() != index {
				continue
			}
			found = true
			detail.NetworkSummary = summarize(n)
			for _, e := range n.Elements() {
				if t, ok := e.(pipenet.Tile); ok {
					detail.Tiles = append(detail.Tiles, layout.FromTile(t))
				}
			}
			slices.SortFunc(detail.Tiles, func(a, b layout.TileSpec) int {
				return a.Pos().Compare(b.Pos())
			})
		}
		return nil
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "network not found", Code: "NETWORK_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func queryPos(c *gin.Context) (pipenet.Pos, bool) {
	var coords [3]int
	for i, name := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(c.Query(name))
		if err != nil {
			return pipenet.Pos{}, false
		}
		coords[i] = v
	}
	return pipenet.Pos{X: coords[0], Y: coords[1], Z: coords[2]}, true
}

// HandleRoutes handles GET /grid/routes?x=&y=&z=.
//
// Description:
//
//	Returns the route table of the machine at the given position as of
//	the last tick.
func (h *Handlers) HandleRoutes(c *gin.Context) {
	logger := h.requestLogger(c, "HandleRoutes")

	pos, ok := queryPos(c)
	if !ok {
		badRequest(c, "x, y and z query parameters must be integers")
		return
	}

	resp := RoutesResponse{Source: pos}
	err := h.runner.Do(c.Request.Context(), func(w *pipenet.World) error {
		routes, err := w.Routes(pos)
		if err != nil {
			return err
		}
		resp.Routes = make([]RouteEntry, 0, len(routes))
		for _, r := range routes {
			entry := RouteEntry{Hops: r.Info.Hops, Capacity: r.Info.Capacity}
			if t, ok := r.Dest.(pipenet.Tile); ok {
				entry.Dest = t.Pos()
			}
			resp.Routes = append(resp.Routes, entry)
		}
		return nil
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandlePlace handles POST /grid/tiles.
//
// Description:
//
//	Places each tile in order, replacing whatever occupied its position.
//	The request is validated as a whole first; a placement failure after
//	that leaves earlier tiles placed.
//
// Response:
//
//	200 OK: PlaceResponse with each tile's network after all placements
//	400 Bad Request: invalid body or tile
func (h *Handlers) HandlePlace(c *gin.Context) {
	logger := h.requestLogger(c, "HandlePlace")

	var req PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		badRequest(c, "invalid request body")
		return
	}
	if err := (&layout.Layout{Tiles: req.Tiles}).Validate(); err != nil {
		h.fail(c, logger, err)
		return
	}

	ctx := c.Request.Context()
	var resp PlaceResponse
	err := h.runner.Do(ctx, func(w *pipenet.World) error {
		placed := make([]pipenet.Tile, 0, len(req.Tiles))
		for _, ts := range req.Tiles {
			spec, err := ts.Spec()
			if err != nil {
				return err
			}
			t, err := w.Place(ctx, ts.Pos(), spec)
			if err != nil {
				return err
			}
			placed = append(placed, t)
		}
		for _, t := range placed {
			resp.Placed = append(resp.Placed, PlacedTile{
				Pos:     t.Pos(),
				Tile:    t.String(),
				Network: t.NetworkRef().String(),
			})
		}
		return nil
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	logger.Info("tiles placed", slog.Int("count", len(resp.Placed)))
	c.JSON(http.StatusOK, resp)
}

// HandleRemove handles DELETE /grid/tiles.
//
// Response:
//
//	200 OK: RemoveResponse
//	404 Not Found: a position was empty; earlier positions were removed
func (h *Handlers) HandleRemove(c *gin.Context) {
	logger := h.requestLogger(c, "HandleRemove")

	var req RemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		badRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	var resp RemoveResponse
	err := h.runner.Do(ctx, func(w *pipenet.World) error {
		for _, pos := range req.Positions {
			if err := w.Remove(ctx, pos); err != nil {
				return err
			}
			resp.Removed++
		}
		return nil
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	logger.Info("tiles removed", slog.Int("count", resp.Removed))
	c.JSON(http.StatusOK, resp)
}

// HandleTick handles POST /grid/tick.
func (h *Handlers) HandleTick(c *gin.Context) {
	logger := h.requestLogger(c, "HandleTick")

	rebuilt, err := h.runner.Step(c.Request.Context())
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, TickResponse{Rebuilt: rebuilt})
}

// HandleVerify handles POST /grid/verify.
//
// Description:
//
//	Runs the grid's full partition and adjacency check. Violations are
//	reported with 200 and ok=false; the check itself cannot fail.
func (h *Handlers) HandleVerify(c *gin.Context) {
	logger := h.requestLogger(c, "HandleVerify")

	var resp VerifyResponse
	err := h.runner.Do(c.Request.Context(), func(w *pipenet.World) error {
		resp.Stats = w.Grid().Stats()
		if verr := w.Grid().CheckInvariants(); verr != nil {
			resp.Violations = details(verr)
			if resp.Violations == nil {
				resp.Violations = []string{verr.Error()}
			}
		}
		return nil
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	resp.OK = len(resp.Violations) == 0
	if !resp.OK {
		logger.Warn("grid invariants violated", slog.Int("violations", len(resp.Violations)))
	}
	c.JSON(http.StatusOK, resp)
}

func wantsYAML(c *gin.Context) bool {
	if c.Query("format") == "yaml" {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "yaml")
}

// HandleGetLayout handles GET /grid/layout. The layout is JSON unless
// format=yaml or an Accept header asking for YAML is given.
func (h *Handlers) HandleGetLayout(c *gin.Context) {
	logger := h.requestLogger(c, "HandleGetLayout")

	name := c.DefaultQuery("name", "current")
	var l *layout.Layout
	err := h.runner.Do(c.Request.Context(), func(w *pipenet.World) error {
		l = layout.Capture(w, name)
		return nil
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}

	if wantsYAML(c) {
		data, err := layout.Marshal(l)
		if err != nil {
			h.fail(c, logger, err)
			return
		}
		c.Data(http.StatusOK, "application/yaml", data)
		return
	}
	c.JSON(http.StatusOK, l)
}

// HandlePutLayout handles PUT /grid/layout.
//
// Description:
//
//	Reads a YAML layout from the body and makes the world match it. With
//	mode=bulk the world must be empty and the layout is loaded without
//	incremental merges.
//
// Response:
//
//	200 OK: layout.ApplyResult, or layout.BulkResult for mode=bulk
//	400 Bad Request: invalid layout
//	409 Conflict: mode=bulk on a non-empty world
func (h *Handlers) HandlePutLayout(c *gin.Context) {
	logger := h.requestLogger(c, "HandlePutLayout")

	l, err := layout.Decode(c.Request.Body)
	if err != nil {
		h.fail(c, logger, err)
		return
	}

	ctx := c.Request.Context()
	bulk := c.Query("mode") == "bulk"
	var result any
	err = h.runner.Do(ctx, func(w *pipenet.World) error {
		if bulk {
			res, err := layout.BulkLoad(ctx, w, l)
			result = res
			return err
		}
		res, err := layout.Apply(ctx, w, l)
		result = res
		return err
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) requireStore(c *gin.Context) bool {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "snapshot store is disabled",
			Code:  "STORE_DISABLED",
		})
		return false
	}
	return true
}

// HandleListSnapshots handles GET /grid/snapshots.
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	logger := h.requestLogger(c, "HandleListSnapshots")
	if !h.requireStore(c) {
		return
	}

	infos, err := h.store.List(c.Request.Context())
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	if infos == nil {
		infos = []store.Info{}
	}
	c.JSON(http.StatusOK, SnapshotsResponse{Snapshots: infos})
}

// HandleSaveSnapshot handles PUT /grid/snapshots/:name.
func (h *Handlers) HandleSaveSnapshot(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSaveSnapshot")
	if !h.requireStore(c) {
		return
	}

	name := c.Param("name")
	ctx := c.Request.Context()
	var l *layout.Layout
	if err := h.runner.Do(ctx, func(w *pipenet.World) error {
		l = layout.Capture(w, name)
		return nil
	}); err != nil {
		h.fail(c, logger, err)
		return
	}
	if err := h.store.Save(ctx, name, l); err != nil {
		h.fail(c, logger, err)
		return
	}
	logger.Info("snapshot saved", slog.String("name", name), slog.Int("tiles", len(l.Tiles)))
	c.JSON(http.StatusCreated, store.Info{Name: name, Tiles: len(l.Tiles)})
}

// HandleRestoreSnapshot handles POST /grid/snapshots/:name/restore.
func (h *Handlers) HandleRestoreSnapshot(c *gin.Context) {
	logger := h.requestLogger(c, "HandleRestoreSnapshot")
	if !h.requireStore(c) {
		return
	}

	ctx := c.Request.Context()
	l, err := h.store.Load(ctx, c.Param("name"))
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	var res layout.ApplyResult
	err = h.runner.Do(ctx, func(w *pipenet.World) error {
		var err error
		res, err = layout.Apply(ctx, w, l)
		return err
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// HandleDeleteSnapshot handles DELETE /grid/snapshots/:name.
func (h *Handlers) HandleDeleteSnapshot(c *gin.Context) {
	logger := h.requestLogger(c, "HandleDeleteSnapshot")
	if !h.requireStore(c) {
		return
	}

	if err := h.store.Delete(c.Request.Context(), c.Param("name")); err != nil {
		h.fail(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
