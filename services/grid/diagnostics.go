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
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/tesseract/services/grid/telemetry"
)

// Operation names a timed grid operation.
type Operation string

const (
	// OpWalk is the bounded adjacency walk performed by AddElement.
	OpWalk Operation = "walk"

	// OpSubsume covers merging every smaller adjacent network into the largest.
	OpSubsume Operation = "subsume"

	// OpSplit covers clump discovery and network creation in RemoveElement.
	OpSplit Operation = "split"

	// OpUpdateEdges is a RouteTracker recompute.
	OpUpdateEdges Operation = "update_edges"
)

// Diagnostics receives consistency-violation reports and operation timings.
//
// Description:
//
//	The grid reports through Diagnostics instead of a hardwired logger. A nil
//	Diagnostics in Options disables instrumentation; it never changes
//	behavior.
//
// Thread Safety:
//
//	Called synchronously from grid operations, on the caller's goroutine.
type Diagnostics interface {
	// ContractViolation is called when an element's reported neighbours do
	// not match its neighbour's reported neighbours.
	ContractViolation(ctx context.Context, v *ContractViolation)

	// Timing is called after a timed operation. count is the number of
	// elements or networks the operation touched.
	Timing(ctx context.Context, op Operation, elapsed time.Duration, count int)
}

type nopDiagnostics struct{}

func (nopDiagnostics) ContractViolation(context.Context, *ContractViolation) {}

func (nopDiagnostics) Timing(context.Context, Operation, time.Duration, int) {}

// LogDiagnostics writes diagnostics to a slog.Logger.
//
// Contract violations are always logged at Error. Timings are only logged
// when Verbose is set, which is meant for development setups.
type LogDiagnostics struct {
	Logger  *slog.Logger
	Verbose bool
}

// ContractViolation implements Diagnostics.
func (d *LogDiagnostics) ContractViolation(ctx context.Context, v *ContractViolation) {
	telemetry.LoggerWithTrace(ctx, d.logger()).Error("grid: element is not following the adjacency contract",
		slog.String("kind", v.Kind.String()),
		slog.Any("a", v.A),
		slog.Any("b", v.B),
	)
}

// Timing implements Diagnostics.
func (d *LogDiagnostics) Timing(ctx context.Context, op Operation, elapsed time.Duration, count int) {
	if !d.Verbose {
		return
	}
	telemetry.LoggerWithTrace(ctx, d.logger()).Info("grid: operation timing",
		slog.String("op", string(op)),
		slog.Float64("elapsed_us", float64(elapsed.Nanoseconds())/1e3),
		slog.Int("count", count),
	)
}

func (d *LogDiagnostics) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// MultiDiagnostics fans every report out to each of its members in order.
type MultiDiagnostics []Diagnostics

// ContractViolation implements Diagnostics.
func (m MultiDiagnostics) ContractViolation(ctx context.Context, v *ContractViolation) {
	for _, d := range m {
		if d != nil {
			d.ContractViolation(ctx, v)
		}
	}
}

// Timing implements Diagnostics.
func (m MultiDiagnostics) Timing(ctx context.Context, op Operation, elapsed time.Duration, count int) {
	for _, d := range m {
		if d != nil {
			d.Timing(ctx, op, elapsed, count)
		}
	}
}
