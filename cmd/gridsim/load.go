// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tesseract/pkg/ux"
	"github.com/AleutianAI/tesseract/services/grid"
	"github.com/AleutianAI/tesseract/services/grid/layout"
	"github.com/AleutianAI/tesseract/services/grid/pipenet"
)

// ErrMismatch is returned by verify when the two builds disagree.
var ErrMismatch = errors.New("bulk and incremental builds disagree")

func newLoadCmd(a *app) *cobra.Command {
	var incremental, networks bool

	cmd := &cobra.Command{
		Use:   "load <layout.yaml>",
		Short: "Build a layout offline and report its networks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := layout.ReadFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			start := time.Now()
			w, err := a.build(ctx, l, incremental)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)
			rebuilt := w.Tick(ctx)

			if err := w.Grid().CheckInvariants(); err != nil {
				a.printer.Error("grid invariants violated")
				a.printer.List(splitErrors(err))
				return err
			}

			mode := "bulk"
			if incremental {
				mode = "incremental"
			}
			stats := w.Grid().Stats()
			a.printer.KV("layout "+l.Name,
				ux.Field{Key: "mode", Value: mode},
				ux.Field{Key: "tiles", Value: w.Len()},
				ux.Field{Key: "edges", Value: stats.Edges},
				ux.Field{Key: "networks", Value: stats.Networks},
				ux.Field{Key: "endpoints", Value: stats.Endpoints},
				ux.Field{Key: "routed", Value: rebuilt},
				ux.Field{Key: "build", Value: elapsed.Round(time.Microsecond)},
			)
			if networks {
				a.printer.Table(networkTable(w))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&incremental, "incremental", false, "place tiles one by one instead of bulk loading")
	cmd.Flags().BoolVar(&networks, "networks", false, "list every network")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <layout.yaml>",
		Short: "Check that bulk and incremental builds of a layout agree",
		Long: `verify builds the layout twice, once with a bulk load and once by
placing tiles one at a time, ticks both, and checks that they end with the
same networks and the same route tables.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := layout.ReadFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			bulk, err := a.build(ctx, l, false)
			if err != nil {
				return err
			}
			inc, err := a.build(ctx, l, true)
			if err != nil {
				return err
			}
			bulk.Tick(ctx)
			inc.Tick(ctx)

			var problems []string
			problems = append(problems, prefixed("bulk", bulk.Grid().CheckInvariants())...)
			problems = append(problems, prefixed("incremental", inc.Grid().CheckInvariants())...)
			if !slices.EqualFunc(partition(bulk), partition(inc), slices.Equal[[]pipenet.Pos]) {
				problems = append(problems, "network partitions differ")
			}
			if !routeTablesEqual(bulk, inc) {
				problems = append(problems, "route tables differ")
			}

			if len(problems) > 0 {
				a.printer.Error("%s: %d problem(s)", l.Name, len(problems))
				a.printer.List(problems)
				return ErrMismatch
			}
			a.printer.Success("%s: %d tiles in %d networks, builds agree",
				l.Name, bulk.Len(), bulk.Grid().Stats().Networks)
			return nil
		},
	}
}

func (a *app) build(ctx context.Context, l *layout.Layout, incremental bool) (*pipenet.World, error) {
	w := pipenet.NewWorld(pipenet.Options{
		Name:        l.Name,
		Diagnostics: &grid.LogDiagnostics{Logger: a.logger.Slog()},
		Logger:      a.logger.Slog(),
	})
	var err error
	if incremental {
		_, err = layout.Apply(ctx, w, layout.Sorted(l))
	} else {
		_, err = layout.BulkLoad(ctx, w, l)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// partition lists each network's tile positions, sorted, in a canonical
// order that does not depend on network refs.
func partition(w *pipenet.World) [][]pipenet.Pos {
	var out [][]pipenet.Pos
	for _, n := range w.Grid().Networks() {
		var positions []pipenet.Pos
		for _, e := range n.Elements() {
			if t, ok := e.(pipenet.Tile); ok {
				positions = append(positions, t.Pos())
			}
		}
		slices.SortFunc(positions, pipenet.Pos.Compare)
		out = append(out, positions)
	}
	slices.SortFunc(out, func(a, b []pipenet.Pos) int {
		return slices.CompareFunc(a, b, pipenet.Pos.Compare)
	})
	return out
}

type routeRow struct {
	dest  pipenet.Pos
	route pipenet.Route
}

func routeTable(w *pipenet.World, pos pipenet.Pos) []routeRow {
	routes, err := w.Routes(pos)
	if err != nil {
		return nil
	}
	out := make([]routeRow, 0, len(routes))
	for _, r := range routes {
		row := routeRow{route: r.Info}
		if t, ok := r.Dest.(pipenet.Tile); ok {
			row.dest = t.Pos()
		}
		out = append(out, row)
	}
	return out
}

func routeTablesEqual(a, b *pipenet.World) bool {
	for _, t := range a.Tiles() {
		if t.Kind() != pipenet.KindMachine {
			continue
		}
		if !slices.Equal(routeTable(a, t.Pos()), routeTable(b, t.Pos())) {
			return false
		}
	}
	return true
}

func networkTable(w *pipenet.World) ux.Table {
	t := ux.Table{Headers: []string{"NETWORK", "TILES", "ENDPOINTS", "PRODUCERS", "CONSUMERS"}}
	for _, n := range w.Grid().Networks() {
		keys := n.ComponentKeys()
		t.Rows = append(t.Rows, []string{
			n.Ref().String(),
			strconv.Itoa(n.Len()),
			strconv.Itoa(len(n.Tracker().Endpoints())),
			strconv.Itoa(keys[pipenet.ProducerKey.Name()]),
			strconv.Itoa(keys[pipenet.ConsumerKey.Name()]),
		})
	}
	return t
}

func splitErrors(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func prefixed(prefix string, err error) []string {
	msgs := splitErrors(err)
	for i, m := range msgs {
		msgs[i] = fmt.Sprintf("%s: %s", prefix, m)
	}
	return msgs
}
