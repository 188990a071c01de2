// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/tesseract/services/grid"
	"github.com/AleutianAI/tesseract/services/grid/pipenet"
)

// ErrRunnerStopped is returned by Do once the runner's loop has exited.
var ErrRunnerStopped = errors.New("sim: runner stopped")

// Options configures a Runner.
type Options struct {
	// Name labels the world's grid.
	Name string

	// TickInterval is the period between ticks. Zero disables the ticker;
	// ticks then only happen through Step.
	TickInterval time.Duration

	// Hub receives events. Nil creates a hub with a 64 event buffer.
	Hub *Hub

	// Diagnostics is passed to the grid.
	Diagnostics grid.Diagnostics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

type request struct {
	fn    func(*pipenet.World) error
	reply chan error
}

// Runner owns a World and serialises all access to it on one goroutine.
//
// Description:
//
//	The grid is single-threaded. Runner is the only thing that touches the
//	world once Run has started: callers hand it closures through Do, and the
//	ticker fires on the same goroutine. Network lifecycle hooks and ticks
//	are published to the Hub.
//
// Thread Safety:
//
//	Do and Step are safe for concurrent use. Run must be called once.
type Runner struct {
	world    *pipenet.World
	hub      *Hub
	interval time.Duration
	reqs     chan request
	done     chan struct{}
	ticks    uint64
	now      func() time.Time
	logger   *slog.Logger
}

// NewRunner creates a runner around a fresh world.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(64)
	}
	r := &Runner{
		hub:      hub,
		interval: opts.TickInterval,
		reqs:     make(chan request),
		done:     make(chan struct{}),
		now:      time.Now,
		logger:   logger.With(slog.String("component", "sim")),
	}
	r.world = pipenet.NewWorld(pipenet.Options{
		Name:        opts.Name,
		Diagnostics: opts.Diagnostics,
		Logger:      logger,
		OnNetworkCreated: func(n *grid.Network[pipenet.Route]) {
			r.publish(EventNetworkCreated, n.Ref().String(), n.Len())
		},
		OnNetworkRemoved: func(n *grid.Network[pipenet.Route]) {
			r.publish(EventNetworkRemoved, n.Ref().String(), n.Len())
		},
	})
	return r
}

// Hub returns the runner's event hub.
func (r *Runner) Hub() *Hub {
	return r.hub
}

// Run processes requests and ticks until ctx is done. It returns nil on
// cancellation.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	r.logger.Info("runner started", slog.Duration("tick_interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped", slog.Uint64("ticks", r.ticks))
			return nil
		case <-tick:
			r.tick(ctx)
		case req := <-r.reqs:
			req.reply <- r.call(req.fn)
		}
	}
}

// call runs fn, turning a panic into an error so one bad request does not
// take the loop down.
func (r *Runner) call(fn func(*pipenet.World) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sim: request panicked: %v", p)
			r.logger.Error("request panicked", slog.Any("panic", p))
		}
	}()
	return fn(r.world)
}

// Do runs fn on the runner's goroutine and returns its error.
func (r *Runner) Do(ctx context.Context, fn func(*pipenet.World) error) error {
	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case r.reqs <- req:
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Step ticks the world once and returns how many networks rebuilt routes.
func (r *Runner) Step(ctx context.Context) (int, error) {
	var rebuilt int
	err := r.Do(ctx, func(*pipenet.World) error {
		rebuilt = r.tick(ctx)
		return nil
	})
	return rebuilt, err
}

func (r *Runner) tick(ctx context.Context) int {
	rebuilt := r.world.Tick(ctx)
	r.ticks++
	r.hub.Publish(Event{
		ID:   uuid.New(),
		Type: EventTick,
		Size: rebuilt,
		Tick: r.ticks,
		Time: r.now().UTC(),
	})
	return rebuilt
}

func (r *Runner) publish(t EventType, network string, size int) {
	r.hub.Publish(Event{
		ID:      uuid.New(),
		Type:    t,
		Network: network,
		Size:    size,
		Tick:    r.ticks,
		Time:    r.now().UTC(),
	})
}
