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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
}

func sendJSON(ws *websocket.Conn, v any) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("failed to write websocket JSON", "error", err)
	}
	return err
}

// HandleEvents handles GET /grid/events.
//
// Description:
//
//	Upgrades to a websocket and streams sim.Event values as JSON until the
//	client goes away or the hub closes. Events a slow client cannot keep
//	up with are dropped, not queued.
func (h *Handlers) HandleEvents(c *gin.Context) {
	logger := h.requestLogger(c, "HandleEvents")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("failed to upgrade the websocket", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	events, unsubscribe := h.runner.Hub().Subscribe()
	defer unsubscribe()
	logger.Info("event subscriber connected")

	// The read side only watches for the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			logger.Info("event subscriber disconnected")
			return
		case e, ok := <-events:
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := sendJSON(ws, e); err != nil {
				return
			}
		}
	}
}
