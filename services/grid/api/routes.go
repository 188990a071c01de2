// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes a simulated pipe network grid over HTTP.
package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the /grid endpoints on rg.
//
// Description:
//
//	Mutating endpoints share one rate limiter; reads are unlimited.
//
// Endpoints:
//
//	GET    /grid/health
//	GET    /grid/stats
//	GET    /grid/networks
//	GET    /grid/networks/:index
//	GET    /grid/routes?x=&y=&z=
//	GET    /grid/layout
//	GET    /grid/events                     (websocket)
//	POST   /grid/verify
//	POST   /grid/tick
//	POST   /grid/tiles                      (limited)
//	DELETE /grid/tiles                      (limited)
//	PUT    /grid/layout                     (limited)
//	GET    /grid/snapshots
//	PUT    /grid/snapshots/:name
//	POST   /grid/snapshots/:name/restore    (limited)
//	DELETE /grid/snapshots/:name
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	g := rg.Group("/grid")

	g.GET("/health", h.HandleHealth)
	g.GET("/stats", h.HandleStats)
	g.GET("/networks", h.HandleListNetworks)
	g.GET("/networks/:index", h.HandleGetNetwork)
	g.GET("/routes", h.HandleRoutes)
	g.GET("/layout", h.HandleGetLayout)
	g.GET("/events", h.HandleEvents)
	g.POST("/verify", h.HandleVerify)
	g.POST("/tick", h.HandleTick)

	g.GET("/snapshots", h.HandleListSnapshots)
	g.PUT("/snapshots/:name", h.HandleSaveSnapshot)
	g.DELETE("/snapshots/:name", h.HandleDeleteSnapshot)

	mut := g.Group("", limitMutations(h.limiter))
	mut.POST("/tiles", h.HandlePlace)
	mut.DELETE("/tiles", h.HandleRemove)
	mut.PUT("/layout", h.HandlePutLayout)
	mut.POST("/snapshots/:name/restore", h.HandleRestoreSnapshot)
}
