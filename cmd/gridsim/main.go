// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command gridsim simulates pipe networks on an incrementally maintained
// connectivity grid.
//
// Usage:
//
//	gridsim serve                       # HTTP API, event stream and /metrics
//	gridsim load plant.yaml --networks  # build a layout offline and report
//	gridsim verify plant.yaml           # bulk and incremental builds must agree
//	gridsim snapshot list
//
// Example requests against a running server:
//
//	curl http://127.0.0.1:8088/v1/grid/stats
//	curl -X PUT --data-binary @plant.yaml http://127.0.0.1:8088/v1/grid/layout
//	curl -X POST http://127.0.0.1:8088/v1/grid/tick
//	curl 'http://127.0.0.1:8088/v1/grid/routes?x=0&y=0&z=0'
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gridsim:", err)
		os.Exit(1)
	}
}
