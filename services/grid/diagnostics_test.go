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
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogDiagnostics(t *testing.T) {
	ctx := context.Background()

	t.Run("violations are always logged", func(t *testing.T) {
		var buf bytes.Buffer
		d := &LogDiagnostics{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

		d.ContractViolation(ctx, &ContractViolation{Kind: ViolationEdgeMissing, A: "pipe@0,0,0", B: "pipe@1,0,0"})

		out := buf.String()
		assert.Contains(t, out, `"level":"ERROR"`)
		assert.Contains(t, out, `"kind":"edge_missing"`)
		assert.Contains(t, out, "pipe@1,0,0")
	})

	t.Run("timings need verbose", func(t *testing.T) {
		var buf bytes.Buffer
		d := &LogDiagnostics{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

		d.Timing(ctx, OpWalk, time.Millisecond, 4)
		assert.Empty(t, buf.String())

		d.Verbose = true
		d.Timing(ctx, OpWalk, time.Millisecond, 4)
		assert.Contains(t, buf.String(), `"op":"walk"`)
		assert.Contains(t, buf.String(), `"elapsed_us":1000`)
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		d := &LogDiagnostics{}
		assert.NotPanics(t, func() {
			d.ContractViolation(ctx, &ContractViolation{Kind: ViolationEdgeKept})
		})
	})
}

func TestMultiDiagnostics(t *testing.T) {
	r1, r2 := newRecorder(), newRecorder()
	m := MultiDiagnostics{r1, nil, r2}

	m.ContractViolation(context.Background(), &ContractViolation{Kind: ViolationEdgeKept})
	m.Timing(context.Background(), OpSplit, time.Microsecond, 2)

	for _, r := range []*recorder{r1, r2} {
		assert.Len(t, r.violations, 1)
		assert.Equal(t, 1, r.timings[OpSplit])
	}
}

func TestViolationKind_String(t *testing.T) {
	assert.Equal(t, "edge_kept", ViolationEdgeKept.String())
	assert.Equal(t, "edge_missing", ViolationEdgeMissing.String())
	assert.Equal(t, "unknown", ViolationKind(0).String())
}
