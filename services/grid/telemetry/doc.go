// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry tracing and metrics for the grid
// simulator.
//
// Init installs global TracerProvider and MeterProvider instances chosen by
// Config. The grid packages only use otel.Tracer and otel.Meter, so they
// run unchanged (with no-op providers) when Init is never called, as in unit
// tests.
//
// Exporters:
//
//	traces:  "otlp" (gRPC), "stdout", "none"
//	metrics: "prometheus" (served by Providers.MetricsHandler), "stdout", "none"
//
// LoggerWithTrace attaches the current trace and span IDs to a slog.Logger so
// log lines can be joined with traces.
package telemetry
