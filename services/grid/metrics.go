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
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer for grid operations.
var tracer = otel.Tracer("tesseract.grid")

// MetricDiagnostics records diagnostics as OpenTelemetry metrics.
//
// Metrics:
//
//	grid_contract_violations_total{kind}   counter
//	grid_operation_duration_seconds{op}    histogram
//	grid_operation_size{op}                histogram
type MetricDiagnostics struct {
	violations metric.Int64Counter
	duration   metric.Float64Histogram
	size       metric.Int64Histogram
}

// NewMetricDiagnostics creates the grid instruments on meter.
//
// Inputs:
//
//	meter - The meter to register instruments with. Use otel.Meter(name)
//	        after telemetry.Init, or a test MeterProvider.
//
// Outputs:
//
//	*MetricDiagnostics - Ready to pass as Options.Diagnostics.
//	error - Non-nil if an instrument could not be created.
func NewMetricDiagnostics(meter metric.Meter) (*MetricDiagnostics, error) {
	d := &MetricDiagnostics{}
	var err error

	d.violations, err = meter.Int64Counter(
		"grid_contract_violations_total",
		metric.WithDescription("Adjacency contract violations reported by elements"),
	)
	if err != nil {
		return nil, fmt.Errorf("create grid_contract_violations_total: %w", err)
	}

	d.duration, err = meter.Float64Histogram(
		"grid_operation_duration_seconds",
		metric.WithDescription("Duration of grid topology operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create grid_operation_duration_seconds: %w", err)
	}

	d.size, err = meter.Int64Histogram(
		"grid_operation_size",
		metric.WithDescription("Elements or networks touched per grid operation"),
	)
	if err != nil {
		return nil, fmt.Errorf("create grid_operation_size: %w", err)
	}

	return d, nil
}

// ContractViolation implements Diagnostics.
func (d *MetricDiagnostics) ContractViolation(ctx context.Context, v *ContractViolation) {
	d.violations.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", v.Kind.String())))
}

// Timing implements Diagnostics.
func (d *MetricDiagnostics) Timing(ctx context.Context, op Operation, elapsed time.Duration, count int) {
	attrs := metric.WithAttributes(attribute.String("op", string(op)))
	d.duration.Record(ctx, elapsed.Seconds(), attrs)
	d.size.Record(ctx, int64(count), attrs)
}
