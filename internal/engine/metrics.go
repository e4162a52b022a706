package engine

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
	"github.com/teano-uTTu-9788/AiCan/pkg/log"
)

type metrics struct {
	started  metric.Int64Counter
	finished metric.Int64Counter
	steps    metric.Int64Counter
	duration metric.Float64Histogram
}

const meterName = "github.com/teano-uTTu-9788/AiCan/internal/engine"

// Instrument names recorded by the engine
const (
	MetricJobsStarted  = "tu.jobs.started"
	MetricJobsFinished = "tu.jobs.finished"
	MetricSteps        = "tu.steps"
	MetricJobDuration  = "tu.jobs.duration"
)

func newMetrics(mp metric.MeterProvider) *metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter(meterName)
	return &metrics{
		started: counter(m, MetricJobsStarted,
			"Jobs started, by workflow"),
		finished: counter(m, MetricJobsFinished,
			"Jobs that reached a terminal status, by workflow and status"),
		steps: counter(m, MetricSteps,
			"Steps visited, by action and outcome"),
		duration: histogram(m, MetricJobDuration,
			"Wall time from trigger to terminal status"),
	}
}

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		slog.Warn("Failed to create counter",
			slog.String("metric", name),
			log.Error(err))
		return noop.Int64Counter{}
	}
	return c
}

func histogram(m metric.Meter, name, desc string) metric.Float64Histogram {
	h, err := m.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
	)
	if err != nil {
		slog.Warn("Failed to create histogram",
			slog.String("metric", name),
			log.Error(err))
		return noop.Float64Histogram{}
	}
	return h
}

func (m *metrics) jobStarted(wfID api.WorkflowID) {
	m.started.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("workflow_id", string(wfID)),
	))
}

func (m *metrics) jobFinished(job *api.Job) {
	attrs := metric.WithAttributes(
		attribute.String("workflow_id", string(job.WorkflowID)),
		attribute.String("status", string(job.Status)),
	)
	ctx := context.Background()
	m.finished.Add(ctx, 1, attrs)
	m.duration.Record(ctx, job.Duration().Seconds(), attrs)
}

func (m *metrics) stepVisited(action api.ActionName, outcome string) {
	m.steps.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("action", string(action)),
		attribute.String("outcome", outcome),
	))
}
