// Package telemetry installs the OpenTelemetry metrics SDK and reads the
// collected instruments back for the /metrics endpoint
package telemetry

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// Metrics owns a meter provider whose readings are pulled on demand
type Metrics struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
}

// New creates a meter provider tagged with the service name and version
func New(service, version string) *Metrics {
	reader := sdkmetric.NewManualReader()
	res := resource.NewSchemaless(
		attribute.String("service.name", service),
		attribute.String("service.version", version),
	)
	return &Metrics{
		provider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		),
		reader: reader,
	}
}

// Provider returns the provider instruments should be created from
func (m *Metrics) Provider() metric.MeterProvider {
	return m.provider
}

// Snapshot collects every instrument, sorted by name then attributes
func (m *Metrics) Snapshot(ctx context.Context) (*api.MetricsResponse, error) {
	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	res := &api.MetricsResponse{Metrics: []*api.MetricPoint{}}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			res.Metrics = append(res.Metrics, points(md)...)
		}
	}
	slices.SortFunc(res.Metrics, func(a, b *api.MetricPoint) int {
		return cmp.Or(
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(attrKey(a.Attributes), attrKey(b.Attributes)),
		)
	})
	return res, nil
}

// Shutdown flushes and stops the provider
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

func points(md metricdata.Metrics) []*api.MetricPoint {
	var res []*api.MetricPoint
	switch data := md.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			res = append(res, &api.MetricPoint{
				Name:       md.Name,
				Kind:       api.MetricCounter,
				Value:      float64(dp.Value),
				Attributes: attrs(dp.Attributes),
			})
		}
	case metricdata.Sum[float64]:
		for _, dp := range data.DataPoints {
			res = append(res, &api.MetricPoint{
				Name:       md.Name,
				Kind:       api.MetricCounter,
				Value:      dp.Value,
				Attributes: attrs(dp.Attributes),
			})
		}
	case metricdata.Histogram[float64]:
		for _, dp := range data.DataPoints {
			res = append(res, &api.MetricPoint{
				Name:       md.Name,
				Kind:       api.MetricHistogram,
				Value:      dp.Sum,
				Count:      dp.Count,
				Attributes: attrs(dp.Attributes),
			})
		}
	}
	return res
}

func attrs(set attribute.Set) map[string]string {
	if set.Len() == 0 {
		return nil
	}
	res := make(map[string]string, set.Len())
	for _, kv := range set.ToSlice() {
		res[string(kv.Key)] = kv.Value.Emit()
	}
	return res
}

func attrKey(a map[string]string) string {
	var sb strings.Builder
	for _, k := range slices.Sorted(maps.Keys(a)) {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(a[k])
		sb.WriteByte(',')
	}
	return sb.String()
}

// Find returns the point with the given name whose attributes include
// every pair in match
func Find(
	res *api.MetricsResponse, name string, match map[string]string,
) (*api.MetricPoint, bool) {
	for _, p := range res.Metrics {
		if p.Name != name {
			continue
		}
		ok := true
		for k, v := range match {
			if p.Attributes[k] != v {
				ok = false
				break
			}
		}
		if ok {
			return p, true
		}
	}
	return nil, false
}
