package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Sample is one observed value of a metric with its label set.
type Sample struct {
	Value  float64
	Labels map[string]string
}

// Source provides read-only snapshots of current metric values.
// Get is side-effect-free and returns an empty slice, not an error,
// when the metric does not exist.
type Source interface {
	Get(metricName string, selector map[string]string) ([]Sample, error)
}

// RegistrySource reads current samples from a Prometheus registry.
type RegistrySource struct {
	gatherer prometheus.Gatherer
}

func NewRegistrySource(gatherer prometheus.Gatherer) *RegistrySource {
	return &RegistrySource{gatherer: gatherer}
}

// Get returns the current samples of metricName whose labels match the
// selector. Selector matching is exact-match AND over all pairs; a
// sample lacking a selector key is excluded. An empty selector matches
// every sample of the metric.
func (s *RegistrySource) Get(metricName string, selector map[string]string) ([]Sample, error) {
	families, err := s.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	var results []Sample
	for _, family := range families {
		if family.GetName() != metricName {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := labelMap(m)
			if !matchSelector(labels, selector) {
				continue
			}
			value, ok := sampleValue(family.GetType(), m)
			if !ok {
				continue
			}
			results = append(results, Sample{Value: value, Labels: labels})
		}
		break
	}
	return results, nil
}

func labelMap(m *dto.Metric) map[string]string {
	labels := make(map[string]string, len(m.GetLabel()))
	for _, pair := range m.GetLabel() {
		labels[pair.GetName()] = pair.GetValue()
	}
	return labels
}

func matchSelector(labels, selector map[string]string) bool {
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}

func sampleValue(t dto.MetricType, m *dto.Metric) (float64, bool) {
	switch t {
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue(), true
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue(), true
	case dto.MetricType_UNTYPED:
		return m.GetUntyped().GetValue(), true
	default:
		// Histograms and summaries have no single scalar value to
		// compare against a threshold.
		return 0, false
	}
}
