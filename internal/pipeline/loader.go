package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/storm-claims-risk/internal/domain"
	"github.com/couchcryptid/storm-claims-risk/internal/observability"
)

// Sink is a named report destination.
type Sink struct {
	Name   string
	Loader Loader
}

// MultiLoader delivers each report to every sink. A failing sink does not
// stop delivery to the others; all failures are returned together.
type MultiLoader struct {
	sinks   []Sink
	metrics *observability.Metrics
}

// NewMultiLoader creates a MultiLoader over sinks, in delivery order.
func NewMultiLoader(metrics *observability.Metrics, sinks ...Sink) *MultiLoader {
	return &MultiLoader{sinks: sinks, metrics: metrics}
}

// Load writes report to every sink.
func (m *MultiLoader) Load(ctx context.Context, report domain.Report) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Loader.Load(ctx, report); err != nil {
			m.metrics.SinkWrites.WithLabelValues(s.Name, "error").Inc()
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name, err))
			continue
		}
		m.metrics.SinkWrites.WithLabelValues(s.Name, "success").Inc()
	}
	return errors.Join(errs...)
}

// Len reports the number of configured sinks.
func (m *MultiLoader) Len() int { return len(m.sinks) }
