package stages

import (
	"context"
	"errors"
)

// Registry holds the resolved stage engines for one orchestrator. Stages are
// bound at construction; there is no runtime lookup by name.
type Registry struct {
	Monitor  *Monitor
	Analyzer *Analyzer
	Risk     *RiskAssessor
	Reporter *Reporter
}

// NewRegistry validates that every stage is present.
func NewRegistry(monitor *Monitor, analyzer *Analyzer, risk *RiskAssessor, reporter *Reporter) (*Registry, error) {
	if monitor == nil || analyzer == nil || risk == nil || reporter == nil {
		return nil, errors.New("all four stage engines are required")
	}
	return &Registry{
		Monitor:  monitor,
		Analyzer: analyzer,
		Risk:     risk,
		Reporter: reporter,
	}, nil
}

// All returns the stages in pipeline order.
func (r *Registry) All() []Stage {
	return []Stage{r.Monitor, r.Analyzer, r.Risk, r.Reporter}
}

// MetricsByStage snapshots every stage's counters, keyed by stage name.
func (r *Registry) MetricsByStage() map[string]Metrics {
	out := make(map[string]Metrics, 4)
	for _, stage := range r.All() {
		out[stage.Name()] = stage.Metrics()
	}
	return out
}

// Shutdown stops every stage concurrently and joins their errors.
func (r *Registry) Shutdown(ctx context.Context) error {
	stages := r.All()
	errCh := make(chan error, len(stages))
	for _, stage := range stages {
		go func() {
			errCh <- stage.Shutdown(ctx)
		}()
	}

	var errs []error
	for range stages {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
