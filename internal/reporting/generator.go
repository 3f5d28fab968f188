package reporting

import (
	"context"
	"fmt"
	"time"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/netflow"
	"tron-netflow/internal/observability"
)

// Runner executes a net-flow query. Both netflow.Service (local stores) and
// dune.NetFlowRunner (remote execution) satisfy it.
type Runner interface {
	Run(ctx context.Context, q netflow.Query) ([]*domain.NetFlowPoint, error)
}

// Generator produces net-flow reports.
type Generator struct {
	runner  Runner
	metrics *observability.Metrics
	now     func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runner Runner) *Generator {
	return &Generator{
		runner: runner,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithMetrics enables report metrics.
func (g *Generator) WithMetrics(m *observability.Metrics) *Generator {
	g.metrics = m
	return g
}

// Generate runs the query and assembles a report.
func (g *Generator) Generate(ctx context.Context, q netflow.Query) (*Report, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	points, err := g.runner.Run(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("run net flow query: %w", err)
	}

	if g.metrics != nil {
		g.metrics.ReportsGenerated.Inc()
		g.metrics.ReportRows.Observe(float64(len(points)))
	}

	return &Report{
		GeneratedAt: g.now(),
		Wallet:      q.Wallet,
		Contract:    q.Contract,
		Asset:       q.Asset,
		Points:      points,
	}, nil
}
