package netflow

import (
	"context"
	"fmt"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/storage"
)

// Service runs net-flow queries against a transfer event store.
type Service struct {
	store storage.TransferEventStore
}

// NewService creates a Service backed by store.
func NewService(store storage.TransferEventStore) *Service {
	return &Service{store: store}
}

// Run executes the query and returns net-flow points in major units,
// sorted by day descending.
func (s *Service) Run(ctx context.Context, q Query) ([]*domain.NetFlowPoint, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.store.NetFlowDaily(ctx, q.Contract, q.Wallet, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("net flow daily: %w", err)
	}

	points := make([]*domain.NetFlowPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, &domain.NetFlowPoint{
			Day:   r.Day,
			Asset: q.Asset,
			Net:   ToMajorUnits(r.NetMinor),
		})
	}

	return points, nil
}

// HasActivity reports whether the wallet has at least one matching transfer.
// Batch address verification uses this as its cheap existence probe.
func (s *Service) HasActivity(ctx context.Context, q Query) (bool, error) {
	q.Limit = 1
	points, err := s.Run(ctx, q)
	if err != nil {
		return false, err
	}
	return len(points) > 0, nil
}
