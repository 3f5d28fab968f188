package stub

import (
	"context"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/tronaddr"
)

// StubTransferEventSource returns fixed in-memory transfer events for testing.
// Events can be intentionally unordered or duplicated to test dedup.
// Implements ingestion.TransferEventSource interface.
type StubTransferEventSource struct {
	events []*domain.TransferEvent
}

// NewStubTransferEventSource creates a new stub source with the given events.
func NewStubTransferEventSource(events []*domain.TransferEvent) *StubTransferEventSource {
	return &StubTransferEventSource{events: events}
}

// Fetch returns events matching the contract. Returns copies to prevent mutation.
func (s *StubTransferEventSource) Fetch(_ context.Context, contract tronaddr.Address) ([]*domain.TransferEvent, error) {
	var result []*domain.TransferEvent
	for _, e := range s.events {
		if e.Contract == contract {
			copy := *e
			result = append(result, &copy)
		}
	}
	return result, nil
}
