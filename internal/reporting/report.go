package reporting

import (
	"time"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/tronaddr"
)

// Report represents a rendered net-flow report for one wallet.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Wallet      tronaddr.Address
	Contract    tronaddr.Address
	Asset       string

	// Rows, sorted by day descending
	Points []*domain.NetFlowPoint
}

// TotalNet sums the net amounts over all rows.
func (r *Report) TotalNet() float64 {
	total := 0.0
	for _, p := range r.Points {
		total += p.Net
	}
	return total
}

// DayLayout is the date format used in rendered rows.
const DayLayout = "2006-01-02"
