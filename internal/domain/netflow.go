package domain

import "time"

// NetFlowPoint is one row of a net-flow report: the signed sum of a wallet's
// incoming minus outgoing transfers for one calendar day, in major units.
// Days without any matching transfer produce no point.
type NetFlowPoint struct {
	Day   time.Time // UTC midnight of the day bucket
	Asset string    // asset label, e.g. "USDT"
	Net   float64   // net amount in major units
}

// DailyNet is the storage-level form of a net-flow row: the signed sum for
// one day still in minor units. Scaling to major units happens in one place,
// netflow.ToMajorUnits, regardless of backend.
type DailyNet struct {
	Day      time.Time // UTC midnight of the day bucket
	NetMinor int64     // net amount in minor units
}
