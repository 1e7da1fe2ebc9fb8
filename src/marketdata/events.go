package marketdata

import "github.com/kataras/go-events"

// Progress events emitted while downloading. ChunkFetched fires once per
// REST page with (symbol, kind, rows so far); SeriesCached fires after a
// full series is written to the cache with (symbol, kind, rows).
const (
	ChunkFetched events.EventName = "ChunkFetched"
	SeriesCached events.EventName = "SeriesCached"
)

const (
	KindKlines       = "klines"
	KindFundingRates = "funding"
	KindOpenInterest = "oi"
)
