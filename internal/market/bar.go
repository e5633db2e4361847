package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is a single OHLCV data point. Identity is (Symbol, Timestamp, Source);
// persistence treats re-delivery of the same identity as an overwrite.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
	Source    string
}

// LatestDate returns the civil date of the newest bar in the slice,
// and false when the slice is empty.
func LatestDate(bars []Bar) (time.Time, bool) {
	if len(bars) == 0 {
		return time.Time{}, false
	}
	latest := bars[0].Timestamp
	for _, b := range bars[1:] {
		if b.Timestamp.After(latest) {
			latest = b.Timestamp
		}
	}
	return DateOf(latest), true
}
