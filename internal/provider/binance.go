package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketsync/internal/market"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
)

const binanceName = "binance"

const binanceKlineLimit = 1000

// binanceIntervals is the subset of granularities the klines endpoint accepts.
var binanceIntervals = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true,
}

// BinanceClient implements Client on top of the Binance spot REST API.
// Market data endpoints need no credentials.
type BinanceClient struct {
	client *binance.Client
}

func NewBinance(baseURL string, timeout time.Duration) *BinanceClient {
	client := binance.NewClient("", "")
	if url := strings.TrimSpace(baseURL); url != "" {
		client.BaseURL = url
	}
	if timeout > 0 {
		client.HTTPClient.Timeout = timeout
	}
	return &BinanceClient{client: client}
}

func (b *BinanceClient) Name() string { return binanceName }

func (b *BinanceClient) FetchBars(ctx context.Context, symbol string, start, end time.Time, gran market.Granularity, adjusted bool) ([]market.Bar, error) {
	interval := gran.String()
	if !binanceIntervals[interval] {
		return nil, &Error{Kind: KindData, Provider: binanceName, Symbol: symbol,
			Err: fmt.Errorf("interval %s not supported by binance klines", interval)}
	}
	startMs := market.DateOf(start).UnixMilli()
	endMs := market.DateOf(end).Add(24*time.Hour - time.Millisecond).UnixMilli()

	var out []market.Bar
	for {
		kls, err := b.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(startMs).
			EndTime(endMs).
			Limit(binanceKlineLimit).
			Do(ctx)
		if err != nil {
			return nil, b.wrapErr(symbol, err)
		}
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			bar, err := b.toBar(symbol, kl)
			if err != nil {
				return nil, &Error{Kind: KindData, Provider: binanceName, Symbol: symbol, Err: err}
			}
			out = append(out, bar)
		}
		if len(kls) < binanceKlineLimit {
			break
		}
		startMs = kls[len(kls)-1].CloseTime + 1
		if startMs > endMs {
			break
		}
	}
	return out, nil
}

func (b *BinanceClient) ProbeSymbol(ctx context.Context, symbol string) (*market.SymbolMeta, error) {
	info, err := b.client.NewExchangeInfoService().Symbols(symbol).Do(ctx)
	if err != nil {
		return nil, b.wrapErr(symbol, err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		return &market.SymbolMeta{
			Symbol:   s.Symbol,
			Name:     s.BaseAsset + "/" + s.QuoteAsset,
			Exchange: binanceName,
			Active:   s.Status == "TRADING",
		}, nil
	}
	return nil, &Error{Kind: KindData, Provider: binanceName, Symbol: symbol,
		Err: fmt.Errorf("symbol %s absent from exchange info", symbol)}
}

func (b *BinanceClient) toBar(symbol string, kl *binance.Kline) (market.Bar, error) {
	open, err := decimal.NewFromString(kl.Open)
	if err != nil {
		return market.Bar{}, fmt.Errorf("parsing open %q: %w", kl.Open, err)
	}
	high, err := decimal.NewFromString(kl.High)
	if err != nil {
		return market.Bar{}, fmt.Errorf("parsing high %q: %w", kl.High, err)
	}
	low, err := decimal.NewFromString(kl.Low)
	if err != nil {
		return market.Bar{}, fmt.Errorf("parsing low %q: %w", kl.Low, err)
	}
	closing, err := decimal.NewFromString(kl.Close)
	if err != nil {
		return market.Bar{}, fmt.Errorf("parsing close %q: %w", kl.Close, err)
	}
	volume, err := decimal.NewFromString(kl.Volume)
	if err != nil {
		return market.Bar{}, fmt.Errorf("parsing volume %q: %w", kl.Volume, err)
	}
	return market.Bar{
		Symbol:    symbol,
		Timestamp: time.UnixMilli(kl.OpenTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closing,
		Volume:    volume.IntPart(),
		Source:    binanceName,
	}, nil
}

func (b *BinanceClient) wrapErr(symbol string, err error) error {
	kind := KindConnection
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1002, -2014, -2015:
			kind = KindAuth
		case -1003:
			kind = KindRateLimit
		case -1100, -1120, -1121:
			kind = KindData
		}
	}
	return &Error{Kind: kind, Provider: binanceName, Symbol: symbol, Err: err}
}
