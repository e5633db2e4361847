package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"marketsync/internal/market"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/shopspring/decimal"
)

const polygonName = "polygon"

// maxAggsLimit is the largest page polygon serves for aggregates.
const maxAggsLimit = 50000

var polygonTimespans = map[market.Unit]models.Timespan{
	market.UnitMinute: models.Minute,
	market.UnitHour:   models.Hour,
	market.UnitDay:    models.Day,
	market.UnitWeek:   models.Week,
}

// PolygonClient implements Client on top of the polygon.io REST API.
type PolygonClient struct {
	client *polygon.Client
}

func NewPolygon(apiKey string, timeout time.Duration) *PolygonClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	return &PolygonClient{client: polygon.NewWithClient(apiKey, hc)}
}

func (p *PolygonClient) Name() string { return polygonName }

func (p *PolygonClient) FetchBars(ctx context.Context, symbol string, start, end time.Time, gran market.Granularity, adjusted bool) ([]market.Bar, error) {
	timespan, ok := polygonTimespans[gran.Unit]
	if !ok {
		return nil, &Error{Kind: KindData, Provider: polygonName, Symbol: symbol,
			Err: errors.New("unsupported granularity unit " + string(gran.Unit))}
	}
	// To is exclusive of the following day: request through end-of-day.
	from := models.Millis(market.DateOf(start))
	to := models.Millis(market.DateOf(end).Add(24*time.Hour - time.Millisecond))
	params := (&models.GetAggsParams{
		Ticker:     symbol,
		Multiplier: gran.Multiplier,
		Timespan:   timespan,
		From:       from,
		To:         to,
	}).WithAdjusted(adjusted).WithOrder(models.Asc).WithLimit(maxAggsLimit)

	resp, err := p.client.GetAggs(ctx, params)
	if err != nil {
		return nil, p.wrapErr(symbol, err)
	}
	bars := make([]market.Bar, 0, len(resp.Results))
	for _, agg := range resp.Results {
		bars = append(bars, market.Bar{
			Symbol:    symbol,
			Timestamp: time.Time(agg.Timestamp).UTC(),
			Open:      decimal.NewFromFloat(agg.Open),
			High:      decimal.NewFromFloat(agg.High),
			Low:       decimal.NewFromFloat(agg.Low),
			Close:     decimal.NewFromFloat(agg.Close),
			Volume:    int64(agg.Volume),
			Source:    polygonName,
		})
	}
	return bars, nil
}

func (p *PolygonClient) ProbeSymbol(ctx context.Context, symbol string) (*market.SymbolMeta, error) {
	resp, err := p.client.GetTickerDetails(ctx, &models.GetTickerDetailsParams{Ticker: symbol})
	if err != nil {
		return nil, p.wrapErr(symbol, err)
	}
	return &market.SymbolMeta{
		Symbol:   resp.Results.Ticker,
		Name:     resp.Results.Name,
		Exchange: resp.Results.PrimaryExchange,
		Active:   resp.Results.Active,
	}, nil
}

func (p *PolygonClient) wrapErr(symbol string, err error) error {
	kind := KindConnection
	var errResp *models.ErrorResponse
	if errors.As(err, &errResp) {
		switch errResp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = KindAuth
		case http.StatusTooManyRequests:
			kind = KindRateLimit
		case http.StatusNotFound, http.StatusBadRequest, http.StatusUnprocessableEntity:
			kind = KindData
		}
	}
	return &Error{Kind: kind, Provider: polygonName, Symbol: symbol, Err: err}
}
