package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/adshao/go-binance/v2/common"
	polygonmodels "github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfSurvivesWrapping(t *testing.T) {
	base := &Error{Kind: KindRateLimit, Provider: "polygon", Symbol: "AAPL", Err: errors.New("429")}
	wrapped := fmt.Errorf("fetching AAPL: %w", fmt.Errorf("retry 3: %w", base))
	assert.Equal(t, KindRateLimit, KindOf(wrapped))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestErrorMessageIncludesSymbol(t *testing.T) {
	err := &Error{Kind: KindData, Provider: "polygon", Symbol: "GONE", Err: errors.New("not found")}
	assert.Contains(t, err.Error(), "GONE")
	assert.Contains(t, err.Error(), "data")

	noSym := &Error{Kind: KindAuth, Provider: "binance", Err: errors.New("bad key")}
	assert.Contains(t, noSym.Error(), "auth")
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := &Error{Kind: KindConnection, Provider: "binance", Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestBinanceErrorClassification(t *testing.T) {
	b := &BinanceClient{}
	cases := []struct {
		code int64
		want Kind
	}{
		{-2015, KindAuth},
		{-2014, KindAuth},
		{-1002, KindAuth},
		{-1003, KindRateLimit},
		{-1121, KindData},
		{-1100, KindData},
		{-9999, KindConnection},
	}
	for _, tc := range cases {
		err := b.wrapErr("BTCUSDT", &common.APIError{Code: tc.code, Message: "x"})
		assert.Equal(t, tc.want, KindOf(err), "code %d", tc.code)
	}

	// Transport errors carry no API code at all.
	err := b.wrapErr("BTCUSDT", errors.New("connection refused"))
	assert.Equal(t, KindConnection, KindOf(err))
}

func TestPolygonErrorClassification(t *testing.T) {
	p := &PolygonClient{}
	cases := []struct {
		status int
		want   Kind
	}{
		{401, KindAuth},
		{403, KindAuth},
		{429, KindRateLimit},
		{404, KindData},
		{400, KindData},
		{422, KindData},
		{500, KindConnection},
	}
	for _, tc := range cases {
		err := p.wrapErr("AAPL", &polygonmodels.ErrorResponse{StatusCode: tc.status})
		assert.Equal(t, tc.want, KindOf(err), "status %d", tc.status)
	}
}

func TestFactory(t *testing.T) {
	_, err := New(Options{Name: "polygon"})
	require.Error(t, err, "polygon requires an api key")

	c, err := New(Options{Name: "polygon", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "polygon", c.Name())

	c, err = New(Options{Name: "binance"})
	require.NoError(t, err)
	assert.Equal(t, "binance", c.Name())

	_, err = New(Options{Name: "alpaca"})
	require.Error(t, err)
}
