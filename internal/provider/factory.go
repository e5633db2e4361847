package provider

import (
	"fmt"
	"strings"
	"time"
)

// Options carries the provider section of the application config.
type Options struct {
	Name    string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// New builds the configured provider client.
func New(opts Options) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Name)) {
	case "", polygonName:
		if strings.TrimSpace(opts.APIKey) == "" {
			return nil, fmt.Errorf("polygon provider requires an api key")
		}
		return NewPolygon(opts.APIKey, opts.Timeout), nil
	case binanceName:
		return NewBinance(opts.BaseURL, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", opts.Name)
	}
}
