package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure. The ingestion engine branches on
// this closed set instead of matching error message substrings.
type Kind int

const (
	// KindUnknown covers errors that did not come from a provider client.
	KindUnknown Kind = iota
	// KindAuth means the credentials were rejected. Nothing will succeed
	// until the operator fixes the key, so batch callers should abort.
	KindAuth
	// KindRateLimit means the provider throttled the request.
	KindRateLimit
	// KindConnection covers transient network failures.
	KindConnection
	// KindData means the provider has no such symbol or the request was
	// semantically invalid. This is the delisting signature.
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindConnection:
		return "connection"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every provider client.
type Error struct {
	Kind     Kind
	Provider string
	Symbol   string
	Err      error
}

func (e *Error) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s: %s error for %s: %v", e.Provider, e.Kind, e.Symbol, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the classification from an error chain.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}
