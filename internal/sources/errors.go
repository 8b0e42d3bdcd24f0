package sources

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ternarybob/tadawul/internal/models"
)

// ErrorKind classifies why a fetch failed.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindHTTP        ErrorKind = "http"
	KindMalformed   ErrorKind = "malformed_response"
	KindUnsupported ErrorKind = "unsupported"
	// KindUnavailable covers transport failures without an HTTP status and bridge process failures.
	KindUnavailable ErrorKind = "unavailable"
)

// FetchError is the single error type returned by every adapter.
type FetchError struct {
	Source models.SourceName
	Symbol string
	Kind   ErrorKind
	Status int // HTTP status (or provider error code) for KindHTTP
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Source, e.Symbol, e.Kind)
	if e.Kind == KindHTTP && e.Status != 0 {
		msg = fmt.Sprintf("%s %d", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// AsFetchError extracts a *FetchError from an error chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

func newError(source models.SourceName, symbol string, kind ErrorKind, err error) *FetchError {
	return &FetchError{Source: source, Symbol: symbol, Kind: kind, Err: err}
}

func httpError(source models.SourceName, symbol string, status int, err error) *FetchError {
	return &FetchError{Source: source, Symbol: symbol, Kind: KindHTTP, Status: status, Err: err}
}

func unsupported(source models.SourceName, symbol, reason string) *FetchError {
	return newError(source, symbol, KindUnsupported, errors.New(reason))
}

func malformed(source models.SourceName, symbol string, err error) *FetchError {
	return newError(source, symbol, KindMalformed, err)
}

// classifyTransport maps a transport or context error onto timeout or unavailable.
func classifyTransport(source models.SourceName, symbol string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(source, symbol, KindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(source, symbol, KindTimeout, err)
	}
	return newError(source, symbol, KindUnavailable, err)
}
