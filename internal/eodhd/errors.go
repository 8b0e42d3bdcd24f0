package eodhd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind tells callers how a request failed without inspecting the cause.
type ErrorKind string

const (
	KindUnsupported ErrorKind = "unsupported"  // symbol has no EODHD listing or no API key
	KindStatus      ErrorKind = "status"       // non-200 response
	KindRateLimited ErrorKind = "rate_limited" // 429 from the API
	KindTimeout     ErrorKind = "timeout"      // context ended, including while waiting for a limiter slot
	KindTransport   ErrorKind = "transport"
	KindDecode      ErrorKind = "decode"
)

// Error is returned by every Client call.
type Error struct {
	Kind   ErrorKind
	Ticker string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("eodhd %s: %s", e.Ticker, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s %d", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts an *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func statusError(ticker string, status int, body string) *Error {
	kind := KindStatus
	if status == http.StatusTooManyRequests {
		kind = KindRateLimited
	}
	return &Error{Kind: kind, Ticker: ticker, Status: status, Err: errors.New(body)}
}

// transportError separates deadline and cancellation from connection failures.
func transportError(ticker string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Ticker: ticker, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Ticker: ticker, Err: err}
	}
	return &Error{Kind: KindTransport, Ticker: ticker, Err: err}
}
