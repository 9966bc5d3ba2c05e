// Package apierr classifies HTTP failures once, at the client boundary.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fedtaxi/hojaruta/internal/models"
)

// Kind is the coarse classification every caller switches on.
type Kind int

const (
	KindOther Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	}
	return "other"
}

// Error is a failed HTTP exchange. Status is 0 for transport failures.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == KindTransport {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("http %d (%s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("http %d: %s", e.Status, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func classify(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	}
	return KindOther
}

// FromResponse builds an Error from a non-2xx response. The body is consumed and closed.
func FromResponse(resp *http.Response) *Error {
	defer func() { _ = resp.Body.Close() }()
	e := &Error{Kind: classify(resp.StatusCode), Status: resp.StatusCode}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		e.Err = fmt.Errorf("read error body: %w", err)
		return e
	}
	var body models.ErrorBody
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		e.Code = body.Code
		e.Message = body.Error
		return e
	}
	e.Message = strings.TrimSpace(string(b))
	return e
}

// FromTransport wraps a network-level failure (dial, TLS, timeout, breaker open).
// An *Error already in the chain is returned as is.
func FromTransport(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindTransport, Err: err}
}

// CheckResponse returns nil for 2xx and an *Error (closing the body) otherwise.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return FromResponse(resp)
}

// KindOf reports the Kind of the first *Error in err's chain, KindOther if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }
func IsForbidden(err error) bool    { return KindOf(err) == KindForbidden }
func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsTransport(err error) bool    { return KindOf(err) == KindTransport }
