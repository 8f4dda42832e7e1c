package wloc

import (
	"errors"
	"fmt"
	"net/http"
)

// Lookup error kinds. Typed errors below match these with errors.Is.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrEncode        = errors.New("encode error")
	ErrTransport     = errors.New("transport error")
	ErrDecode        = errors.New("decode error")
	ErrBssidNotFound = errors.New("bssid not found")
)

// InvalidInputError reports a caller-supplied BSSID that could not be parsed.
type InvalidInputError struct {
	BSSID string
	Err   error
}

func (e *InvalidInputError) Error() string {
	if e.BSSID == "" {
		return "invalid input: no BSSIDs given"
	}
	return fmt.Sprintf("invalid input: BSSID %q: %v", e.BSSID, e.Err)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

func (e *InvalidInputError) Unwrap() error { return e.Err }

// EncodeError reports a frame that cannot be represented on the wire.
type EncodeError struct {
	Field  string
	Length int
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode error: %s length %d exceeds 65535", e.Field, e.Length)
}

func (e *EncodeError) Is(target error) bool { return target == ErrEncode }

// TransportError reports a network failure or a non-success HTTP status.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	return fmt.Sprintf("transport error: unexpected status code: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a truncated or malformed response.
type DecodeError struct {
	Detail string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Detail, e.Err)
	}
	return "decode error: " + e.Detail
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func (e *DecodeError) Unwrap() error { return e.Err }

// NotFoundError reports a well-formed response without a location for BSSID.
type NotFoundError struct {
	BSSID MacAddress
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("the BSSID %q was not found", e.BSSID.String())
}

func (e *NotFoundError) Is(target error) bool { return target == ErrBssidNotFound }
