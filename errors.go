package memcache

import (
	"errors"
	"fmt"

	"github.com/pior/metacache/meta"
)

// TransportError means a request failed on both the original connection and
// the one reconnect attempt. The caller should treat the endpoint as
// unreachable for this operation; the pool and circuit breaker will recover
// on their own on subsequent calls.
type TransportError struct {
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("metacache: transport error talking to %s: %v", e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError means the initial "set auth" handshake on a new connection was
// rejected by the server (anything other than a literal STORED response).
type AuthError struct {
	Addr string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("metacache: auth failed for %s: %v", e.Addr, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProtocolError wraps a meta.ClientError/meta.GenericError/meta.ParseError
// surfaced from the wire codec: the server or the parser rejected something
// about the request or response shape, independent of transport health.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("metacache: protocol error: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// PoolTimeout means Pool.Acquire did not return a connection before the
// caller's context (or the pool's own acquire timeout) expired.
type PoolTimeout struct {
	Addr string
	Err  error
}

func (e *PoolTimeout) Error() string {
	return fmt.Sprintf("metacache: pool acquire timed out for %s: %v", e.Addr, e.Err)
}

func (e *PoolTimeout) Unwrap() error { return e.Err }

// DecodeError means a ValueCodec failed to unmarshal a stored value given
// its flag, or the flag value was not one the codec recognizes.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("metacache: failed to decode value for key %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StoreError means a store-family command (Set/Add/Replace/Append/Prepend/CAS)
// returned a response status the caller should treat as failure: NS (mode
// precondition failed), NF (append/prepend miss), or EX (CAS mismatch).
// These are not Go errors from the protocol's point of view, but most
// callers want err != nil for "the write did not happen" — ErrNotStored
// and ErrCASMismatch distinguish the two causes via errors.Is.
type StoreError struct {
	Key    string
	Status string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("metacache: store failed for key %q: status %s", e.Key, e.Status)
}

// Is reports whether target is the sentinel matching this StoreError's
// status, so callers can write errors.Is(err, metacache.ErrCASMismatch)
// instead of type-asserting and comparing Status themselves.
func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrNotStored:
		return e.Status == string(meta.StatusNS)
	case ErrCASMismatch:
		return e.Status == string(meta.StatusEX)
	default:
		return false
	}
}

// NotFoundError means a Delete/Invalidate/Touch/Incr/Decr targeted a key
// that does not exist. Get and GAT report a miss as Found=false instead.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("metacache: key not found: %q", e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ArithmeticError means Incr/Decr failed: the server answered with an error
// or an unexpected status, or the returned value was not a valid 64-bit
// unsigned integer. A miss without vivify is a NotFoundError instead.
type ArithmeticError struct {
	Key string
	Err error
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("metacache: arithmetic failed for key %q: %v", e.Key, e.Err)
}

func (e *ArithmeticError) Unwrap() error { return e.Err }

// Sentinel errors usable with errors.Is, wrapped by StoreError/NotFoundError
// at the call site that knows the key.
var (
	ErrNotStored   = errors.New("metacache: item not stored")
	ErrCASMismatch = errors.New("metacache: cas token mismatch")
	ErrNotFound    = errors.New("metacache: key not found")
)
