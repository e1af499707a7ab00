package memcache

import (
	"context"
	"net"
	"time"
)

const (
	// DefaultPoolSize is the maximum number of connections per endpoint.
	DefaultPoolSize = 23

	// DefaultPoolTimeout bounds how long Acquire waits for a connection.
	DefaultPoolTimeout = time.Second

	// DefaultDialTimeout bounds the initial TCP connect per endpoint.
	DefaultDialTimeout = time.Second
)

// Dialer opens the TCP connection to a single endpoint. *net.Dialer
// satisfies this directly; tests substitute a fake for deterministic I/O.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// PoolConstructor builds a Pool backing one endpoint: NewPuddlePool for
// blocking mode, NewCooperativePool for cooperative mode.
type PoolConstructor func(constructor func(ctx context.Context) (*Connection, error), maxSize int32) (Pool, error)

// Config configures a Client (and, at a lower level, each ServerPool it
// builds). The zero value is not directly usable; DefaultConfig returns a
// ready-to-use baseline that NewClient/NewCooperativeClient start from when
// passed nil.
type Config struct {
	// Endpoints lists the server addresses (host:port) the ring hashes
	// across. An empty list falls back to the single endpoint
	// "localhost:11211".
	Endpoints []string

	// Dialer opens new TCP connections. Defaults to a *net.Dialer with
	// Timeout set from DialTimeout.
	Dialer Dialer

	// DialTimeout bounds Dialer.DialContext when Dialer is left nil.
	DialTimeout time.Duration

	// MaxSize is the maximum number of pooled connections per endpoint.
	MaxSize int32

	// PoolTimeout bounds how long Pool.Acquire waits when the pool is
	// saturated, used to derive a context deadline for callers that pass
	// context.Background().
	PoolTimeout time.Duration

	// NewPool builds the Pool backing each endpoint. Defaults to
	// NewPuddlePool (blocking mode); NewCooperativeClient overrides this
	// to NewCooperativePool.
	NewPool PoolConstructor

	// NewCircuitBreaker builds the per-endpoint circuit breaker. Nil
	// disables circuit breaking entirely (every call goes straight to the
	// pool). DefaultConfig sets it to NewGobreakerConfig(3, time.Minute,
	// 10*time.Second); withDefaults leaves a nil value nil.
	NewCircuitBreaker func(addr string) CircuitBreaker

	// Username and Password, if both non-empty, are sent as a "set auth"
	// handshake immediately after dialing each new connection.
	Username string
	Password string

	// Codec marshals/unmarshals values for the typed Get/Set family.
	// Defaults to DefaultCodec.
	Codec ValueCodec
}

// DefaultConfig returns a Config with every optional field filled in,
// suitable as a starting point for callers that only need to set
// Endpoints.
func DefaultConfig() *Config {
	return &Config{
		Dialer:            &net.Dialer{Timeout: DefaultDialTimeout},
		DialTimeout:       DefaultDialTimeout,
		MaxSize:           DefaultPoolSize,
		PoolTimeout:       DefaultPoolTimeout,
		NewPool:           NewPuddlePool,
		NewCircuitBreaker: NewGobreakerConfig(3, time.Minute, 10*time.Second),
		Codec:             DefaultCodec,
	}
}

// withDefaults fills in any zero-valued field of config from DefaultConfig,
// leaving explicit caller choices (including an explicit nil
// NewCircuitBreaker, meaning "disable circuit breaking") untouched.
func (c *Config) withDefaults() *Config {
	out := *c
	defaults := DefaultConfig()

	if out.Dialer == nil {
		if out.DialTimeout == 0 {
			out.DialTimeout = defaults.DialTimeout
		}
		out.Dialer = &net.Dialer{Timeout: out.DialTimeout}
	}
	if out.MaxSize == 0 {
		out.MaxSize = defaults.MaxSize
	}
	if out.PoolTimeout == 0 {
		out.PoolTimeout = defaults.PoolTimeout
	}
	if out.NewPool == nil {
		out.NewPool = defaults.NewPool
	}
	if out.Codec == nil {
		out.Codec = defaults.Codec
	}
	return &out
}
