package memcache

import (
	"context"
	"errors"
	"time"

	"github.com/pior/metacache/meta"
)

func NewServerPool(addr string, config Config) (*ServerPool, error) {
	constructor := func(ctx context.Context) (*Connection, error) {
		netConn, err := config.Dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		conn := NewConnection(netConn)

		if config.Username != "" && config.Password != "" {
			if err := conn.Authenticate(config.Username, config.Password); err != nil {
				conn.Close()
				return nil, &AuthError{Addr: addr, Err: err}
			}
		}

		return conn, nil
	}

	pool, err := config.NewPool(constructor, config.MaxSize)
	if err != nil {
		return nil, err
	}

	var cb CircuitBreaker
	if config.NewCircuitBreaker != nil {
		cb = config.NewCircuitBreaker(addr)
	}

	return &ServerPool{
		addr:           addr,
		pool:           pool,
		circuitBreaker: cb,
		poolTimeout:    config.PoolTimeout,
	}, nil
}

// ServerPool wraps a pool and a circuit breaker for a single endpoint.
type ServerPool struct {
	addr           string
	pool           Pool
	circuitBreaker CircuitBreaker
	poolTimeout    time.Duration
}

// acquireContext derives a context bounded by poolTimeout for Pool.Acquire
// when the caller's ctx carries no deadline of its own, so a saturated pool
// returns PoolTimeout after poolTimeout rather than blocking forever on
// context.Background(). The caller's deadline, when present, is left alone.
func (sp *ServerPool) acquireContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || sp.poolTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, sp.poolTimeout)
}

func (sp *ServerPool) Address() string {
	return sp.addr
}

// ServerPoolStats contains stats for a single server pool
type ServerPoolStats struct {
	Addr                string
	PoolStats           PoolStats
	CircuitBreakerState CircuitBreakerState
}

func (sp *ServerPool) Stats() ServerPoolStats {
	stats := ServerPoolStats{
		Addr:      sp.addr,
		PoolStats: sp.pool.Stats(),
	}
	if sp.circuitBreaker != nil {
		stats.CircuitBreakerState = sp.circuitBreaker.State()
	}
	return stats
}

// Execute executes a single request-response cycle with proper connection
// management. A transport-level failure (the kind meta.ShouldCloseConnection
// flags) is retried exactly once on another connection acquired from the
// pool (an idle one if available, otherwise a newly dialed one); the broken
// one is destroyed. A
// second failure surfaces as TransportError. The whole attempt, including
// the retry, runs inside the endpoint's circuit breaker when one is
// configured, so a downed node fails fast after it trips rather than
// spending a reconnect+retry on every call.
func (sp *ServerPool) Execute(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	if sp.circuitBreaker == nil {
		return sp.executeWithRetry(ctx, req)
	}

	return sp.circuitBreaker.Execute(func() (*meta.Response, error) {
		return sp.executeWithRetry(ctx, req)
	})
}

func (sp *ServerPool) executeWithRetry(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	resp, err := sp.execRequestDirect(ctx, req)
	if err == nil {
		return resp, nil
	}
	if !meta.ShouldCloseConnection(err) {
		return nil, err
	}

	resp, retryErr := sp.execRequestDirect(ctx, req)
	if retryErr != nil {
		return nil, &TransportError{Addr: sp.addr, Err: retryErr}
	}
	return resp, nil
}

// execRequestDirect performs a single request/response cycle without retry
// or circuit breaking: acquire, send, release (or destroy on a connection
// error), return.
func (sp *ServerPool) execRequestDirect(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	acquireCtx, cancel := sp.acquireContext(ctx)
	defer cancel()

	resource, err := sp.pool.Acquire(acquireCtx)
	if err != nil {
		return nil, &PoolTimeout{Addr: sp.addr, Err: err}
	}

	conn := resource.Value()

	resp, err := conn.Send(req)
	if err != nil {
		if meta.ShouldCloseConnection(err) {
			resource.Destroy()
		} else {
			resource.Release()
		}
		return nil, err
	}

	resource.Release()
	return resp, nil
}

// FlushAll sends the legacy flush_all command to this endpoint only. The
// high-level Client fans this out across every endpoint in the ring. A
// non-OK reply (the connection itself stayed healthy) surfaces as
// ProtocolError and releases the connection for reuse; a real transport
// failure surfaces as TransportError and destroys it.
func (sp *ServerPool) FlushAll(ctx context.Context, delaySeconds int) error {
	acquireCtx, cancel := sp.acquireContext(ctx)
	defer cancel()

	resource, err := sp.pool.Acquire(acquireCtx)
	if err != nil {
		return &PoolTimeout{Addr: sp.addr, Err: err}
	}

	conn := resource.Value()
	if err := conn.FlushAll(delaySeconds); err != nil {
		var replyErr *FlushAllReplyError
		if errors.As(err, &replyErr) {
			resource.Release()
			return &ProtocolError{Err: replyErr}
		}
		resource.Destroy()
		return &TransportError{Addr: sp.addr, Err: err}
	}

	resource.Release()
	return nil
}
