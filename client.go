package memcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pior/metacache/meta"
)

// Client is the high-level, typed API layered on Ring -> ServerPool ->
// Connection -> meta codec. Two constructors produce it: NewClient backs
// every ServerPool with a blocking puddle.Pool, NewCooperativeClient backs
// it with a channel-based cooperative pool; both share this same type and
// every method on it.
type Client struct {
	ring  *Ring
	pools []*ServerPool
	codec ValueCodec
	cmds  *Commands
	stats *clientStatsCollector
}

// NewClient builds a blocking-mode Client: each endpoint's pool blocks the
// calling goroutine in Pool.Acquire up to config.PoolTimeout. Pass nil to
// use DefaultConfig() with the single endpoint "localhost:11211".
func NewClient(config *Config) (*Client, error) {
	return newClient(config, NewPuddlePool)
}

// NewCooperativeClient builds a cooperative-mode Client: each endpoint's
// pool is a channel-based FIFO that suspends goroutines on ctx.Done()
// rather than blocking an OS thread, for servers handling many more
// concurrent requests than the pool's MaxSize.
func NewCooperativeClient(config *Config) (*Client, error) {
	return newClient(config, NewCooperativePool)
}

func newClient(config *Config, poolConstructor PoolConstructor) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
		config.Endpoints = []string{"localhost:11211"}
	}
	cfg := config.withDefaults()
	cfg.NewPool = poolConstructor

	endpoints := cfg.Endpoints
	if len(endpoints) == 0 {
		endpoints = []string{"localhost:11211"}
	}

	pools := make([]*ServerPool, 0, len(endpoints))
	for _, addr := range endpoints {
		sp, err := NewServerPool(addr, *cfg)
		if err != nil {
			return nil, err
		}
		pools = append(pools, sp)
	}

	c := &Client{
		ring:  NewRing(pools),
		pools: pools,
		codec: cfg.Codec,
		stats: newClientStatsCollector(),
	}
	c.cmds = NewCommands(c.executeForKey, c.stats)
	return c, nil
}

// executeForKey routes a single request through the ring to the server
// pool owning key, and runs it (with retry/circuit-breaking) there.
func (c *Client) executeForKey(ctx context.Context, key string, req *meta.Request) (*meta.Response, error) {
	sp := c.ring.Pick(key)
	return sp.Execute(ctx, req)
}

// ExecuteBatch implements BatchExecutor: each request is routed
// independently through the ring and run sequentially (no in-connection
// pipelining, per this client's concurrency model), with results returned
// in the same order as reqs.
func (c *Client) ExecuteBatch(ctx context.Context, reqs []*meta.Request) ([]*meta.Response, error) {
	resps := make([]*meta.Response, len(reqs))
	for i, req := range reqs {
		resp, err := c.executeForKey(ctx, req.Key, req)
		if err != nil {
			return resps, err
		}
		resps[i] = resp
	}
	return resps, nil
}

// Close releases every endpoint's connection pool. The Client must not be
// used afterward.
func (c *Client) Close() {
	for _, sp := range c.pools {
		sp.pool.Close()
	}
}

// Stats returns a snapshot of per-operation counters.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// ServerStats returns a per-endpoint snapshot of pool and circuit breaker
// state, in the same order the endpoints were configured.
func (c *Client) ServerStats() []ServerPoolStats {
	out := make([]ServerPoolStats, len(c.pools))
	for i, sp := range c.pools {
		out[i] = sp.Stats()
	}
	return out
}

// marshal encodes v through the configured codec and folds the result into
// item, ready for Set/Add/Replace/Append/Prepend/CAS.
func (c *Client) marshal(key string, v any) (Item, error) {
	data, flag, err := c.codec.Marshal(key, v)
	if err != nil {
		return Item{}, err
	}
	return Item{Key: key, Value: data, Flags: flag}, nil
}

// Set stores v under key unconditionally.
func (c *Client) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	item, err := c.marshal(key, v)
	if err != nil {
		return err
	}
	item.TTL = ttl
	return c.cmds.Set(ctx, item)
}

// Add stores v under key only if key does not already exist.
func (c *Client) Add(ctx context.Context, key string, v any, ttl time.Duration) error {
	item, err := c.marshal(key, v)
	if err != nil {
		return err
	}
	item.TTL = ttl
	return c.cmds.Add(ctx, item)
}

// Replace stores v under key only if key already exists.
func (c *Client) Replace(ctx context.Context, key string, v any, ttl time.Duration) error {
	item, err := c.marshal(key, v)
	if err != nil {
		return err
	}
	item.TTL = ttl
	return c.cmds.Replace(ctx, item)
}

// Append adds data to the end of key's existing value. v is marshaled with
// the client's codec but the server does not merge flags, so Append is
// primarily useful with []byte/string values.
func (c *Client) Append(ctx context.Context, key string, v any) error {
	item, err := c.marshal(key, v)
	if err != nil {
		return err
	}
	return c.cmds.Append(ctx, item)
}

// Prepend adds data to the start of key's existing value.
func (c *Client) Prepend(ctx context.Context, key string, v any) error {
	item, err := c.marshal(key, v)
	if err != nil {
		return err
	}
	return c.cmds.Prepend(ctx, item)
}

// CAS stores v under key only if casToken still matches the value's current
// CAS token (obtained from a prior Get's GetResult.CASToken).
func (c *Client) CAS(ctx context.Context, key string, v any, ttl time.Duration, casToken uint64) error {
	item, err := c.marshal(key, v)
	if err != nil {
		return err
	}
	item.TTL = ttl
	item.CAS = &casToken
	return c.cmds.CAS(ctx, item)
}

// GetResult is the typed projection returned by Get/GAT/GetMany.
type GetResult[T any] struct {
	Key        string
	Value      *T
	CASToken   *uint64
	TTL        *int64
	LastAccess *int64
	Size       *uint64
	HitBefore  *bool
	IsStale    bool
	WonRecache bool
	AlreadyWon bool
}

// Get fetches and decodes the value stored under key. The returned
// GetResult's Value is nil if the key was a miss. opts can request vivify-
// on-miss (WithVivify), recache coordination (WithRecache), a TTL bump
// (WithUpdateTTL), skipping the LRU bump (WithNoBump), or a CAS
// precondition (WithCASCheck). The value's CAS token is always requested,
// so GetResult.CASToken is filled on every hit.
func Get[T any](ctx context.Context, c *Client, key string, opts ...GetOption) (GetResult[T], error) {
	item, err := c.cmds.Get(ctx, key, opts...)
	if err != nil {
		return GetResult[T]{}, err
	}
	return decodeGetResult[T](c, key, item)
}

// GAT fetches and decodes key's value while also updating its TTL. opts
// behaves as in Get.
func GAT[T any](ctx context.Context, c *Client, key string, ttl int64, opts ...GetOption) (GetResult[T], error) {
	item, err := c.cmds.GAT(ctx, key, ttl, opts...)
	if err != nil {
		return GetResult[T]{}, err
	}
	return decodeGetResult[T](c, key, item)
}

func decodeGetResult[T any](c *Client, key string, item Item) (GetResult[T], error) {
	result := GetResult[T]{Key: key}
	if !item.Found {
		return result, nil
	}

	decoded, err := c.codec.Unmarshal(key, item.Value, item.Flags)
	if err != nil {
		return GetResult[T]{}, err
	}

	v, ok := decoded.(T)
	if !ok {
		return GetResult[T]{}, &DecodeError{Key: key, Err: errUnexpectedType}
	}

	result.Value = &v
	result.CASToken = item.CAS
	result.TTL = item.RemainingTTL
	result.LastAccess = item.LastAccess
	result.Size = item.Size
	result.HitBefore = item.HitBefore
	result.IsStale = item.IsStale
	result.WonRecache = item.WonRecache
	result.AlreadyWon = item.AlreadyWon
	return result, nil
}

var errUnexpectedType = errors.New("decoded value does not match requested type")

// GetMany fetches multiple keys in a single batch, preserving key order.
// Missing keys come back with Found=false in the underlying Item and a nil
// Value in the returned Item slice's corresponding position is represented
// by Item.Found.
func (c *Client) GetMany(ctx context.Context, keys []string) ([]Item, error) {
	batch := NewBatchCommands(c)
	return batch.MultiGet(ctx, keys)
}

// Touch updates key's TTL without fetching its value.
func (c *Client) Touch(ctx context.Context, key string, ttl int64) error {
	return c.cmds.Touch(ctx, key, ttl)
}

// Delete removes key from the cache. casToken, if non-nil, guards the
// delete: it only applies if the stored value's CAS token still matches,
// surfacing a StoreError matching errors.Is(err, ErrCASMismatch) otherwise.
func (c *Client) Delete(ctx context.Context, key string, casToken *uint64) error {
	return c.cmds.Delete(ctx, key, false, nil, casToken)
}

// Invalidate marks key's value stale instead of removing it: a subsequent
// Get returns IsStale=true rather than a miss, giving callers a chance to
// serve a stale value while one of them wins the right to recache it.
// staleTTL, if non-nil, bounds how long the stale marker itself lasts.
// casToken, if non-nil, guards the invalidate the same way Delete's does.
func (c *Client) Invalidate(ctx context.Context, key string, staleTTL *int64, casToken *uint64) error {
	return c.cmds.Delete(ctx, key, true, staleTTL, casToken)
}

// Incr increments key by delta, creating it with initial (stored verbatim,
// independent of delta) and the given ttl on a miss when vivify is true.
// Without vivify, a miss returns NotFoundError.
func (c *Client) Incr(ctx context.Context, key string, delta uint64, vivify bool, initial uint64, ttl int64) (uint64, error) {
	return c.cmds.Arithmetic(ctx, key, delta, false, vivify, initial, ttl)
}

// Decr decrements key by delta, flooring at zero rather than underflowing.
func (c *Client) Decr(ctx context.Context, key string, delta uint64, vivify bool, initial uint64, ttl int64) (uint64, error) {
	return c.cmds.Arithmetic(ctx, key, delta, true, vivify, initial, ttl)
}

// FlushAll flushes every configured endpoint concurrently after
// delaySeconds (0 for immediate). Every endpoint is attempted regardless of
// earlier failures; the returned error, if any, is a *multierror.Error
// wrapping one entry per failed endpoint.
func (c *Client) FlushAll(ctx context.Context, delaySeconds int) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var result *multierror.Error

	for _, sp := range c.pools {
		wg.Add(1)
		go func(sp *ServerPool) {
			defer wg.Done()
			if err := sp.FlushAll(ctx, delaySeconds); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
		}(sp)
	}
	wg.Wait()

	return result.ErrorOrNil()
}

// ExecuteMetaCommand sends req to the endpoint owning key, bypassing the
// typed API entirely. For callers that need meta flags this package does
// not wrap yet.
func (c *Client) ExecuteMetaCommand(ctx context.Context, key string, req *meta.Request) (*meta.Response, error) {
	return c.executeForKey(ctx, key, req)
}
