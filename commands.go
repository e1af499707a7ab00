package memcache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pior/metacache/meta"
)

// ExecuteFunc executes a meta protocol request for a given key.
// The key is provided separately to allow server selection based on the key.
type ExecuteFunc func(ctx context.Context, key string, req *meta.Request) (*meta.Response, error)

// Commands provides the meta protocol command surface in terms of Item,
// independent of how requests actually reach a server. This struct can be
// used on its own with a custom ExecuteFunc, or embedded in Client for full
// ring/pool/circuit-breaker resilience.
type Commands struct {
	execute ExecuteFunc
	stats   *clientStatsCollector
}

// NewCommands creates a new Commands instance with the given execute function and stats collector.
func NewCommands(execute ExecuteFunc, stats *clientStatsCollector) *Commands {
	return &Commands{
		execute: execute,
		stats:   stats,
	}
}

// getOptions holds the optional mg request flags a GetOption can set.
type getOptions struct {
	noBump     bool
	updateTTL  *int64
	vivifyTTL  *int64
	recacheTTL *int64
	casToken   *uint64
}

// GetOption adjusts the request flags sent by Get/GAT beyond the default
// value+metadata set.
type GetOption func(*getOptions)

// WithNoBump sends the u flag: the fetch does not bump the item's LRU
// recency or last-access time.
func WithNoBump() GetOption {
	return func(o *getOptions) { o.noBump = true }
}

// WithUpdateTTL sends the T flag: the item's TTL is updated to ttl seconds
// as a side effect of the fetch, the same way Touch/GAT do.
func WithUpdateTTL(ttl int64) GetOption {
	return func(o *getOptions) { o.updateTTL = &ttl }
}

// WithVivify sends the N flag: a miss stub-creates the key with this TTL
// instead of returning not-found, and the response carries a Win flag for
// whichever caller's request raced to create it (see Item.WonRecache).
func WithVivify(ttl int64) GetOption {
	return func(o *getOptions) { o.vivifyTTL = &ttl }
}

// WithRecache sends the R flag: if the item's remaining TTL is below
// thresholdSeconds, one caller's response is marked as having won the right
// to recompute and restore the value (Item.WonRecache), while others see
// Item.AlreadyWon and should serve the stale value without recomputing.
func WithRecache(thresholdSeconds int64) GetOption {
	return func(o *getOptions) { o.recacheTTL = &thresholdSeconds }
}

// WithCASCheck sends the C flag with token alongside the fetch, a CAS
// precondition compared against the item's current CAS token. The current
// token itself is always returned, via the c flag getFlags requests.
func WithCASCheck(token uint64) GetOption {
	return func(o *getOptions) { o.casToken = &token }
}

func resolveGetOptions(opts []GetOption) *getOptions {
	o := &getOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// getFlags is the default set of mg response flags requested by Get/GAT:
// value, client flags, CAS token, remaining TTL, size, last access and
// hit-before, so a single round trip populates the full GetResult, plus
// whatever request flags o adds.
func getFlags(o *getOptions) []meta.Flag {
	flags := []meta.Flag{
		{Type: meta.FlagReturnValue},
		{Type: meta.FlagReturnClientFlags},
		{Type: meta.FlagReturnCAS},
		{Type: meta.FlagReturnTTL},
		{Type: meta.FlagReturnSize},
		{Type: meta.FlagReturnLastAccess},
		{Type: meta.FlagReturnHit},
	}

	if o.noBump {
		flags = append(flags, meta.Flag{Type: meta.FlagNoLRUBump})
	}
	if o.updateTTL != nil {
		flags = append(flags, meta.FormatFlagInt64(meta.FlagTTL, *o.updateTTL))
	}
	if o.vivifyTTL != nil {
		flags = append(flags, meta.FormatFlagInt64(meta.FlagVivify, *o.vivifyTTL))
	}
	if o.recacheTTL != nil {
		flags = append(flags, meta.FormatFlagInt64(meta.FlagRecache, *o.recacheTTL))
	}
	if o.casToken != nil {
		flags = append(flags, meta.FormatFlagUint64(meta.FlagCAS, *o.casToken))
	}

	return flags
}

// Get retrieves a single item from memcache.
func (c *Commands) Get(ctx context.Context, key string, opts ...GetOption) (Item, error) {
	req := meta.NewRequest(meta.CmdGet, key, nil, getFlags(resolveGetOptions(opts)))
	resp, err := c.execute(ctx, key, req)
	if err != nil {
		return Item{}, err
	}

	if resp.IsMiss() {
		c.stats.recordGet(false)
		return Item{Key: key, Found: false}, nil
	}

	if resp.HasError() {
		c.stats.recordError()
		return Item{}, &ProtocolError{Err: resp.Error}
	}

	if !resp.IsSuccess() {
		c.stats.recordError()
		return Item{}, fmt.Errorf("unexpected response status: %s", resp.Status)
	}

	c.stats.recordGet(true)
	return itemFromResponse(key, resp), nil
}

// itemFromResponse maps a successful mg response carrying v/f/c/t/s/l/h and
// W/X/Z flags into an Item.
func itemFromResponse(key string, resp *meta.Response) Item {
	item := Item{Key: key, Value: resp.Data, Found: true}

	if tok, ok := resp.Flags.Get(meta.FlagReturnClientFlags); ok {
		if flags, err := decodeUint32Flag(string(tok)); err == nil {
			item.Flags = flags
		}
	}
	if tok, ok := resp.Flags.Get(meta.FlagReturnCAS); ok {
		if cas, err := strconv.ParseUint(string(tok), 10, 64); err == nil {
			item.CAS = &cas
		}
	}
	if tok, ok := resp.Flags.Get(meta.FlagReturnTTL); ok {
		if ttl, err := strconv.ParseInt(string(tok), 10, 64); err == nil {
			item.RemainingTTL = &ttl
		}
	}
	if tok, ok := resp.Flags.Get(meta.FlagReturnSize); ok {
		if size, err := strconv.ParseUint(string(tok), 10, 64); err == nil {
			item.Size = &size
		}
	}
	if tok, ok := resp.Flags.Get(meta.FlagReturnLastAccess); ok {
		if la, err := strconv.ParseInt(string(tok), 10, 64); err == nil {
			item.LastAccess = &la
		}
	}
	if tok, ok := resp.Flags.Get(meta.FlagReturnHit); ok {
		hit := string(tok) == "1"
		item.HitBefore = &hit
	}

	item.IsStale = resp.HasStaleFlag()
	item.WonRecache = resp.HasWinFlag()
	item.AlreadyWon = resp.HasAlreadyWonFlag()

	return item
}

// setWithMode issues an ms command with the given storage mode, sending an
// explicit CAS flag when item.CAS is set.
func (c *Commands) setWithMode(ctx context.Context, item Item, mode string) error {
	flags := []meta.Flag{{Type: meta.FlagClientFlags, Token: encodeUint32Flag(item.Flags)}}

	if mode != "" {
		flags = append(flags, meta.Flag{Type: meta.FlagMode, Token: mode})
	}
	if item.TTL > 0 {
		flags = append(flags, meta.FormatFlagInt(meta.FlagTTL, int(item.TTL.Seconds())))
	}
	if item.CAS != nil {
		flags = append(flags, meta.FormatFlagUint64(meta.FlagCAS, *item.CAS))
	}

	req := meta.NewRequest(meta.CmdSet, item.Key, item.Value, flags)
	resp, err := c.execute(ctx, item.Key, req)
	if err != nil {
		return err
	}

	if resp.HasError() {
		c.stats.recordError()
		return &ProtocolError{Err: resp.Error}
	}

	switch {
	case resp.IsSuccess():
		if mode == meta.ModeAdd {
			c.stats.recordAdd()
		} else {
			c.stats.recordSet()
		}
		return nil
	case resp.IsNotStored() || resp.Status == meta.StatusNF:
		c.stats.recordError()
		return &StoreError{Key: item.Key, Status: string(resp.Status)}
	case resp.IsCASMismatch():
		c.stats.recordError()
		return &StoreError{Key: item.Key, Status: string(resp.Status)}
	default:
		c.stats.recordError()
		return fmt.Errorf("set failed with status: %s", resp.Status)
	}
}

// Set stores an item unconditionally.
func (c *Commands) Set(ctx context.Context, item Item) error {
	return c.setWithMode(ctx, item, "")
}

// Add stores an item only if the key does not already exist.
func (c *Commands) Add(ctx context.Context, item Item) error {
	return c.setWithMode(ctx, item, meta.ModeAdd)
}

// Replace stores an item only if the key already exists.
func (c *Commands) Replace(ctx context.Context, item Item) error {
	return c.setWithMode(ctx, item, meta.ModeReplace)
}

// Append adds data to the end of an existing item's value.
func (c *Commands) Append(ctx context.Context, item Item) error {
	return c.setWithMode(ctx, item, meta.ModeAppend)
}

// Prepend adds data to the start of an existing item's value.
func (c *Commands) Prepend(ctx context.Context, item Item) error {
	return c.setWithMode(ctx, item, meta.ModePrepend)
}

// CAS stores an item only if its CAS token still matches the stored value's.
// item.CAS must be set.
func (c *Commands) CAS(ctx context.Context, item Item) error {
	if item.CAS == nil {
		return fmt.Errorf("metacache: CAS requires a CAS token")
	}
	return c.setWithMode(ctx, item, "")
}

// Delete removes an item from memcache. invalidate, when true, sends the I
// flag to mark the item stale instead of removing it outright; ttl (only
// meaningful with invalidate) sets how long the stale marker lasts via the T
// flag. casToken, when non-nil, guards the delete with a C flag so it only
// applies if the stored value's CAS token still matches; a mismatch comes
// back as a StoreError matching errors.Is(err, ErrCASMismatch).
func (c *Commands) Delete(ctx context.Context, key string, invalidate bool, ttl *int64, casToken *uint64) error {
	var flags []meta.Flag
	if invalidate {
		flags = append(flags, meta.Flag{Type: meta.FlagInvalidate})
	}
	if ttl != nil {
		flags = append(flags, meta.FormatFlagInt64(meta.FlagTTL, *ttl))
	}
	if casToken != nil {
		flags = append(flags, meta.FormatFlagUint64(meta.FlagCAS, *casToken))
	}

	req := meta.NewRequest(meta.CmdDelete, key, nil, flags)
	resp, err := c.execute(ctx, key, req)
	if err != nil {
		return err
	}

	if resp.HasError() {
		c.stats.recordError()
		return &ProtocolError{Err: resp.Error}
	}

	switch {
	case resp.Status == meta.StatusNF:
		c.stats.recordError()
		return &NotFoundError{Key: key}
	case resp.IsCASMismatch():
		c.stats.recordError()
		return &StoreError{Key: key, Status: string(resp.Status)}
	case resp.Status != meta.StatusHD:
		c.stats.recordError()
		return fmt.Errorf("delete failed with status: %s", resp.Status)
	}

	c.stats.recordDelete()
	return nil
}

// Touch updates a key's TTL without fetching its value. Returns
// NotFoundError if the key does not exist.
func (c *Commands) Touch(ctx context.Context, key string, ttl int64) error {
	req := meta.NewRequest(meta.CmdGet, key, nil, []meta.Flag{meta.FormatFlagInt64(meta.FlagTTL, ttl)})
	resp, err := c.execute(ctx, key, req)
	if err != nil {
		return err
	}

	if resp.HasError() {
		c.stats.recordError()
		return &ProtocolError{Err: resp.Error}
	}
	if resp.IsMiss() {
		c.stats.recordError()
		return &NotFoundError{Key: key}
	}
	if !resp.IsSuccess() {
		c.stats.recordError()
		return fmt.Errorf("touch failed with status: %s", resp.Status)
	}

	return nil
}

// GAT (get-and-touch) fetches a value and updates its TTL in one round trip.
func (c *Commands) GAT(ctx context.Context, key string, ttl int64, opts ...GetOption) (Item, error) {
	o := resolveGetOptions(opts)
	o.updateTTL = &ttl
	req := meta.NewRequest(meta.CmdGet, key, nil, getFlags(o))
	resp, err := c.execute(ctx, key, req)
	if err != nil {
		return Item{}, err
	}

	if resp.IsMiss() {
		c.stats.recordGet(false)
		return Item{Key: key, Found: false}, nil
	}
	if resp.HasError() {
		c.stats.recordError()
		return Item{}, &ProtocolError{Err: resp.Error}
	}
	if !resp.IsSuccess() {
		c.stats.recordError()
		return Item{}, fmt.Errorf("unexpected response status: %s", resp.Status)
	}

	c.stats.recordGet(true)
	return itemFromResponse(key, resp), nil
}

// Arithmetic performs an ma increment/decrement. delta is always
// non-negative; decrement selects ModeDecrement explicitly rather than
// sending a negative delta. When vivify is true, a missing key is created
// with initial (stored verbatim, independent of delta) and the given ttl;
// without vivify, a miss returns NotFoundError.
func (c *Commands) Arithmetic(ctx context.Context, key string, delta uint64, decrement bool, vivify bool, initial uint64, ttl int64) (uint64, error) {
	flags := []meta.Flag{
		{Type: meta.FlagReturnValue},
		meta.FormatFlagUint64(meta.FlagDelta, delta),
	}

	if decrement {
		flags = append(flags, meta.Flag{Type: meta.FlagMode, Token: meta.ModeDecrement})
	}
	if vivify {
		flags = append(flags,
			meta.FormatFlagUint64(meta.FlagInitialValue, initial),
			meta.FormatFlagInt64(meta.FlagVivify, ttl),
		)
	}

	req := meta.NewRequest(meta.CmdArithmetic, key, nil, flags)
	resp, err := c.execute(ctx, key, req)
	if err != nil {
		return 0, err
	}

	if resp.HasError() {
		c.stats.recordError()
		return 0, &ArithmeticError{Key: key, Err: resp.Error}
	}

	if resp.IsMiss() {
		c.stats.recordError()
		return 0, &NotFoundError{Key: key}
	}

	if !resp.IsSuccess() || !resp.HasValue() {
		c.stats.recordError()
		return 0, &ArithmeticError{Key: key, Err: fmt.Errorf("unexpected response status: %s", resp.Status)}
	}

	value, err := strconv.ParseUint(string(resp.Data), 10, 64)
	if err != nil {
		c.stats.recordError()
		return 0, &ArithmeticError{Key: key, Err: err}
	}

	c.stats.recordIncrement()
	return value, nil
}
