package memcache

import (
	"context"
	"fmt"

	"github.com/pior/metacache/meta"
)

// BatchExecutor runs a batch of independent meta requests and returns one
// response per request, in order. Client implements it by routing each
// request through the ring to its own endpoint and running the requests one
// after another.
type BatchExecutor interface {
	ExecuteBatch(ctx context.Context, reqs []*meta.Request) ([]*meta.Response, error)
}

// BatchCommands provides batch operations using a BatchExecutor.
type BatchCommands struct {
	executor BatchExecutor
}

// NewBatchCommands creates a new BatchCommands instance.
func NewBatchCommands(executor BatchExecutor) *BatchCommands {
	return &BatchCommands{
		executor: executor,
	}
}

// MultiGet retrieves multiple items in a single batch operation.
// Returns items in the same order as the keys, with Found=false for missing items.
func (b *BatchCommands) MultiGet(ctx context.Context, keys []string) ([]Item, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	reqs := make([]*meta.Request, len(keys))
	for i, key := range keys {
		reqs[i] = meta.NewRequest(meta.CmdGet, key, nil, []meta.Flag{{Type: meta.FlagReturnValue}})
	}

	responses, err := b.executor.ExecuteBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}

	items := make([]Item, len(keys))
	for i, resp := range responses {
		if i >= len(keys) {
			break
		}

		key := keys[i]

		if resp.HasError() {
			return nil, &ProtocolError{Err: resp.Error}
		}

		if resp.IsMiss() {
			items[i] = Item{Key: key, Found: false}
		} else if resp.IsSuccess() {
			items[i] = itemFromResponse(key, resp)
		} else {
			return nil, fmt.Errorf("unexpected response status for key %s: %s", key, resp.Status)
		}
	}

	return items, nil
}

// MultiSet stores multiple items in a single batch operation.
// Returns error on first failure.
func (b *BatchCommands) MultiSet(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	reqs := make([]*meta.Request, len(items))
	for i, item := range items {
		flags := []meta.Flag{{Type: meta.FlagClientFlags, Token: encodeUint32Flag(item.Flags)}}
		if item.TTL > 0 {
			flags = append(flags, meta.FormatFlagInt(meta.FlagTTL, int(item.TTL.Seconds())))
		}
		reqs[i] = meta.NewRequest(meta.CmdSet, item.Key, item.Value, flags)
	}

	responses, err := b.executor.ExecuteBatch(ctx, reqs)
	if err != nil {
		return err
	}

	for i, resp := range responses {
		if i >= len(items) {
			break
		}

		if resp.HasError() {
			return &ProtocolError{Err: resp.Error}
		}

		if !resp.IsSuccess() {
			return &StoreError{Key: items[i].Key, Status: string(resp.Status)}
		}
	}

	return nil
}

// MultiDelete removes multiple items in a single batch operation.
// Returns error on first failure.
func (b *BatchCommands) MultiDelete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	reqs := make([]*meta.Request, len(keys))
	for i, key := range keys {
		reqs[i] = meta.NewRequest(meta.CmdDelete, key, nil, nil)
	}

	responses, err := b.executor.ExecuteBatch(ctx, reqs)
	if err != nil {
		return err
	}

	for i, resp := range responses {
		if i >= len(keys) {
			break
		}

		if resp.HasError() {
			return &ProtocolError{Err: resp.Error}
		}

		if resp.Status != meta.StatusHD && resp.Status != meta.StatusNF {
			return fmt.Errorf("delete failed for key %s with status: %s", keys[i], resp.Status)
		}
	}

	return nil
}
