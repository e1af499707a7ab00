package memcache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strconv"
	"sync"
)

// Reserved client-flag values for the default codec. Stored in the protocol's
// F<flags> token and returned verbatim in mg's f response flag, so Unmarshal
// can tell a []byte from a string from an int from an arbitrary gob-encoded
// value without a side channel.
const (
	FlagBytes      uint32 = 0
	FlagStr        uint32 = 1 << 0
	FlagInt        uint32 = 1 << 1
	FlagStructured uint32 = 1 << 2
)

// ValueCodec converts between in-memory values and the (bytes, flag) pairs
// the wire protocol stores. Marshal picks a flag value describing the
// encoding; Unmarshal must accept every flag value its own Marshal can
// produce, plus FlagBytes for values written by another client entirely.
type ValueCodec interface {
	Marshal(key string, v any) ([]byte, uint32, error)
	Unmarshal(key string, data []byte, flag uint32) (any, error)
}

// defaultCodec mirrors the reference client's serialize.py: strings and
// []byte pass through untouched, ints are stored as their decimal ASCII
// form (so they remain usable by memcached's own incr/decr), and anything
// else falls back to gob, this repo's stand-in for the Python codec's
// arbitrary-object pickle fallback.
type defaultCodec struct{}

// DefaultCodec is the ValueCodec used when Config.Codec is nil.
var DefaultCodec ValueCodec = defaultCodec{}

func (defaultCodec) Marshal(key string, v any) ([]byte, uint32, error) {
	switch val := v.(type) {
	case []byte:
		return val, FlagBytes, nil
	case string:
		return []byte(val), FlagStr, nil
	case int:
		return []byte(strconv.Itoa(val)), FlagInt, nil
	case int64:
		return []byte(strconv.FormatInt(val, 10)), FlagInt, nil
	case uint64:
		return []byte(strconv.FormatUint(val, 10)), FlagInt, nil
	default:
		if v != nil {
			gob.Register(v)
		}
		buf := gobBufferPool.Get()
		defer gobBufferPool.Put(buf)
		if err := gob.NewEncoder(buf).Encode(&v); err != nil {
			return nil, 0, fmt.Errorf("metacache: gob encode for key %q: %w", key, err)
		}
		out := make([]byte, buf.Len())
		copy(out, buf.Bytes())
		return out, FlagStructured, nil
	}
}

func (defaultCodec) Unmarshal(key string, data []byte, flag uint32) (any, error) {
	switch flag {
	case FlagBytes:
		return data, nil
	case FlagStr:
		return string(data), nil
	case FlagInt:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return nil, &DecodeError{Key: key, Err: err}
		}
		return n, nil
	case FlagStructured:
		var v any
		dec := gob.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&v); err != nil {
			return nil, &DecodeError{Key: key, Err: err}
		}
		return v, nil
	default:
		return nil, &DecodeError{Key: key, Err: fmt.Errorf("unknown flag %d", flag)}
	}
}

// gobBufferPool recycles the scratch buffers defaultCodec uses to gob-encode
// structured values, so a Set-heavy workload on non-primitive types doesn't
// allocate a fresh bytes.Buffer per call.
var gobBufferPool = newByteBufferPool(256)

type byteBufferPool struct {
	pool sync.Pool
}

func newByteBufferPool(initialSize int) *byteBufferPool {
	return &byteBufferPool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialSize))
			},
		},
	}
}

func (p *byteBufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

func (p *byteBufferPool) Put(buf *bytes.Buffer) {
	buf.Reset()
	p.pool.Put(buf)
}

// encodeUint32Flag renders a uint32 client-flags value as its decimal ASCII
// form for the ms command's F flag token.
func encodeUint32Flag(flag uint32) string {
	return strconv.FormatUint(uint64(flag), 10)
}

// decodeUint32Flag parses the mg f response flag token back into a uint32.
func decodeUint32Flag(token string) (uint32, error) {
	n, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
