package memcache

import "time"

// Item is the in-memory representation of a cache entry passed to and
// returned from the high-level command surface. Value carries the raw bytes
// already marshaled by a ValueCodec; callers working through Client.Get/Set
// instead get back the typed GetResult[T] projection.
type Item struct {
	Key   string
	Value []byte

	// Flags is the opaque uint32 the protocol stores alongside the value
	// (the ms F<flags> token / mg f response flag), typically used by a
	// ValueCodec to record how Value was encoded.
	Flags uint32

	// TTL is the item's time to live. Zero means no expiration is set on
	// this request (leaves an existing TTL untouched for md/ms updates).
	TTL time.Duration

	// CAS is the compare-and-swap token from a prior Get, used to guard a
	// subsequent conditional Set. Nil means no CAS check is requested.
	CAS *uint64

	// Found reports whether Get/GetMany located the key. Irrelevant for Set.
	Found bool

	// The remaining fields are populated from mg response flags (t/l/s/h/W/X/Z)
	// when the request asked for them; nil/false means "not requested", not
	// "zero value".
	RemainingTTL *int64
	LastAccess   *int64
	Size         *uint64
	HitBefore    *bool
	IsStale      bool
	WonRecache   bool
	AlreadyWon   bool
}
