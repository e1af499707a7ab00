package memcache

import (
	"sort"
	"strconv"

	"github.com/zeebo/xxh3"
)

// vnodesPerEndpoint matches libketama's common convention: enough virtual
// nodes per physical endpoint to keep key distribution even without making
// the ring's sorted slice unreasonably large.
const vnodesPerEndpoint = 160

type vnode struct {
	hash uint64
	pool *ServerPool
}

// Ring is an immutable consistent-hash map from key to *ServerPool. Built
// once at Client construction time; Pick is lock-free and safe for
// concurrent use from any number of goroutines.
type Ring struct {
	nodes []vnode
}

// NewRing builds a ring over the given server pools. pools must be
// addressed uniquely (Ring does not deduplicate endpoints); an empty ring's
// Pick and PickBytes return nil.
func NewRing(pools []*ServerPool) *Ring {
	nodes := make([]vnode, 0, len(pools)*vnodesPerEndpoint)

	for _, pool := range pools {
		for i := 0; i < vnodesPerEndpoint; i++ {
			label := pool.Address() + "-" + strconv.Itoa(i)
			nodes = append(nodes, vnode{
				hash: xxh3.HashString(label),
				pool: pool,
			})
		}
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].hash < nodes[j].hash })

	return &Ring{nodes: nodes}
}

// Pick returns the server pool responsible for key: the first virtual node
// whose hash is >= hash(key) on the sorted ring, wrapping to index 0 if key
// hashes past every virtual node.
func (r *Ring) Pick(key string) *ServerPool {
	if len(r.nodes) == 0 {
		return nil
	}

	h := xxh3.HashString(key)
	idx := sort.Search(len(r.nodes), func(i int) bool { return r.nodes[i].hash >= h })
	if idx == len(r.nodes) {
		idx = 0
	}
	return r.nodes[idx].pool
}

// PickBytes is Pick for a []byte key, hashed directly without a UTF-8
// round trip through string.
func (r *Ring) PickBytes(key []byte) *ServerPool {
	if len(r.nodes) == 0 {
		return nil
	}

	h := xxh3.Hash(key)
	idx := sort.Search(len(r.nodes), func(i int) bool { return r.nodes[i].hash >= h })
	if idx == len(r.nodes) {
		idx = 0
	}
	return r.nodes[idx].pool
}

// Endpoints returns every distinct *ServerPool backing the ring, in no
// particular order. Client's own FlushAll and ServerStats iterate its
// configured pools rather than calling this.
func (r *Ring) Endpoints() []*ServerPool {
	seen := make(map[*ServerPool]bool)
	var pools []*ServerPool
	for _, n := range r.nodes {
		if !seen[n.pool] {
			seen[n.pool] = true
			pools = append(pools, n.pool)
		}
	}
	return pools
}
