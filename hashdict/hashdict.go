// Package hashdict implements a chained hash table with incremental,
// bounded-work rehashing: no single insert ever pays for a full resize, the
// cost is spread across the operations that follow a resize trigger.
package hashdict

import (
	"github.com/rpcpool/kvcore/metrics"
	"github.com/rpcpool/kvcore/value"
)

// DefaultWorkUnit is the number of non-empty buckets a single public
// operation migrates before returning control to the caller, absent an
// explicit override (e.g. from the server's --rehash-work flag).
const DefaultWorkUnit = 10

const initialCapacity = 4

type node struct {
	key  []byte
	val  value.Value
	next *node
}

type table struct {
	buckets []*node
	used    int
}

func newTable(size int) *table {
	return &table{buckets: make([]*node, size)}
}

func (t *table) mask() uint32 { return uint32(len(t.buckets) - 1) }

// Dict is a chained hash table that migrates incrementally from a primary
// table into a larger secondary table once load factor reaches 1.
type Dict struct {
	primary   *table
	secondary *table // nil when not migrating
	cursor    int

	workUnit             int
	emptyBucketScanLimit int
}

// New returns an empty Dict with the initial bucket capacity, migrating
// workUnit non-empty buckets per operation once a resize starts.
func New(workUnit int) *Dict {
	if workUnit <= 0 {
		workUnit = DefaultWorkUnit
	}
	return &Dict{
		primary:              newTable(initialCapacity),
		workUnit:             workUnit,
		emptyBucketScanLimit: 10 * workUnit,
	}
}

// Len returns the number of distinct keys currently stored.
func (d *Dict) Len() int {
	n := d.primary.used
	if d.secondary != nil {
		n += d.secondary.used
	}
	return n
}

func bucketFor(t *table, hash uint32) int {
	return int(hash & t.mask())
}

func findInBucket(t *table, bucket int, key []byte) *node {
	for n := t.buckets[bucket]; n != nil; n = n.next {
		if string(n.key) == string(key) {
			return n
		}
	}
	return nil
}

// Insert overwrites any existing value for key. Key bytes are copied; the
// caller's slice may be reused afterward.
func (d *Dict) Insert(key []byte, v value.Value) {
	d.stepMigration()

	h := FNV1a32(key)
	target := d.primary
	if d.migrating() {
		target = d.secondary
	}
	bucket := bucketFor(target, h)
	if n := findInBucket(target, bucket, key); n != nil {
		n.val = v
		return
	}
	if d.migrating() {
		// The key may still sit in a primary bucket not yet migrated.
		if n := findInBucket(d.primary, bucketFor(d.primary, h), key); n != nil {
			n.val = v
			return
		}
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	target.buckets[bucket] = &node{key: cp, val: v, next: target.buckets[bucket]}
	target.used++

	if !d.migrating() && d.primary.used >= len(d.primary.buckets) {
		d.beginMigration()
	}
}

// Lookup returns the value stored for key, if any. The returned Value is a
// copy of the stored tag; its ziplist pointer (for list values) is shared
// with the dict's storage, so in-place list mutation is visible to both.
func (d *Dict) Lookup(key []byte) (value.Value, bool) {
	d.stepMigration()

	h := FNV1a32(key)
	if d.migrating() {
		if n := findInBucket(d.secondary, bucketFor(d.secondary, h), key); n != nil {
			return n.val, true
		}
	}
	if n := findInBucket(d.primary, bucketFor(d.primary, h), key); n != nil {
		return n.val, true
	}
	return value.Value{}, false
}

// LookupMut returns a pointer to the stored node's value, for callers that
// need to mutate a list in place (LPUSH/RPUSH/LPOP/RPOP) without a
// lookup-then-reinsert round trip.
func (d *Dict) LookupMut(key []byte) (*value.Value, bool) {
	d.stepMigration()

	h := FNV1a32(key)
	if d.migrating() {
		if n := findInBucket(d.secondary, bucketFor(d.secondary, h), key); n != nil {
			return &n.val, true
		}
	}
	if n := findInBucket(d.primary, bucketFor(d.primary, h), key); n != nil {
		return &n.val, true
	}
	return nil, false
}

// Delete removes key, reporting whether it was present. During migration
// both tables are attempted since the key may reside in either.
func (d *Dict) Delete(key []byte) bool {
	d.stepMigration()

	h := FNV1a32(key)
	removed := false
	if d.migrating() {
		if deleteFrom(d.secondary, bucketFor(d.secondary, h), key) {
			removed = true
		}
	}
	if deleteFrom(d.primary, bucketFor(d.primary, h), key) {
		removed = true
	}
	return removed
}

func deleteFrom(t *table, bucket int, key []byte) bool {
	var prev *node
	for n := t.buckets[bucket]; n != nil; n = n.next {
		if string(n.key) == string(key) {
			if prev == nil {
				t.buckets[bucket] = n.next
			} else {
				prev.next = n.next
			}
			t.used--
			return true
		}
		prev = n
	}
	return false
}

func (d *Dict) migrating() bool { return d.secondary != nil }

func (d *Dict) beginMigration() {
	d.secondary = newTable(len(d.primary.buckets) * 2)
	d.cursor = 0
}

// stepMigration moves up to workUnit non-empty buckets from primary into
// secondary, called at the top of every public operation. A second,
// looser bound caps how many buckets total (empty ones included) get
// visited, so a stretch of already-drained buckets can't turn one call
// into an unbounded scan of primary. When the cursor reaches the end of
// primary, the tables swap and migration ends.
func (d *Dict) stepMigration() {
	if !d.migrating() {
		return
	}
	drained := 0
	scanned := 0
	for drained < d.workUnit && scanned < d.emptyBucketScanLimit && d.cursor < len(d.primary.buckets) {
		scanned++
		bucket := d.primary.buckets[d.cursor]
		if bucket != nil {
			count := countChain(bucket)
			for n := bucket; n != nil; {
				next := n.next
				h := FNV1a32(n.key)
				sb := bucketFor(d.secondary, h)
				n.next = d.secondary.buckets[sb]
				d.secondary.buckets[sb] = n
				d.secondary.used++
				n = next
			}
			d.primary.used -= count
			d.primary.buckets[d.cursor] = nil
			drained++
			metrics.RehashSteps.Inc()
		}
		d.cursor++
	}
	if d.cursor >= len(d.primary.buckets) {
		d.primary = d.secondary
		d.secondary = nil
		d.cursor = 0
	}
}

func countChain(n *node) int {
	c := 0
	for ; n != nil; n = n.next {
		c++
	}
	return c
}
