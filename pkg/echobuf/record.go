package echobuf

import (
	"bytes"
	"sync"

	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

// record is one registered slot.
//
// buf is allocated once with len(buf) == capacity and is only ever mutated
// in place. Bytes at or past length are zero.
type record struct {
	// mu is held for the full duration of every write and snapshot.
	mu sync.Mutex

	addr         slotaddr.Address
	namespace    string
	owner        []byte
	seed         uint64
	policy       Policy
	declaredSize uint64

	buf        []byte
	length     uint64
	written    bool
	generation uint64
}

func newRecord(addr slotaddr.Address, st recordState) *record {
	rec := &record{
		addr:         addr,
		namespace:    st.namespace,
		owner:        st.owner,
		seed:         st.seed,
		policy:       st.policy,
		declaredSize: st.declaredSize,
		buf:          make([]byte, st.capacity),
	}
	rec.apply(st)

	return rec
}

func (r *record) capacity() uint64 {
	return uint64(len(r.buf))
}

// state returns the current persisted state. data aliases buf.
// Caller must hold r.mu.
func (r *record) state() recordState {
	return recordState{
		namespace:    r.namespace,
		owner:        r.owner,
		seed:         r.seed,
		policy:       r.policy,
		capacity:     r.capacity(),
		data:         r.buf[:r.length],
		written:      r.written,
		declaredSize: r.declaredSize,
		generation:   r.generation,
	}
}

// next returns the state after writing payload, truncated to capacity.
// The record itself is not modified. Caller must hold r.mu.
func (r *record) next(payload []byte, markWritten bool) recordState {
	n := min(uint64(len(payload)), r.capacity())

	st := r.state()
	st.data = payload[:n]
	st.generation++

	if markWritten {
		st.written = true
	}

	return st
}

// apply copies st's data into the fixed buffer and zeroes whatever the
// previous write left past the new length. Caller must hold r.mu.
func (r *record) apply(st recordState) {
	n := uint64(copy(r.buf, st.data))
	if r.length > n {
		clear(r.buf[n:r.length])
	}

	r.length = n
	r.written = st.written
	r.generation = st.generation
}

// snapshot returns a deep copy for callers. Caller must hold r.mu.
func (r *record) snapshot() Record {
	rec := Record{
		Address:    r.addr,
		Namespace:  r.namespace,
		Owner:      bytes.Clone(r.owner),
		Seed:       r.seed,
		Policy:     r.policy,
		Capacity:   r.capacity(),
		Data:       bytes.Clone(r.buf[:r.length]),
		Written:    r.written,
		Generation: r.generation,
	}

	if r.policy == PolicyAuthorized {
		rec.OwnerSeed = r.seed
		rec.DeclaredSize = r.declaredSize
	}

	return rec
}
