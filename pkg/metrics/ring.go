package metrics

import "sync"

// ring is a bounded buffer of records. When full, appends evict the oldest
// entry. The critical section covers only index arithmetic and one copy.
type ring struct {
	mu    sync.Mutex
	buf   []Record
	head  int // index of the oldest entry
	count int
}

func newRing(capacity int) *ring {
	return &ring{
		buf: make([]Record, capacity),
	}
}

func (r *ring) Append(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = rec
		r.count++
		return
	}

	// Full: overwrite the oldest and advance.
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
}

// NewestFirst returns up to limit records, newest first. limit <= 0 returns
// everything retained.
func (r *ring) NewestFirst(limit int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.count
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Record, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+r.count-1-i)%len(r.buf)]
	}
	return out
}

func (r *ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
