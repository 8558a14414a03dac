// Package store holds the pipeline's shared mutable state: the set of seen
// event identities and the in-memory working log.
package store

import (
	"container/list"
	"sync"
)

// Dedup is a mutex-guarded LRU set of event ids. Admission is idempotent:
// the first Admit for an id wins, later ones are suppressed regardless of
// which source delivered the duplicate. Capacity is explicit so a long
// session cannot grow the set without bound; eviction is least-recently-seen.
type Dedup struct {
	mu       sync.Mutex
	cap      int
	ll       *list.List               // most recently seen at front
	items    map[string]*list.Element // id -> element
	admitted uint64
}

func NewDedup(capacity int) *Dedup {
	if capacity <= 0 {
		capacity = 5000
	}
	return &Dedup{
		cap:   capacity,
		ll:    list.New(),
		items: make(map[string]*list.Element, capacity),
	}
}

// Admit registers the id if not previously seen and returns true; a seen id
// returns false and is refreshed in LRU order.
func (d *Dedup) Admit(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.items[id]; ok {
		d.ll.MoveToFront(el)
		return false
	}

	d.items[id] = d.ll.PushFront(id)
	d.admitted++

	for d.ll.Len() > d.cap {
		tail := d.ll.Back()
		d.ll.Remove(tail)
		delete(d.items, tail.Value.(string))
	}
	return true
}

// Len is the current number of tracked ids.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ll.Len()
}

// Admitted is the cumulative count of first-time admissions. It only grows,
// so eviction cannot re-open the startup warm-up gate.
func (d *Dedup) Admitted() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.admitted
}
