package bufferpool

import (
	"container/list"
	"sync"

	"github.com/pageengine/pageengine/internal/storage"
)

// Replacer tracks the set of unpinned occupied frames, from least to most
// recently used, so that the pool can pick an eviction victim in O(1).
//
// A page id is a member of the replacer iff its frame is currently
// occupied and unpinned. Membership is added by Unpin and removed by Pin
// or Remove.
type Replacer struct {
	mu    sync.Mutex
	order *list.List
	elems map[storage.PageID]*list.Element
}

func NewReplacer() *Replacer {
	return &Replacer{
		order: list.New(),
		elems: make(map[storage.PageID]*list.Element),
	}
}

// Unpin marks id as the most recently unpinned frame.
func (r *Replacer) Unpin(id storage.PageID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.elems[id]; ok {
		return
	}
	r.elems[id] = r.order.PushBack(id)
}

// Pin removes id from eviction consideration; called when a frame
// transitions from unpinned to pinned.
func (r *Replacer) Pin(id storage.PageID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

// Remove drops id from the replacer without returning it as a victim
// (used on eviction and on drop_page).
func (r *Replacer) Remove(id storage.PageID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *Replacer) removeLocked(id storage.PageID) {
	if elem, ok := r.elems[id]; ok {
		r.order.Remove(elem)
		delete(r.elems, id)
	}
}

// Victim returns and removes the least-recently-used id, if any.
func (r *Replacer) Victim() (storage.PageID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	front := r.order.Front()
	if front == nil {
		return storage.NonePage, false
	}
	id := front.Value.(storage.PageID)
	r.order.Remove(front)
	delete(r.elems, id)
	return id, true
}

// Len reports how many frames are currently eviction candidates.
func (r *Replacer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

// IDs returns the tracked page ids from least to most recently used.
// Used by the snapshot surface; does not mutate the replacer.
func (r *Replacer) IDs() []storage.PageID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]storage.PageID, 0, r.order.Len())
	for e := r.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(storage.PageID))
	}
	return out
}
