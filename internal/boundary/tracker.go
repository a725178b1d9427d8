package boundary

// Tracker accounts for owned values crossing the boundary. Each transaction
// Context carries its own Tracker; a checkpoint for a given transaction is
// invoked on a single logical thread, so the counters need no locking.
type Tracker struct {
	allocs   uint64
	releases uint64
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Live returns the number of owned values allocated but not yet released.
// A nonzero Live count after a hook call returns means the plugin leaked.
func (t *Tracker) Live() int {
	return int(t.allocs - t.releases)
}

// Allocated returns the total number of allocations.
func (t *Tracker) Allocated() uint64 {
	return t.allocs
}

// Released returns the total number of releases.
func (t *Tracker) Released() uint64 {
	return t.releases
}

func (t *Tracker) allocated() {
	t.allocs++
}

func (t *Tracker) released() {
	t.releases++
}
