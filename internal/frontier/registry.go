package frontier

import (
	"sync"
	"sync/atomic"
)

// Claimer is the claim half of a Registry.
// Schedulers depend on this interface rather than on *Registry.
type Claimer interface {
	// TryClaim marks url as claimed and reports whether this call did it.
	TryClaim(url string) bool
}

// Registry is the dedup set of one crawl run.
//
// Entries are never removed. The zero value is not usable; call New.
type Registry struct {
	// claimed maps a page URL to struct{}{}.
	claimed sync.Map

	// count is the number of successful claims.
	count atomic.Int64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// TryClaim returns true iff url was unclaimed before this call.
// The test and the set happen in one LoadOrStore, so under any number of
// concurrent callers true is returned to exactly one of them per url.
func (r *Registry) TryClaim(url string) bool {
	if _, loaded := r.claimed.LoadOrStore(url, struct{}{}); loaded {
		return false
	}
	r.count.Add(1)
	return true
}

// Claimed reports whether url has been claimed.
func (r *Registry) Claimed(url string) bool {
	_, ok := r.claimed.Load(url)
	return ok
}

// Len returns the number of claimed URLs.
func (r *Registry) Len() int {
	return int(r.count.Load())
}
