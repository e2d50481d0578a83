package frontier

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

// TestRegistryTryClaim tests single-caller claim semantics.
func TestRegistryTryClaim(t *testing.T) {
	t.Parallel()

	t.Run("first claim wins", func(t *testing.T) {
		t.Parallel()

		reg := New()
		if !reg.TryClaim("https://example.com/wiki/A") {
			t.Error("expected first claim to succeed")
		}
		if reg.TryClaim("https://example.com/wiki/A") {
			t.Error("expected second claim to fail")
		}
	})

	t.Run("distinct urls are independent", func(t *testing.T) {
		t.Parallel()

		reg := New()
		for _, u := range []string{"https://example.com/wiki/A", "https://example.com/wiki/B"} {
			if !reg.TryClaim(u) {
				t.Errorf("expected claim of %s to succeed", u)
			}
		}
		if reg.Len() != 2 {
			t.Errorf("expected 2 claims, got %d", reg.Len())
		}
	})

	t.Run("no normalization is applied", func(t *testing.T) {
		t.Parallel()

		reg := New()
		reg.TryClaim("https://example.com/wiki/A")
		if !reg.TryClaim("https://example.com/wiki/A#History") {
			t.Error("expected fragment variant to be a distinct url")
		}
	})

	t.Run("claimed reflects state", func(t *testing.T) {
		t.Parallel()

		reg := New()
		if reg.Claimed("https://example.com/wiki/A") {
			t.Error("expected url to be unclaimed")
		}
		reg.TryClaim("https://example.com/wiki/A")
		if !reg.Claimed("https://example.com/wiki/A") {
			t.Error("expected url to be claimed")
		}
	})
}

// TestRegistryConcurrentClaims races many goroutines over overlapping URL
// sets and checks that every URL is won exactly once.
func TestRegistryConcurrentClaims(t *testing.T) {
	t.Parallel()

	const (
		goroutines = 64
		urls       = 500
	)

	reg := New()
	wins := make([]atomic.Int32, urls)

	var start sync.WaitGroup
	start.Add(1)

	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start.Wait()
			// Each goroutine walks the set from a different offset so that
			// claims on the same URL actually collide.
			for i := range urls {
				idx := (i + g*7) % urls
				if reg.TryClaim(fmt.Sprintf("https://example.com/wiki/P%d", idx)) {
					wins[idx].Add(1)
				}
			}
		}()
	}
	start.Done()
	wg.Wait()

	for i := range wins {
		if n := wins[i].Load(); n != 1 {
			t.Errorf("url %d claimed %d times, want 1", i, n)
		}
	}
	if reg.Len() != urls {
		t.Errorf("expected %d claims, got %d", urls, reg.Len())
	}
}
