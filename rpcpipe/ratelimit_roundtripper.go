package rpcpipe

import (
	"net/http"
	"sync"
	"time"
)

// RateLimitRoundTripper enforces "no more than Limit admitted calls per
// Period" in front of Next. It implements a fixed-window reservation state
// machine rather than adapting a token-bucket limiter: the admission is
// charged when readiness is granted, not when the call completes, which is
// a different law than continuous refill and has no drop-in library
// equivalent in the dependency graph.
type RateLimitRoundTripper struct {
	Limit  int
	Period time.Duration
	Next   http.RoundTripper

	mu        sync.Mutex
	windowEnd time.Time
	reserved  int
}

func (rt *RateLimitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.awaitAdmission()
	return rt.Next.RoundTrip(req)
}

// awaitAdmission blocks until a slot in the current (or a future) window is
// reserved for this call.
func (rt *RateLimitRoundTripper) awaitAdmission() {
	for {
		rt.mu.Lock()
		now := time.Now()
		if rt.windowEnd.IsZero() || now.After(rt.windowEnd) || now.Equal(rt.windowEnd) {
			rt.windowEnd = now.Add(rt.Period)
			rt.reserved = 0
		}
		if rt.reserved < rt.Limit {
			rt.reserved++
			rt.mu.Unlock()
			return
		}
		wait := rt.windowEnd.Sub(now)
		rt.mu.Unlock()
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		<-timer.C
	}
}
