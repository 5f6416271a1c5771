package rpcpipe

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Firing 10 requests concurrently against a limit of 3 per window admits at
// most 3 per window and never drops a call.
func TestRateLimitRoundTripper_AdmitsAtMostLimitPerPeriod(t *testing.T) {
	var mu sync.Mutex
	var admittedAt []time.Time

	inner := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		admittedAt = append(admittedAt, time.Now())
		mu.Unlock()
		return httptest.NewRecorder().Result(), nil
	})

	rt := &RateLimitRoundTripper{Limit: 3, Period: 200 * time.Millisecond, Next: inner}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPost, "http://localhost", nil)
			_, err := rt.RoundTrip(req)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, admittedAt, 10, "no call may be dropped")

	windowCounts := map[int]int{}
	for _, at := range admittedAt {
		window := int(at.Sub(start) / (200 * time.Millisecond))
		windowCounts[window]++
	}
	for window, count := range windowCounts {
		require.LessOrEqualf(t, count, 3, "window %d admitted %d calls, want <= limit", window, count)
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
