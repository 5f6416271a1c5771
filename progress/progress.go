// Package progress implements the progress/metrics plane: a per-handler
// counter vector updated by a single consumer goroutine and exposed over
// HTTP in Prometheus exposition format.
package progress

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Update is a message a worker emits after doing work; the consumer
// goroutine is the only thing that ever mutates tracker state.
type Update struct {
	Handler string
	Kind    UpdateKind
	Value   uint64
}

// UpdateKind tags the payload carried by an Update.
type UpdateKind int

const (
	// SetStartBlock records the configured start block for a handler.
	SetStartBlock UpdateKind = iota
	// SetEndBlock records the end of the most recently completed tick.
	SetEndBlock
	// IncrementProcessed adds Value to the handler's processed-unit counter.
	IncrementProcessed
	// IncrementFailures adds Value to the handler's failed-dispatch counter.
	IncrementFailures
)

type handlerState struct {
	startBlock uint64
	endBlock   uint64
	processed  uint64
	failures   uint64
}

// Tracker is the single-writer state vector backing the metrics plane.
type Tracker struct {
	updates chan Update

	registry  *prometheus.Registry
	startGV   *prometheus.GaugeVec
	endGV     *prometheus.GaugeVec
	processed *prometheus.CounterVec
	failures  *prometheus.CounterVec

	mu     sync.Mutex
	states map[string]*handlerState
}

// NewTracker creates a Tracker and starts its consumer goroutine. Call
// Close when the indexer shuts down (optional: the process usually exits
// first).
func NewTracker() *Tracker {
	registry := prometheus.NewRegistry()
	t := &Tracker{
		updates: make(chan Update, 256),
		registry: registry,
		startGV: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainwatch_start_block",
			Help: "Configured start block for a handler.",
		}, []string{"handler"}),
		endGV: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainwatch_end_block",
			Help: "End block of the most recently completed scheduling tick.",
		}, []string{"handler"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainwatch_processed_blocks_total",
			Help: "Monotonic count of dispatched units of work (logs or blocks).",
		}, []string{"handler"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainwatch_handler_failures_total",
			Help: "Count of handler invocations that returned an error.",
		}, []string{"handler"}),
		states: make(map[string]*handlerState),
	}
	registry.MustRegister(t.startGV, t.endGV, t.processed, t.failures)
	go t.run()
	return t
}

func (t *Tracker) run() {
	for u := range t.updates {
		t.apply(u)
	}
}

func (t *Tracker) apply(u Update) {
	t.mu.Lock()
	s, ok := t.states[u.Handler]
	if !ok {
		s = &handlerState{}
		t.states[u.Handler] = s
	}
	switch u.Kind {
	case SetStartBlock:
		s.startBlock = u.Value
		t.startGV.WithLabelValues(u.Handler).Set(float64(u.Value))
	case SetEndBlock:
		s.endBlock = u.Value
		t.endGV.WithLabelValues(u.Handler).Set(float64(u.Value))
	case IncrementProcessed:
		s.processed += u.Value
		t.processed.WithLabelValues(u.Handler).Add(float64(u.Value))
	case IncrementFailures:
		s.failures += u.Value
		t.failures.WithLabelValues(u.Handler).Add(float64(u.Value))
	}
	t.mu.Unlock()
}

// Send enqueues an update for the consumer goroutine to apply.
func (t *Tracker) Send(u Update) {
	t.updates <- u
}

// Snapshot returns the current (startBlock, endBlock, processed, failures)
// for a handler, mainly for tests.
func (t *Tracker) Snapshot(handler string) (start, end, processed, failures uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[handler]
	if !ok {
		return 0, 0, 0, 0
	}
	return s.startBlock, s.endBlock, s.processed, s.failures
}

// Handler serves the current snapshot in Prometheus's text exposition
// format.
func (t *Tracker) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Close stops the consumer goroutine. Safe to call once.
func (t *Tracker) Close() {
	close(t.updates)
}
