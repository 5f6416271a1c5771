package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/chainwatch/chainwatch/progress"
	"github.com/chainwatch/chainwatch/rpcpipe"
)

// fakeProvider returns canned logs per range and a fixed head: head=125,
// 3 logs in [100,110), 2 in [110,120), 0 in [120,125].
type fakeProvider struct {
	head uint64
}

func (f *fakeProvider) GetBlockNumber(ctx context.Context) (uint64, error) { return f.head, nil }

func (f *fakeProvider) GetBlockByNumber(ctx context.Context, numberOrTag any, hydrate bool) (*rpcpipe.Block, error) {
	return nil, nil
}

func (f *fakeProvider) GetLogs(ctx context.Context, filter rpcpipe.Filter) ([]rpcpipe.Log, error) {
	switch {
	case filter.FromBlock == 100 && filter.ToBlock == 110:
		return make([]types.Log, 3), nil
	case filter.FromBlock == 110 && filter.ToBlock == 120:
		return make([]types.Log, 2), nil
	case filter.FromBlock == 120:
		return nil, nil
	}
	return nil, nil
}

type countingReporter struct {
	mu      sync.Mutex
	updates []progress.Update
}

func (r *countingReporter) Send(u progress.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *countingReporter) endBlocks() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ends []uint64
	for _, u := range r.updates {
		if u.Kind == progress.SetEndBlock {
			ends = append(ends, u.Value)
		}
	}
	return ends
}

type countingHandler struct {
	name  string
	count atomic.Int64
	done  chan struct{}
	want  int64
	order []int64
	mu    sync.Mutex
}

func newCountingHandler(name string, want int64) *countingHandler {
	return &countingHandler{name: name, want: want, done: make(chan struct{})}
}

func (h *countingHandler) Handle(ctx context.Context, ec EventContext) error {
	n := h.count.Add(1)
	h.mu.Lock()
	h.order = append(h.order, n)
	h.mu.Unlock()
	if n == h.want {
		close(h.done)
	}
	return nil
}

func (h *countingHandler) Name() string           { return h.name }
func (h *countingHandler) EventSignature() string { return "Transfer(address,address,uint256)" }

// Parallel mode: 5 handler invocations total, cursor progresses
// 100 -> 110 -> 120 -> 125.
func TestRunEvent_Parallel_DispatchesAllLogs(t *testing.T) {
	handler := newCountingHandler("transfers-parallel", 5)
	reporter := &countingReporter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go RunEvent(ctx, EventWorkerConfig{
		Handler:       handler,
		Provider:      &fakeProvider{head: 125},
		Templates:     nil,
		Progress:      reporter,
		Address:       []byte{0x01},
		StartBlock:    100,
		Step:          10,
		ExecutionMode: Parallel,
	})

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler invoked %d times, want 5", handler.count.Load())
	}

	require.Equal(t, int64(5), handler.count.Load())
	require.Eventually(t, func() bool {
		ends := reporter.endBlocks()
		return len(ends) >= 2 && ends[0] == 110 && ends[1] == 120
	}, time.Second, time.Millisecond)
}

// Serial mode: invocations run one at a time on the worker goroutine, so the
// sequence numbers the handler records come out as 1..N with none
// interleaved. The fake's logs are identical, so this does not distinguish
// one RPC-returned order from another.
func TestRunEvent_Serial_PreservesOrder(t *testing.T) {
	handler := newCountingHandler("transfers-serial", 5)
	reporter := &countingReporter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go RunEvent(ctx, EventWorkerConfig{
		Handler:       handler,
		Provider:      &fakeProvider{head: 125},
		Progress:      reporter,
		Address:       []byte{0x01},
		StartBlock:    100,
		Step:          10,
		ExecutionMode: Serial,
	})

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler invoked %d times, want 5", handler.count.Load())
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	for i, n := range handler.order {
		require.EqualValues(t, i+1, n, "serial invocations must be strictly ordered 1..N")
	}
}
