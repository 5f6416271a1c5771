package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainwatch/chainwatch/rpcpipe"
)

type fixedHeadProvider struct {
	head uint64
}

func (f *fixedHeadProvider) GetBlockNumber(ctx context.Context) (uint64, error) { return f.head, nil }

func (f *fixedHeadProvider) GetBlockByNumber(ctx context.Context, numberOrTag any, hydrate bool) (*rpcpipe.Block, error) {
	return nil, nil
}

func (f *fixedHeadProvider) GetLogs(ctx context.Context, filter rpcpipe.Filter) ([]rpcpipe.Log, error) {
	return nil, nil
}

type countingBlockHandler struct {
	name  string
	count atomic.Int64
	seen  chan uint64
}

func (h *countingBlockHandler) Handle(ctx context.Context, bc BlockContext) error {
	h.count.Add(1)
	h.seen <- bc.BlockNumber
	return nil
}

func (h *countingBlockHandler) Name() string { return h.name }

// Block workers sample one block per stride (cursor, cursor+step, ...)
// rather than walking every block number in the window.
func TestRunBlock_SamplesByStride(t *testing.T) {
	handler := &countingBlockHandler{name: "blocks", seen: make(chan uint64, 10)}
	reporter := &countingReporter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go RunBlock(ctx, BlockWorkerConfig{
		Handler:       handler,
		Provider:      &fixedHeadProvider{head: 125},
		Progress:      reporter,
		StartBlock:    100,
		Step:          10,
		ExecutionMode: Serial,
	})

	var seen []uint64
	for i := 0; i < 3; i++ {
		select {
		case n := <-handler.seen:
			seen = append(seen, n)
		case <-time.After(2 * time.Second):
			t.Fatalf("only saw %d block dispatches, want 3", len(seen))
		}
	}
	require.Equal(t, []uint64{100, 110, 120}, seen)
	require.EqualValues(t, 3, handler.count.Load())
}
