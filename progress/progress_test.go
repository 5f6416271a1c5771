package progress

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTracker_AppliesUpdatesAndExposesMetrics(t *testing.T) {
	tr := NewTracker()
	t.Cleanup(tr.Close)

	tr.Send(Update{Handler: "Transfers", Kind: SetStartBlock, Value: 100})
	tr.Send(Update{Handler: "Transfers", Kind: SetEndBlock, Value: 110})
	tr.Send(Update{Handler: "Transfers", Kind: IncrementProcessed, Value: 5})

	require.Eventually(t, func() bool {
		start, end, processed, _ := tr.Snapshot("Transfers")
		return start == 100 && end == 110 && processed == 5
	}, time.Second, time.Millisecond)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	tr.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	require.Contains(t, body, "chainwatch_start_block")
	require.Contains(t, body, "chainwatch_processed_blocks_total")
	require.Contains(t, body, "chainwatch_end_block")
	require.Contains(t, body, `handler="Transfers"`)
}
