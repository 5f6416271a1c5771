package chainwatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubEventHandler struct{ name string }

func (h stubEventHandler) Handle(ctx context.Context, ec EventContext) error { return nil }
func (h stubEventHandler) Name() string                                     { return h.name }
func (h stubEventHandler) EventSignature() string                           { return "Transfer(address,address,uint256)" }

type stubBlockHandler struct{ name string }

func (h stubBlockHandler) Handle(ctx context.Context, bc BlockContext) error { return nil }
func (h stubBlockHandler) Name() string                                     { return h.name }

func testConfig() Config {
	return Config{
		Networks: map[string]Network{
			"mainnet": {Name: "mainnet", RPCURL: "http://127.0.0.1:8545", RequestsPerSecond: 10},
		},
		DataSources: map[string]DataSource{
			"transfers": {Network: "mainnet", Address: "0x0000000000000000000000000000000000000001", StartBlock: 100},
		},
		Templates: map[string]Template{},
		BlockHandlers: map[string]BlockHandlerConfig{
			"blocks": {Network: "mainnet", StartBlock: 100, Step: 10},
		},
	}
}

func TestIndexer_LoadEventHandler_ConsumesCatalogEntry(t *testing.T) {
	ix := New(testConfig(), t.TempDir())
	defer ix.Close()

	require.NoError(t, ix.LoadEventHandler(context.Background(), stubEventHandler{name: "transfers"}))
	require.Len(t, ix.pendingEvents, 1)

	err := ix.LoadEventHandler(context.Background(), stubEventHandler{name: "transfers"})
	require.Error(t, err)
	var notFound *NotFound
	require.ErrorAs(t, err, &notFound)
}

func TestIndexer_LoadEventHandler_UnknownName(t *testing.T) {
	ix := New(testConfig(), t.TempDir())
	defer ix.Close()

	err := ix.LoadEventHandler(context.Background(), stubEventHandler{name: "nope"})
	var notFound *NotFound
	require.ErrorAs(t, err, &notFound)
}

func TestIndexer_LoadEventHandler_NetworkNotFound(t *testing.T) {
	cfg := testConfig()
	cfg.DataSources["bad"] = DataSource{Network: "nope", Address: "0x000000000000000000000000000000000000000a"}
	ix := New(cfg, t.TempDir())
	defer ix.Close()

	err := ix.LoadEventHandler(context.Background(), stubEventHandler{name: "bad"})
	var netErr *NetworkNotFound
	require.ErrorAs(t, err, &netErr)
}

func TestIndexer_LoadEventHandler_InvalidAddress(t *testing.T) {
	cfg := testConfig()
	cfg.DataSources["bad"] = DataSource{Network: "mainnet", Address: "not-an-address"}
	ix := New(cfg, t.TempDir())
	defer ix.Close()

	err := ix.LoadEventHandler(context.Background(), stubEventHandler{name: "bad"})
	var invalid *InvalidAddress
	require.ErrorAs(t, err, &invalid)
}

func TestIndexer_LoadBlockHandler_ConsumesCatalogEntry(t *testing.T) {
	ix := New(testConfig(), t.TempDir())
	defer ix.Close()

	require.NoError(t, ix.LoadBlockHandler(context.Background(), stubBlockHandler{name: "blocks"}))
	require.Len(t, ix.pendingBlocks, 1)

	err := ix.LoadBlockHandler(context.Background(), stubBlockHandler{name: "blocks"})
	var notFound *NotFound
	require.ErrorAs(t, err, &notFound)
}
