package chainwatch

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/chainwatch/chainwatch/progress"
	"github.com/chainwatch/chainwatch/rpcpipe"
	"github.com/chainwatch/chainwatch/scheduler"
	"github.com/chainwatch/chainwatch/templates"
)

type eventWork struct {
	handler EventHandler
	cfg     scheduler.EventWorkerConfig
}

type blockWork struct {
	handler BlockHandler
	cfg     scheduler.BlockWorkerConfig
}

// Indexer is the orchestrator: it owns the configuration catalog, the
// provider registry, the progress plane, and the template channel, and
// drives the worker lifecycle.
type Indexer struct {
	cfg Config

	registry *rpcpipe.Registry
	progress *progress.Tracker

	tmplManager *templates.Manager
	tmplCh      <-chan templates.Instance

	pendingEvents []eventWork
	pendingBlocks []blockWork
}

// New constructs an Indexer from cfg. It cannot fail: the provider registry
// opens no store and dials no endpoint until the first registration, so
// cache-directory and RPC URL errors are surfaced lazily from
// LoadEventHandler/LoadBlockHandler per the provider registry's own error
// taxonomy.
func New(cfg Config, cacheDir string) *Indexer {
	mgr, ch := templates.NewManager()
	return &Indexer{
		cfg:         cfg,
		registry:    rpcpipe.NewRegistry(cacheDir),
		progress:    progress.NewTracker(),
		tmplManager: mgr,
		tmplCh:      ch,
	}
}

// Progress exposes the metrics plane so a host program can serve it.
func (ix *Indexer) Progress() *progress.Tracker { return ix.progress }

// LoadEventHandler consumes the DataSource catalog entry matching
// handler.Name(), resolves its network, parses its address, obtains a
// shared Provider, and queues a worker. The catalog entry is
// removed so a second call with the same handler name fails with NotFound.
func (ix *Indexer) LoadEventHandler(ctx context.Context, handler EventHandler) error {
	name := handler.Name()
	ds, ok := ix.cfg.DataSources[name]
	if !ok {
		return &NotFound{Name: name}
	}
	delete(ix.cfg.DataSources, name)

	network, ok := ix.cfg.Networks[ds.Network]
	if !ok {
		return &NetworkNotFound{Name: ds.Network}
	}

	if !common.IsHexAddress(ds.Address) {
		return &InvalidAddress{Address: ds.Address}
	}
	address := common.HexToAddress(ds.Address)

	provider, err := ix.registry.GetOrCreate(ctx, network)
	if err != nil {
		return err
	}

	ix.pendingEvents = append(ix.pendingEvents, eventWork{
		handler: handler,
		cfg: scheduler.EventWorkerConfig{
			Handler:       handler,
			Provider:      provider,
			Templates:     ix.tmplManager,
			Progress:      ix.progress,
			Address:       address.Bytes(),
			StartBlock:    ds.StartBlock,
			Step:          effectiveStep(ds.Step),
			ExecutionMode: ds.ExecutionMode,
		},
	})
	return nil
}

// effectiveStep resolves a configured Step of zero to the scheduler's
// default stride, at registration time rather than deep in a worker's tick
// loop.
func effectiveStep(step uint64) uint64 {
	if step == 0 {
		return scheduler.DefaultEventStep
	}
	return step
}

// LoadBlockHandler is the block-handler analogue of LoadEventHandler.
func (ix *Indexer) LoadBlockHandler(ctx context.Context, handler BlockHandler) error {
	name := handler.Name()
	bc, ok := ix.cfg.BlockHandlers[name]
	if !ok {
		return &NotFound{Name: name}
	}
	delete(ix.cfg.BlockHandlers, name)

	network, ok := ix.cfg.Networks[bc.Network]
	if !ok {
		return &NetworkNotFound{Name: bc.Network}
	}

	provider, err := ix.registry.GetOrCreate(ctx, network)
	if err != nil {
		return err
	}

	ix.pendingBlocks = append(ix.pendingBlocks, blockWork{
		handler: handler,
		cfg: scheduler.BlockWorkerConfig{
			Handler:       handler,
			Provider:      provider,
			Templates:     ix.tmplManager,
			Progress:      ix.progress,
			StartBlock:    bc.StartBlock,
			Step:          effectiveStep(bc.Step),
			ExecutionMode: bc.ExecutionMode,
		},
	})
	return nil
}

// HandlerFactory lets a template instantiation build a fresh EventHandler
// for the address/start block it was spawned with; templates carry no
// handler object of their own (only a blueprint), so the host supplies one
// factory per template name.
type HandlerFactory func(address []byte, startBlock uint64) EventHandler

// Start spawns one worker per registered handler, then drains the template
// channel inline until ctx is done. factories maps template name ->
// constructor for the handler a template of that name should run; a
// template naming an unknown factory is fatal.
func (ix *Indexer) Start(ctx context.Context, factories map[string]HandlerFactory) error {
	for _, w := range ix.pendingEvents {
		go scheduler.RunEvent(ctx, w.cfg)
	}
	for _, w := range ix.pendingBlocks {
		go scheduler.RunBlock(ctx, w.cfg)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case inst, ok := <-ix.tmplCh:
			if !ok {
				return nil
			}
			if err := ix.spawnTemplate(ctx, inst, factories); err != nil {
				return err
			}
		}
	}
}

func (ix *Indexer) spawnTemplate(ctx context.Context, inst templates.Instance, factories map[string]HandlerFactory) error {
	tmpl, ok := ix.cfg.Templates[inst.Name]
	if !ok {
		return &NotFound{Name: inst.Name}
	}
	factory, ok := factories[inst.Name]
	if !ok {
		return fmt.Errorf("chainwatch: template %q has no registered handler factory", inst.Name)
	}

	network, ok := ix.cfg.Networks[tmpl.Network]
	if !ok {
		return &NetworkNotFound{Name: tmpl.Network}
	}

	provider, err := ix.registry.GetOrCreate(ctx, network)
	if err != nil {
		return err
	}

	handler := factory(inst.Address, inst.StartBlock)
	log.Info("chainwatch: instantiating template", "template", inst.Name, "handler", handler.Name(), "start_block", inst.StartBlock)

	go scheduler.RunEvent(ctx, scheduler.EventWorkerConfig{
		Handler:       handler,
		Provider:      provider,
		Templates:     ix.tmplManager,
		Progress:      ix.progress,
		Address:       inst.Address,
		StartBlock:    inst.StartBlock,
		ExecutionMode: tmpl.ExecutionMode,
	})
	return nil
}

// Close shuts down the provider registry and progress plane.
func (ix *Indexer) Close() {
	ix.registry.Close()
	ix.progress.Close()
}
