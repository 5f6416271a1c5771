package scheduler

import (
	"context"

	"github.com/ethereum/go-ethereum/log"

	"github.com/chainwatch/chainwatch/headwatch"
	"github.com/chainwatch/chainwatch/progress"
	"github.com/chainwatch/chainwatch/rpcpipe"
	"github.com/chainwatch/chainwatch/templates"
)

// BlockWorkerConfig is everything one block-scheduler worker needs.
type BlockWorkerConfig struct {
	Handler   BlockHandler
	Provider  rpcpipe.API
	Templates *templates.Manager
	Progress  Reporter

	StartBlock    uint64
	Step          uint64
	ExecutionMode ExecutionMode
}

// RunBlock drives the block-scheduler tick loop. Unlike the event scheduler
// it never walks every block in a window: each tick dispatches the handler
// once for the current cursor block, then advances the cursor by step — it
// samples block, block+step, block+2*step, ..., not every consecutive
// number.
func RunBlock(ctx context.Context, cfg BlockWorkerConfig) {
	name := cfg.Handler.Name()
	step := cfg.Step
	if step == 0 {
		step = DefaultEventStep
	}

	watcher := headwatch.New(cfg.Provider)
	cursor := cfg.StartBlock
	cfg.Progress.Send(progress.Update{Handler: name, Kind: progress.SetStartBlock, Value: cursor})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		head, err := watcher.Get(ctx)
		if err != nil {
			log.Warn("scheduler: failed to read chain head", "handler", name, "err", err)
			if sleep(ctx, IdleBackoff) {
				return
			}
			continue
		}
		if cursor > head {
			if sleep(ctx, IdleBackoff) {
				return
			}
			continue
		}

		dispatchBlock(ctx, cfg, name, cursor)

		cfg.Progress.Send(progress.Update{Handler: name, Kind: progress.SetEndBlock, Value: cursor})
		cfg.Progress.Send(progress.Update{Handler: name, Kind: progress.IncrementProcessed, Value: 1})
		cursor += step
	}
}

func dispatchBlock(ctx context.Context, cfg BlockWorkerConfig, name string, blockNumber uint64) {
	bc := BlockContext{
		Provider:    cfg.Provider,
		Templates:   cfg.Templates,
		BlockNumber: blockNumber,
	}
	invoke := func() {
		if err := cfg.Handler.Handle(ctx, bc); err != nil {
			log.Warn("scheduler: handler returned error", "handler", name, "block", blockNumber, "err", err)
			cfg.Progress.Send(progress.Update{Handler: name, Kind: progress.IncrementFailures, Value: 1})
		}
	}
	if cfg.ExecutionMode == Serial {
		invoke()
		return
	}
	go invoke()
}
