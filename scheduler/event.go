package scheduler

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/chainwatch/chainwatch/headwatch"
	"github.com/chainwatch/chainwatch/progress"
	"github.com/chainwatch/chainwatch/rpcpipe"
	"github.com/chainwatch/chainwatch/templates"
)

// EventWorkerConfig is everything one event-scheduler worker needs.
type EventWorkerConfig struct {
	Handler   EventHandler
	Provider  rpcpipe.API
	Templates *templates.Manager
	Progress  Reporter

	Address       []byte
	StartBlock    uint64
	Step          uint64
	ExecutionMode ExecutionMode
}

// RunEvent drives the tick loop until ctx is done. It is
// meant to be launched with `go RunEvent(...)` — one per registered event
// handler, and one more per template instantiation.
func RunEvent(ctx context.Context, cfg EventWorkerConfig) {
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

		end := cursor + step
		head, err := watcher.Get(ctx)
		if err != nil {
			log.Warn("scheduler: failed to read chain head", "handler", name, "err", err)
			if sleep(ctx, IdleBackoff) {
				return
			}
			continue
		}
		if end > head {
			end = head
		}
		if cursor >= end {
			if sleep(ctx, IdleBackoff) {
				return
			}
			continue
		}

		logs, err := cfg.Provider.GetLogs(ctx, rpcpipe.Filter{
			Address:        cfg.Address,
			EventSignature: cfg.Handler.EventSignature(),
			FromBlock:      cursor,
			ToBlock:        end,
		})
		if err != nil {
			log.Warn("scheduler: get_logs failed", "handler", name, "from", cursor, "to", end, "err", err)
			if sleep(ctx, IdleBackoff) {
				return
			}
			continue
		}

		for _, l := range logs {
			dispatchEvent(ctx, cfg, name, l)
		}

		cfg.Progress.Send(progress.Update{Handler: name, Kind: progress.SetEndBlock, Value: end})
		cfg.Progress.Send(progress.Update{Handler: name, Kind: progress.IncrementProcessed, Value: uint64(len(logs))})
		cursor = end
	}
}

func dispatchEvent(ctx context.Context, cfg EventWorkerConfig, name string, l rpcpipe.Log) {
	ec := EventContext{
		Log:             l,
		Provider:        cfg.Provider,
		Templates:       cfg.Templates,
		ContractAddress: common.BytesToAddress(cfg.Address).Bytes(),
	}
	invoke := func() {
		if err := cfg.Handler.Handle(ctx, ec); err != nil {
			log.Warn("scheduler: handler returned error", "handler", name, "err", err)
			cfg.Progress.Send(progress.Update{Handler: name, Kind: progress.IncrementFailures, Value: 1})
		}
	}
	if cfg.ExecutionMode == Serial {
		invoke()
		return
	}
	go invoke()
}

// sleep waits for d or ctx cancellation, reporting whether ctx was the
// reason it returned.
func sleep(ctx context.Context, d time.Duration) (cancelled bool) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-t.C:
		return false
	}
}
