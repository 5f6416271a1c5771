// Command chainwatch is an example host program for the chainwatch engine:
// it loads a YAML configuration document, registers a logging-only demo
// handler for every configured data source and block handler, and serves
// the progress plane's Prometheus exposition endpoint while the indexer
// runs.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/cors"
	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/chainwatch/chainwatch"
)

func main() {
	app := &cli.App{
		Name:  "chainwatch",
		Usage: "run the chainwatch indexer against a YAML configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration document",
				Value:   "chainwatch.yaml",
				EnvVars: []string{"CHAINWATCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "cache-dir",
				Usage:   "parent directory for per-network persistent RPC caches",
				Value:   "./cache",
				EnvVars: []string{"CHAINWATCH_CACHE_DIR"},
			},
			&cli.StringFlag{
				Name:    "listen-addr",
				Usage:   "address the metrics server listens on",
				Value:   "0.0.0.0:3000",
				EnvVars: []string{"CHAINWATCH_LISTEN_ADDR"},
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "rotate logs to this file instead of stderr (empty disables rotation)",
				EnvVars: []string{"CHAINWATCH_LOG_FILE"},
			},
			&cli.BoolFlag{
				Name:    "cors",
				Usage:   "allow cross-origin scraping of the metrics endpoint",
				EnvVars: []string{"CHAINWATCH_METRICS_CORS"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	setupLogging(c.String("log-file"))

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		log.Warn("failed to set GOMAXPROCS", "err", err)
	}

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return &chainwatch.ConfigError{Err: err}
	}

	ix := chainwatch.New(cfg, c.String("cache-dir"))
	defer ix.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := registerDemoHandlers(ctx, ix, cfg); err != nil {
		return err
	}

	srv := startMetricsServer(c.String("listen-addr"), ix.Progress().Handler(), c.Bool("cors"))
	defer srv.Close()

	log.Info("chainwatch: starting", "config", c.String("config"), "listen_addr", c.String("listen-addr"))
	return ix.Start(ctx, nil)
}

// demoEventHandler logs every matched event; it decodes nothing beyond what
// the engine already hands it, since ABI decoding is a host concern.
type demoEventHandler struct{ name string }

func (h demoEventHandler) Name() string { return h.name }
func (h demoEventHandler) EventSignature() string { return "" }
func (h demoEventHandler) Handle(ctx context.Context, ec chainwatch.EventContext) error {
	log.Info("chainwatch: event", "handler", h.name, "block", ec.Log.BlockNumber, "tx", ec.Log.TxHash)
	return nil
}

// demoBlockHandler logs every dispatched block number.
type demoBlockHandler struct{ name string }

func (h demoBlockHandler) Name() string { return h.name }
func (h demoBlockHandler) Handle(ctx context.Context, bc chainwatch.BlockContext) error {
	log.Info("chainwatch: block", "handler", h.name, "number", bc.BlockNumber)
	return nil
}

// registerDemoHandlers loads a logging-only handler for every data source
// and block handler entry the configuration names; it exists so this
// command is runnable out of the box, not as a stand-in for real handler
// logic (the engine expects hosts to supply their own).
func registerDemoHandlers(ctx context.Context, ix *chainwatch.Indexer, cfg chainwatch.Config) error {
	for name := range cfg.DataSources {
		if err := ix.LoadEventHandler(ctx, demoEventHandler{name: name}); err != nil {
			return fmt.Errorf("registering data source %q: %w", name, err)
		}
	}
	for name := range cfg.BlockHandlers {
		if err := ix.LoadBlockHandler(ctx, demoBlockHandler{name: name}); err != nil {
			return fmt.Errorf("registering block handler %q: %w", name, err)
		}
	}
	return nil
}

// setupLogging wires go-ethereum's slog-based logger to either a colored
// terminal handler or, when logFile is set, a lumberjack-rotated file
// handler.
func setupLogging(logFile string) {
	var w io.Writer = os.Stderr
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	if useColor {
		w = colorable.NewColorable(os.Stderr)
	}

	if logFile != "" {
		w = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		useColor = false
	}

	handler := log.NewTerminalHandler(w, useColor)
	log.SetDefault(log.NewLogger(handler))
}

// startMetricsServer serves the progress plane's Prometheus handler at
// GET /metrics, optionally wrapped with permissive CORS for dashboard
// scraping.
func startMetricsServer(addr string, metrics http.Handler, allowCORS bool) *http.Server {
	mux := http.NewServeMux()
	if allowCORS {
		metrics = cors.Default().Handler(metrics)
	}
	mux.Handle("/metrics", metrics)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("chainwatch: metrics server stopped", "err", err)
		}
	}()
	return srv
}
