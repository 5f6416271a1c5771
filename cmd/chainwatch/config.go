package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chainwatch/chainwatch"
)

// fileConfig is the on-disk shape of the four-mapping configuration
// document (networks, dataSources, templates, blockHandlers). It is decoded
// with yaml.v3 and translated into chainwatch.Config, which keeps the core
// module free of any YAML-specific tagging.
type fileConfig struct {
	Networks map[string]struct {
		RPCURL            string `yaml:"rpcUrl"`
		RequestsPerSecond int    `yaml:"requestsPerSecond"`
	} `yaml:"networks"`

	DataSources map[string]struct {
		Network       string `yaml:"network"`
		Address       string `yaml:"address"`
		StartBlock    uint64 `yaml:"startBlock"`
		Step          uint64 `yaml:"step"`
		ExecutionMode string `yaml:"executionMode"`
	} `yaml:"dataSources"`

	Templates map[string]struct {
		Network       string `yaml:"network"`
		ExecutionMode string `yaml:"executionMode"`
	} `yaml:"templates"`

	BlockHandlers map[string]struct {
		Network       string `yaml:"network"`
		StartBlock    uint64 `yaml:"startBlock"`
		Step          uint64 `yaml:"step"`
		ExecutionMode string `yaml:"executionMode"`
	} `yaml:"blockHandlers"`
}

func executionMode(s string) chainwatch.ExecutionMode {
	if s == "serial" {
		return chainwatch.Serial
	}
	return chainwatch.Parallel
}

// loadConfig reads and decodes the YAML configuration document at path into
// the core module's Config shape. Failure here is what the orchestrator's
// own construction step would otherwise surface as ConfigError; the host
// program raises it before an Indexer is ever built.
func loadConfig(path string) (chainwatch.Config, error) {
	var empty chainwatch.Config

	raw, err := os.ReadFile(path)
	if err != nil {
		return empty, fmt.Errorf("reading config %q: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return empty, fmt.Errorf("parsing config %q: %w", path, err)
	}

	cfg := chainwatch.Config{
		Networks:      make(map[string]chainwatch.Network, len(fc.Networks)),
		DataSources:   make(map[string]chainwatch.DataSource, len(fc.DataSources)),
		Templates:     make(map[string]chainwatch.Template, len(fc.Templates)),
		BlockHandlers: make(map[string]chainwatch.BlockHandlerConfig, len(fc.BlockHandlers)),
	}

	for name, n := range fc.Networks {
		cfg.Networks[name] = chainwatch.Network{
			Name:              name,
			RPCURL:            n.RPCURL,
			RequestsPerSecond: n.RequestsPerSecond,
		}
	}
	for name, d := range fc.DataSources {
		cfg.DataSources[name] = chainwatch.DataSource{
			Network:       d.Network,
			Address:       d.Address,
			StartBlock:    d.StartBlock,
			Step:          d.Step,
			ExecutionMode: executionMode(d.ExecutionMode),
		}
	}
	for name, tpl := range fc.Templates {
		cfg.Templates[name] = chainwatch.Template{
			Network:       tpl.Network,
			ExecutionMode: executionMode(tpl.ExecutionMode),
		}
	}
	for name, b := range fc.BlockHandlers {
		cfg.BlockHandlers[name] = chainwatch.BlockHandlerConfig{
			Network:       b.Network,
			StartBlock:    b.StartBlock,
			Step:          b.Step,
			ExecutionMode: executionMode(b.ExecutionMode),
		}
	}
	return cfg, nil
}
