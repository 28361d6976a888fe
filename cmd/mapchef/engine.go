package main

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"

	"github.com/mapchef/mapchef/internal/kitchen"
	"github.com/mapchef/mapchef/internal/loader"
	"github.com/mapchef/mapchef/internal/pantry"
	"github.com/mapchef/mapchef/internal/source"
	"github.com/mapchef/mapchef/internal/transform"
)

// engine bundles the loaded tables with the resolution and orchestration
// components shared by the data-driven commands.
type engine struct {
	config  *loader.Config
	scanner *source.Scanner
	pantry  *pantry.Pantry
	kitchen *kitchen.Kitchen
	log     *zap.Logger
}

// buildEngine loads configuration and wires pantry and kitchen over the
// spool directory.
func buildEngine(log *zap.Logger) (*engine, error) {
	fmt.Println("□ Loading definitions...")
	config, err := loader.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}

	operations, err := loader.LoadOperations(filepath.Join(configDir, "transforms.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load transform operations: %w", err)
	}

	invoker := transform.NewExecInvoker(operations, workDir, log.Named("transform"))
	p := pantry.New(config.Inputs, invoker, workDir, log.Named("pantry"))
	k := kitchen.New(config.Recipes, config.Flavours, p, runtime.NumCPU(), log.Named("kitchen"))

	return &engine{
		config:  config,
		scanner: source.NewScanner(dataDir, log.Named("source")),
		pantry:  p,
		kitchen: k,
		log:     log,
	}, nil
}

// fillPantry scans the spool and ingests every discovered record.
func (e *engine) fillPantry(ctx context.Context) error {
	fmt.Println("□ Scanning data pool...")
	records, err := e.scanner.Scan()
	if err != nil {
		return fmt.Errorf("failed to scan data pool: %w", err)
	}

	fmt.Println("□ Ingesting records...")
	bound := e.pantry.IngestAll(ctx, records, runtime.NumCPU())
	fmt.Printf("  %d records, %d bound at least one input\n", len(records), bound)
	return nil
}
