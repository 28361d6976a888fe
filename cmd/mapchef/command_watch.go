package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mapchef/mapchef/internal/render"
	"github.com/mapchef/mapchef/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the data pool and refresh the order manifest on changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchPool(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "Spool directory with raw records")
	watchCmd.MarkFlagRequired("data-dir")
	watchCmd.Flags().StringVar(&workDir, "work-dir", ".mapchef", "Work directory for computed artifacts")
	watchCmd.Flags().StringVarP(&flavourName, "flavour", "F", "default", "Flavour to enumerate under")
	watchCmd.Flags().StringVarP(&outputFile, "output", "o", "orders.json", "Manifest file refreshed on each change")
}

func watchPool(parent context.Context) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	eng, err := buildEngine(log)
	if err != nil {
		return err
	}

	refresh := func(ctx context.Context) error {
		records, err := eng.scanner.Scan()
		if err != nil {
			return fmt.Errorf("failed to scan data pool: %w", err)
		}
		eng.pantry.Rescan(ctx, records)

		orders, err := eng.kitchen.MakeOrders(ctx, flavourName)
		if err != nil {
			return fmt.Errorf("failed to enumerate orders: %w", err)
		}

		manifest := render.BuildManifest(flavourName, orders)
		if err := render.WriteManifest(manifest, outputFile); err != nil {
			return err
		}
		fmt.Printf("✓ %d orders written to %s\n", len(orders), outputFile)
		return nil
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := refresh(ctx); err != nil {
		return err
	}

	if err := watch.Run(ctx, dataDir, refresh, log.Named("watch")); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
