package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mapchef/mapchef/internal/bundle"
	"github.com/mapchef/mapchef/internal/render"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Enumerate feasible orders from the data pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		return generateOrders(cmd.Context())
	},
}

func init() {
	ordersCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "Spool directory with raw records")
	ordersCmd.MarkFlagRequired("data-dir")
	ordersCmd.Flags().StringVar(&workDir, "work-dir", ".mapchef", "Work directory for computed artifacts")
	ordersCmd.Flags().StringVarP(&flavourName, "flavour", "F", "default", "Flavour to enumerate under")
	ordersCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Manifest file path (.json/.yaml); prints a summary when omitted")
	ordersCmd.Flags().StringVar(&bundleDir, "bundle", "", "Write an input summary and processing artifacts bundle under this directory")
}

func generateOrders(ctx context.Context) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	eng, err := buildEngine(log)
	if err != nil {
		return err
	}
	if err := eng.fillPantry(ctx); err != nil {
		return err
	}

	fmt.Println("□ Enumerating orders...")
	orders, err := eng.kitchen.MakeOrders(ctx, flavourName)
	if err != nil {
		return fmt.Errorf("failed to enumerate orders: %w", err)
	}

	manifest := render.BuildManifest(flavourName, orders)
	if outputFile != "" {
		if err := render.WriteManifest(manifest, outputFile); err != nil {
			return err
		}
		fmt.Printf("✓ %d orders written to %s\n", len(orders), outputFile)
	} else {
		render.Summary(os.Stdout, manifest)
	}

	if bundleDir != "" {
		fmt.Println("□ Writing bundle...")
		b, err := bundle.New(bundleDir, log.Named("bundle"))
		if err != nil {
			return fmt.Errorf("failed to create bundle: %w", err)
		}
		if err := b.SummarizeInputs(eng.pantry, orders); err != nil {
			return fmt.Errorf("failed to summarize inputs: %w", err)
		}
		if err := b.StoreProcessingArtifacts(eng.pantry); err != nil {
			return fmt.Errorf("failed to store processing artifacts: %w", err)
		}
		fmt.Printf("✓ Bundle written to %s\n", b.Dir)
	}

	return nil
}
