package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/mapchef/mapchef/internal/model"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Check feasibility of one explicit order",
	Long:  "Build a single order for an explicit (recipe, model, reftime, step) coordinate. Fails naming the first missing input when the coordinate is not feasible.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return previewOrder(cmd)
	},
}

func init() {
	previewCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "Spool directory with raw records")
	previewCmd.MarkFlagRequired("data-dir")
	previewCmd.Flags().StringVar(&workDir, "work-dir", ".mapchef", "Work directory for computed artifacts")
	previewCmd.Flags().StringVarP(&recipeName, "recipe", "r", "", "Recipe name")
	previewCmd.MarkFlagRequired("recipe")
	previewCmd.Flags().StringVarP(&modelName, "model", "m", "", "Forecast model")
	previewCmd.MarkFlagRequired("model")
	previewCmd.Flags().StringVarP(&refTimeStr, "reftime", "t", "", "Reference time (2006-01-02T15)")
	previewCmd.MarkFlagRequired("reftime")
	previewCmd.Flags().IntVarP(&stepNumber, "step", "s", 0, "Forecast step in hours")
	previewCmd.Flags().StringVarP(&flavourName, "flavour", "F", "default", "Flavour to build under")
}

func previewOrder(cmd *cobra.Command) error {
	refTime, err := time.ParseInLocation(model.RefTimeLayout, refTimeStr, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid reftime %q (want %s): %w", refTimeStr, model.RefTimeLayout, err)
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	eng, err := buildEngine(log)
	if err != nil {
		return err
	}
	if err := eng.fillPantry(cmd.Context()); err != nil {
		return err
	}

	order, err := eng.kitchen.MakeOrder(cmd.Context(), recipeName, flavourName, modelName, refTime, stepNumber)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Order %s (%s, mixer %s)\n", order.Basename(), order.Coordinate(), order.Mixer)
	names := make([]string, 0, len(order.Sources))
	for name := range order.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		art := order.Sources[name]
		fmt.Printf("  %-16s %s (%s)\n", name, art.Path, art.Provenance.Kind)
	}
	for _, step := range order.Steps {
		if step.Input != "" {
			fmt.Printf("  step %-20s input=%s\n", step.Kind, step.Input)
		} else {
			fmt.Printf("  step %s\n", step.Kind)
		}
	}
	return nil
}
