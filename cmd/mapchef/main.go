package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configDir   string
	dataDir     string
	workDir     string
	outputFile  string
	bundleDir   string
	flavourName string
	recipeName  string
	modelName   string
	refTimeStr  string
	stepNumber  int
	debugMode   bool
	longFormat  bool
)

var rootCmd = &cobra.Command{
	Use:   "mapchef",
	Short: "Order engine: recipes × data pool → renderable orders",
	Long:  "mapchef resolves named inputs from a raw data pool and turns recipe and flavour definitions into the exact set of feasible render orders",
}

func init() {
	rootCmd.AddCommand(ordersCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(recipesCmd)
	rootCmd.AddCommand(inputsCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "", "Config directory with inputs.yaml, recipes/ and flavours.yaml")
	rootCmd.MarkPersistentFlagRequired("config-dir")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

// newLogger builds the process logger; debug switches console verbosity.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debugMode {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
