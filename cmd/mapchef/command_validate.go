package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mapchef/mapchef/internal/loader"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate input, recipe and flavour definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateConfig()
	},
}

func validateConfig() error {
	config, err := loader.Load(configDir)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	derived := 0
	for _, name := range config.Inputs.Names() {
		if config.Inputs.Get(name).Derived() {
			derived++
		}
	}

	fmt.Println("✓ All definitions are valid")
	fmt.Printf("  %d inputs (%d derived), %d recipes, %d flavours\n",
		config.Inputs.Len(), derived, len(config.Recipes), len(config.Flavours))
	return nil
}
