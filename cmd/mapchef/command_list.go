package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mapchef/mapchef/internal/loader"
	"github.com/mapchef/mapchef/internal/model"
)

var recipesCmd = &cobra.Command{
	Use:     "recipes [recipe]",
	Aliases: []string{"recipe"},
	Short:   "List and inspect recipes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRecipes(args)
	},
}

var inputsCmd = &cobra.Command{
	Use:     "inputs [input]",
	Aliases: []string{"input"},
	Short:   "List and inspect input definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listInputs(args)
	},
}

func init() {
	recipesCmd.Flags().BoolVarP(&longFormat, "long", "l", false, "Show steps and bound inputs")
	inputsCmd.Flags().BoolVarP(&longFormat, "long", "l", false, "Show variants and matchers")
}

func listRecipes(args []string) error {
	config, err := loader.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load definitions: %w", err)
	}

	if len(args) == 1 {
		recipe, ok := config.Recipes[args[0]]
		if !ok {
			return fmt.Errorf("recipe not found: %s", args[0])
		}
		printRecipe(recipe)
		return nil
	}

	names := make([]string, 0, len(config.Recipes))
	for name := range config.Recipes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		recipe := config.Recipes[name]
		if longFormat {
			printRecipe(recipe)
			fmt.Println()
			continue
		}
		fmt.Printf("%-24s %s\n", name, recipe.Description)
	}
	return nil
}

func printRecipe(recipe *model.Recipe) {
	fmt.Printf("%s: %s\n", recipe.Name, recipe.Description)
	fmt.Printf("  mixer: %s  defined in: %s\n", recipe.Mixer, recipe.DefinedIn)
	if inputs := recipe.InputNames(); len(inputs) > 0 {
		fmt.Printf("  inputs: %s\n", strings.Join(inputs, ", "))
	}
	for _, step := range recipe.Steps {
		if step.Input != "" {
			fmt.Printf("  - %s (input %s)\n", step.Kind, step.Input)
		} else {
			fmt.Printf("  - %s\n", step.Kind)
		}
	}
}

func listInputs(args []string) error {
	config, err := loader.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load definitions: %w", err)
	}

	names := config.Inputs.Names()
	if len(args) == 1 {
		if config.Inputs.Get(args[0]) == nil {
			return fmt.Errorf("input not found: %s", args[0])
		}
		names = args
	}

	for _, name := range names {
		def := config.Inputs.Get(name)
		if def.Derived() {
			fmt.Printf("%-24s derived: %s(%s)\n", name, def.Operation, strings.Join(def.Depends, ", "))
		} else {
			models := make([]string, 0, len(def.Variants))
			for _, v := range def.Variants {
				models = append(models, v.Model)
			}
			fmt.Printf("%-24s raw: %d variant(s) for %s\n", name, len(def.Variants), strings.Join(models, ", "))
		}
		if !longFormat && len(args) != 1 {
			continue
		}
		for i, v := range def.Variants {
			fmt.Printf("  variant %d: model=%s match[%s]", i, v.Model, v.Matcher.Describe())
			if v.Transform != nil {
				fmt.Printf(" transform=%s", v.Transform.Operation)
			}
			fmt.Println()
		}
	}
	return nil
}
