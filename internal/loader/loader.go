// Package loader reads the recipe corpus — input, recipe and flavour
// definitions — from a config directory into the read-only tables shared by
// the rest of the engine. All configuration errors are fatal here, at load
// time, and name the offending definition.
package loader

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mapchef/mapchef/internal/matcher"
	"github.com/mapchef/mapchef/internal/model"
)

// Config is the loaded, validated configuration. Read-only after Load.
type Config struct {
	Inputs   *model.InputTable
	Recipes  map[string]*model.Recipe
	Flavours map[string]*model.Flavour
}

type rawInputDoc struct {
	Inputs map[string]rawInput `yaml:"inputs"`
}

type rawInput struct {
	Variants []rawVariant `yaml:"variants"`
	Derive   *rawDerive   `yaml:"derive"`
}

type rawVariant struct {
	Model     string                 `yaml:"model"`
	Match     map[string]interface{} `yaml:"match"`
	Transform *rawTransform          `yaml:"transform"`
}

type rawTransform struct {
	Operation string                 `yaml:"operation"`
	Params    map[string]interface{} `yaml:"params"`
}

type rawDerive struct {
	Operation string   `yaml:"operation"`
	Inputs    []string `yaml:"inputs"`
}

type rawRecipeDoc struct {
	Recipes map[string]rawRecipe `yaml:"recipes"`
}

type rawRecipe struct {
	Description string                            `yaml:"description"`
	Notes       string                            `yaml:"notes"`
	Mixer       string                            `yaml:"mixer"`
	Extends     string                            `yaml:"extends"`
	Change      map[string]map[string]interface{} `yaml:"change"`
	Steps       []map[string]interface{}          `yaml:"steps"`
}

type rawFlavourDoc struct {
	Flavours map[string]rawFlavour `yaml:"flavours"`
}

type rawFlavour struct {
	Mixer   string `yaml:"mixer"`
	Recipes struct {
		Allow []string `yaml:"allow"`
		Deny  []string `yaml:"deny"`
	} `yaml:"recipes"`
	Overrides map[string]map[string]map[string]interface{} `yaml:"overrides"`
}

// Load reads inputs.yaml, recipes/*.yaml and flavours.yaml from configDir
// and returns the validated tables. flavours.yaml is optional; a bare
// "default" flavour is synthesized when absent.
func Load(configDir string) (*Config, error) {
	inputs, err := loadInputs(filepath.Join(configDir, "inputs.yaml"))
	if err != nil {
		return nil, err
	}

	recipes, err := loadRecipes(filepath.Join(configDir, "recipes"))
	if err != nil {
		return nil, err
	}
	for name, recipe := range recipes {
		for _, step := range recipe.Steps {
			if step.Input != "" && inputs.Get(step.Input) == nil {
				return nil, errors.Errorf("recipe %s (%s): step %s binds unknown input %q",
					name, recipe.DefinedIn, step.Kind, step.Input)
			}
		}
	}

	flavours, err := loadFlavours(filepath.Join(configDir, "flavours.yaml"))
	if err != nil {
		return nil, err
	}

	return &Config{Inputs: inputs, Recipes: recipes, Flavours: flavours}, nil
}

func loadInputs(path string) (*model.InputTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read input definitions")
	}
	if err := validateDocument("inputs.schema.yaml", path, data); err != nil {
		return nil, err
	}

	var doc rawInputDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	defs := make(map[string]*model.InputDef, len(doc.Inputs))
	for name, raw := range doc.Inputs {
		def, err := parseInput(name, path, raw)
		if err != nil {
			return nil, err
		}
		defs[name] = def
	}

	topo, err := validateInputGraph(defs)
	if err != nil {
		return nil, err
	}
	return model.NewInputTable(defs, topo), nil
}

func parseInput(name, definedIn string, raw rawInput) (*model.InputDef, error) {
	if len(raw.Variants) > 0 && raw.Derive != nil {
		return nil, errors.Errorf("input %s (%s): must be raw or derived, not both", name, definedIn)
	}

	def := &model.InputDef{Name: name, DefinedIn: definedIn}

	if raw.Derive != nil {
		def.Operation = raw.Derive.Operation
		def.Depends = raw.Derive.Inputs
		return def, nil
	}

	for i, rv := range raw.Variants {
		m, err := matcher.Parse(rv.Match)
		if err != nil {
			return nil, errors.Wrapf(err, "input %s variant %d (%s): malformed matcher", name, i, definedIn)
		}
		variant := model.InputVariant{Model: rv.Model, Matcher: m}
		if rv.Transform != nil {
			variant.Transform = &model.ValueTransform{
				Operation: rv.Transform.Operation,
				Params:    rv.Transform.Params,
			}
		}
		def.Variants = append(def.Variants, variant)
	}
	return def, nil
}

func loadRecipes(dir string) (map[string]*model.Recipe, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read recipes directory")
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, errors.Errorf("no recipe files found in %s", dir)
	}

	recipes := make(map[string]*model.Recipe)
	pending := make(map[string]rawRecipe)
	pendingIn := make(map[string]string)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		if err := validateDocument("recipes.schema.yaml", path, data); err != nil {
			return nil, err
		}

		var doc rawRecipeDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}

		for name, raw := range doc.Recipes {
			if old, ok := recipes[name]; ok {
				return nil, errors.Errorf("recipe %s is defined both in %s and in %s", name, old.DefinedIn, path)
			}
			if oldIn, ok := pendingIn[name]; ok {
				return nil, errors.Errorf("recipe %s is defined both in %s and in %s", name, oldIn, path)
			}
			if raw.Extends != "" {
				pending[name] = raw
				pendingIn[name] = path
				continue
			}
			recipe, err := parseRecipe(name, path, raw)
			if err != nil {
				return nil, err
			}
			recipes[name] = recipe
		}
	}

	if err := resolveDerivedRecipes(recipes, pending, pendingIn); err != nil {
		return nil, err
	}
	return recipes, nil
}

func parseRecipe(name, definedIn string, raw rawRecipe) (*model.Recipe, error) {
	recipe := &model.Recipe{
		Name:        name,
		DefinedIn:   definedIn,
		Description: raw.Description,
		Notes:       raw.Notes,
		Mixer:       raw.Mixer,
	}
	if recipe.Description == "" {
		recipe.Description = "Unnamed recipe"
	}
	if recipe.Mixer == "" {
		recipe.Mixer = "default"
	}

	for i, rawStep := range raw.Steps {
		step, err := parseStep(rawStep)
		if err != nil {
			return nil, errors.Wrapf(err, "recipe %s step %d (%s)", name, i, definedIn)
		}
		recipe.Steps = append(recipe.Steps, step)
	}
	return recipe, nil
}

func parseStep(raw map[string]interface{}) (model.RecipeStep, error) {
	step := model.RecipeStep{Args: make(map[string]interface{})}
	for k, v := range raw {
		switch k {
		case "step":
			s, ok := v.(string)
			if !ok {
				return model.RecipeStep{}, errors.New("'step' must be a string")
			}
			step.Kind = s
		case "id":
			s, ok := v.(string)
			if !ok {
				return model.RecipeStep{}, errors.New("'id' must be a string")
			}
			step.ID = s
		case "input":
			s, ok := v.(string)
			if !ok {
				return model.RecipeStep{}, errors.New("'input' must be a string")
			}
			step.Input = s
		default:
			step.Args[k] = v
		}
	}
	if step.Kind == "" {
		return model.RecipeStep{}, errors.New("step does not contain a 'step' name")
	}
	return step, nil
}

func loadFlavours(path string) (map[string]*model.Flavour, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*model.Flavour{
				"default": {Name: "default"},
			}, nil
		}
		return nil, errors.Wrap(err, "read flavour definitions")
	}
	if err := validateDocument("flavours.schema.yaml", path, data); err != nil {
		return nil, err
	}

	var doc rawFlavourDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	flavours := make(map[string]*model.Flavour, len(doc.Flavours))
	for name, raw := range doc.Flavours {
		flavours[name] = &model.Flavour{
			Name:      name,
			DefinedIn: path,
			Mixer:     raw.Mixer,
			Allow:     raw.Recipes.Allow,
			Deny:      raw.Recipes.Deny,
			Overrides: raw.Overrides,
		}
	}
	if _, ok := flavours["default"]; !ok {
		flavours["default"] = &model.Flavour{Name: "default"}
	}
	return flavours, nil
}
