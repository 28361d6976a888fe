package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validInputs = `
inputs:
  t850:
    variants:
      - model: ifs
        match: {shortName: t, level: "850"}
      - model: cosmo
        match: {shortName: t, level: "850"}
  q850:
    variants:
      - model: ifs
        match: {shortName: q, level: "850"}
  rh850:
    derive:
      operation: rh_from_tq
      inputs: [t850, q850]
`

const validRecipes = `
recipes:
  rh850:
    description: Relative humidity at 850hPa
    mixer: default
    steps:
      - step: add_basemap
      - step: add_grib
        id: grib
        input: rh850
        params: {grib_scaling: "auto"}
      - step: add_contour
`

const validFlavours = `
flavours:
  default:
    mixer: default
  emergency:
    recipes:
      deny: [rh850]
    overrides:
      rh850:
        add_contour: {contour_shade: "on"}
`

func writeConfig(t *testing.T, inputs, recipes, flavours string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inputs.yaml"), []byte(inputs), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "recipes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recipes", "recipes.yaml"), []byte(recipes), 0o644))
	if flavours != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "flavours.yaml"), []byte(flavours), 0o644))
	}
	return dir
}

func TestLoadValidConfig(t *testing.T) {
	dir := writeConfig(t, validInputs, validRecipes, validFlavours)

	config, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 3, config.Inputs.Len())
	assert.False(t, config.Inputs.Get("t850").Derived())
	require.True(t, config.Inputs.Get("rh850").Derived())
	assert.Equal(t, []string{"t850", "q850"}, config.Inputs.Get("rh850").Depends)

	// Dependencies come before dependents.
	topo := config.Inputs.TopoOrder()
	pos := make(map[string]int, len(topo))
	for i, name := range topo {
		pos[name] = i
	}
	assert.Less(t, pos["t850"], pos["rh850"])
	assert.Less(t, pos["q850"], pos["rh850"])

	recipe := config.Recipes["rh850"]
	require.NotNil(t, recipe)
	assert.Equal(t, []string{"rh850"}, recipe.InputNames())
	assert.Equal(t, "add_grib", recipe.Steps[1].Kind)
	assert.Equal(t, "rh850", recipe.Steps[1].Input)
	assert.Contains(t, recipe.Steps[1].Args, "params")

	require.Contains(t, config.Flavours, "emergency")
	assert.False(t, config.Flavours["emergency"].Eligible("rh850"))
}

func TestLoadSynthesizesDefaultFlavour(t *testing.T) {
	dir := writeConfig(t, validInputs, validRecipes, "")

	config, err := Load(dir)
	require.NoError(t, err)
	require.Contains(t, config.Flavours, "default")
	assert.True(t, config.Flavours["default"].Eligible("rh850"))
}

func TestLoadRejectsDependencyCycle(t *testing.T) {
	inputs := `
inputs:
  a:
    derive: {operation: op, inputs: [b]}
  b:
    derive: {operation: op, inputs: [a]}
`
	dir := writeConfig(t, inputs, validRecipes, "")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestLoadRejectsUnknownDependency(t *testing.T) {
	inputs := `
inputs:
  rh850:
    derive: {operation: op, inputs: [nope]}
`
	dir := writeConfig(t, inputs, validRecipes, "")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dependency")
	assert.Contains(t, err.Error(), "rh850")
}

func TestLoadRejectsUnknownBoundInput(t *testing.T) {
	recipes := `
recipes:
  broken:
    steps:
      - step: add_grib
        input: no_such_input
`
	dir := writeConfig(t, validInputs, recipes, "")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown input")
	assert.Contains(t, err.Error(), "no_such_input")
}

func TestLoadRejectsRawAndDerived(t *testing.T) {
	inputs := `
inputs:
  both:
    variants:
      - model: ifs
        match: {shortName: t}
    derive: {operation: op, inputs: [both]}
`
	dir := writeConfig(t, inputs, validRecipes, "")

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoadRejectsDuplicateRecipe(t *testing.T) {
	dir := writeConfig(t, validInputs, validRecipes, "")
	dup := `
recipes:
  rh850:
    steps:
      - step: add_basemap
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recipes", "zz_dup.yaml"), []byte(dup), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined both in")
	assert.Contains(t, err.Error(), "recipes.yaml")
	assert.Contains(t, err.Error(), "zz_dup.yaml")
}

func TestLoadResolvesExtends(t *testing.T) {
	derived := `
recipes:
  rh850_nord:
    extends: rh850
    description: Relative humidity, northern area
    change:
      grib:
        params: {grib_scaling: "fixed"}
`
	dir := writeConfig(t, validInputs, validRecipes, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recipes", "derived.yaml"), []byte(derived), 0o644))

	config, err := Load(dir)
	require.NoError(t, err)

	child := config.Recipes["rh850_nord"]
	require.NotNil(t, child)
	assert.Equal(t, "Relative humidity, northern area", child.Description)
	assert.Equal(t, "default", child.Mixer)
	require.Len(t, child.Steps, 3)
	assert.Equal(t, map[string]interface{}{"grib_scaling": "fixed"}, child.Steps[1].Args["params"])

	// Parent is untouched.
	parent := config.Recipes["rh850"]
	assert.Equal(t, map[string]interface{}{"grib_scaling": "auto"}, parent.Steps[1].Args["params"])
}

func TestLoadRejectsExtendsUnknownParent(t *testing.T) {
	derived := `
recipes:
  child:
    extends: missing_parent
    change: {}
`
	dir := writeConfig(t, validInputs, validRecipes, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recipes", "derived.yaml"), []byte(derived), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_parent")
}

func TestLoadRejectsChangeOnUnknownStepID(t *testing.T) {
	derived := `
recipes:
  child:
    extends: rh850
    change:
      nope: {params: {}}
`
	dir := writeConfig(t, validInputs, validRecipes, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recipes", "derived.yaml"), []byte(derived), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step id")
}

func TestLoadOperations(t *testing.T) {
	dir := t.TempDir()

	ops, err := LoadOperations(filepath.Join(dir, "transforms.yaml"))
	require.NoError(t, err)
	assert.Empty(t, ops)

	doc := `
operations:
  rh_from_tq: [vg6d_transform, --output-format=grib_api, "{inputs}", "{output}"]
`
	path := filepath.Join(dir, "transforms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	ops, err = LoadOperations(path)
	require.NoError(t, err)
	require.Contains(t, ops, "rh_from_tq")
	assert.Equal(t, "vg6d_transform", ops["rh_from_tq"][0])
}
