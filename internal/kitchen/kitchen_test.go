package kitchen

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapchef/mapchef/internal/matcher"
	"github.com/mapchef/mapchef/internal/model"
	"github.com/mapchef/mapchef/internal/pantry"
	"github.com/mapchef/mapchef/internal/transform"
)

var refTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	pantry *pantry.Pantry
	calls  *int32
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	calls := new(int32)
	invoker := transform.Func(func(ctx context.Context, op string, params map[string]interface{}, sources []io.Reader) (io.ReadCloser, error) {
		atomic.AddInt32(calls, 1)
		var buf bytes.Buffer
		for i, src := range sources {
			if i > 0 {
				buf.WriteByte('|')
			}
			if _, err := io.Copy(&buf, src); err != nil {
				return nil, err
			}
		}
		return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
	})

	raw := func(name, short string) *model.InputDef {
		return &model.InputDef{
			Name: name,
			Variants: []model.InputVariant{
				{Model: "ifs", Matcher: matcher.Equals{"shortName": short, "level": "850"}},
			},
		}
	}
	defs := map[string]*model.InputDef{
		"t850":  raw("t850", "t"),
		"q850":  raw("q850", "q"),
		"u850":  raw("u850", "u"),
		"v850":  raw("v850", "v"),
		"rh850": {Name: "rh850", Operation: "rh_from_tq", Depends: []string{"t850", "q850"}},
		"uv850": {Name: "uv850", Operation: "grib_concat", Depends: []string{"u850", "v850"}},
	}
	table := model.NewInputTable(defs, []string{"q850", "t850", "u850", "v850", "rh850", "uv850"})

	return &fixture{
		pantry: pantry.New(table, invoker, dir, nil),
		calls:  calls,
		dir:    dir,
	}
}

func (f *fixture) ingest(t *testing.T, short, content string, step int) {
	t.Helper()
	path := filepath.Join(f.dir, short+"_src")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	rec := model.Record{
		Model:   "ifs",
		RefTime: refTime,
		Step:    step,
		Meta:    map[string]string{"shortName": short, "level": "850"},
		Path:    path,
	}
	require.True(t, f.pantry.Ingest(context.Background(), rec))
}

func testRecipes() map[string]*model.Recipe {
	return map[string]*model.Recipe{
		"rh850": {
			Name:  "rh850",
			Mixer: "default",
			Steps: []model.RecipeStep{
				{Kind: "add_basemap"},
				{Kind: "add_grib", ID: "grib", Input: "rh850", Args: map[string]interface{}{"grib_scaling": 1}},
				{Kind: "add_contour"},
			},
		},
		"uv850": {
			Name:  "uv850",
			Mixer: "default",
			Steps: []model.RecipeStep{
				{Kind: "add_basemap"},
				{Kind: "add_wind", Input: "uv850"},
			},
		},
	}
}

func testFlavours() map[string]*model.Flavour {
	return map[string]*model.Flavour{
		"default": {Name: "default"},
	}
}

func TestMakeOrdersEmitsFeasibleOrderOnly(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "t", "T850", 12)
	f.ingest(t, "q", "Q850", 12)
	f.ingest(t, "u", "U850", 12) // v850 never arrives; uv850 stays infeasible

	k := New(testRecipes(), testFlavours(), f.pantry, 1, nil)
	orders, err := k.MakeOrders(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	order := orders[0]
	assert.Equal(t, "rh850", order.Recipe)
	assert.Equal(t, "rh850+012", order.Basename())
	assert.Equal(t, "default", order.Mixer)
	assert.Equal(t, 12, order.Step)

	// The derivation ran exactly once, over t850 then q850.
	assert.Equal(t, int32(1), atomic.LoadInt32(f.calls))
	art := order.Sources["rh850"]
	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, "T850|Q850", string(data))
}

func TestMakeOrdersSkipsInfeasibleCoordinates(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "t", "T12", 12)
	f.ingest(t, "q", "Q12", 12)
	f.ingest(t, "t", "T24", 24) // q850 missing at +24

	k := New(testRecipes(), testFlavours(), f.pantry, 2, nil)
	orders, err := k.MakeOrders(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 12, orders[0].Step)
}

func TestMakeOrdersIndependentOfIngestionOrder(t *testing.T) {
	run := func(shorts []string) []model.Order {
		f := newFixture(t)
		for _, s := range shorts {
			f.ingest(t, s, s, 12)
		}
		k := New(testRecipes(), testFlavours(), f.pantry, 4, nil)
		orders, err := k.MakeOrders(context.Background(), "default")
		require.NoError(t, err)
		return orders
	}

	a := run([]string{"t", "q", "u", "v"})
	b := run([]string{"v", "u", "q", "t"})
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Recipe, b[i].Recipe)
		assert.Equal(t, a[i].Step, b[i].Step)
		assert.Equal(t, a[i].Basename(), b[i].Basename())
	}
}

func TestMakeOrdersAppliesFlavourOverrides(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "t", "T", 12)
	f.ingest(t, "q", "Q", 12)

	flavours := map[string]*model.Flavour{
		"tuned": {
			Name: "tuned",
			Overrides: map[string]map[string]map[string]interface{}{
				"rh850": {
					"add_grib": {"grib_scaling": 2},
				},
			},
		},
	}
	k := New(testRecipes(), flavours, f.pantry, 1, nil)
	orders, err := k.MakeOrders(context.Background(), "tuned")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	var grib *model.OrderStep
	for i := range orders[0].Steps {
		if orders[0].Steps[i].Kind == "add_grib" {
			grib = &orders[0].Steps[i]
		}
	}
	require.NotNil(t, grib)
	assert.Equal(t, 2, grib.Args["grib_scaling"], "flavour override replaces the recipe argument")

	// Untouched steps keep their kind defaults.
	params, ok := orders[0].Steps[2].Args["params"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ecmwf", params["contour_automatic_setting"])
}

func TestMakeOrdersHonoursAllowAndDeny(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "t", "T", 12)
	f.ingest(t, "q", "Q", 12)
	f.ingest(t, "u", "U", 12)
	f.ingest(t, "v", "V", 12)

	flavours := map[string]*model.Flavour{
		"all":     {Name: "all"},
		"no_rh":   {Name: "no_rh", Deny: []string{"rh850"}},
		"only_uv": {Name: "only_uv", Allow: []string{"uv850"}},
	}
	k := New(testRecipes(), flavours, f.pantry, 1, nil)
	ctx := context.Background()

	orders, err := k.MakeOrders(ctx, "all")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = k.MakeOrders(ctx, "no_rh")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "uv850", orders[0].Recipe)

	orders, err = k.MakeOrders(ctx, "only_uv")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "uv850", orders[0].Recipe)
}

func TestMakeOrdersUnknownFlavour(t *testing.T) {
	f := newFixture(t)
	k := New(testRecipes(), testFlavours(), f.pantry, 1, nil)
	_, err := k.MakeOrders(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestMakeOrderNamesMissingInput(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "u", "U", 12) // v850 missing

	k := New(testRecipes(), testFlavours(), f.pantry, 1, nil)
	_, err := k.MakeOrder(context.Background(), "uv850", "default", "ifs", refTime, 12)
	require.Error(t, err)

	var missing *MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "uv850", missing.Recipe)
	assert.Equal(t, "uv850", missing.Input)
	assert.Equal(t, 12, missing.Coordinate.Step)
}

func TestMakeOrderRejectsIneligibleRecipe(t *testing.T) {
	f := newFixture(t)
	flavours := map[string]*model.Flavour{
		"no_rh": {Name: "no_rh", Deny: []string{"rh850"}},
	}
	k := New(testRecipes(), flavours, f.pantry, 1, nil)
	_, err := k.MakeOrder(context.Background(), "rh850", "no_rh", "ifs", refTime, 12)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not eligible")
}

func TestFlavourMixerOverridesRecipeMixer(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "t", "T", 12)
	f.ingest(t, "q", "Q", 12)

	flavours := map[string]*model.Flavour{
		"tiles": {Name: "tiles", Mixer: "tiles"},
	}
	k := New(testRecipes(), flavours, f.pantry, 1, nil)
	order, err := k.MakeOrder(context.Background(), "rh850", "tiles", "ifs", refTime, 12)
	require.NoError(t, err)
	assert.Equal(t, "tiles", order.Mixer)
}

func TestMergeArgsLayering(t *testing.T) {
	tests := map[string]struct {
		kind      string
		recipe    map[string]interface{}
		overrides map[string]interface{}
		key       string
		want      interface{}
	}{
		"defaults apply when unset": {
			kind: "add_contour",
			key:  "params",
			want: map[string]interface{}{"contour_automatic_setting": "ecmwf"},
		},
		"recipe replaces default": {
			kind:   "add_contour",
			recipe: map[string]interface{}{"params": map[string]interface{}{"contour_automatic_setting": "style_name"}},
			key:    "params",
			want:   map[string]interface{}{"contour_automatic_setting": "style_name"},
		},
		"override replaces recipe": {
			kind:      "add_grib",
			recipe:    map[string]interface{}{"grib_scaling": 1},
			overrides: map[string]interface{}{"grib_scaling": 2},
			key:       "grib_scaling",
			want:      2,
		},
		"unknown kind has no defaults": {
			kind:   "add_custom",
			recipe: map[string]interface{}{"x": "y"},
			key:    "x",
			want:   "y",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			merged := mergeArgs(tc.kind, tc.recipe, tc.overrides)
			assert.Equal(t, tc.want, merged[tc.key])
		})
	}
}
