package kitchen

// stepDefaults carries the renderer-side default arguments for known step
// kinds. Unknown kinds are accepted with no defaults; argument semantics
// belong to the renderer, not the engine.
var stepDefaults = map[string]map[string]interface{}{
	"add_coastlines_bg": {
		"params": map[string]interface{}{
			"map_coastline_general_style": "background",
		},
	},
	"add_coastlines_fg": {
		"params": map[string]interface{}{
			"map_coastline_sea_shade_colour": "#f2f2f2",
			"map_grid":                       "off",
			"map_coastline_sea_shade":        "off",
			"map_label":                      "off",
			"map_coastline_colour":           "#000000",
			"map_coastline_resolution":       "medium",
		},
	},
	"add_grid": {
		"params": map[string]interface{}{
			"map_coastline_general_style": "grid",
		},
	},
	"add_boundaries": {
		"params": map[string]interface{}{
			"map_boundaries":                "on",
			"map_boundaries_colour":         "#504040",
			"map_administrative_boundaries": "on",
		},
	},
	"add_contour": {
		"params": map[string]interface{}{
			"contour_automatic_setting": "ecmwf",
		},
	},
	"add_symbols": {
		"params": map[string]interface{}{
			"symbol_type":         "marker",
			"symbol_marker_index": 15,
			"legend":              "off",
			"symbol_colour":       "black",
			"symbol_height":       0.28,
		},
	},
	"add_basemap": {},
	"add_grib":    {},
	"add_wind":    {},
}

// mergeArgs layers step arguments: step-kind defaults, then the recipe's
// arguments, then flavour overrides. Later layers replace same-named keys;
// the merge is shallow and unknown keys are forwarded untouched.
func mergeArgs(kind string, recipeArgs, overrides map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{})
	for k, v := range stepDefaults[kind] {
		merged[k] = v
	}
	for k, v := range recipeArgs {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
