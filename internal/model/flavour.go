package model

// Flavour is a configuration overlay: it selects a mixer, restricts which
// recipes are eligible and overrides step arguments per recipe. Flavours
// never own inputs.
type Flavour struct {
	Name      string
	DefinedIn string
	Mixer     string
	Allow     []string
	Deny      []string
	// Overrides maps recipe name -> step kind -> argument overrides.
	// Unknown keys are forwarded opaquely to the renderer.
	Overrides map[string]map[string]map[string]interface{}
}

// Eligible reports whether a recipe may produce orders under this flavour:
// not denied, and inside the allow list when one is present.
func (f *Flavour) Eligible(recipe string) bool {
	for _, name := range f.Deny {
		if name == recipe {
			return false
		}
	}
	if len(f.Allow) == 0 {
		return true
	}
	for _, name := range f.Allow {
		if name == recipe {
			return true
		}
	}
	return false
}

// StepOverrides returns the argument overrides for one step of one recipe,
// or nil.
func (f *Flavour) StepOverrides(recipe, stepKind string) map[string]interface{} {
	byStep, ok := f.Overrides[recipe]
	if !ok {
		return nil
	}
	return byStep[stepKind]
}
