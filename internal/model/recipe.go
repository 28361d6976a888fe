package model

// RecipeStep is one step of a recipe's rendering pipeline. Steps are opaque
// beyond their bound input name; argument semantics belong to the renderer.
type RecipeStep struct {
	Kind  string
	ID    string
	Input string // optional bound input name
	Args  map[string]interface{}
}

// Recipe is a named product: a mixer plus an ordered rendering pipeline.
type Recipe struct {
	Name        string
	DefinedIn   string
	Description string
	Notes       string
	Mixer       string
	Steps       []RecipeStep
}

// InputNames returns the bound input names required by this recipe,
// deduplicated, in declared step order.
func (r *Recipe) InputNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, step := range r.Steps {
		if step.Input == "" || seen[step.Input] {
			continue
		}
		seen[step.Input] = true
		names = append(names, step.Input)
	}
	return names
}
