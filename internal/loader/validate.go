package loader

import (
	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/mapchef/mapchef/internal/model"
)

// validateInputGraph checks that every derived input's dependencies exist
// and that the dependency graph is acyclic. Returns the input names in
// stable topological order, dependencies first.
func validateInputGraph(defs map[string]*model.InputDef) ([]string, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	for name := range defs {
		if err := g.AddVertex(name); err != nil {
			return nil, errors.Wrapf(err, "input %s", name)
		}
	}

	for name, def := range defs {
		if !def.Derived() {
			continue
		}
		for _, dep := range def.Depends {
			if _, ok := defs[dep]; !ok {
				return nil, errors.Errorf("input %s (%s): unknown dependency %q", name, def.DefinedIn, dep)
			}
			if err := g.AddEdge(dep, name); err != nil {
				if errors.Is(err, graph.ErrEdgeCreatesCycle) {
					return nil, errors.Errorf("input %s (%s): dependency on %s creates a cycle", name, def.DefinedIn, dep)
				}
				return nil, errors.Wrapf(err, "input %s", name)
			}
		}
	}

	topo, err := graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
	if err != nil {
		return nil, errors.Wrap(err, "sort input dependency graph")
	}
	return topo, nil
}

// resolveDerivedRecipes instantiates recipes declared with "extends" in
// dependency order, so a recipe may extend another derived recipe.
func resolveDerivedRecipes(recipes map[string]*model.Recipe, pending map[string]rawRecipe, pendingIn map[string]string) error {
	if len(pending) == 0 {
		return nil
	}

	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for name := range recipes {
		if err := g.AddVertex(name); err != nil {
			return errors.Wrapf(err, "recipe %s", name)
		}
	}
	for name := range pending {
		if err := g.AddVertex(name); err != nil {
			return errors.Wrapf(err, "recipe %s", name)
		}
	}

	for name, raw := range pending {
		if _, known := recipes[raw.Extends]; !known {
			if _, alsoPending := pending[raw.Extends]; !alsoPending {
				return errors.Errorf("recipe %s (%s): extends unknown recipe %q", name, pendingIn[name], raw.Extends)
			}
		}
		if err := g.AddEdge(raw.Extends, name); err != nil {
			if errors.Is(err, graph.ErrEdgeCreatesCycle) {
				return errors.Errorf("recipe %s (%s): extending %s creates a cycle", name, pendingIn[name], raw.Extends)
			}
			return errors.Wrapf(err, "recipe %s", name)
		}
	}

	topo, err := graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
	if err != nil {
		return errors.Wrap(err, "sort recipe inheritance graph")
	}

	for _, name := range topo {
		raw, ok := pending[name]
		if !ok {
			continue
		}
		parent := recipes[raw.Extends]
		recipe, err := inheritRecipe(name, pendingIn[name], parent, raw)
		if err != nil {
			return err
		}
		recipes[name] = recipe
	}
	return nil
}

// inheritRecipe builds a recipe from its parent, overriding the fields the
// child sets and applying per-step changes keyed by step id.
func inheritRecipe(name, definedIn string, parent *model.Recipe, raw rawRecipe) (*model.Recipe, error) {
	recipe := &model.Recipe{
		Name:        name,
		DefinedIn:   definedIn,
		Description: raw.Description,
		Notes:       raw.Notes,
		Mixer:       raw.Mixer,
	}
	if recipe.Description == "" {
		recipe.Description = parent.Description
	}
	if recipe.Notes == "" {
		recipe.Notes = parent.Notes
	}
	if recipe.Mixer == "" {
		recipe.Mixer = parent.Mixer
	}

	if len(raw.Steps) > 0 {
		parsed, err := parseRecipe(name, definedIn, raw)
		if err != nil {
			return nil, err
		}
		recipe.Steps = parsed.Steps
		return recipe, nil
	}

	applied := make(map[string]bool, len(raw.Change))
	for _, parentStep := range parent.Steps {
		step := model.RecipeStep{
			Kind:  parentStep.Kind,
			ID:    parentStep.ID,
			Input: parentStep.Input,
			Args:  make(map[string]interface{}, len(parentStep.Args)),
		}
		for k, v := range parentStep.Args {
			step.Args[k] = v
		}
		if change, ok := raw.Change[parentStep.ID]; ok && parentStep.ID != "" {
			for k, v := range change {
				step.Args[k] = v
			}
			applied[parentStep.ID] = true
		}
		recipe.Steps = append(recipe.Steps, step)
	}

	for id := range raw.Change {
		if !applied[id] {
			return nil, errors.Errorf("recipe %s (%s): change targets unknown step id %q in %s",
				name, definedIn, id, parent.Name)
		}
	}
	return recipe, nil
}
