// Package kitchen enumerates feasible orders: for every eligible recipe and
// every coordinate observed in the pantry, it checks that all required
// inputs resolve and, if so, emits an order ready for the renderer.
package kitchen

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mapchef/mapchef/internal/model"
	"github.com/mapchef/mapchef/internal/pantry"
)

// MissingInputError reports the first unresolved input of an explicitly
// requested order.
type MissingInputError struct {
	Recipe     string
	Input      string
	Coordinate model.Coordinate
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("recipe %s: missing input %s at %s", e.Recipe, e.Input, e.Coordinate)
}

// Kitchen orchestrates order enumeration over read-only recipe and flavour
// tables and a shared pantry.
type Kitchen struct {
	recipes  map[string]*model.Recipe
	flavours map[string]*model.Flavour
	pantry   *pantry.Pantry
	log      *zap.Logger
	workers  int
}

// New creates a kitchen. workers bounds the number of recipes enumerated
// concurrently; values below one mean sequential.
func New(recipes map[string]*model.Recipe, flavours map[string]*model.Flavour, p *pantry.Pantry, workers int, log *zap.Logger) *Kitchen {
	if log == nil {
		log = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	return &Kitchen{recipes: recipes, flavours: flavours, pantry: p, log: log, workers: workers}
}

// Flavour returns a flavour definition by name.
func (k *Kitchen) Flavour(name string) (*model.Flavour, error) {
	f, ok := k.flavours[name]
	if !ok {
		return nil, errors.Errorf("flavour %q does not exist", name)
	}
	return f, nil
}

// Recipe returns a recipe definition by name.
func (k *Kitchen) Recipe(name string) (*model.Recipe, error) {
	r, ok := k.recipes[name]
	if !ok {
		return nil, errors.Errorf("recipe %q does not exist", name)
	}
	return r, nil
}

// MakeOrders emits every feasible order under the given flavour. A recipe
// either fully resolves for a coordinate or is silently skipped for it; the
// result is sorted by recipe name, then model, reference time and step, so
// it is independent of ingestion order.
func (k *Kitchen) MakeOrders(ctx context.Context, flavourName string) ([]model.Order, error) {
	flavour, err := k.Flavour(flavourName)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(k.recipes))
	for name := range k.recipes {
		if flavour.Eligible(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	coords := k.pantry.Coordinates()
	perRecipe := make([][]model.Order, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(k.workers)
	for i, name := range names {
		i, recipe := i, k.recipes[name]
		g.Go(func() error {
			for _, c := range coords {
				order, err := k.buildOrder(gctx, recipe, flavour, c)
				if err != nil {
					var missing *MissingInputError
					if errors.As(err, &missing) {
						continue // feasibility fact, not an error
					}
					return err
				}
				perRecipe[i] = append(perRecipe[i], *order)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var orders []model.Order
	for _, batch := range perRecipe {
		orders = append(orders, batch...)
	}

	k.log.Info("orders enumerated",
		zap.String("flavour", flavourName),
		zap.Int("recipes", len(names)),
		zap.Int("coordinates", len(coords)),
		zap.Int("orders", len(orders)))
	return orders, nil
}

// MakeOrder builds one order for an explicit coordinate. Unlike MakeOrders
// this surfaces unavailability: the returned error names the first missing
// input, because the caller asked for one specific result.
func (k *Kitchen) MakeOrder(ctx context.Context, recipeName, flavourName, modelName string, refTime time.Time, step int) (*model.Order, error) {
	recipe, err := k.Recipe(recipeName)
	if err != nil {
		return nil, err
	}
	flavour, err := k.Flavour(flavourName)
	if err != nil {
		return nil, err
	}
	if !flavour.Eligible(recipeName) {
		return nil, errors.Errorf("recipe %s is not eligible under flavour %s", recipeName, flavourName)
	}
	return k.buildOrder(ctx, recipe, flavour, model.Coordinate{Model: modelName, RefTime: refTime, Step: step})
}

// buildOrder resolves every required input at c and assembles the order.
// Returns *MissingInputError naming the first unresolved input.
func (k *Kitchen) buildOrder(ctx context.Context, recipe *model.Recipe, flavour *model.Flavour, c model.Coordinate) (*model.Order, error) {
	sources := make(map[string]model.Artifact)
	for _, name := range recipe.InputNames() {
		art, err := k.pantry.Resolve(ctx, name, c)
		if err != nil {
			if errors.Is(err, pantry.ErrUnavailable) {
				return nil, &MissingInputError{Recipe: recipe.Name, Input: name, Coordinate: c}
			}
			return nil, errors.Wrapf(err, "recipe %s at %s", recipe.Name, c)
		}
		sources[name] = art
	}

	mixer := recipe.Mixer
	if flavour.Mixer != "" {
		mixer = flavour.Mixer
	}

	steps := make([]model.OrderStep, 0, len(recipe.Steps))
	for _, rs := range recipe.Steps {
		steps = append(steps, model.OrderStep{
			Kind:  rs.Kind,
			Input: rs.Input,
			Args:  mergeArgs(rs.Kind, rs.Args, flavour.StepOverrides(recipe.Name, rs.Kind)),
		})
	}

	return &model.Order{
		Recipe:  recipe.Name,
		Flavour: flavour.Name,
		Mixer:   mixer,
		Model:   c.Model,
		RefTime: c.RefTime,
		Step:    c.Step,
		Sources: sources,
		Steps:   steps,
	}, nil
}
