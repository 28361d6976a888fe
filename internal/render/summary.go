package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Summary prints a human-readable view of a manifest: one line per order
// plus per-recipe counts.
func Summary(w io.Writer, m *Manifest) {
	fmt.Fprintf(w, "Run %s, flavour %s: %d orders\n", m.RunID, m.Flavour, len(m.Orders))

	counts := make(map[string]int)
	for _, order := range m.Orders {
		counts[order.Recipe]++

		inputs := make([]string, 0, len(order.Sources))
		for name := range order.Sources {
			inputs = append(inputs, name)
		}
		sort.Strings(inputs)
		fmt.Fprintf(w, "  %-24s %s %s +%03d  [%s]\n",
			order.Basename, order.Model, order.RefTime, order.Step, strings.Join(inputs, ", "))
	}

	if len(counts) == 0 {
		fmt.Fprintln(w, "  (no feasible orders)")
		return
	}

	recipes := make([]string, 0, len(counts))
	for name := range counts {
		recipes = append(recipes, name)
	}
	sort.Strings(recipes)
	fmt.Fprintln(w)
	for _, name := range recipes {
		fmt.Fprintf(w, "  %-24s %d order(s)\n", name, counts[name])
	}
}
