// Package matcher evaluates opaque predicates against raw record metadata.
// The engine never interprets metadata fields itself; it only asks a Matcher
// whether a record satisfies an input variant.
package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Matcher decides whether a record's metadata satisfies an input variant.
type Matcher interface {
	Matches(meta map[string]string) bool
	// Describe returns a stable human-readable form for listings and errors.
	Describe() string
}

// Equals matches when every listed field is present with exactly the given
// value. A nil or empty Equals matches every record.
type Equals map[string]string

func (m Equals) Matches(meta map[string]string) bool {
	for field, want := range m {
		if meta[field] != want {
			return false
		}
	}
	return true
}

func (m Equals) Describe() string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%s", f, m[f]))
	}
	return strings.Join(parts, ",")
}

// Clause is one condition of a Query matcher.
type Clause struct {
	Field  string
	Op     string // "eq", "in" or "prefix"
	Values []string
}

func (c Clause) matches(meta map[string]string) bool {
	got, ok := meta[c.Field]
	if !ok {
		return false
	}
	switch c.Op {
	case "eq":
		return got == c.Values[0]
	case "in":
		for _, v := range c.Values {
			if got == v {
				return true
			}
		}
		return false
	case "prefix":
		return strings.HasPrefix(got, c.Values[0])
	}
	return false
}

// Query matches when every clause holds.
type Query struct {
	Clauses []Clause
}

func (m Query) Matches(meta map[string]string) bool {
	for _, c := range m.Clauses {
		if !c.matches(meta) {
			return false
		}
	}
	return true
}

func (m Query) Describe() string {
	parts := make([]string, 0, len(m.Clauses))
	for _, c := range m.Clauses {
		parts = append(parts, fmt.Sprintf("%s %s %s", c.Field, c.Op, strings.Join(c.Values, "|")))
	}
	return strings.Join(parts, ",")
}

// Parse builds a Matcher from the decoded YAML form of a variant's match
// block. Scalar values produce field-equality conditions; map values select
// a query operator, e.g. {level: {in: ["500", "850"]}}.
func Parse(spec map[string]interface{}) (Matcher, error) {
	eq := Equals{}
	var clauses []Clause

	fields := make([]string, 0, len(spec))
	for f := range spec {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		switch v := spec[field].(type) {
		case string:
			eq[field] = v
		case int:
			eq[field] = fmt.Sprintf("%d", v)
		case float64:
			eq[field] = trimFloat(v)
		case bool:
			eq[field] = fmt.Sprintf("%t", v)
		case map[string]interface{}:
			clause, err := parseClause(field, v)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, clause)
		default:
			return nil, errors.Errorf("field %s: unsupported match value %v", field, spec[field])
		}
	}

	if len(clauses) == 0 {
		return eq, nil
	}
	for f, v := range eq {
		clauses = append(clauses, Clause{Field: f, Op: "eq", Values: []string{v}})
	}
	sort.Slice(clauses, func(i, j int) bool { return clauses[i].Field < clauses[j].Field })
	return Query{Clauses: clauses}, nil
}

func parseClause(field string, spec map[string]interface{}) (Clause, error) {
	if len(spec) != 1 {
		return Clause{}, errors.Errorf("field %s: match operator block must have exactly one key", field)
	}
	for op, raw := range spec {
		switch op {
		case "in":
			list, ok := raw.([]interface{})
			if !ok || len(list) == 0 {
				return Clause{}, errors.Errorf("field %s: 'in' requires a non-empty list", field)
			}
			values := make([]string, 0, len(list))
			for _, item := range list {
				values = append(values, scalarString(item))
			}
			return Clause{Field: field, Op: "in", Values: values}, nil
		case "prefix":
			s, ok := raw.(string)
			if !ok {
				return Clause{}, errors.Errorf("field %s: 'prefix' requires a string", field)
			}
			return Clause{Field: field, Op: "prefix", Values: []string{s}}, nil
		case "eq":
			return Clause{Field: field, Op: "eq", Values: []string{scalarString(raw)}}, nil
		default:
			return Clause{}, errors.Errorf("field %s: unknown match operator %q", field, op)
		}
	}
	return Clause{}, errors.Errorf("field %s: empty match operator block", field)
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return fmt.Sprintf("%d", t)
	case float64:
		return trimFloat(t)
	case bool:
		return fmt.Sprintf("%t", t)
	}
	return fmt.Sprintf("%v", v)
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
