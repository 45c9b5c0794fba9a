// Package scope implements the scope-tuple model and the `where` filter
// validation/evaluation rules. Filter evaluation for the in-memory and
// no-vector-index relational providers compiles each filter into an
// expr-lang/expr program, compiling a branch condition against a
// map-valued environment.
package scope

import (
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memerr"
)

// Model is the configured scope field set (user_config.model).
type Model struct {
	Fields []string
}

func NewModel(fields []string) Model { return Model{Fields: fields} }

func (m Model) has(field string) bool {
	for _, f := range m.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// ValidateWhere checks that every key in where corresponds to a field in
// the configured scope model, allowing a "key__in" suffix for list
// membership. Returns memerr.InvalidFilter on an unknown key.
func ValidateWhere(m Model, where map[string]any) error {
	for key := range where {
		field := strings.TrimSuffix(key, "__in")
		if !m.has(field) {
			return memerr.Newf(memerr.InvalidFilter, "unknown filter key %q", key)
		}
	}
	return nil
}

// ValidateScope checks that sc carries every field the configured scope
// model declares, non-empty — every write requires the full scope tuple,
// unlike ValidateWhere's read-side "keys must be known" check.
func ValidateScope(m Model, sc memcore.Scope) error {
	for _, field := range m.Fields {
		if sc[field] == "" {
			return memerr.Newf(memerr.InvalidInput, "scope is missing required field %q", field)
		}
	}
	return nil
}

// Program is a compiled `where` predicate ready to evaluate against
// candidate records' scope + arbitrary fields.
type Program struct {
	prog    *vm.Program
	keys    []string // deterministic order matching the w1, w2, ... vars baked into prog
	where   map[string]any
}

// Compile builds an expr-lang program equivalent to `where`'s AND of
// equality/`__in` predicates. An empty where compiles to an
// always-true program. Field values are looked up dynamically at
// Matches() time via a "record" map in the environment, so Compile does
// not need typed sample data the way expr.Env(...) checking would.
func Compile(where map[string]any) (*Program, error) {
	if len(where) == 0 {
		prog, err := expr.Compile("true")
		if err != nil {
			return nil, err
		}
		return &Program{prog: prog, where: where}, nil
	}

	keys := make([]string, 0, len(where))
	for key := range where {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var clauses []string
	for i, key := range keys {
		varName := fmt.Sprintf("w%d", i+1)
		if strings.HasSuffix(key, "__in") {
			field := strings.TrimSuffix(key, "__in")
			clauses = append(clauses, fmt.Sprintf("record[%q] in %s", field, varName))
		} else {
			clauses = append(clauses, fmt.Sprintf("record[%q] == %s", key, varName))
		}
	}

	expression := strings.Join(clauses, " && ")
	prog, err := expr.Compile(expression)
	if err != nil {
		return nil, memerr.Wrap(memerr.InvalidFilter, "compile where clause", err)
	}
	return &Program{prog: prog, keys: keys, where: where}, nil
}

// Matches evaluates the compiled program against one record's field map
// (scope fields merged with any additional indexed fields).
func (p *Program) Matches(fields map[string]any) (bool, error) {
	env := map[string]any{"record": fields}
	for i, key := range p.keys {
		env[fmt.Sprintf("w%d", i+1)] = p.where[key]
	}
	out, err := expr.Run(p.prog, env)
	if err != nil {
		return false, err
	}
	b, _ := out.(bool)
	return b, nil
}

// Merge returns a new Scope with extra's fields overriding base's.
func Merge(base, extra memcore.Scope) memcore.Scope {
	out := make(memcore.Scope, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Equal reports whether two scopes carry identical field values.
func Equal(a, b memcore.Scope) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// ToFields flattens a Scope into a generic field map for filter evaluation.
func ToFields(s memcore.Scope) map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
