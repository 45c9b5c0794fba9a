package db

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/corewell/memoryd/internal/memcore/ports"
)

// buildWhere turns a validated ports.Where into a SQL WHERE clause (without
// the WHERE keyword) plus positional args, reading scope fields out of the
// JSONB `scope` column and any other key as a plain column reference.
// columns lists the non-scope columns this table exposes to `where`.
func buildWhere(where ports.Where, columns map[string]bool, argOffset int) (string, []any) {
	if len(where) == 0 {
		return "TRUE", nil
	}

	var clauses []string
	var args []any
	n := argOffset

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	// deterministic clause order keeps generated SQL stable across calls,
	// which matters for anyone diffing query logs.
	sort.Strings(keys)

	for _, key := range keys {
		val := where[key]
		n++
		field := strings.TrimSuffix(key, "__in")
		ref := fmt.Sprintf("scope->>%s", quoteLiteral(field))
		if columns[field] {
			ref = field
		}
		if strings.HasSuffix(key, "__in") {
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", ref, n))
			args = append(args, pq.Array(val))
		} else {
			clauses = append(clauses, fmt.Sprintf("%s = $%d", ref, n))
			args = append(args, val)
		}
	}
	return strings.Join(clauses, " AND "), args
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
