package db

import (
	"strconv"
	"strings"
)

// vectorLiteral renders an embedding as a pgvector input literal, e.g.
// "[0.1,0.2,0.3]". Returns NULL for an empty embedding so the column is
// left unset rather than coerced to a zero vector.
func vectorLiteral(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
