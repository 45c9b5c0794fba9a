package extract

import (
	"fmt"
	"io"
	"strings"
)

// extractText reads a text/* body and returns it trimmed, as-is.
func extractText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
