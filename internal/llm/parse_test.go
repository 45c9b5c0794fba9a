package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripMarkdownJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"leading text", "Here is the result:\n{\"a\":1}", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := StripMarkdownJSON(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestStripMarkdownJSON_NoObject(t *testing.T) {
	_, err := StripMarkdownJSON("no json here")
	require.Error(t, err)
}
