package syncdest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeGraphPropertiesKeepsPrimitives(t *testing.T) {
	out, err := SanitizeGraphProperties(map[string]any{
		"title": "hello",
		"count": 3,
		"tags":  []string{"a", "b"},
	})
	require.NoError(t, err)
	require.Equal(t, "hello", out["title"])
	require.Equal(t, 3, out["count"])
}

func TestSanitizeGraphPropertiesEncodesComplexValues(t *testing.T) {
	out, err := SanitizeGraphProperties(map[string]any{
		"metadata": map[string]any{"nested": true},
	})
	require.NoError(t, err)
	require.Equal(t, `{"nested":true}`, out["metadata"])
}
