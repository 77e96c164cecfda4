package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID(t *testing.T) {
	tests := []struct {
		name     string
		parts    []string
		expected string
	}{
		{"single", []string{"1"}, "356a192b7913b04c54574d18c28d46e6395428ab"},
		{"pair", []string{"http://example.com/", "1"}, "913818d19aac06501400c9237072ac6b0d02abbc"},
		{"unicode", []string{"scm", "ñaña"}, "872319dbb5c536516df915a56bba05c257e17e15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UUID(tt.parts...)
			require.NoError(t, err)
			assert.Len(t, got, 40)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestUUIDErrors(t *testing.T) {
	_, err := UUID()
	assert.Error(t, err)

	_, err = UUID("a", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "uuid value 1 is empty")
}

func TestUUIDIsStable(t *testing.T) {
	a, err := UUID("github/user/repo", "47891c0d6dd2512169bb9c8d1c0eca5ddda5ee9b")
	require.NoError(t, err)
	b, err := UUID("github/user/repo", "47891c0d6dd2512169bb9c8d1c0eca5ddda5ee9b")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := UUID("github/user/other", "47891c0d6dd2512169bb9c8d1c0eca5ddda5ee9b")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
