package ids

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func TestNew_ParsesAndIsMonotonic(t *testing.T) {
	prev := New()
	_, err := ulid.Parse(prev)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		next := New()
		require.Greater(t, next, prev)
		prev = next
	}
}
