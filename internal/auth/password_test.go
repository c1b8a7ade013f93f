package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hashed, err := HashPassword("hunter2", 4)
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hashed)

	require.NoError(t, ComparePassword(hashed, "hunter2"))
	require.Error(t, ComparePassword(hashed, "hunter3"))
}

func TestHashPasswordCostClamp(t *testing.T) {
	// Out-of-range costs fall back to the default instead of failing.
	hashed, err := HashPassword("hunter2", 99)
	require.NoError(t, err)
	require.NoError(t, ComparePassword(hashed, "hunter2"))
}
