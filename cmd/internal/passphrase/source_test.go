package passphrase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceReadsEnvironmentOnce(t *testing.T) {
	t.Setenv("ESCROW_TEST_PASSPHRASE", "correct horse")
	src := NewSource("ESCROW_TEST_PASSPHRASE", "operator keystore")

	got, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "correct horse", got)

	t.Setenv("ESCROW_TEST_PASSPHRASE", "changed")
	again, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "correct horse", again, "value must be cached")
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("ESCROW_TEST_PASSPHRASE", "   ")
	_, err := NewSource("ESCROW_TEST_PASSPHRASE", "").Get()
	require.ErrorContains(t, err, "set but empty")
}
