package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "identity-proxy/pkg/domain-errors"
)

func TestHashAndVerify(t *testing.T) {
	t.Run("round trip verifies", func(t *testing.T) {
		hash, err := Hash("2222")
		require.NoError(t, err)
		assert.NotEqual(t, "2222", hash)
		assert.True(t, Verify("2222", hash))
	})

	t.Run("wrong secret does not verify", func(t *testing.T) {
		hash, err := Hash("2222")
		require.NoError(t, err)
		assert.False(t, Verify("1234", hash))
	})

	t.Run("empty hash never verifies", func(t *testing.T) {
		assert.False(t, Verify("2222", ""))
	})

	t.Run("empty secret is rejected at hash time", func(t *testing.T) {
		_, err := Hash("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("hashes are salted", func(t *testing.T) {
		first, err := Hash("2222")
		require.NoError(t, err)
		second, err := Hash("2222")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})
}
