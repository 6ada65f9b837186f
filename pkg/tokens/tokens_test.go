package tokens

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphanumeric(t *testing.T) {
	t.Run("returns requested length", func(t *testing.T) {
		for _, length := range []int{1, 64, 128, 200} {
			token, err := Alphanumeric(length)
			require.NoError(t, err)
			assert.Len(t, token, length)
		}
	})

	t.Run("stays within the base62 alphabet", func(t *testing.T) {
		token, err := Alphanumeric(200)
		require.NoError(t, err)
		for _, r := range token {
			ok := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
			assert.True(t, ok, "unexpected character %q", r)
		}
	})

	t.Run("rejects non-positive length", func(t *testing.T) {
		_, err := Alphanumeric(0)
		require.Error(t, err)
		_, err = Alphanumeric(-5)
		require.Error(t, err)
	})

	t.Run("does not repeat across draws", func(t *testing.T) {
		seen := make(map[string]struct{})
		for i := 0; i < 100; i++ {
			token, err := Alphanumeric(64)
			require.NoError(t, err)
			_, dup := seen[token]
			require.False(t, dup, "generated duplicate token")
			seen[token] = struct{}{}
		}
	})
}

func TestNumeric(t *testing.T) {
	t.Run("stays within the documented range", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			code, err := Numeric()
			require.NoError(t, err)
			require.Len(t, code, 6)
			n, err := strconv.Atoi(code)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, NumericMin)
			assert.LessOrEqual(t, n, NumericMax)
		}
	})
}
