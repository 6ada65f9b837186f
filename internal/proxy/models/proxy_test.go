package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	t.Run("accepts all known types", func(t *testing.T) {
		for _, s := range []string{
			"short_token", "pin_code", "qr_code",
			"email_code", "confirmation_code", "email_pref_code",
		} {
			typ, err := ParseType(s)
			require.NoError(t, err)
			assert.Equal(t, Type(s), typ)
		}
	})

	t.Run("rejects unknown types", func(t *testing.T) {
		_, err := ParseType("session_token")
		require.Error(t, err)
		_, err = ParseType("")
		require.Error(t, err)
	})
}

func TestPolicyTable(t *testing.T) {
	policies := DefaultPolicies()

	expected := map[Type]int64{
		TypeShortToken:       60,
		TypePinCode:          600,
		TypeQRCode:           3600,
		TypeEmailCode:        3600,
		TypeConfirmationCode: 2592000,
		TypeEmailPrefCode:    604800,
	}
	for typ, expiresIn := range expected {
		policy, ok := policies[typ]
		require.True(t, ok, "missing policy for %s", typ)
		assert.Equal(t, expiresIn, policy.ExpiresIn, "expires_in for %s", typ)
	}

	assert.True(t, policies[TypePinCode].Numeric)
	assert.Equal(t, 64, policies[TypeQRCode].TokenLength)
	assert.Equal(t, 128, policies[TypeEmailCode].TokenLength)
	assert.Equal(t, 200, policies[TypeShortToken].TokenLength)
}

func TestProxyExpiry(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	proxy := &Proxy{Type: TypePinCode, ExpiresIn: 600, State: StatePending, CreatedAt: created}

	assert.Equal(t, created.Add(10*time.Minute), proxy.ExpiresAt())
	assert.False(t, proxy.Expired(created.Add(599*time.Second)))
	assert.True(t, proxy.Expired(created.Add(601*time.Second)))
}

func TestValidateForExchange(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("pending and unexpired passes", func(t *testing.T) {
		proxy := &Proxy{State: StatePending, ExpiresIn: 60, CreatedAt: created}
		require.NoError(t, proxy.ValidateForExchange(created.Add(30*time.Second)))
	})

	t.Run("active proxy reports replay", func(t *testing.T) {
		proxy := &Proxy{State: StateActive, ExpiresIn: 60, CreatedAt: created}
		err := proxy.ValidateForExchange(created.Add(30 * time.Second))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already used")
	})

	t.Run("expired proxy reports expiry", func(t *testing.T) {
		proxy := &Proxy{State: StatePending, ExpiresIn: 60, CreatedAt: created}
		err := proxy.ValidateForExchange(created.Add(2 * time.Minute))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("active proxy past expiry still reports replay", func(t *testing.T) {
		proxy := &Proxy{State: StateActive, ExpiresIn: 60, CreatedAt: created}
		err := proxy.ValidateForExchange(created.Add(2 * time.Minute))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already used")
	})
}

func TestActivate(t *testing.T) {
	t.Run("binds identity when supplied", func(t *testing.T) {
		proxy := &Proxy{State: StatePending}
		proxy.Activate("addr123")
		assert.Equal(t, StateActive, proxy.State)
		assert.Equal(t, "addr123", proxy.IdentityAddress)
	})

	t.Run("empty address keeps existing binding", func(t *testing.T) {
		proxy := &Proxy{State: StatePending, IdentityAddress: "addr123"}
		proxy.Activate("")
		assert.Equal(t, StateActive, proxy.State)
		assert.Equal(t, "addr123", proxy.IdentityAddress)
	})

	t.Run("supplied address overwrites existing binding", func(t *testing.T) {
		proxy := &Proxy{State: StatePending, IdentityAddress: "addr123"}
		proxy.Activate("addr456")
		assert.Equal(t, "addr456", proxy.IdentityAddress)
	})
}
