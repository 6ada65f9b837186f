package models

import (
	"errors"
	"fmt"
	"time"
)

// Type identifies the authentication flow a proxy was issued for. The type is
// part of the exchange lookup key: presenting a valid token under the wrong
// type is indistinguishable from presenting an unknown token.
type Type string

const (
	TypeShortToken       Type = "short_token"
	TypePinCode          Type = "pin_code"
	TypeQRCode           Type = "qr_code"
	TypeEmailCode        Type = "email_code"
	TypeConfirmationCode Type = "confirmation_code"
	TypeEmailPrefCode    Type = "email_pref_code"
)

// ParseType validates a wire-level type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeShortToken, TypePinCode, TypeQRCode, TypeEmailCode, TypeConfirmationCode, TypeEmailPrefCode:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown proxy type %q", s)
}

// State is the proxy lifecycle state. A proxy is created pending and becomes
// active exactly once, on successful exchange.
type State string

const (
	StatePending State = "pending"
	StateActive  State = "active"
)

// TokenPolicy fixes, per proxy type, how long the exchange window stays open
// and what shape the exchange token takes.
type TokenPolicy struct {
	// ExpiresIn is the exchange window in seconds, counted from CreatedAt.
	ExpiresIn int64
	// TokenLength is the exchange token length for alphanumeric tokens.
	// Ignored when Numeric is set.
	TokenLength int
	// Numeric selects a six-digit code instead of an alphanumeric token.
	Numeric bool
}

// AccessTokenLength is the length of every access token, independent of the
// proxy type's exchange-token shape.
const AccessTokenLength = 200

// DefaultPolicies returns the policy table for all known proxy types.
// Callers must not mutate the returned map; the lifecycle service copies it.
func DefaultPolicies() map[Type]TokenPolicy {
	return map[Type]TokenPolicy{
		TypeShortToken:       {ExpiresIn: 60, TokenLength: 200},
		TypePinCode:          {ExpiresIn: 600, Numeric: true},
		TypeQRCode:           {ExpiresIn: 3600, TokenLength: 64},
		TypeEmailCode:        {ExpiresIn: 3600, TokenLength: 128},
		TypeConfirmationCode: {ExpiresIn: 2592000, TokenLength: 200},
		TypeEmailPrefCode:    {ExpiresIn: 604800, TokenLength: 200},
	}
}

// Proxy is one issued credential-exchange attempt.
//
// Invariants:
//   - ExchangeToken and AccessToken are unique across the whole proxy
//     population (enforced by the store's conditional insert, retried by the
//     lifecycle service)
//   - State transitions pending -> active exactly once
//   - ExpiresIn and CreatedAt are immutable; expiry is always computed, never
//     stored back
//   - IdentityAddress, once bound, is never cleared (it may be overwritten on
//     exchange when the caller supplies a new address)
type Proxy struct {
	ID              string    `json:"id"`
	IdentityAddress string    `json:"identity_address,omitempty"`
	ExchangeToken   string    `json:"exchange_token"`
	AccessToken     string    `json:"access_token"`
	Type            Type      `json:"type"`
	ExpiresIn       int64     `json:"expires_in"`
	State           State     `json:"state"`
	CreatedAt       time.Time `json:"created_at"`
}

// ExpiresAt derives the end of the exchange window.
func (p *Proxy) ExpiresAt() time.Time {
	return p.CreatedAt.Add(time.Duration(p.ExpiresIn) * time.Second)
}

// Expired reports whether the exchange window has elapsed at the given time.
func (p *Proxy) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt())
}

// ValidateForExchange checks that the proxy can still be redeemed. The state
// check comes first so an already-active proxy reports replay rather than
// expiry.
func (p *Proxy) ValidateForExchange(now time.Time) error {
	if p.State != StatePending {
		return errors.New("proxy already used")
	}
	if p.Expired(now) {
		return errors.New("proxy expired")
	}
	return nil
}

// Activate transitions the proxy to active, binding the identity address when
// one is supplied. An empty address leaves any existing binding untouched.
// Call ValidateForExchange first; stores run both under their concurrency
// guard.
func (p *Proxy) Activate(identityAddress string) {
	p.State = StateActive
	if identityAddress != "" {
		p.IdentityAddress = identityAddress
	}
}
