package models

import "time"

// Identity is a registered principal. The address is its stable opaque
// identifier; everything else the platform knows about a person hangs off the
// address through the record collaborator.
//
// Invariants:
//   - Address is non-empty and immutable
//   - PinHash is empty until the first secret is set; once set it only
//     changes through a verified rotation
//   - Identities are never deleted here (retention is an external concern)
type Identity struct {
	Address   string    `json:"address"`
	PinHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// HasSecret reports whether a PIN secret has ever been set.
func (i *Identity) HasSecret() bool {
	return i.PinHash != ""
}
