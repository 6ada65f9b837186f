package audit

import "time"

// Action names for the events the service emits.
const (
	ActionProxyIssued     = "proxy.issued"
	ActionProxyExchanged  = "proxy.exchanged"
	ActionExchangeDenied  = "proxy.exchange_denied"
	ActionIdentityCreated = "identity.created"
	ActionSecretUpdated   = "identity.secret_updated"
)

// Event is emitted from domain logic to capture security-relevant actions.
// Keep it transport-agnostic so stores and sinks can fan out.
//
// Events never carry token values; tokens are bearer credentials and the audit
// trail must not become a place to steal them from.
type Event struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Action          string    `json:"action"`
	ProxyID         string    `json:"proxy_id,omitempty"`
	ProxyType       string    `json:"proxy_type,omitempty"`
	IdentityAddress string    `json:"identity_address,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Device          string    `json:"device,omitempty"`
	ClientIP        string    `json:"client_ip,omitempty"`
	RequestID       string    `json:"request_id,omitempty"`
}
