// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	now := requestcontext.Now(ctx)
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	proxyIDKey         struct{}
	identityAddressKey struct{}
	clientIPKey        struct{}
	userAgentKey       struct{}
	requestIDKey       struct{}
	requestTimeKey     struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyProxyID         = proxyIDKey{}
	ContextKeyIdentityAddress = identityAddressKey{}
	ContextKeyClientIP        = clientIPKey{}
	ContextKeyUserAgent       = userAgentKey{}
	ContextKeyRequestID       = requestIDKey{}
	ContextKeyRequestTime     = requestTimeKey{}
)

// ProxyID retrieves the authenticated proxy ID from the context.
// Returns the empty string if not set (unauthenticated request).
func ProxyID(ctx context.Context) string {
	if proxyID, ok := ctx.Value(ContextKeyProxyID).(string); ok {
		return proxyID
	}
	return ""
}

// WithProxyID injects the authenticated proxy ID into the context.
func WithProxyID(ctx context.Context, proxyID string) context.Context {
	return context.WithValue(ctx, ContextKeyProxyID, proxyID)
}

// IdentityAddress retrieves the authenticated identity address from the
// context. Returns the empty string if not set.
func IdentityAddress(ctx context.Context) string {
	if address, ok := ctx.Value(ContextKeyIdentityAddress).(string); ok {
		return address
	}
	return ""
}

// WithIdentityAddress injects the authenticated identity address into the context.
func WithIdentityAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, ContextKeyIdentityAddress, address)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
//
// All expiry decisions read time through here so a whole request observes one
// consistent clock and tests can pin it.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
