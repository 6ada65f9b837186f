package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"identity-proxy/internal/audit"
	proxymetrics "identity-proxy/internal/proxy/metrics"
	"identity-proxy/internal/proxy/models"
	"identity-proxy/internal/proxy/store"
	dErrors "identity-proxy/pkg/domain-errors"
	"identity-proxy/pkg/platform/sentinel"
	"identity-proxy/pkg/requestcontext"
	"identity-proxy/pkg/tokens"
)

// maxTokenAttempts bounds the generate/insert retry loop. Exhausting it means
// the token space is saturated or the entropy source is broken, either of
// which is an operational alarm, not a condition to paper over with a weaker
// token.
const maxTokenAttempts = 10

// Service is the proxy lifecycle manager: issuance, exchange, lookups. The
// per-type policy table is injected at construction and never mutated.
type Service struct {
	proxies  store.Store
	policies map[models.Type]models.TokenPolicy
	metrics  *proxymetrics.Metrics
	audit    *audit.Publisher
	logger   *slog.Logger
}

type serviceConfig struct {
	policies map[models.Type]models.TokenPolicy
	metrics  *proxymetrics.Metrics
	audit    *audit.Publisher
	logger   *slog.Logger
}

type Option func(*serviceConfig)

// WithPolicies overrides the default policy table. Intended for tests that
// need short expiry windows.
func WithPolicies(policies map[models.Type]models.TokenPolicy) Option {
	return func(cfg *serviceConfig) { cfg.policies = policies }
}

func WithMetrics(m *proxymetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = m }
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(cfg *serviceConfig) { cfg.audit = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

func New(proxies store.Store, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	policies := cfg.policies
	if policies == nil {
		policies = models.DefaultPolicies()
	}
	// Copy so a caller-held map cannot mutate the policy table afterwards.
	owned := make(map[models.Type]models.TokenPolicy, len(policies))
	for typ, policy := range policies {
		owned[typ] = policy
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		proxies:  proxies,
		policies: owned,
		metrics:  cfg.metrics,
		audit:    cfg.audit,
		logger:   logger,
	}
}

// Issue creates a pending proxy of the given type, optionally pre-bound to an
// identity (confirmation and email-preference flows target a known user).
// Exchange and access tokens are regenerated on uniqueness conflicts, up to
// maxTokenAttempts.
func (s *Service) Issue(ctx context.Context, typ models.Type, identityAddress string) (*models.Proxy, error) {
	policy, ok := s.policies[typ]
	if !ok {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown proxy type")
	}

	now := requestcontext.Now(ctx)

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		exchangeToken, err := s.generateExchangeToken(policy)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate exchange token")
		}
		accessToken, err := tokens.Alphanumeric(models.AccessTokenLength)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access token")
		}

		proxy := &models.Proxy{
			ID:              uuid.NewString(),
			IdentityAddress: identityAddress,
			ExchangeToken:   exchangeToken,
			AccessToken:     accessToken,
			Type:            typ,
			ExpiresIn:       policy.ExpiresIn,
			State:           models.StatePending,
			CreatedAt:       now,
		}

		err = s.proxies.Create(ctx, proxy)
		if err == nil {
			if s.metrics != nil {
				s.metrics.IncrementIssued(string(typ))
			}
			s.audit.Emit(ctx, audit.Event{
				Action:          audit.ActionProxyIssued,
				ProxyID:         proxy.ID,
				ProxyType:       string(typ),
				IdentityAddress: identityAddress,
			})
			return proxy, nil
		}
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.TokenRetries.Inc()
			}
			s.logger.WarnContext(ctx, "token collision, regenerating",
				"type", typ,
				"attempt", attempt+1,
			)
			continue
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store proxy")
	}

	if s.metrics != nil {
		s.metrics.CapacityExhausted.Inc()
	}
	s.logger.ErrorContext(ctx, "token generation retries exhausted", "type", typ)
	return nil, dErrors.New(dErrors.CodeCapacity, "could not allocate a unique token")
}

// Exchange redeems a pending, unexpired proxy: the state flips to active and
// the identity is bound when supplied (overwriting any previous binding, the
// documented behavior of every flow that passes an address).
func (s *Service) Exchange(ctx context.Context, typ models.Type, exchangeToken, identityAddress string) (*models.Proxy, error) {
	if _, ok := s.policies[typ]; !ok {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown proxy type")
	}
	if exchangeToken == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "exchange token is required")
	}

	now := requestcontext.Now(ctx)
	proxy, err := s.proxies.Exchange(ctx, typ, exchangeToken, identityAddress, now)
	if err != nil {
		reason, domainErr := s.translateExchangeError(err)
		if s.metrics != nil && reason != "" {
			s.metrics.IncrementExchangeFailure(reason)
		}
		s.audit.Emit(ctx, audit.Event{
			Action:    audit.ActionExchangeDenied,
			ProxyType: string(typ),
			Reason:    reason,
		})
		return nil, domainErr
	}

	if s.metrics != nil {
		s.metrics.IncrementExchanged(string(typ))
	}
	s.audit.Emit(ctx, audit.Event{
		Action:          audit.ActionProxyExchanged,
		ProxyID:         proxy.ID,
		ProxyType:       string(typ),
		IdentityAddress: proxy.IdentityAddress,
	})
	return proxy, nil
}

// PeekShortToken returns the access token of a short_token proxy without
// consuming it: the app-polling flow reads the credential while the browser
// side still performs the real exchange. Only existence and expiry are
// checked.
func (s *Service) PeekShortToken(ctx context.Context, exchangeToken string) (string, error) {
	if exchangeToken == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "exchange token is required")
	}
	proxy, err := s.proxies.FindByExchangeToken(ctx, models.TypeShortToken, exchangeToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "proxy not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up proxy")
	}
	if proxy.Expired(requestcontext.Now(ctx)) {
		return "", dErrors.New(dErrors.CodeForbidden, "proxy expired")
	}
	return proxy.AccessToken, nil
}

// GetByID is a pure read.
func (s *Service) GetByID(ctx context.Context, id string) (*models.Proxy, error) {
	proxy, err := s.proxies.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "proxy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up proxy")
	}
	return proxy, nil
}

// GetAccessToken returns the access token held by a proxy, regardless of
// state (callers gate on their own flow's rules).
func (s *Service) GetAccessToken(ctx context.Context, id string) (string, error) {
	proxy, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return proxy.AccessToken, nil
}

func (s *Service) generateExchangeToken(policy models.TokenPolicy) (string, error) {
	if policy.Numeric {
		return tokens.Numeric()
	}
	return tokens.Alphanumeric(policy.TokenLength)
}

// translateExchangeError maps store sentinels to domain errors plus a metrics
// reason label. Replay and expiry both surface as forbidden; the transport
// layer collapses them further so callers cannot probe which applied.
func (s *Service) translateExchangeError(err error) (string, error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return "not_found", dErrors.New(dErrors.CodeNotFound, "proxy not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return "invalid_state", dErrors.New(dErrors.CodeForbidden, "proxy already used")
	case errors.Is(err, sentinel.ErrExpired):
		return "expired", dErrors.New(dErrors.CodeForbidden, "proxy expired")
	case errors.Is(err, sentinel.ErrUnavailable):
		return "contention", dErrors.Wrap(err, dErrors.CodeForbidden, "proxy contended")
	default:
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to exchange proxy")
	}
}
