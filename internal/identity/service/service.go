package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"identity-proxy/internal/audit"
	identitymodels "identity-proxy/internal/identity/models"
	"identity-proxy/internal/identity/secrets"
	identitystore "identity-proxy/internal/identity/store"
	proxymodels "identity-proxy/internal/proxy/models"
	"identity-proxy/internal/notification"
	"identity-proxy/internal/records"
	dErrors "identity-proxy/pkg/domain-errors"
	"identity-proxy/pkg/platform/sentinel"
	"identity-proxy/pkg/requestcontext"
)

// addressBytes sizes the generated identity address. 20 bytes of entropy,
// hex-encoded with an 0x prefix, mirrors the public-key-derived addresses the
// upstream registry hands out.
const addressBytes = 20

// ProxyIssuer is the slice of the proxy service the identity flows use: the
// email signup flow mints a confirmation proxy, and the secret endpoints
// resolve a proxy id back to its bound identity.
type ProxyIssuer interface {
	Issue(ctx context.Context, typ proxymodels.Type, identityAddress string) (*proxymodels.Proxy, error)
	GetByID(ctx context.Context, id string) (*proxymodels.Proxy, error)
}

// Service owns identity creation and the hashed PIN secret lifecycle.
type Service struct {
	identities identitystore.Store
	proxies    ProxyIssuer
	records    records.Store
	notifier   notification.Notifier
	audit      *audit.Publisher
	logger     *slog.Logger
}

type serviceConfig struct {
	records  records.Store
	notifier notification.Notifier
	audit    *audit.Publisher
	logger   *slog.Logger
}

type Option func(*serviceConfig)

func WithRecords(store records.Store) Option {
	return func(cfg *serviceConfig) { cfg.records = store }
}

func WithNotifier(n notification.Notifier) Option {
	return func(cfg *serviceConfig) { cfg.notifier = n }
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(cfg *serviceConfig) { cfg.audit = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

func New(identities identitystore.Store, proxies ProxyIssuer, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.records == nil {
		cfg.records = records.NewInMemoryStore()
	}
	if cfg.notifier == nil {
		cfg.notifier = notification.NewLogNotifier(cfg.logger)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		identities: identities,
		proxies:    proxies,
		records:    cfg.records,
		notifier:   cfg.notifier,
		audit:      cfg.audit,
		logger:     logger,
	}
}

// Create registers a new identity: a fresh opaque address, an optional hashed
// secret, and the initial attribute records seeded into the record
// collaborator. Returns the address.
func (s *Service) Create(ctx context.Context, secret string, initialRecords []records.Record) (string, error) {
	address, err := generateAddress()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate identity address")
	}

	identity := &identitymodels.Identity{
		Address:   address,
		CreatedAt: requestcontext.Now(ctx),
	}
	if secret != "" {
		hash, err := secrets.Hash(secret)
		if err != nil {
			return "", err
		}
		identity.PinHash = hash
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store identity")
	}

	if len(initialRecords) > 0 {
		if err := s.records.UpdateRecords(ctx, address, initialRecords); err != nil {
			// The identity exists; record seeding is best effort and the
			// collaborator can be replayed.
			s.logger.ErrorContext(ctx, "failed to seed identity records",
				"address", address,
				"error", err,
			)
		}
	}

	s.audit.Emit(ctx, audit.Event{
		Action:          audit.ActionIdentityCreated,
		IdentityAddress: address,
	})
	return address, nil
}

// CreateByEmail registers an identity keyed by email: the address is seeded
// with a primary_email record, a confirmation proxy bound to the new identity
// is issued, and the mailer is asked to deliver the confirmation token.
func (s *Service) CreateByEmail(ctx context.Context, email string) (string, *proxymodels.Proxy, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", nil, dErrors.New(dErrors.CodeInvalidInput, "a valid email address is required")
	}

	address, err := s.Create(ctx, "", []records.Record{
		{Key: "primary_email", Value: email},
	})
	if err != nil {
		return "", nil, err
	}

	proxy, err := s.proxies.Issue(ctx, proxymodels.TypeConfirmationCode, address)
	if err != nil {
		return "", nil, err
	}

	if err := s.notifier.SendEmailConfirmation(ctx, email, proxy.ExchangeToken); err != nil {
		s.logger.ErrorContext(ctx, "failed to send email confirmation",
			"address", address,
			"error", err,
		)
	}
	return address, proxy, nil
}

// HasSecret reports whether the identity bound to the proxy has a secret set.
func (s *Service) HasSecret(ctx context.Context, proxyID string) (bool, error) {
	identity, err := s.identityForProxy(ctx, proxyID)
	if err != nil {
		return false, err
	}
	return identity.HasSecret(), nil
}

// VerifySecret compares the candidate against the stored hash. Verifying
// against an identity with no secret is unauthorized, not a false result, so
// a caller cannot distinguish "wrong secret" from "no secret yet" by probing.
func (s *Service) VerifySecret(ctx context.Context, proxyID, candidate string) (bool, error) {
	identity, err := s.identityForProxy(ctx, proxyID)
	if err != nil {
		return false, err
	}
	if !identity.HasSecret() {
		return false, dErrors.New(dErrors.CodeUnauthorized, "no secret is set")
	}
	return secrets.Verify(candidate, identity.PinHash), nil
}

// UpdateSecret stores the hash of newSecret. Rotation requires the current
// secret to verify; only the first set skips that proof.
func (s *Service) UpdateSecret(ctx context.Context, proxyID, newSecret, oldSecret string) error {
	identity, err := s.identityForProxy(ctx, proxyID)
	if err != nil {
		return err
	}
	if identity.HasSecret() && !secrets.Verify(oldSecret, identity.PinHash) {
		return dErrors.New(dErrors.CodeUnauthorized, "current secret does not match")
	}

	hash, err := secrets.Hash(newSecret)
	if err != nil {
		return err
	}
	if err := s.identities.UpdateSecret(ctx, identity.Address, hash); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update secret")
	}

	s.audit.Emit(ctx, audit.Event{
		Action:          audit.ActionSecretUpdated,
		ProxyID:         proxyID,
		IdentityAddress: identity.Address,
	})
	return nil
}

// identityForProxy resolves a proxy id to its bound identity. An unbound
// proxy and a missing identity both surface as not found.
func (s *Service) identityForProxy(ctx context.Context, proxyID string) (*identitymodels.Identity, error) {
	proxy, err := s.proxies.GetByID(ctx, proxyID)
	if err != nil {
		return nil, err
	}
	if proxy.IdentityAddress == "" {
		return nil, dErrors.New(dErrors.CodeNotFound, "no identity for proxy")
	}
	identity, err := s.identities.FindByAddress(ctx, proxy.IdentityAddress)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no identity for proxy")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up identity")
	}
	return identity, nil
}

func generateAddress() (string, error) {
	buf := make([]byte, addressBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	return "0x" + hex.EncodeToString(buf), nil
}
