package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	identityservice "identity-proxy/internal/identity/service"
	identitymemory "identity-proxy/internal/identity/store/memory"
	proxymodels "identity-proxy/internal/proxy/models"
	proxyservice "identity-proxy/internal/proxy/service"
	proxymemory "identity-proxy/internal/proxy/store/memory"
	"identity-proxy/internal/records"
	"identity-proxy/internal/session"
	"identity-proxy/pkg/platform/middleware/auth"
)

type IdentityHandlerSuite struct {
	suite.Suite
	proxies    *proxyservice.Service
	identities *identityservice.Service
	resolver   *session.Resolver
	router     chi.Router
}

func TestIdentityHandlerSuite(t *testing.T) {
	suite.Run(t, new(IdentityHandlerSuite))
}

func (s *IdentityHandlerSuite) SetupTest() {
	proxyStore := proxymemory.New()
	recordStore := records.NewInMemoryStore()

	s.proxies = proxyservice.New(proxyStore)
	s.identities = identityservice.New(identitymemory.New(), s.proxies,
		identityservice.WithRecords(recordStore),
	)

	resolver, err := session.NewResolver(proxyStore)
	s.Require().NoError(err)
	s.resolver = resolver

	handler := New(s.identities, recordStore,
		auth.RequireAuth(resolver, slog.Default()), slog.Default())

	s.router = chi.NewRouter()
	handler.Register(s.router)
}

func (s *IdentityHandlerSuite) TearDownTest() {
	s.resolver.Close()
}

// authenticate creates an identity with the given pin, then walks the real
// issue and exchange path to obtain a bearer token for it.
func (s *IdentityHandlerSuite) authenticate(pin string) (address, accessToken string) {
	ctx := context.Background()

	address, err := s.identities.Create(ctx, pin, nil)
	s.Require().NoError(err)

	issued, err := s.proxies.Issue(ctx, proxymodels.TypePinCode, address)
	s.Require().NoError(err)
	exchanged, err := s.proxies.Exchange(ctx, proxymodels.TypePinCode, issued.ExchangeToken, "")
	s.Require().NoError(err)
	return address, exchanged.AccessToken
}

func (s *IdentityHandlerSuite) request(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *IdentityHandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
	return body
}

func (s *IdentityHandlerSuite) TestCreateIdentity() {
	w := s.request(http.MethodPost, "/identities", "", map[string]any{
		"pin":     "1234",
		"records": map[string]string{"given_name": "Jane"},
	})
	s.Require().Equal(http.StatusCreated, w.Code)
	s.Regexp(`^0x[0-9a-f]{40}$`, s.decode(w)["address"])
}

func (s *IdentityHandlerSuite) TestCreateIdentityByEmail() {
	w := s.request(http.MethodPost, "/identities/email", "", map[string]string{
		"email": "jane@example.com",
	})
	s.Require().Equal(http.StatusCreated, w.Code)

	body := s.decode(w)
	s.NotEmpty(body["address"])
	// The confirmation token travels by email, never in the response.
	s.NotContains(body, "exchange_token")
}

func (s *IdentityHandlerSuite) TestCreateIdentityByEmailInvalid() {
	w := s.request(http.MethodPost, "/identities/email", "", map[string]string{
		"email": "not-an-email",
	})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *IdentityHandlerSuite) TestGetIdentity() {
	ctx := context.Background()
	address, err := s.identities.Create(ctx, "", []records.Record{
		{Key: "primary_email", Value: "jane@example.com"},
	})
	s.Require().NoError(err)

	issued, err := s.proxies.Issue(ctx, proxymodels.TypeQRCode, address)
	s.Require().NoError(err)
	exchanged, err := s.proxies.Exchange(ctx, proxymodels.TypeQRCode, issued.ExchangeToken, "")
	s.Require().NoError(err)

	w := s.request(http.MethodGet, "/identity", exchanged.AccessToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	body := s.decode(w)
	s.Equal(address, body["address"])
	recordsBody, ok := body["records"].(map[string]any)
	s.Require().True(ok)
	s.Equal("jane@example.com", recordsBody["primary_email"])
}

func (s *IdentityHandlerSuite) TestGetIdentityRequiresAuth() {
	s.Equal(http.StatusUnauthorized, s.request(http.MethodGet, "/identity", "", nil).Code)
	s.Equal(http.StatusUnauthorized, s.request(http.MethodGet, "/identity", "bogus", nil).Code)
}

func (s *IdentityHandlerSuite) TestHasPin() {
	_, token := s.authenticate("1234")

	w := s.request(http.MethodGet, "/identity/pin", token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(true, s.decode(w)["has_pin"])
}

func (s *IdentityHandlerSuite) TestVerifyPin() {
	_, token := s.authenticate("1234")

	w := s.request(http.MethodPost, "/identity/pin/verify", token, map[string]string{"pin": "1234"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(true, s.decode(w)["valid"])

	w = s.request(http.MethodPost, "/identity/pin/verify", token, map[string]string{"pin": "9999"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(false, s.decode(w)["valid"])
}

func (s *IdentityHandlerSuite) TestUpdatePinRequiresOldPin() {
	_, token := s.authenticate("1234")

	w := s.request(http.MethodPut, "/identity/pin", token, map[string]string{
		"pin": "5678", "old_pin": "wrong",
	})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.request(http.MethodPut, "/identity/pin", token, map[string]string{
		"pin": "5678", "old_pin": "1234",
	})
	s.Require().Equal(http.StatusNoContent, w.Code)

	w = s.request(http.MethodPost, "/identity/pin/verify", token, map[string]string{"pin": "5678"})
	s.Equal(true, s.decode(w)["valid"])
}

func (s *IdentityHandlerSuite) TestUpdatePinFirstSet() {
	_, token := s.authenticate("")

	w := s.request(http.MethodPut, "/identity/pin", token, map[string]string{"pin": "1234"})
	s.Require().Equal(http.StatusNoContent, w.Code)

	w = s.request(http.MethodGet, "/identity/pin", token, nil)
	s.Equal(true, s.decode(w)["has_pin"])
}
