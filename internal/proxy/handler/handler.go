package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"identity-proxy/internal/proxy/models"
	dErrors "identity-proxy/pkg/domain-errors"
	"identity-proxy/pkg/platform/httputil"
	request "identity-proxy/pkg/platform/middleware/request"
)

// Service defines the proxy lifecycle operations the handlers delegate to.
type Service interface {
	Issue(ctx context.Context, typ models.Type, identityAddress string) (*models.Proxy, error)
	Exchange(ctx context.Context, typ models.Type, exchangeToken, identityAddress string) (*models.Proxy, error)
	PeekShortToken(ctx context.Context, exchangeToken string) (string, error)
}

// Handler handles proxy issuance and redemption endpoints.
type Handler struct {
	proxies Service
	logger  *slog.Logger
}

func New(proxies Service, logger *slog.Logger) *Handler {
	return &Handler{proxies: proxies, logger: logger}
}

// Register registers the proxy routes with the chi router. These routes are
// unauthenticated: issuance and redemption are the front door of the token
// scheme.
func (h *Handler) Register(r chi.Router) {
	r.Post("/proxies", h.handleIssue)
	r.Post("/proxies/exchange", h.handleExchange)
	r.Get("/proxies/short-token/{token}", h.handlePeekShortToken)
}

type issueRequest struct {
	Type            string `json:"type"`
	IdentityAddress string `json:"identity_address,omitempty"`
}

type issueResponse struct {
	ProxyID       string `json:"proxy_id"`
	ExchangeToken string `json:"exchange_token"`
	AccessToken   string `json:"access_token"`
	ExpiresIn     int64  `json:"expires_in"`
	Type          string `json:"type"`
	State         string `json:"state"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	typ, err := models.ParseType(req.Type)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown proxy type"))
		return
	}

	proxy, err := h.proxies.Issue(ctx, typ, req.IdentityAddress)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue proxy",
			"request_id", request.GetRequestID(ctx),
			"type", req.Type,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, issueResponse{
		ProxyID:       proxy.ID,
		ExchangeToken: proxy.ExchangeToken,
		AccessToken:   proxy.AccessToken,
		ExpiresIn:     proxy.ExpiresIn,
		Type:          string(proxy.Type),
		State:         string(proxy.State),
	})
}

type exchangeRequest struct {
	Type            string `json:"type"`
	ExchangeToken   string `json:"exchange_token"`
	IdentityAddress string `json:"identity_address,omitempty"`
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
}

func (h *Handler) handleExchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	typ, err := models.ParseType(req.Type)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown proxy type"))
		return
	}

	proxy, err := h.proxies.Exchange(ctx, typ, req.ExchangeToken, req.IdentityAddress)
	if err != nil {
		h.logger.WarnContext(ctx, "exchange denied",
			"request_id", request.GetRequestID(ctx),
			"type", req.Type,
			"error", err,
		)
		// One envelope for every redemption failure, so token state cannot be
		// probed through the response shape.
		httputil.WriteRedemptionError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, exchangeResponse{AccessToken: proxy.AccessToken})
}

func (h *Handler) handlePeekShortToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accessToken, err := h.proxies.PeekShortToken(ctx, chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteRedemptionError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, exchangeResponse{AccessToken: accessToken})
}
