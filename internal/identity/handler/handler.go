package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	proxymodels "identity-proxy/internal/proxy/models"
	"identity-proxy/internal/records"
	dErrors "identity-proxy/pkg/domain-errors"
	"identity-proxy/pkg/platform/httputil"
	request "identity-proxy/pkg/platform/middleware/request"
	"identity-proxy/pkg/requestcontext"
)

// Service defines the identity and secret operations the handlers delegate to.
type Service interface {
	Create(ctx context.Context, secret string, initialRecords []records.Record) (string, error)
	CreateByEmail(ctx context.Context, email string) (string, *proxymodels.Proxy, error)
	HasSecret(ctx context.Context, proxyID string) (bool, error)
	VerifySecret(ctx context.Context, proxyID, candidate string) (bool, error)
	UpdateSecret(ctx context.Context, proxyID, newSecret, oldSecret string) error
}

// Handler handles identity registration and the PIN secret endpoints.
type Handler struct {
	identities Service
	records    records.Store
	logger     *slog.Logger
	auth       func(http.Handler) http.Handler
}

func New(identities Service, recordStore records.Store, auth func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		identities: identities,
		records:    recordStore,
		logger:     logger,
		auth:       auth,
	}
}

// Register registers the identity routes. Registration endpoints are public;
// everything under /identity requires a resolved bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identities", h.handleCreate)
	r.Post("/identities/email", h.handleCreateByEmail)

	r.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Get("/identity", h.handleGetIdentity)
		r.Get("/identity/pin", h.handleHasSecret)
		r.Put("/identity/pin", h.handleUpdateSecret)
		r.Post("/identity/pin/verify", h.handleVerifySecret)
	})
}

type createRequest struct {
	Pin     string            `json:"pin,omitempty"`
	Records map[string]string `json:"records,omitempty"`
}

type createResponse struct {
	Address string `json:"address"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	initial := make([]records.Record, 0, len(req.Records))
	for key, value := range req.Records {
		initial = append(initial, records.Record{Key: key, Value: value})
	}

	address, err := h.identities.Create(ctx, req.Pin, initial)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create identity",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, createResponse{Address: address})
}

type createByEmailRequest struct {
	Email string `json:"email"`
}

func (h *Handler) handleCreateByEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createByEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	address, _, err := h.identities.CreateByEmail(ctx, req.Email)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create identity by email",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	// The confirmation token travels by email only; the response never
	// carries it.
	httputil.WriteJSON(w, http.StatusCreated, createResponse{Address: address})
}

type identityResponse struct {
	Address string            `json:"address"`
	Records map[string]string `json:"records,omitempty"`
}

func (h *Handler) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	address := requestcontext.IdentityAddress(ctx)
	if address == "" {
		h.logger.ErrorContext(ctx, "identity missing from context despite auth middleware",
			"request_id", request.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	resp := identityResponse{Address: address}
	if h.records != nil {
		list, err := h.records.RecordsList(ctx, address)
		if err == nil && len(list) > 0 {
			resp.Records = make(map[string]string, len(list))
			for _, record := range list {
				resp.Records[record.Key] = record.Value
			}
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

type hasSecretResponse struct {
	HasPin bool `json:"has_pin"`
}

func (h *Handler) handleHasSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	has, err := h.identities.HasSecret(ctx, requestcontext.ProxyID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, hasSecretResponse{HasPin: has})
}

type verifySecretRequest struct {
	Pin string `json:"pin"`
}

type verifySecretResponse struct {
	Valid bool `json:"valid"`
}

func (h *Handler) handleVerifySecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifySecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	valid, err := h.identities.VerifySecret(ctx, requestcontext.ProxyID(ctx), req.Pin)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, verifySecretResponse{Valid: valid})
}

type updateSecretRequest struct {
	Pin    string `json:"pin"`
	OldPin string `json:"old_pin,omitempty"`
}

func (h *Handler) handleUpdateSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.identities.UpdateSecret(ctx, requestcontext.ProxyID(ctx), req.Pin, req.OldPin); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to update secret",
				"request_id", request.GetRequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
