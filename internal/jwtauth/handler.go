package jwtauth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "kutumb/pkg/domain-errors"
	"kutumb/pkg/platform/httputil"
	"kutumb/pkg/requestcontext"
)

const tokenTTL = 8 * time.Hour

// Handler exposes the token endpoint.
type Handler struct {
	tokens *Service
	creds  *CredentialStore
	logger *slog.Logger
}

func NewHandler(tokens *Service, creds *CredentialStore, logger *slog.Logger) *Handler {
	return &Handler{tokens: tokens, creds: creds, logger: logger}
}

// Register mounts the auth routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/token", h.issueToken)
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "username and password are required"))
		return
	}

	cred, err := h.creds.Authenticate(req.Username, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "token request rejected",
			"username", req.Username,
			"client_ip", requestcontext.ClientIP(ctx),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	token, err := h.tokens.Mint(cred.Actor, cred.Role, tokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "token mint failed", "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "could not issue token"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(tokenTTL.Seconds()),
	})
}
