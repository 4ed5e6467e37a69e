package handler

import (
	"net/http"

	"github.com/getchdocs/getchdocs-api/internal/middleware"
	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/internal/service"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
)

// AuthHandler handles sign-in endpoints.
type AuthHandler struct {
	userService *service.UserService
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(userSvc *service.UserService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userSvc,
		logger:      log,
	}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp, err := h.userService.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, middleware.RequestLogger(r.Context(), h.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/v1/auth/logout. Tokens are stateless, so the
// client just drops its copy.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := h.userService.Get(ctx, middleware.GetUserID(ctx))
	if err != nil {
		writeServiceError(w, middleware.RequestLogger(ctx, h.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
