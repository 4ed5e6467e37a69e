package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/getchdocs/getchdocs-api/internal/middleware"
	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/internal/service"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
)

// UserHandler handles account administration.
type UserHandler struct {
	userService *service.UserService
	logger      *logger.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(userSvc *service.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userSvc,
		logger:      log,
	}
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.userService.List(r.Context())
	if err != nil {
		writeServiceError(w, middleware.RequestLogger(r.Context(), h.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /api/v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r.Context(), h.logger)

	var req model.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, log, err)
		return
	}

	u, err := h.userService.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// Update handles PUT /api/v1/users/:id
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r.Context(), h.logger)
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateUserID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, log, err)
		return
	}

	u, err := h.userService.Update(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Delete handles DELETE /api/v1/users/:id. Admins cannot delete themselves.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateUserID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if id == middleware.GetUserID(ctx) {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	if err := h.userService.Delete(ctx, id); err != nil {
		writeServiceError(w, middleware.RequestLogger(ctx, h.logger), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
