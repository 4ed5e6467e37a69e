package handler

import (
	"net/http"

	"github.com/getchdocs/getchdocs-api/internal/middleware"
	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/internal/service"
	"github.com/getchdocs/getchdocs-api/pkg/apperr"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
)

// MessageHandler handles chat endpoints.
type MessageHandler struct {
	chatService *service.ChatService
	logger      *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(chatSvc *service.ChatService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		chatService: chatSvc,
		logger:      log,
	}
}

// List handles GET /api/v1/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := middleware.ParseLimit(r.URL.Query().Get("limit"), service.DefaultHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.chatService.History(ctx, middleware.GetUserID(ctx), limit)
	if err != nil {
		writeServiceError(w, middleware.RequestLogger(ctx, h.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Send handles POST /api/v1/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := middleware.RequestLogger(ctx, h.logger)

	var req model.AskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, log, err)
		return
	}

	resp, err := h.chatService.Ask(ctx, middleware.CurrentUser(ctx), req.Content)
	if err != nil {
		if resp != nil {
			// The error reply was stored in the history; hand it back too.
			writeJSON(w, apperr.HTTPStatus(err), map[string]interface{}{
				"error":             apperr.Message(err),
				"user_message":      resp.UserMessage,
				"assistant_message": resp.AssistantMessage,
			})
			return
		}
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
