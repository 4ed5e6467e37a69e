package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/getchdocs/getchdocs-api/internal/middleware"
	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/internal/service"
	"github.com/getchdocs/getchdocs-api/pkg/apperr"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
	"github.com/getchdocs/getchdocs-api/pkg/metrics"
)

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	chatService *service.ChatService
	logger      *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(chatSvc *service.ChatService, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		chatService: chatSvc,
		logger:      log,
	}
}

// Stream handles POST /api/v1/messages/stream. It accepts a question and
// streams the answer as token events followed by message_complete and done.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := middleware.RequestLogger(ctx, h.logger)

	var req model.AskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, log, err)
		return
	}
	if err := service.ValidateQuestion(req.Content); err != nil {
		writeServiceError(w, log, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	resp, err := h.chatService.AskStream(ctx, middleware.CurrentUser(ctx), req.Content,
		func(token string, index int) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return sendSSEEvent(w, flusher, "token", &model.TokenEvent{
				Token: token,
				Index: index,
			})
		},
	)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("SSE client disconnected")
			return
		}
		log.Warn("stream failed", zap.Error(err))
		code := "stream_error"
		if apperr.HTTPStatus(err) == http.StatusServiceUnavailable {
			code = "unavailable"
		}
		sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
			Code:    code,
			Message: apperr.Message(err),
		})
		return
	}

	sendSSEEvent(w, flusher, "user_message", resp.UserMessage)
	sendSSEEvent(w, flusher, "message_complete", resp)
	sendSSEEvent(w, flusher, "done", map[string]bool{"success": true})
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
