package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/getchdocs/getchdocs-api/internal/llm"
	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/pkg/apperr"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
	"github.com/getchdocs/getchdocs-api/pkg/metrics"
	"github.com/getchdocs/getchdocs-api/pkg/tracing"
)

const (
	// MaxQuestionBytes bounds a single question.
	MaxQuestionBytes = 100000

	// NoDocumentsReply answers every question while the library is empty.
	NoDocumentsReply = "No documents are available. Please upload corporate documents so I can help you."

	// DefaultHistoryLimit is how many messages History returns.
	DefaultHistoryLimit = 200
)

// QueryTracker receives one event per answered question.
type QueryTracker interface {
	Track(event model.QueryEvent) error
}

// TokenCallback is called for each token during streaming.
type TokenCallback func(token string, index int) error

// ChatService answers questions from the uploaded documents.
type ChatService struct {
	messages  MessageRepository
	docs      DocumentRepository
	llmClient llm.Client
	prompt    llm.DocumentPrompt
	tracker   QueryTracker
	tracer    trace.Tracer
	now       func() time.Time
	logger    *logger.Logger
}

// NewChatService creates a new chat service. llmClient may be nil, in which
// case questions fail with apperr.ErrUnavailable.
func NewChatService(
	messages MessageRepository,
	docs DocumentRepository,
	llmClient llm.Client,
	prompt llm.DocumentPrompt,
	tracker QueryTracker,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		messages:  messages,
		docs:      docs,
		llmClient: llmClient,
		prompt:    prompt,
		tracker:   tracker,
		tracer:    tracing.Tracer("chat"),
		now:       time.Now,
		logger:    log.Component("chat"),
	}
}

// ValidateQuestion checks a question before any work is done.
func ValidateQuestion(q string) error {
	if len(q) == 0 {
		return apperr.New(apperr.ErrInvalidInput, "content cannot be empty")
	}
	if len(q) > MaxQuestionBytes {
		return apperr.New(apperr.ErrInvalidInput, "content exceeds maximum length")
	}
	if !utf8.ValidString(q) {
		return apperr.New(apperr.ErrInvalidInput, "content must be valid UTF-8")
	}
	return nil
}

// Ask answers question for user. On a model failure the returned response
// still carries the stored error reply, next to an apperr.ErrUnavailable
// error.
func (s *ChatService) Ask(ctx context.Context, user *model.User, question string) (*model.AskResponse, error) {
	return s.turn(ctx, user, question, nil)
}

// AskStream is Ask with the answer forwarded to onToken as it is produced.
func (s *ChatService) AskStream(ctx context.Context, user *model.User, question string, onToken TokenCallback) (*model.AskResponse, error) {
	return s.turn(ctx, user, question, onToken)
}

func (s *ChatService) turn(ctx context.Context, user *model.User, question string, onToken TokenCallback) (*model.AskResponse, error) {
	if err := ValidateQuestion(question); err != nil {
		return nil, err
	}
	start := s.now()

	ctx, span := s.tracer.Start(ctx, "chat.turn", trace.WithAttributes(
		attribute.String("user.id", user.ID),
		attribute.Bool("stream", onToken != nil),
	))
	defer span.End()

	log := s.logger.With(zap.String("user_id", user.ID))

	userMsg := s.newMessage(user.ID, model.MessageRoleUser, question, nil)
	s.save(ctx, log, userMsg)

	docs, err := s.docs.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loading documents: %w", err)
	}
	span.SetAttributes(attribute.Int("documents", len(docs)))

	if len(docs) == 0 {
		reply := s.newMessage(user.ID, model.MessageRoleAssistant, NoDocumentsReply, nil)
		s.save(ctx, log, reply)
		if onToken != nil {
			if err := onToken(reply.Content, 0); err != nil {
				return nil, err
			}
		}
		return &model.AskResponse{
			UserMessage:      userMsg,
			AssistantMessage: reply,
			ResponseTimeMs:   s.now().Sub(start).Milliseconds(),
		}, nil
	}

	resp, err := s.complete(ctx, question, docs, onToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		log.Error("failed to answer question", zap.Error(err))

		reply := s.newMessage(user.ID, model.MessageRoleAssistant, errorReply(err), nil)
		s.save(ctx, log, reply)
		return &model.AskResponse{
				UserMessage:      userMsg,
				AssistantMessage: reply,
				ResponseTimeMs:   s.now().Sub(start).Milliseconds(),
			},
			fmt.Errorf("%w: %w", apperr.New(apperr.ErrUnavailable, "the assistant could not answer right now"), err)
	}

	latency := s.now().Sub(start).Milliseconds()
	refs := llm.ReferencedDocuments(resp.Content, docs)
	reply := s.newMessage(user.ID, model.MessageRoleAssistant, resp.Content, refs)
	s.save(ctx, log, reply)

	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	event := model.QueryEvent{
		ID:                  uuid.NewString(),
		Query:               question,
		UserID:              user.ID,
		UserName:            user.Name,
		DocumentsReferenced: names,
		ResponseTimeMs:      latency,
		Timestamp:           s.now().UTC(),
	}
	if s.tracker != nil {
		if err := s.tracker.Track(event); err != nil {
			log.Warn("failed to record query event", zap.Error(err))
		}
	}

	log.Info("question answered",
		zap.Int64("response_time_ms", latency),
		zap.Int("documents", len(docs)),
		zap.Int("referenced", len(refs)),
	)
	return &model.AskResponse{
		UserMessage:        userMsg,
		AssistantMessage:   reply,
		DocumentReferences: refs,
		Confidence:         llm.AnswerConfidence,
		ResponseTimeMs:     latency,
	}, nil
}

func (s *ChatService) complete(ctx context.Context, question string, docs []model.Document, onToken TokenCallback) (*llm.CompletionResponse, error) {
	if s.llmClient == nil {
		return nil, errors.New("language model is not configured")
	}

	req := s.prompt.Request(question, docs)
	start := time.Now()

	var (
		resp *llm.CompletionResponse
		err  error
	)
	if onToken != nil {
		req.Stream = true
		resp, err = s.llmClient.CompleteStream(ctx, req, llm.StreamCallback(onToken))
	} else {
		resp, err = s.llmClient.Complete(ctx, req)
	}

	modelName := req.Model
	if resp != nil && resp.Model != "" {
		modelName = resp.Model
	}
	if err != nil {
		metrics.RecordLLM(s.llmClient.Name(), modelName, "error", time.Since(start).Seconds(), 0, 0)
		return nil, err
	}
	metrics.RecordLLM(s.llmClient.Name(), modelName, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
	return resp, nil
}

func errorReply(err error) string {
	return fmt.Sprintf("Error while processing your question: %v\n\n**Check:**\n- That the language model API key is configured\n- That the database is reachable\n- That documents have been uploaded", err)
}

func (s *ChatService) newMessage(userID string, role model.MessageRole, content string, refs []string) *model.Message {
	return &model.Message{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Role:               role,
		Content:            content,
		DocumentReferences: refs,
		CreatedAt:          s.now().UTC(),
	}
}

// save stores a message. Failures are logged and the turn goes on.
func (s *ChatService) save(ctx context.Context, log *logger.Logger, msg *model.Message) {
	if err := s.messages.SaveMessage(ctx, msg); err != nil {
		log.Warn("failed to save message", zap.String("role", string(msg.Role)), zap.Error(err))
		return
	}
	metrics.MessagesTotal.WithLabelValues(string(msg.Role)).Inc()
}

// History returns the user's chat messages, oldest first.
func (s *ChatService) History(ctx context.Context, userID string, limit int) (*model.ListMessagesResponse, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	msgs, err := s.messages.ListMessages(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return &model.ListMessagesResponse{Messages: msgs}, nil
}
