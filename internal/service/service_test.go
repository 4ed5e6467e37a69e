package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getchdocs/getchdocs-api/internal/analytics"
	"github.com/getchdocs/getchdocs-api/internal/auth"
	"github.com/getchdocs/getchdocs-api/internal/llm"
	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/internal/store/memory"
	"github.com/getchdocs/getchdocs-api/pkg/apperr"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
)

type fakeLLM struct {
	mu       sync.Mutex
	answer   string
	err      error
	requests []*llm.CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.answer, Model: req.Model, TokensIn: 10, TokensOut: 5}, nil
}

func (f *fakeLLM) CompleteStream(ctx context.Context, req *llm.CompletionRequest, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	resp, err := f.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	for i, word := range strings.SplitAfter(resp.Content, " ") {
		if err := callback(word, i); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (f *fakeLLM) Name() string     { return "fake" }
func (f *fakeLLM) Models() []string { return []string{"fake-1"} }

type failingMessages struct{ *memory.Messages }

func (failingMessages) SaveMessage(context.Context, *model.Message) error {
	return errors.New("history offline")
}

var (
	adminUser = &model.User{ID: "user-admin", Name: "Admin Sistema", Email: "admin@getchdocs.com", Role: model.RoleAdmin}
	plainUser = &model.User{ID: "user-joao", Name: "João Silva", Email: "joao@empresa.com", Role: model.RoleUser}
)

type chatFixture struct {
	chat     *ChatService
	docs     *DocumentService
	messages *memory.Messages
	agg      *analytics.Aggregator
	llm      *fakeLLM
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	log := logger.NewNop()
	docRepo := memory.NewDocuments()
	messages := memory.NewMessages()
	agg := analytics.New(analytics.WithLogger(log))
	client := &fakeLLM{answer: "See Handbook.txt for the vacation policy."}

	return &chatFixture{
		chat:     NewChatService(messages, docRepo, client, llm.DocumentPrompt{}, agg, log),
		docs:     NewDocumentService(docRepo, 1<<20, log),
		messages: messages,
		agg:      agg,
		llm:      client,
	}
}

func (f *chatFixture) upload(t *testing.T, name, content string) *model.Document {
	t.Helper()
	doc, err := f.docs.Upload(context.Background(), adminUser, name, "text/plain", strings.NewReader(content))
	require.NoError(t, err)
	return doc
}

func TestAskWithoutDocuments(t *testing.T) {
	f := newChatFixture(t)

	resp, err := f.chat.Ask(context.Background(), plainUser, "What is the vacation policy?")
	require.NoError(t, err)
	assert.Equal(t, NoDocumentsReply, resp.AssistantMessage.Content)
	assert.Empty(t, resp.DocumentReferences)

	assert.Empty(t, f.llm.requests)
	assert.Equal(t, 0, f.agg.Len())

	history, err := f.chat.History(context.Background(), plainUser.ID, 0)
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, model.MessageRoleUser, history.Messages[0].Role)
	assert.Equal(t, model.MessageRoleAssistant, history.Messages[1].Role)
}

func TestAskRecordsQueryEvent(t *testing.T) {
	f := newChatFixture(t)
	handbook := f.upload(t, "Handbook.txt", "Vacation: 30 days per year.")
	f.upload(t, "Expenses.txt", "Expenses are reimbursed monthly.")

	resp, err := f.chat.Ask(context.Background(), plainUser, "What is the vacation policy?")
	require.NoError(t, err)

	assert.Equal(t, f.llm.answer, resp.AssistantMessage.Content)
	assert.Equal(t, []string{handbook.ID}, resp.DocumentReferences)
	assert.Equal(t, []string{handbook.ID}, resp.AssistantMessage.DocumentReferences)
	assert.Equal(t, llm.AnswerConfidence, resp.Confidence)

	events := f.agg.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "What is the vacation policy?", ev.Query)
	assert.Equal(t, plainUser.ID, ev.UserID)
	assert.Equal(t, plainUser.Name, ev.UserName)
	assert.ElementsMatch(t, []string{"Handbook.txt", "Expenses.txt"}, ev.DocumentsReferenced)
	assert.GreaterOrEqual(t, ev.ResponseTimeMs, int64(0))
	assert.Equal(t, time.UTC, ev.Timestamp.Location())

	require.Len(t, f.llm.requests, 1)
	req := f.llm.requests[0]
	assert.Contains(t, req.System, "Handbook.txt")
	assert.Contains(t, req.System, "Expenses are reimbursed monthly.")
}

func TestAskReferencesAllDocumentsWhenNoneNamed(t *testing.T) {
	f := newChatFixture(t)
	a := f.upload(t, "a.txt", "alpha")
	b := f.upload(t, "b.txt", "beta")
	f.llm.answer = "I could not find that."

	resp, err := f.chat.Ask(context.Background(), plainUser, "anything")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, resp.DocumentReferences)
}

func TestAskLatencyUsesClock(t *testing.T) {
	f := newChatFixture(t)
	f.upload(t, "Handbook.txt", "text")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	f.chat.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 250 * time.Millisecond)
	}

	_, err := f.chat.Ask(context.Background(), plainUser, "q")
	require.NoError(t, err)

	events := f.agg.Events()
	require.Len(t, events, 1)
	assert.Positive(t, events[0].ResponseTimeMs)
	assert.Zero(t, events[0].ResponseTimeMs%250)
}

func TestAskModelFailure(t *testing.T) {
	f := newChatFixture(t)
	f.upload(t, "Handbook.txt", "text")
	f.llm.err = errors.New("rate limited")

	resp, err := f.chat.Ask(context.Background(), plainUser, "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	require.NotNil(t, resp)
	assert.Contains(t, resp.AssistantMessage.Content, "rate limited")
	assert.Equal(t, 0, f.agg.Len())

	history, err := f.chat.History(context.Background(), plainUser.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history.Messages, 2)
}

func TestAskWithoutModel(t *testing.T) {
	f := newChatFixture(t)
	f.upload(t, "Handbook.txt", "text")
	f.chat.llmClient = nil

	_, err := f.chat.Ask(context.Background(), plainUser, "q")
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.Equal(t, 0, f.agg.Len())
}

func TestAskValidatesQuestion(t *testing.T) {
	f := newChatFixture(t)

	for name, q := range map[string]string{
		"empty":    "",
		"too long": strings.Repeat("a", MaxQuestionBytes+1),
		"bad utf8": "\xff\xfe",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.chat.Ask(context.Background(), plainUser, q)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}

	history, err := f.chat.History(context.Background(), plainUser.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history.Messages)
}

func TestAskSurvivesHistoryFailure(t *testing.T) {
	f := newChatFixture(t)
	f.upload(t, "Handbook.txt", "text")
	f.chat.messages = failingMessages{memory.NewMessages()}

	resp, err := f.chat.Ask(context.Background(), plainUser, "q")
	require.NoError(t, err)
	assert.Equal(t, f.llm.answer, resp.AssistantMessage.Content)
	assert.Equal(t, 1, f.agg.Len())
}

func TestAskStreamForwardsTokens(t *testing.T) {
	f := newChatFixture(t)
	f.upload(t, "Handbook.txt", "text")

	var b strings.Builder
	resp, err := f.chat.AskStream(context.Background(), plainUser, "q", func(token string, _ int) error {
		b.WriteString(token)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, f.llm.answer, b.String())
	assert.Equal(t, f.llm.answer, resp.AssistantMessage.Content)
	assert.True(t, f.llm.requests[0].Stream)
}

func TestHistoryIsPerUser(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.chat.Ask(ctx, plainUser, "first")
	require.NoError(t, err)
	_, err = f.chat.Ask(ctx, adminUser, "second")
	require.NoError(t, err)

	history, err := f.chat.History(ctx, plainUser.ID, 0)
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "first", history.Messages[0].Content)

	history, err = f.chat.History(ctx, plainUser.ID, 1)
	require.NoError(t, err)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, NoDocumentsReply, history.Messages[0].Content)
}

func TestDocumentUpload(t *testing.T) {
	ctx := context.Background()
	svc := NewDocumentService(memory.NewDocuments(), 16, logger.NewNop())

	_, err := svc.Upload(ctx, plainUser, "notes.txt", "text/plain", strings.NewReader("hi"))
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Upload(ctx, adminUser, "big.txt", "text/plain", strings.NewReader(strings.Repeat("x", 17)))
	assert.ErrorIs(t, err, apperr.ErrTooLarge)

	_, err = svc.Upload(ctx, adminUser, "  ", "text/plain", strings.NewReader("hi"))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	doc, err := svc.Upload(ctx, adminUser, "notes.txt", "text/plain", strings.NewReader("sixteen bytes ok"))
	require.NoError(t, err)
	assert.Equal(t, int64(16), doc.Size)
	assert.Equal(t, "sixteen bytes ok", doc.Content)
	assert.Equal(t, adminUser.ID, doc.UploadedBy)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	assert.Empty(t, list.Documents[0].Content)

	got, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "sixteen bytes ok", got.Content)

	require.NoError(t, svc.Delete(ctx, doc.ID))
	assert.ErrorIs(t, svc.Delete(ctx, doc.ID), apperr.ErrNotFound)
}

func TestDocumentUploadPlaceholder(t *testing.T) {
	svc := NewDocumentService(memory.NewDocuments(), 1<<20, logger.NewNop())

	doc, err := svc.Upload(context.Background(), adminUser, "report.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "[Content of file report.pdf - Type: application/pdf]", doc.Content)
}

func newUserService() (*UserService, *memory.Messages) {
	messages := memory.NewMessages()
	svc := NewUserService(memory.NewUsers(), messages, auth.NewTokens("secret", time.Hour), logger.NewNop())
	return svc, messages
}

func TestSeedDefaults(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService()

	require.NoError(t, svc.SeedDefaults(ctx))
	require.NoError(t, svc.SeedDefaults(ctx))

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultUsers), n)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService()
	require.NoError(t, svc.SeedDefaults(ctx))

	resp, err := svc.Login(ctx, &model.LoginRequest{Email: "  Admin@GetchDocs.com ", Password: "anything"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, model.RoleAdmin, resp.User.Role)
	require.NotNil(t, resp.User.LastLogin)

	stored, err := svc.Get(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "nobody@example.com"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Login(ctx, &model.LoginRequest{})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, messages := newUserService()

	u, err := svc.Create(ctx, &model.CreateUserRequest{Name: "Maria", Email: "Maria@Empresa.com"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.ID, "user-"))
	assert.Equal(t, "maria@empresa.com", u.Email)
	assert.Equal(t, model.RoleUser, u.Role)

	_, err = svc.Create(ctx, &model.CreateUserRequest{Name: "Other", Email: "maria@empresa.com"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Create(ctx, &model.CreateUserRequest{Name: "Bad", Email: "not-an-email"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = svc.Create(ctx, &model.CreateUserRequest{Name: "Bad", Email: "bad@empresa.com", Role: "root"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	role := model.RoleAdmin
	updated, err := svc.Update(ctx, u.ID, &model.UpdateUserRequest{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, updated.Role)
	assert.Equal(t, "Maria", updated.Name)

	_, err = svc.Update(ctx, "user-missing", &model.UpdateUserRequest{Role: &role})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, messages.SaveMessage(ctx, &model.Message{ID: "m1", UserID: u.ID, Role: model.MessageRoleUser, Content: "hi"}))
	require.NoError(t, svc.Delete(ctx, u.ID))
	history, err := messages.ListMessages(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, svc.Delete(ctx, u.ID), apperr.ErrNotFound)
}

func TestPermissions(t *testing.T) {
	assert.True(t, CanUploadDocuments(adminUser))
	assert.False(t, CanUploadDocuments(plainUser))
	assert.True(t, CanManageUsers(adminUser))
	assert.False(t, CanManageUsers(plainUser))
	assert.False(t, CanManageUsers(nil))
}

type fakeHistory struct {
	limit int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]model.QueryEvent, error) {
	f.limit = limit
	return []model.QueryEvent{{ID: "e1"}}, nil
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	users, _ := newUserService()
	require.NoError(t, users.SeedDefaults(ctx))
	f.upload(t, "Handbook.txt", "text")

	for _, q := range []string{"Vacation?", "vacation?", "expenses"} {
		_, err := f.chat.Ask(ctx, plainUser, q)
		require.NoError(t, err)
	}

	svc := NewDashboardService(f.agg, f.docs.docs, users.users, nil, logger.NewNop())
	d, err := svc.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, d.TotalQueries)
	assert.Equal(t, 1, d.TotalDocuments)
	assert.Equal(t, len(DefaultUsers), d.TotalUsers)
	require.NotEmpty(t, d.TopQueries)
	assert.Equal(t, analytics.QueryCount{Query: "vacation?", Count: 2}, d.TopQueries[0])
	assert.Equal(t, 2, d.MaxQueryCount)
	assert.Equal(t, 3, d.MaxDayCount)

	_, err = svc.History(ctx, 10)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)

	hist := &fakeHistory{}
	svc = NewDashboardService(f.agg, f.docs.docs, users.users, hist, logger.NewNop())
	events, err := svc.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, DefaultEventHistoryLimit, hist.limit)
}

func TestDashboardEmpty(t *testing.T) {
	svc := NewDashboardService(analytics.New(analytics.WithLogger(logger.NewNop())), memory.NewDocuments(), memory.NewUsers(), nil, logger.NewNop())

	d, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Zero(t, d.TotalQueries)
	assert.Equal(t, 1, d.MaxQueryCount)
	assert.Equal(t, 1, d.MaxDayCount)
	assert.Len(t, d.QueriesByDay, analytics.DayWindow)
}
