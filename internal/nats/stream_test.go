package nats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "getchdocs.chat.user-1.msg.user", MessageSubject("user-1", model.MessageRoleUser))
	assert.Equal(t, "getchdocs.chat.user-1.msg.assistant", MessageSubject("user-1", model.MessageRoleAssistant))
	assert.Equal(t, "getchdocs.chat.user-1.msg.>", UserFilter("user-1"))

	// Dots and wildcards would split or widen the subject.
	assert.Equal(t, "getchdocs.chat.a_b_c.msg.>", UserFilter("a.b*c"))
}

func testStreamManager(t *testing.T) *StreamManager {
	t.Helper()

	url := os.Getenv("NATS_TEST_URL")
	if url == "" {
		url = "nats://localhost:4222"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := Connect(ctx, Config{URL: url}, logger.NewNop())
	if err != nil {
		t.Skipf("NATS not available at %s: %v", url, err)
	}
	t.Cleanup(client.Close)

	m := NewStreamManager(client)
	if err := m.EnsureStream(ctx); err != nil {
		t.Skipf("JetStream not available: %v", err)
	}
	return m
}

func TestStreamManager_SaveAndList(t *testing.T) {
	m := testStreamManager(t)
	ctx := context.Background()
	userID := "user-" + uuid.NewString()
	t.Cleanup(func() { _ = m.DeleteUserMessages(context.Background(), userID) })

	contents := []string{"first question", "first answer", "second question"}
	roles := []model.MessageRole{model.MessageRoleUser, model.MessageRoleAssistant, model.MessageRoleUser}
	for i, c := range contents {
		msg := &model.Message{ID: uuid.NewString(), UserID: userID, Role: roles[i], Content: c, CreatedAt: time.Now().UTC()}
		require.NoError(t, m.SaveMessage(ctx, msg))
		assert.NotZero(t, msg.Sequence)
	}

	messages, err := m.ListMessages(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, msg := range messages {
		assert.Equal(t, contents[i], msg.Content)
		assert.Equal(t, roles[i], msg.Role)
	}

	last, err := m.ListMessages(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "first answer", last[0].Content)
}

func TestStreamManager_ListEmpty(t *testing.T) {
	m := testStreamManager(t)

	messages, err := m.ListMessages(context.Background(), "user-"+uuid.NewString(), 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
