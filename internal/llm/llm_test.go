package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getchdocs/getchdocs-api/internal/model"
)

var testDocs = []model.Document{
	{ID: "doc-1", Name: "Vacation Policy.txt", Content: "Employees get 30 days."},
	{ID: "doc-2", Name: "Expense Guide.md", Content: "Submit receipts within 10 days."},
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt(testDocs)

	assert.True(t, strings.HasPrefix(prompt, systemPreamble))
	assert.Contains(t, prompt, "=== DOCUMENT 1: Vacation Policy.txt ===\nEmployees get 30 days.")
	assert.Contains(t, prompt, "=== DOCUMENT 2: Expense Guide.md ===\nSubmit receipts within 10 days.")
	assert.Less(t, strings.Index(prompt, "DOCUMENT 1"), strings.Index(prompt, "DOCUMENT 2"))
}

func TestDocumentPromptDefaults(t *testing.T) {
	req := DocumentPrompt{}.Request("How many vacation days?", testDocs)

	assert.Equal(t, DefaultTemperature, req.Temperature)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, RoleUser, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "How many vacation days?")
	assert.Contains(t, req.System, "Vacation Policy.txt")
}

func TestReferencedDocuments(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   []string
	}{
		{"single match ignoring case", "According to VACATION POLICY.TXT you get 30 days.", []string{"doc-1"}},
		{"both named", "See vacation policy.txt and expense guide.md.", []string{"doc-1", "doc-2"}},
		{"none named falls back to all", "I could not find that.", []string{"doc-1", "doc-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReferencedDocuments(tt.answer, testDocs))
		})
	}
}

func TestSelect(t *testing.T) {
	c, err := Select(ProviderOpenAI, "", "")
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = Select(ProviderOpenAI, "sk-openai", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	c, err = Select(ProviderOpenAI, "", "sk-ant")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	c, err = Select(ProviderAnthropic, "sk-openai", "sk-ant")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	_, err = NewClient("mistral", "key")
	assert.Error(t, err)
}

func TestOpenAIClientComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Per Vacation Policy.txt, 30 days."}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 9, "total_tokens": 129}
		}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClientWithBaseURL("sk-test", srv.URL)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), DocumentPrompt{}.Request("vacation?", testDocs))
	require.NoError(t, err)
	assert.Equal(t, "Per Vacation Policy.txt, 30 days.", resp.Content)
	assert.Equal(t, 120, resp.TokensIn)
	assert.Equal(t, 9, resp.TokensOut)
	assert.Equal(t, "stop", resp.StopReason)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.EqualValues(t, 1000, got["max_tokens"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestOpenAIClientCompleteStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{
			`{"id":"1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"Thirty"}}]}`,
			`{"id":"1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"content":" days."}}]}`,
			`{"id":"1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		} {
			_, _ = w.Write([]byte("data: " + chunk + "\n\n"))
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	client, err := NewOpenAIClientWithBaseURL("sk-test", srv.URL)
	require.NoError(t, err)

	var tokens []string
	resp, err := client.CompleteStream(context.Background(), DocumentPrompt{}.Request("vacation?", testDocs), func(token string, index int) error {
		assert.Equal(t, len(tokens), index)
		tokens = append(tokens, token)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Thirty", " days."}, tokens)
	assert.Equal(t, "Thirty days.", resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
}

func TestOpenAIClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClientWithBaseURL("sk-test", srv.URL)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), DocumentPrompt{}.Request("q", testDocs))
	assert.Error(t, err)
}

func anthropicEvents(w http.ResponseWriter, events ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, data := range events {
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal([]byte(data), &head)
		_, _ = w.Write([]byte("event: " + head.Type + "\ndata: " + data + "\n\n"))
	}
}

func TestAnthropicClientCompleteStream(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		anthropicEvents(w,
			`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-3-5-haiku-20241022","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":120,"output_tokens":1}}}`,
			`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
			`{"type":"ping"}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Thirty"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" days."}}`,
			`{"type":"content_block_stop","index":0}`,
			`{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":9}}`,
			`{"type":"message_stop"}`,
		)
	}))
	defer srv.Close()

	client, err := NewAnthropicClient("sk-ant-test", option.WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	req := DocumentPrompt{Model: "claude-3-5-haiku-20241022"}.Request("vacation?", testDocs)
	var tokens []string
	resp, err := client.CompleteStream(context.Background(), req, func(token string, index int) error {
		assert.Equal(t, len(tokens), index)
		tokens = append(tokens, token)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Thirty", " days."}, tokens)
	assert.Equal(t, "Thirty days.", resp.Content)
	assert.Equal(t, "claude-3-5-haiku-20241022", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 120, resp.TokensIn)
	assert.Equal(t, 9, resp.TokensOut)

	assert.Equal(t, true, got["stream"])
	assert.Equal(t, "claude-3-5-haiku-20241022", got["model"])
}

func TestAnthropicClientCompleteStreamCallbackError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		anthropicEvents(w,
			`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-3-5-sonnet-20241022","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":5,"output_tokens":1}}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"one"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"two"}}`,
		)
	}))
	defer srv.Close()

	client, err := NewAnthropicClient("sk-ant-test", option.WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	stop := errors.New("client went away")
	calls := 0
	_, err = client.CompleteStream(context.Background(), DocumentPrompt{}.Request("q", testDocs), func(string, int) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
