package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/getchdocs/getchdocs-api/internal/model"
)

const (
	// StreamName is the name of the chat history stream.
	StreamName = "GETCHDOCS_CHAT"

	// SubjectPrefix is the prefix for all chat subjects.
	SubjectPrefix = "getchdocs.chat"

	// MaxMessagesPerUser bounds the history kept per user and role.
	MaxMessagesPerUser = 5000

	fetchBatch = 256
)

// StreamManager handles JetStream stream operations and stores chat
// messages in the stream.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream creates the chat stream if it does not exist yet.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:              StreamName,
		Subjects:          []string{SubjectPrefix + ".>"},
		Retention:         jetstream.LimitsPolicy,
		MaxAge:            365 * 24 * time.Hour,
		MaxMsgsPerSubject: MaxMessagesPerUser,
		Storage:           jetstream.FileStorage,
		Replicas:          1,
		Compression:       jetstream.S2Compression,
		Description:       "Chat messages per user",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	m.client.logger.Info("created JetStream stream", zap.String("stream", StreamName))
	return nil
}

// subjectToken makes s safe to use as a single subject token.
func subjectToken(s string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

// MessageSubject returns the subject for a message.
func MessageSubject(userID string, role model.MessageRole) string {
	return fmt.Sprintf("%s.%s.msg.%s", SubjectPrefix, subjectToken(userID), role)
}

// UserFilter returns the filter subject for all messages of a user.
func UserFilter(userID string) string {
	return fmt.Sprintf("%s.%s.msg.>", SubjectPrefix, subjectToken(userID))
}

// SaveMessage publishes a message to JetStream and records its stream
// sequence on msg.
func (m *StreamManager) SaveMessage(ctx context.Context, msg *model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, MessageSubject(msg.UserID, msg.Role), data)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	msg.Sequence = ack.Sequence
	return nil
}

// ListMessages returns the user's messages in publish order. A limit of
// zero or less returns everything retained.
func (m *StreamManager) ListMessages(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	js := m.client.JetStream()

	consumer, err := js.CreateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		FilterSubject:     UserFilter(userID),
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		InactiveThreshold: time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	info := consumer.CachedInfo()
	defer func() {
		if err := js.DeleteConsumer(context.Background(), StreamName, info.Name); err != nil {
			m.client.logger.Debug("failed to delete consumer", zap.String("consumer", info.Name), zap.Error(err))
		}
	}()

	pending := int(info.NumPending)
	messages := make([]model.Message, 0, pending)

	for pending > 0 {
		batchSize := fetchBatch
		if pending < batchSize {
			batchSize = pending
		}

		batch, err := consumer.Fetch(batchSize, jetstream.FetchMaxWait(2*time.Second))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch messages: %w", err)
		}

		received := 0
		for msg := range batch.Messages() {
			received++

			var message model.Message
			if err := json.Unmarshal(msg.Data(), &message); err != nil {
				m.client.logger.Warn("skipping undecodable chat message", zap.String("subject", msg.Subject()), zap.Error(err))
				continue
			}
			if meta, err := msg.Metadata(); err == nil {
				message.Sequence = meta.Sequence.Stream
			}
			messages = append(messages, message)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("batch error: %w", err)
		}
		if received == 0 {
			break
		}
		pending -= received

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// DeleteUserMessages purges the user's history from the stream.
func (m *StreamManager) DeleteUserMessages(ctx context.Context, userID string) error {
	stream, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return fmt.Errorf("failed to look up stream: %w", err)
	}
	if err := stream.Purge(ctx, jetstream.WithPurgeSubject(UserFilter(userID))); err != nil {
		return fmt.Errorf("failed to purge messages: %w", err)
	}
	return nil
}
