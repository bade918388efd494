package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/stridefit-ai/coaching-engine/internal/model"
	"github.com/stridefit-ai/coaching-engine/pkg/logger"
)

const (
	streamName    = "COACHING_MESSAGES"
	subjectPrefix = "messages"
	fetchBatch    = 500
)

// MessageStore persists message snapshots to a JetStream stream. Every
// state change publishes a full snapshot; loading a conversation folds
// the snapshots down to the latest one per message ID. That keeps the
// write path append-only and crash-safe while reads stay simple.
type MessageStore struct {
	js     jetstream.JetStream
	logger *logger.Logger
}

// NewMessageStore ensures the message stream exists and returns a
// store bound to it.
func NewMessageStore(ctx context.Context, client *Client, log *logger.Logger) (*MessageStore, error) {
	_, err := client.JetStream().CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Description: "Message snapshots per conversation",
		Subjects:    []string{subjectPrefix + ".>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Duplicates:  2 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stream %s: %w", streamName, err)
	}
	return &MessageStore{js: client.JetStream(), logger: log}, nil
}

// AppendOrUpdate publishes the current snapshot of msg.
func (s *MessageStore) AppendOrUpdate(ctx context.Context, msg *model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	subject := fmt.Sprintf("%s.%s.%s", subjectPrefix, msg.ConversationID, msg.ID)
	if _, err := s.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish message snapshot: %w", err)
	}
	return nil
}

// LoadHistory replays all snapshots for a conversation and returns the
// latest state of each message, ordered by sequence.
func (s *MessageStore) LoadHistory(ctx context.Context, conversationID string) ([]model.Message, error) {
	filter := fmt.Sprintf("%s.%s.>", subjectPrefix, conversationID)

	cons, err := s.js.OrderedConsumer(ctx, streamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{filter},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create history consumer: %w", err)
	}

	latest := make(map[string]*model.Message)
	for {
		batch, err := cons.FetchNoWait(fetchBatch)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch history: %w", err)
		}

		count := 0
		for raw := range batch.Messages() {
			count++
			meta, err := raw.Metadata()
			if err != nil {
				s.logger.Warn("skipping snapshot without stream metadata",
					zap.String("subject", raw.Subject()),
					zap.Error(err),
				)
				continue
			}
			msg, err := decodeSnapshot(raw.Data(), meta.Sequence.Stream)
			if err != nil {
				s.logger.Warn("skipping undecodable message snapshot",
					zap.String("subject", raw.Subject()),
					zap.Error(err),
				)
				continue
			}
			foldSnapshot(latest, msg)
		}
		if err := batch.Error(); err != nil {
			return nil, fmt.Errorf("failed reading history batch: %w", err)
		}
		if count < fetchBatch {
			break
		}
	}

	out := make([]model.Message, 0, len(latest))
	for _, msg := range latest {
		out = append(out, *msg)
	}
	sortMessages(out)
	return out, nil
}

// decodeSnapshot unmarshals one stored snapshot and stamps the stream
// sequence it was read at. The stored payload never carries a sequence;
// the stream assigns it on publish, so it is only known on read.
func decodeSnapshot(data []byte, seq uint64) (*model.Message, error) {
	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	msg.Sequence = seq
	return &msg, nil
}

// foldSnapshot merges one decoded snapshot into the latest-state map.
// Later snapshots replace the state but keep the first snapshot's
// sequence, so a status update never reorders the conversation.
func foldSnapshot(latest map[string]*model.Message, msg *model.Message) {
	if prev, ok := latest[msg.ID]; ok {
		msg.Sequence = prev.Sequence
	}
	latest[msg.ID] = msg
}

// sortMessages orders by the sequence of each message's first
// snapshot, falling back to creation time for pre-existing entries
// loaded without one.
func sortMessages(out []model.Message) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
}
