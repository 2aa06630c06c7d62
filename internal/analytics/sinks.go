package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"komikverse/internal/logging"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Send(_ context.Context, ev Event) error {
	logging.OrNop(s.Logger).Info("analytics event",
		zap.String("event", ev.Name),
		zap.String("user_id", ev.UserID),
		zap.Any("params", ev.Params),
		zap.Time("at", ev.At),
	)
	return nil
}

type NopSink struct{}

func (NopSink) Send(context.Context, Event) error { return nil }

// MemorySink keeps events in memory; useful for tests and local debugging.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) Send(_ context.Context, ev Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Names returns the recorded event names in order.
func (s *MemorySink) Names() []string {
	events := s.Events()
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Name
	}
	return out
}

// PubSubSink publishes events as JSON messages to a Pub/Sub topic. Send does
// not wait for the server; publish failures are logged in the background.
type PubSubSink struct {
	client  *pubsub.Client
	topic   *pubsub.Topic
	logger  *zap.Logger
	pending sync.WaitGroup
}

// NewPubSubSink creates a Pub/Sub client using Application Default Credentials.
func NewPubSubSink(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSubSink, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return NewPubSubSinkWithClient(client, topicID, logger), nil
}

// NewPubSubSinkWithClient wraps an existing client; the sink takes ownership.
func NewPubSubSinkWithClient(client *pubsub.Client, topicID string, logger *zap.Logger) *PubSubSink {
	return &PubSubSink{client: client, topic: client.Topic(topicID), logger: logging.OrNop(logger)}
}

func (s *PubSubSink) Send(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	// Events outlive the request that produced them.
	res := s.topic.Publish(context.WithoutCancel(ctx), &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"event": ev.Name},
	})
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if _, err := res.Get(context.Background()); err != nil {
			s.logger.Warn("publish event failed", zap.String("event", ev.Name), zap.Error(err))
		}
	}()
	return nil
}

// Close flushes buffered events and waits for their results.
func (s *PubSubSink) Close() error {
	s.topic.Stop()
	s.pending.Wait()
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
