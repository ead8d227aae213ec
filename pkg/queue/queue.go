package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Publisher enqueues a typed message for the registered job.
type Publisher interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

type Config struct {
	Name       string        // key namespace of the queue
	Workers    int           // concurrent consumers
	RetryLimit int           // attempts after the first failure
	RetryDelay time.Duration // delay before a failed message is retried
	JobTimeout time.Duration // upper bound for a single Handle call
}

// Message is the envelope stored in Redis. Payload stays raw until the
// job decodes it into its own type.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

func NewMessage(msgType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Message{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the message payload into T.
func Decode[T any](msg Message) (T, error) {
	var out T
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return out, nil
}
