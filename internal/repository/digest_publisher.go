package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	"github.com/RiverSpider/PavelBot/internal/domain/repository"
	"github.com/RiverSpider/PavelBot/pkg/logger"
)

// Producer is the slice of pkg/kafka.Producer the publisher needs.
type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaDigestPublisher writes digests to a topic keyed by user id, so all
// digests of one user land on the same partition.
type KafkaDigestPublisher struct {
	producer Producer
	topic    string
}

func NewKafkaDigestPublisher(p Producer, topic string) *KafkaDigestPublisher {
	return &KafkaDigestPublisher{producer: p, topic: topic}
}

var _ repository.DigestPublisher = (*KafkaDigestPublisher)(nil)

func (p *KafkaDigestPublisher) PublishDigest(ctx context.Context, d *models.Digest) error {
	key := []byte(strconv.FormatInt(d.UserID, 10))
	if err := p.producer.Publish(ctx, p.topic, key, d); err != nil {
		return fmt.Errorf("publish %s digest for user %d: %w", d.Kind, d.UserID, err)
	}
	return nil
}

func (p *KafkaDigestPublisher) Close() error {
	return p.producer.Close()
}

// LogDigestPublisher only logs digests. It stands in when Kafka is disabled.
type LogDigestPublisher struct {
	log *logger.Logger
}

func NewLogDigestPublisher(log *logger.Logger) *LogDigestPublisher {
	return &LogDigestPublisher{log: log.With(logger.String("component", "digest_publisher"))}
}

func (p *LogDigestPublisher) PublishDigest(_ context.Context, d *models.Digest) error {
	p.log.Info("digest ready",
		logger.String("digest_id", d.ID),
		logger.User(d.UserID),
		logger.String("kind", string(d.Kind)))
	return nil
}

func (p *LogDigestPublisher) Close() error { return nil }
