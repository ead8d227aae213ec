package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RiverSpider/PavelBot/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// Producer publishes JSON (or raw) messages. Messages with the same key
// land on the same partition, so per-user ordering holds.
type Producer struct {
	writer *kafka.Writer
	comp   string
	obs    *producerMetrics
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := &ProducerConfig{
		RequiredAcks: -1,
		Compression:  "gzip",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: brokers are required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            parseCompression(cfg.Compression),
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		ReadTimeout:            cfg.ReadTimeout,
		BatchSize:              cfg.BatchSize,
		BatchBytes:             int64(cfg.BatchBytes),
		BatchTimeout:           cfg.BatchTimeout,
		Async:                  cfg.Async,
		AllowAutoTopicCreation: cfg.AutoCreateTopics,
	}

	p := &Producer{writer: writer, comp: cfg.Compression}
	if cfg.Metrics != nil {
		p.obs = newProducerMetrics(cfg.Metrics)
	}
	return p, nil
}

// Publish sends one message. []byte and string values are sent as-is,
// anything else is JSON encoded.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	start := time.Now()
	now := start.UTC()
	out := make([]kafka.Message, 0, len(messages))
	var bytes int64
	for _, m := range messages {
		v, err := encodeValue(m.Value)
		if err != nil {
			return fmt.Errorf("kafka: encode %s message: %w", topic, err)
		}
		out = append(out, kafka.Message{Topic: topic, Key: m.Key, Value: v, Headers: m.Headers, Time: now})
		bytes += int64(len(v))
	}

	err := p.writer.WriteMessages(ctx, out...)
	p.obs.observe(topic, p.comp, bytes, len(out), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka: write %d messages to %s: %w", len(out), topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Message is one record of a batch.
type Message struct {
	Key     []byte
	Value   interface{}
	Headers []kafka.Header
}

func encodeValue(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		return json.Marshal(v)
	}
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

type producerMetrics struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newProducerMetrics(reg *metrics.Registry) *producerMetrics {
	return &producerMetrics{
		messages: reg.CounterVec("kafka_producer", "messages_total", "Messages written to Kafka.", "topic", "result"),
		bytes:    reg.CounterVec("kafka_producer", "bytes_total", "Payload bytes written to Kafka.", "topic", "compression"),
		latency:  reg.HistogramVec("kafka_producer", "publish_seconds", "Publish latency.", nil, "topic"),
	}
}

func (m *producerMetrics) observe(topic, comp string, bytes int64, count int, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.messages.WithLabelValues(topic, result).Add(float64(count))
	m.bytes.WithLabelValues(topic, comp).Add(float64(bytes))
	m.latency.WithLabelValues(topic).Observe(d.Seconds())
}
