package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-claims-risk/internal/config"
	"github.com/couchcryptid/storm-claims-risk/internal/domain"
)

// Reader takes a snapshot of the claims topic: each call reads every
// partition from its first offset up to the high-water mark observed when
// the partition is opened, then stops. No consumer group is used and no
// offsets are committed, so every run sees the full history.
// It implements pipeline.Extractor.
type Reader struct {
	brokers    []string
	topic      string
	partitions int
	logger     *slog.Logger
}

// NewReader creates a snapshot reader for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	return &Reader{
		brokers:    cfg.KafkaBrokers,
		topic:      cfg.KafkaSourceTopic,
		partitions: cfg.KafkaSourcePartitions,
		logger:     logger,
	}
}

// Extract drains every partition and decodes the claims it holds.
// Messages that are not valid claim JSON are logged and skipped.
func (r *Reader) Extract(ctx context.Context) ([]domain.RawClaimRecord, error) {
	ids, err := r.partitionIDs(ctx)
	if err != nil {
		return nil, err
	}

	var records []domain.RawClaimRecord
	for _, id := range ids {
		msgs, err := r.drainPartition(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("drain %s/%d: %w", r.topic, id, err)
		}
		records = append(records, decodeMessages(msgs, r.logger)...)
	}
	r.logger.Debug("claims topic drained", "topic", r.topic, "partitions", len(ids), "records", len(records))
	return records, nil
}

// partitionIDs returns the configured partition count, or asks the
// cluster when none is configured.
func (r *Reader) partitionIDs(ctx context.Context) ([]int, error) {
	if r.partitions > 0 {
		ids := make([]int, r.partitions)
		for i := range ids {
			ids[i] = i
		}
		return ids, nil
	}
	if len(r.brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	var lastErr error
	for _, broker := range r.brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		parts, err := conn.ReadPartitions(r.topic)
		_ = conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		ids := make([]int, 0, len(parts))
		for _, p := range parts {
			ids = append(ids, p.ID)
		}
		slices.Sort(ids)
		return ids, nil
	}
	return nil, fmt.Errorf("read partitions of %s: %w", r.topic, lastErr)
}

func (r *Reader) drainPartition(ctx context.Context, partition int) ([]kafkago.Message, error) {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   r.brokers,
		Topic:     r.topic,
		Partition: partition,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffset(kafkago.FirstOffset); err != nil {
		return nil, err
	}
	lag, err := reader.ReadLag(ctx)
	if err != nil {
		return nil, err
	}
	if lag == 0 {
		return nil, nil
	}

	msgs := make([]kafkago.Message, 0, lag)
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
		if reachedHighWaterMark(msg) {
			return msgs, nil
		}
	}
}

// reachedHighWaterMark reports whether msg is the last message that
// existed when it was fetched.
func reachedHighWaterMark(msg kafkago.Message) bool {
	return msg.Offset+1 >= msg.HighWaterMark
}

func decodeMessages(msgs []kafkago.Message, logger *slog.Logger) []domain.RawClaimRecord {
	records := make([]domain.RawClaimRecord, 0, len(msgs))
	for _, msg := range msgs {
		raw := mapMessageToRawEvent(msg)
		rec, err := domain.DecodeRawEvent(raw)
		if err != nil {
			logger.Warn("decode failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// mapMessageToRawEvent converts a kafka-go message into a domain RawEvent.
func mapMessageToRawEvent(msg kafkago.Message) domain.RawEvent {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
