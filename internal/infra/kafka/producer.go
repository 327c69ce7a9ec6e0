package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"melodia-go/internal/config"
	"melodia-go/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher 评论事件生产者
type Publisher struct {
	writer *kafka.Writer
	topic  string
}

// NewPublisher 初始化 Kafka 生产者
func NewPublisher(cfg *config.KafkaConfig) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	topic := cfg.Topic("comment_events")
	logger.Info("Kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", topic),
	)

	return &Publisher{writer: writer, topic: topic}
}

// PublishCommentEvent 发送评论事件
func (p *Publisher) PublishCommentEvent(ctx context.Context, evt *CommentEvent) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal comment event: %w", err)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(evt.Key()),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to send comment event: %w", err)
	}

	logger.Debug("Comment event sent",
		zap.String("type", evt.Type),
		zap.Int64("comment_id", evt.CommentID),
		zap.String("topic", p.topic),
	)
	return nil
}

// Close 关闭生产者
func (p *Publisher) Close() error {
	logger.Info("Kafka producer closed")
	return p.writer.Close()
}
