package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"survey-dashboard-service/internal/domain"
)

// AnswersScored tells report caches that a tenant's answers changed.
type AnswersScored struct {
	TenantID   int64             `json:"tenant_id"`
	ModuleType domain.ModuleType `json:"module_type"`
	ScoredAt   time.Time         `json:"scored_at"`
}

// TenantInvalidator drops a tenant's cached reports.
type TenantInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID int64) error
}

// Publisher emits AnswersScored events.
type Publisher struct {
	publisher message.Publisher
	topic     string
}

func NewPublisher(publisher message.Publisher, topic string) *Publisher {
	if topic == "" {
		topic = TopicAnswersScored
	}
	return &Publisher{publisher: publisher, topic: topic}
}

func (p *Publisher) AnswersScored(ctx context.Context, evt AnswersScored) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode answers scored: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return p.publisher.Publish(p.topic, msg)
}

// CacheInvalidator consumes AnswersScored events and drops the tenant's reports.
type CacheInvalidator struct {
	subscriber message.Subscriber
	target     TenantInvalidator
	topic      string
	logger     *zap.Logger
}

func NewCacheInvalidator(subscriber message.Subscriber, target TenantInvalidator, topic string, logger *zap.Logger) *CacheInvalidator {
	if topic == "" {
		topic = TopicAnswersScored
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheInvalidator{subscriber: subscriber, target: target, topic: topic, logger: logger}
}

// Run blocks until ctx is done or the subscription closes.
func (i *CacheInvalidator) Run(ctx context.Context) error {
	messages, err := i.subscriber.Subscribe(ctx, i.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", i.topic, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			i.handle(ctx, msg)
		}
	}
}

func (i *CacheInvalidator) handle(ctx context.Context, msg *message.Message) {
	var evt AnswersScored
	if err := json.Unmarshal(msg.Payload, &evt); err != nil || evt.TenantID <= 0 {
		// redelivery cannot fix a bad payload
		i.logger.Warn("dropping malformed answers scored event", zap.String("uuid", msg.UUID), zap.Error(err))
		msg.Ack()
		return
	}
	if err := i.target.InvalidateTenant(ctx, evt.TenantID); err != nil {
		i.logger.Warn("report invalidation failed", zap.Int64("tenant", evt.TenantID), zap.Error(err))
		msg.Nack()
		return
	}
	i.logger.Debug("reports invalidated", zap.Int64("tenant", evt.TenantID), zap.String("module", string(evt.ModuleType)))
	msg.Ack()
}
