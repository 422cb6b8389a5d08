// Package events carries "answers scored" notifications that invalidate cached reports.
package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicAnswersScored is published whenever a tenant's answers change.
const TopicAnswersScored = "survey.answers.scored"

// Options selects the transport: Kafka when brokers are set, otherwise an in-process channel.
type Options struct {
	Brokers       []string
	ConsumerGroup string
}

// PubSub bundles a publisher and subscriber over the same transport.
type PubSub struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

func (p PubSub) Close() error {
	perr := p.Publisher.Close()
	serr := p.Subscriber.Close()
	if perr != nil {
		return perr
	}
	return serr
}

func NewPubSub(opts Options, logger watermill.LoggerAdapter) (PubSub, error) {
	if len(opts.Brokers) == 0 {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		return PubSub{Publisher: ch, Subscriber: ch}, nil
	}

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   opts.Brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, logger)
	if err != nil {
		return PubSub{}, fmt.Errorf("kafka publisher: %w", err)
	}
	group := opts.ConsumerGroup
	if group == "" {
		group = "survey-dashboard-service"
	}
	subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               opts.Brokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		ConsumerGroup:         group,
		OverwriteSaramaConfig: kafka.DefaultSaramaSubscriberConfig(),
	}, logger)
	if err != nil {
		_ = publisher.Close()
		return PubSub{}, fmt.Errorf("kafka subscriber: %w", err)
	}
	return PubSub{Publisher: publisher, Subscriber: subscriber}, nil
}
