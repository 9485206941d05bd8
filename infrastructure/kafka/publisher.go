package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spooky-finn/marketsync/domain"
	promclient "github.com/spooky-finn/marketsync/infrastructure/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

const (
	EventTrade   = "trade"
	EventMyTrade = "my_trade"
	EventOrder   = "order"
)

type Event struct {
	Kind      string        `json:"kind"`
	Symbol    string        `json:"symbol"`
	EmittedAt int64         `json:"emitted_at"`
	Trade     *domain.Trade `json:"trade,omitempty"`
	Order     *domain.Order `json:"order,omitempty"`
}

// Publisher forwards trades and reconciled orders to a Kafka topic, keyed by symbol.
// Produce is asynchronous, the dispatch path never waits on the broker.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *zap.Logger
}

func NewPublisher(brokers []string, topic string, logger *zap.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.LeaderAck()),
		kgo.DisableIdempotentWrite(),
		kgo.ProducerLinger(20*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	logger = logger.Named("kafka-publisher")
	logger.Info("producer initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))

	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

func (p *Publisher) TradeReceived(trade domain.Trade, private bool) {
	kind := EventTrade
	if private {
		kind = EventMyTrade
	}
	p.publish(Event{Kind: kind, Symbol: trade.Symbol, Trade: &trade})
}

func (p *Publisher) OrderUpdated(order domain.Order) {
	p.publish(Event{Kind: EventOrder, Symbol: order.Symbol, Order: &order})
}

func (p *Publisher) publish(ev Event) {
	record, err := NewRecord(p.topic, ev)
	if err != nil {
		promclient.PublishedEventsTotal.WithLabelValues(ev.Kind, "failed").Inc()
		p.logger.Error("failed to encode event", zap.String("kind", ev.Kind), zap.Error(err))
		return
	}

	p.client.Produce(context.Background(), record, p.delivered(ev.Kind))
}

// delivered counts the outcome of one produce.
func (p *Publisher) delivered(kind string) func(*kgo.Record, error) {
	return func(_ *kgo.Record, err error) {
		if err != nil {
			promclient.PublishedEventsTotal.WithLabelValues(kind, "failed").Inc()
			p.logger.Warn("failed to produce event", zap.String("kind", kind), zap.Error(err))
			return
		}
		promclient.PublishedEventsTotal.WithLabelValues(kind, "produced").Inc()
	}
}

// NewRecord encodes ev as JSON keyed by its symbol, so one symbol stays on one partition.
func NewRecord(topic string, ev Event) (*kgo.Record, error) {
	if ev.EmittedAt == 0 {
		ev.EmittedAt = time.Now().UnixMilli()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{Topic: topic, Key: []byte(ev.Symbol), Value: data}, nil
}

// Close flushes what is buffered and closes the client.
func (p *Publisher) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("flush before close failed", zap.Error(err))
	}
	p.client.Close()
}
