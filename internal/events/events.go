// Package events publishes encoded pointer events to Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/geopin/internal/core/model"
)

// EncodedEvent is a pointer event enriched with its codes.
type EncodedEvent struct {
	ID       string      `json:"id"`
	DeviceID string      `json:"device_id"`
	Seq      uint64      `json:"seq"`
	Lat      float64     `json:"lat"`
	Lon      float64     `json:"lon"`
	Floor    int         `json:"floor"`
	Codes    model.Codes `json:"codes"`
	TS       time.Time   `json:"ts"`
}

type Publisher struct {
	topic   string
	events  chan EncodedEvent
	prod    sarama.AsyncProducer
	logger  *slog.Logger
	stopped chan struct{}
}

// ProducerConfig is the sarama configuration used by NewPublisher.
func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	return cfg
}

func NewPublisher(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	prod, err := sarama.NewAsyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}
	return NewWithProducer(prod, topic, queueSize, logger), nil
}

// NewWithProducer publishes through an existing producer, which the
// Publisher then owns.
func NewWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan EncodedEvent, queueSize),
		prod:    prod,
		logger:  logger,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Error("events: marshal", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.DeviceID),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.logger.Warn("events: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish enqueues ev and reports whether it was accepted. A full queue
// drops the event instead of blocking the caller.
func (p *Publisher) Publish(ev EncodedEvent) bool {
	select {
	case p.events <- ev:
		return true
	default:
		return false
	}
}

func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	return nil
}
