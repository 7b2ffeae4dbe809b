// Package events publishes trip store changes to Kafka so downstream
// consumers (calendar sync, notifications) can react to saved or deleted
// itineraries. Publishing is best effort and never blocks the planner.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

type Action string

const (
	ActionSaved   Action = "saved"
	ActionDeleted Action = "deleted"
)

type Change struct {
	Action     Action    `json:"action"`
	EventID    int64     `json:"eventId"`
	BundleID   int64     `json:"bundleId"`
	DataSource string    `json:"dataSource,omitempty"`
	TS         time.Time `json:"ts"`
}

// Notifier is what the planner depends on; a nil *Publisher satisfies it
// as a no-op so the feature stays optional.
type Notifier interface {
	Notify(Change)
}

type Publisher struct {
	topic   string
	changes chan Change
	prod    sarama.AsyncProducer
	log     zerolog.Logger
	stopped chan struct{}
}

func NewPublisher(brokers []string, topic string, queueSize int, log zerolog.Logger) (*Publisher, error) {
	if queueSize <= 0 {
		queueSize = 1024
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}

	p := &Publisher{
		topic:   topic,
		changes: make(chan Change, queueSize),
		prod:    prod,
		log:     log,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ch := range p.changes {
			b, err := json.Marshal(ch)
			if err != nil {
				p.log.Error().Err(err).Msg("events: marshal")
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(fmt.Sprintf("%d", ch.EventID)),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Error().Err(err).Msg("events: producer")
			}
		}
	}()

	return p, nil
}

func (p *Publisher) Notify(ch Change) {
	if p == nil {
		return
	}
	if ch.TS.IsZero() {
		ch.TS = time.Now()
	}
	select {
	case p.changes <- ch:
	default:
		// queue full → drop silently (do NOT block the planner path)
	}
}

func (p *Publisher) Close() error {
	close(p.changes)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	return nil
}
