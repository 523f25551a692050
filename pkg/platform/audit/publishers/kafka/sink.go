// Package kafka forwards persisted audit events to a Kafka topic so off-path
// monitors can watch for replay attempts and oracle outages.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	audit "sanctuary/pkg/platform/audit"
	"sanctuary/pkg/platform/circuit"
	"sanctuary/pkg/platform/sentinel"

	"github.com/ethereum/go-ethereum/common"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the subset of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Sink struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	logger   *slog.Logger
	onState  func(open bool)
}

type Option func(*Sink)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Sink) {
		s.breaker = b
	}
}

// WithStateObserver is called whenever the breaker opens or closes.
func WithStateObserver(fn func(open bool)) Option {
	return func(s *Sink) {
		if fn != nil {
			s.onState = fn
		}
	}
}

func New(producer Producer, topic string, opts ...Option) *Sink {
	s := &Sink{
		producer: producer,
		topic:    topic,
		logger:   slog.Default(),
		onState:  func(bool) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New("audit-kafka")
	}
	return s
}

type message struct {
	ID             string `json:"id"`
	Vault          string `json:"vault"`
	Sequence       uint64 `json:"sequence"`
	Kind           string `json:"kind"`
	Category       string `json:"category"`
	Timestamp      string `json:"timestamp"`
	Actor          string `json:"actor,omitempty"`
	AttestationKey string `json:"attestation_key,omitempty"`
	OperationHash  string `json:"operation_hash,omitempty"`
	Nonce          uint64 `json:"nonce,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Detail         string `json:"detail,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

func encode(event audit.Event) ([]byte, error) {
	m := message{
		ID:        event.ID.String(),
		Vault:     event.Vault.Hex(),
		Sequence:  event.Sequence,
		Kind:      string(event.Kind),
		Category:  string(event.Category),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Nonce:     event.Nonce,
		Reason:    event.Reason,
		Detail:    event.Detail,
		RequestID: event.RequestID,
	}
	if event.Actor != (common.Address{}) {
		m.Actor = event.Actor.Hex()
	}
	if event.AttestationKey != (common.Hash{}) {
		m.AttestationKey = event.AttestationKey.Hex()
	}
	if event.OperationHash != (common.Hash{}) {
		m.OperationHash = event.OperationHash.Hex()
	}
	return json.Marshal(m)
}

// Publish produces the event keyed by vault address so one vault's events
// stay ordered within a partition.
func (s *Sink) Publish(ctx context.Context, event audit.Event) error {
	if !s.breaker.Allow() {
		return fmt.Errorf("audit topic %s: %w", s.topic, sentinel.ErrUnavailable)
	}

	value, err := encode(event)
	if err != nil {
		return fmt.Errorf("marshal audit message: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   event.Vault.Bytes(),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "sequence", Value: []byte(strconv.FormatUint(event.Sequence, 10))},
		},
	}

	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.onState(true)
			s.logger.ErrorContext(ctx, "audit kafka circuit opened",
				"topic", s.topic,
				"error", err,
			)
		}
		return fmt.Errorf("produce audit record: %w", err)
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.onState(false)
		s.logger.InfoContext(ctx, "audit kafka circuit closed", "topic", s.topic)
	}
	return nil
}
