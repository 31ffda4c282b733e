package events

import (
	"context"
	"strconv"
	"sync"

	kafkax "github.com/ariefcatur/go-cart-reservation/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event is one message to publish. Key selects the partition.
type Event struct {
	Topic   string
	Type    string
	Key     string
	Payload any
}

// Emitter publishes committed changes. Implementations must not block the
// caller on broker availability.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// Publisher is the subset of *kafka.Producer used here.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header) bool
}

var _ Publisher = (*kafkax.Producer)(nil)

// KafkaEmitter wraps events in an Envelope and hands them to a producer.
type KafkaEmitter struct {
	P       Publisher
	Service string
	Log     *zap.Logger
}

func (k *KafkaEmitter) Emit(_ context.Context, e Event) {
	env, err := NewEnvelope(k.Service, e.Type, e.Key, e.Payload)
	if err != nil {
		k.Log.Error("encode event", zap.String("event_type", e.Type), zap.Error(err))
		return
	}
	ok := k.P.Publish(e.Topic, PartitionKey(e.Key), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(e.Type)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	)
	if !ok {
		k.Log.Warn("event dropped", zap.String("topic", e.Topic), zap.String("event_type", e.Type), zap.String("key", e.Key))
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, Event) {}

// Recorder keeps events in memory, encoded as they would be on the wire.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
	topics []string
}

func (r *Recorder) Emit(_ context.Context, e Event) {
	env, err := NewEnvelope("recorder", e.Type, e.Key, e.Payload)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env)
	r.topics = append(r.topics, e.Topic)
}

// Envelopes returns the recorded envelopes published on topic.
func (r *Recorder) Envelopes(topic string) []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Envelope
	for i, env := range r.events {
		if r.topics[i] == topic {
			out = append(out, env)
		}
	}
	return out
}

// Types lists recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, env := range r.events {
		out = append(out, env.EventType)
	}
	return out
}
