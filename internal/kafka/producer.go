package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer funnels messages for any topic through one writer goroutine.
type Producer struct {
	w      messageWriter
	inbox  chan kafka.Message
	stop   chan struct{}
	closed chan struct{}
	once   sync.Once
	log    *zap.Logger
}

// NewProducer builds an async writer with no default topic; every message
// names its own.
func NewProducer(brokers []string, buf int, log *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error("kafka write failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	return newProducer(w, buf, log)
}

func newProducer(w messageWriter, buf int, log *zap.Logger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:      w,
		inbox:  make(chan kafka.Message, buf),
		stop:   make(chan struct{}),
		closed: make(chan struct{}),
		log:    log,
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closed)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case <-p.stop:
				p.drain()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				p.log.Warn("kafka writer close", zap.Error(err))
			}
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error("kafka write", zap.String("topic", m.Topic), zap.Error(err))
	}
}

// Publish queues a message without blocking. It reports false when the
// buffer is full and the message was dropped.
func (p *Producer) Publish(topic string, key, value []byte, headers ...kafka.Header) bool {
	m := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case p.inbox <- m:
		return true
	default:
		return false
	}
}

// Close asks the writer goroutine to flush what is queued and exit.
func (p *Producer) Close() { p.once.Do(func() { close(p.stop) }) }

// WaitClosed blocks until the writer goroutine has flushed and exited.
func (p *Producer) WaitClosed() { <-p.closed }
