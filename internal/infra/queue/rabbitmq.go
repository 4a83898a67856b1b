package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"analysis-bot/internal/domain"
	"analysis-bot/internal/infra/metrics"
)

var _ domain.EventPublisher = (*RabbitPublisher)(nil)

type brokerConn interface {
	IsClosed() bool
	Channel() (eventChannel, error)
	Close() error
}

type eventChannel interface {
	IsClosed() bool
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpConn struct {
	*amqp.Connection
}

func (c amqpConn) Channel() (eventChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string) (brokerConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConn{conn}, nil
}

// RabbitPublisher публикует события о постах в очередь RabbitMQ.
type RabbitPublisher struct {
	url   string
	queue string
	dial  func(url string) (brokerConn, error)

	mu   sync.Mutex
	conn brokerConn
	ch   eventChannel
}

// NewRabbitPublisher подключается к брокеру и объявляет durable-очередь.
func NewRabbitPublisher(amqpURL, queue string) (*RabbitPublisher, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	p := &RabbitPublisher{url: amqpURL, queue: queue, dial: dialAMQP}
	if err := p.ensure(); err != nil {
		_ = p.closeLocked()
		return nil, err
	}
	return p, nil
}

// ensure переоткрывает закрытое соединение и закрытый канал. Канал может
// закрыться ошибкой протокола при живом соединении.
func (p *RabbitPublisher) ensure() error {
	if p.conn == nil || p.conn.IsClosed() {
		if p.ch != nil {
			_ = p.ch.Close()
			p.ch = nil
		}
		conn, err := p.dial(p.url)
		if err != nil {
			return fmt.Errorf("dial amqp: %w", err)
		}
		p.conn = conn
	}
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	p.ch = ch
	return nil
}

// Publish отправляет событие. Закрытые соединение или канал переоткрываются.
func (p *RabbitPublisher) Publish(ctx context.Context, event domain.PostEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensure(); err != nil {
		return err
	}

	start := time.Now()
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         body,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", p.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *RabbitPublisher) closeLocked() error {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
