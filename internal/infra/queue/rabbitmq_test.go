package queue

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"analysis-bot/internal/domain"
)

type fakeChannel struct {
	closed    bool
	declared  []string
	published []amqp.Publishing
}

func (f *fakeChannel) IsClosed() bool { return f.closed }

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

type fakeConn struct {
	closed   bool
	channels []*fakeChannel
}

func (f *fakeConn) IsClosed() bool { return f.closed }

func (f *fakeConn) Channel() (eventChannel, error) {
	ch := &fakeChannel{}
	f.channels = append(f.channels, ch)
	return ch, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func newTestPublisher() (*RabbitPublisher, *[]*fakeConn) {
	var dialed []*fakeConn
	p := &RabbitPublisher{url: "amqp://test", queue: "post_events", dial: func(string) (brokerConn, error) {
		conn := &fakeConn{}
		dialed = append(dialed, conn)
		return conn, nil
	}}
	return p, &dialed
}

func TestPublishReopensClosedChannel(t *testing.T) {
	p, dialed := newTestPublisher()
	ctx := context.Background()

	if err := p.Publish(ctx, domain.PostEvent{Type: domain.PostEventPublished}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conn := (*dialed)[0]
	conn.channels[0].closed = true

	if err := p.Publish(ctx, domain.PostEvent{Type: domain.PostEventPartial}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*dialed) != 1 {
		t.Fatalf("live connection must be reused, dialed %d times", len(*dialed))
	}
	if len(conn.channels) != 2 {
		t.Fatalf("expected a new channel, got %d", len(conn.channels))
	}
	fresh := conn.channels[1]
	if len(fresh.declared) != 1 || fresh.declared[0] != "post_events" {
		t.Fatalf("queue must be declared on the new channel, got %v", fresh.declared)
	}
	if len(fresh.published) != 1 || fresh.published[0].Type != string(domain.PostEventPartial) {
		t.Fatalf("event must go through the new channel, got %+v", fresh.published)
	}
}

func TestPublishRedialsClosedConnection(t *testing.T) {
	p, dialed := newTestPublisher()
	ctx := context.Background()

	if err := p.Publish(ctx, domain.PostEvent{Type: domain.PostEventPublished}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	(*dialed)[0].closed = true

	if err := p.Publish(ctx, domain.PostEvent{Type: domain.PostEventFailed, Error: "boom"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*dialed) != 2 {
		t.Fatalf("expected redial, dialed %d times", len(*dialed))
	}
	msg := (*dialed)[1].channels[0].published[0]
	var event domain.PostEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		t.Fatalf("unexpected body: %v", err)
	}
	if event.ID == "" || event.ID != msg.MessageId || event.Error != "boom" {
		t.Fatalf("unexpected event %+v", event)
	}
}
