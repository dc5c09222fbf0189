// Package nats publishes relayed facts to a JetStream stream. The outbox
// row id doubles as the JetStream message id, so redelivery after a relay
// crash is deduplicated by the broker within its duplicate window.
package nats

import (
	"context"
	"fmt"
	"time"

	natspkg "github.com/nats-io/nats.go"

	"github.com/cinetix/cinetix/internal/port"
)

const (
	streamName    = "CINETIX"
	subjectPrefix = "cinetix."
	dupWindow     = 2 * time.Minute
)

var _ port.EventPublisher = (*Publisher)(nil)

type Publisher struct {
	nc *natspkg.Conn
	js natspkg.JetStreamContext
}

// NewPublisher connects and makes sure the stream exists.
func NewPublisher(url string) (*Publisher, error) {
	nc, err := natspkg.Connect(url,
		natspkg.RetryOnFailedConnect(true),
		natspkg.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	if _, err := js.StreamInfo(streamName); err != nil {
		_, err = js.AddStream(&natspkg.StreamConfig{
			Name:       streamName,
			Subjects:   []string{subjectPrefix + ">"},
			Duplicates: dupWindow,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
		}
	}
	return &Publisher{nc: nc, js: js}, nil
}

func (p *Publisher) Close() {
	p.nc.Close()
}

func (p *Publisher) IsConnected() bool {
	return p.nc != nil && p.nc.Status() == natspkg.CONNECTED
}

func (p *Publisher) Publish(ctx context.Context, msg port.OutboxMessage) error {
	m := natspkg.NewMsg(subjectPrefix + msg.EventType)
	m.Data = msg.Payload
	m.Header.Set(natspkg.MsgIdHdr, msg.ID.String())
	m.Header.Set("event-id", msg.ID.String())
	m.Header.Set("event-type", msg.EventType)
	m.Header.Set("aggregate-type", msg.AggregateType)
	m.Header.Set("aggregate-id", msg.AggregateID)
	m.Header.Set("occurred-at", msg.OccurredAt.UTC().Format(time.RFC3339Nano))

	if _, err := p.js.PublishMsg(m, natspkg.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", m.Subject, err)
	}
	return nil
}
