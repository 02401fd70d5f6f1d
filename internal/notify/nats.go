package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type jetStreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSSink publishes notifications to a JetStream subject.
type NATSSink struct {
	js      jetStreamPublisher
	subject string
}

func NewNATSSink(js jetStreamPublisher, subject string) *NATSSink {
	return &NATSSink{js: js, subject: subject}
}

// NewJetStream connects to url and makes sure a stream captures subject.
func NewJetStream(ctx context.Context, url, stream, subject string) (*nats.Conn, jetstream.JetStream, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	if _, err := js.Stream(ctx, stream); err != nil {
		if !errors.Is(err, jetstream.ErrStreamNotFound) {
			conn.Close()
			return nil, nil, fmt.Errorf("lookup stream %s: %w", stream, err)
		}
		if _, err := js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     stream,
			Subjects: []string{subject},
		}); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("create stream %s: %w", stream, err)
		}
	}
	return conn, js, nil
}

func (s *NATSSink) Send(ctx context.Context, batch []Notification) error {
	for _, n := range batch {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encode notification: %w", err)
		}
		if _, err := s.js.Publish(ctx, s.subject, data,
			jetstream.WithMsgID(string(n.Kind)+":"+n.UserID.String()+":"+n.At.UTC().Format("20060102T150405.000000000"))); err != nil {
			return fmt.Errorf("publish notification: %w", err)
		}
	}
	return nil
}
