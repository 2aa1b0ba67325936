// Package stream publishes accepted readings to NATS JetStream so other
// services can consume them without touching the database.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"smart-bin-backend/internal/model"
)

const subjectPrefix = "bins"

// JetStreamPublisher is the part of jetstream.JetStream used here.
type JetStreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type Publisher struct {
	nc *nats.Conn
	js JetStreamPublisher
}

// Connect dials NATS and makes sure the readings stream exists.
func Connect(ctx context.Context, url, streamName string) (*Publisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url, nats.Name("smart-bin-backend"))
	if err != nil {
		return nil, fmt.Errorf("cannot connect NATS server: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Retention: jetstream.LimitsPolicy,
		Subjects:  []string{subjectPrefix + ".>"},
		MaxAge:    30 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream %s: %w", streamName, err)
	}

	return &Publisher{nc: nc, js: js}, nil
}

// NewPublisher wraps an existing JetStream handle.
func NewPublisher(js JetStreamPublisher) *Publisher {
	return &Publisher{js: js}
}

// Subject returns bins.<device>.readings. Dots, spaces and wildcards in the
// device id are replaced so the id stays a single token.
func Subject(deviceID string) string {
	token := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(deviceID)
	return subjectPrefix + "." + token + ".readings"
}

func (p *Publisher) PublishReading(ctx context.Context, reading model.Reading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	if _, err := p.js.Publish(ctx, Subject(reading.DeviceID), payload, jetstream.WithMsgID(reading.ID)); err != nil {
		return fmt.Errorf("publish reading for %s: %w", reading.DeviceID, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}
