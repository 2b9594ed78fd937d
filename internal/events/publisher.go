// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

// Package events publishes status-change notifications over NATS
// JetStream via Watermill. Publishing is best-effort: the tracking
// write has already committed by the time an event goes out, so
// publish failures are logged and counted, never propagated.
package events

import (
	"context"
	"fmt"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/watchdex/internal/config"
	"github.com/tomtom215/watchdex/internal/logging"
	"github.com/tomtom215/watchdex/internal/metrics"
	"github.com/tomtom215/watchdex/internal/models"
)

// StatusChanged is the payload of a status.changed message.
type StatusChanged struct {
	EventID    string            `json:"event_id"`
	ProfileID  int64             `json:"profile_id"`
	Nodes      []models.NodeRef  `json:"nodes"`
	Status     models.Status     `json:"status"`
	Recursive  bool              `json:"recursive"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Publisher sends StatusChanged events to a single topic. A nil
// *Publisher is valid and drops everything, which is how the service
// runs with NATS disabled.
type Publisher struct {
	pub   message.Publisher
	topic string
}

// NewNATSPublisher connects to NATS and returns a JetStream-backed
// publisher for the configured topic. Returns (nil, nil) when events
// are disabled.
func NewNATSPublisher(cfg *config.NATSConfig) (*Publisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, newWatermillLogger())
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &Publisher{pub: pub, topic: cfg.Topic}, nil
}

// PublishStatusChanged serializes and publishes one event. Safe on a
// nil receiver.
func (p *Publisher) PublishStatusChanged(ctx context.Context, event StatusChanged) error {
	if p == nil {
		return nil
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		metrics.EventPublishErrors.Inc()
		return fmt.Errorf("marshal status.changed: %w", err)
	}

	msg := message.NewMessage(event.EventID, payload)
	msg.Metadata.Set(natsgo.MsgIdHdr, event.EventID)
	msg.Metadata.Set("profile_id", fmt.Sprintf("%d", event.ProfileID))
	msg.SetContext(ctx)

	if err := p.pub.Publish(p.topic, msg); err != nil {
		metrics.EventPublishErrors.Inc()
		return fmt.Errorf("publish status.changed: %w", err)
	}
	metrics.EventsPublished.Inc()
	return nil
}

// Close shuts down the underlying publisher. Safe on a nil receiver.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.pub.Close()
}
