package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/soundvine/discovery-indexer/internal/adapter"
	"github.com/soundvine/discovery-indexer/internal/config"
	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/logger"
)

// Publisher defines the interface for dispatching challenge events to the
// downstream rewards pipeline
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishChallenge publishes one challenge event
	PublishChallenge(ctx context.Context, event domain.ChallengeEvent) error
	// Close closes the connection
	Close()
}

type natsPublisher struct {
	conn    adapter.NatsConn
	js      adapter.JetStream
	subject string
}

// NewNATSPublisher connects to NATS and ensures the challenge stream exists
func NewNATSPublisher(ctx context.Context, njs adapter.NatsJetStream, cfg config.NATSConfig) (Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	conn, js, err := njs.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.Subject},
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure challenge stream: %w", err)
	}

	return &natsPublisher{
		conn:    conn,
		js:      js,
		subject: cfg.Subject,
	}, nil
}

// PublishChallenge publishes one challenge event to the stream
func (p *natsPublisher) PublishChallenge(ctx context.Context, event domain.ChallengeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge event: %w", err)
	}

	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("failed to publish challenge event: %w", err)
	}

	return nil
}

// Close closes the NATS connection
func (p *natsPublisher) Close() {
	p.conn.Close()
}
