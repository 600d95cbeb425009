package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"parcels/internal/observability/middleware"

	"github.com/nats-io/nats.go"
)

// Publisher emits domain events after their transaction commits.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
	Close()
}

type NATSConfig struct {
	URL            string
	ConnectionName string
	MaxReconnects  int
	ReconnectWait  time.Duration
}

type natsPublisher struct {
	nc *nats.Conn
}

func NewNATSPublisher(cfg NATSConfig) (Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				slog.Warn("disconnected from nats", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("reconnected to nats", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &natsPublisher{nc: nc}, nil
}

func (p *natsPublisher) Publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		msg.Header.Set(middleware.HeaderRequestID, id)
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages before closing the connection.
func (p *natsPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
func (Noop) Close()                                     {}

// Emit publishes best effort, logging failures against the request.
func Emit(ctx context.Context, p Publisher, subject string, event any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, subject, event); err != nil {
		middleware.Logger(ctx).Warn("event publish failed", "subject", subject, "error", err)
	}
}
