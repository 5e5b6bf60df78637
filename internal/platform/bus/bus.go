// Package bus provides a thin NATS seam: one connection per process with
// indefinite reconnect, plus subscribe and publish helpers
package bus

import (
	"context"
	"time"

	"footfall/internal/platform/logger"

	"github.com/nats-io/nats.go"
)

// Config configures the bus connection
type Config struct {
	URL           string
	Name          string        // connection name shown on the server's monitoring endpoint
	ReconnectWait time.Duration // default 2s
}

// Handler consumes one message; subject carries the antenna id as its final token
type Handler func(ctx context.Context, subject string, data []byte)

// Bus wraps a nats connection
type Bus struct {
	nc  *nats.Conn
	log logger.Logger
}

// Connect dials the bus. The connection retries forever, both on first dial
// and after drops, so a flapping broker never kills a subscriber process
func Connect(cfg Config, log logger.Logger) (*Bus, error) {
	wait := cfg.ReconnectWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(wait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("bus disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("bus reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Bus{nc: nc, log: log}, nil
}

// Subscribe registers h for subject (wildcards allowed) and blocks until ctx
// is cancelled. Messages are dispatched sequentially to preserve per-subject order
func (b *Bus) Subscribe(ctx context.Context, subject string, h Handler) error {
	msgs := make(chan *nats.Msg, 256)
	sub, err := b.nc.ChanSubscribe(subject, msgs)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	b.log.Info().Str("subject", subject).Msg("bus subscription active")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-msgs:
			h(ctx, m.Subject, m.Data)
		}
	}
}

// Publish sends one message
func (b *Bus) Publish(subject string, data []byte) error {
	return b.nc.Publish(subject, data)
}

// Connected reports whether the connection is currently up
func (b *Bus) Connected() bool { return b != nil && b.nc != nil && b.nc.IsConnected() }

// Close drains and closes the connection
func (b *Bus) Close() {
	if b == nil || b.nc == nil {
		return
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
	}
}
