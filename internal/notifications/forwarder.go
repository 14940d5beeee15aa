// Package notifications mirrors toasts to a phone through Firebase Cloud
// Messaging, so alerts still reach the user when the terminal is hidden.
package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"NeuralClient/internal/domain"
)

const (
	forwardBuffer  = 16
	forwardTimeout = 10 * time.Second
)

type Sender interface {
	Send(ctx context.Context, token string, msg Message) error
}

// Forwarder queues toasts and sends them from its own goroutine. Forward
// never blocks; when the queue is full the toast is dropped.
type Forwarder struct {
	Sender      Sender
	DeviceToken string
	Title       string
	Logger      *slog.Logger

	queue    chan domain.Toast
	disabled atomic.Bool
}

func NewForwarder(sender Sender, deviceToken string, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		Sender:      sender,
		DeviceToken: deviceToken,
		Title:       "Neural",
		Logger:      logger,
		queue:       make(chan domain.Toast, forwardBuffer),
	}
}

func (f *Forwarder) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

func (f *Forwarder) Forward(t domain.Toast) {
	if f.disabled.Load() {
		return
	}
	select {
	case f.queue <- t:
	default:
		f.logger().Debug("notifications: queue full, toast dropped", "toast_id", t.ID)
	}
}

// Run sends queued toasts until ctx ends.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-f.queue:
			f.send(ctx, t)
		}
	}
}

func (f *Forwarder) send(ctx context.Context, t domain.Toast) {
	if f.disabled.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, forwardTimeout)
	defer cancel()

	err := f.Sender.Send(ctx, f.DeviceToken, Message{
		Data:         map[string]string{"type": "toast", "toast_id": t.ID},
		Notification: &Notification{Title: f.Title, Body: t.Message},
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidToken):
		f.disabled.Store(true)
		f.logger().Warn("notifications: device token rejected, forwarding disabled", "err", err)
	default:
		f.logger().Warn("notifications: forward failed", "toast_id", t.ID, "err", err)
	}
}
