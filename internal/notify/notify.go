// Package notify delivers push notifications to volunteers: booking
// cancellations close to their date, and day-before cooking reminders.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/tovarim/mealrota/internal/model"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// Notification is one outgoing message, targeted by district and/or
// specific users. Empty target lists mean everyone.
type Notification struct {
	Title     string
	Body      string
	Channel   string
	Districts []string
	Users     []string
}

// Sink accepts notifications fire-and-forget; delivery failures are the
// sink's problem, not the caller's.
type Sink interface {
	Enqueue(ctx context.Context, n Notification) error
}

// Payload is the JSON sent to the push service.
type Payload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Channel string `json:"channel,omitempty"`
}

// Config holds VAPID configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// Service sends individual web push messages.
type Service struct {
	publicKey  string
	privateKey string
	subscriber string
}

// NewService creates a push service with VAPID keys.
func NewService(cfg Config) *Service {
	if cfg.Subscriber == "" {
		cfg.Subscriber = "mailto:noreply@mealrota.app"
	}
	return &Service{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: cfg.Subscriber,
	}
}

// VAPIDPublicKey returns the public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send pushes a payload to one subscription.
func (s *Service) Send(sub model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotification(data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// PushSink fans a notification out to every matching subscription.
// Expired subscriptions are pruned as they are discovered.
type PushSink struct {
	svc    *Service
	subs   *SubscriptionStore
	logger *slog.Logger
}

func NewPushSink(svc *Service, subs *SubscriptionStore, logger *slog.Logger) *PushSink {
	return &PushSink{svc: svc, subs: subs, logger: logger}
}

func (p *PushSink) Enqueue(ctx context.Context, n Notification) error {
	subs, err := p.subs.ListTargets(ctx, n.Districts, n.Users)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	payload := Payload{Title: n.Title, Body: n.Body, Channel: n.Channel}
	for _, sub := range subs {
		if err := p.svc.Send(sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if derr := p.subs.DeleteByEndpoint(ctx, sub.Endpoint); derr != nil {
					p.logger.Warn("prune expired subscription", "endpoint", sub.Endpoint, "error", derr)
				}
				continue
			}
			p.logger.Warn("push delivery failed", "endpoint", sub.Endpoint, "error", err)
		}
	}
	return nil
}

// Discard is a Sink that drops everything; used when push is not
// configured and in tests.
type Discard struct{}

func (Discard) Enqueue(ctx context.Context, n Notification) error { return nil }
