package notify

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tovarim/mealrota/internal/cache"
	"github.com/tovarim/mealrota/internal/demand"
	"github.com/tovarim/mealrota/internal/mirror"
	"github.com/tovarim/mealrota/internal/model"
	"github.com/tovarim/mealrota/internal/remote"
)

type captureSink struct {
	mu   sync.Mutex
	sent []Notification
}

func (s *captureSink) Enqueue(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *captureSink) all() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.sent...)
}

func setupScheduler(t *testing.T) (*Scheduler, *remote.Mem, *captureSink) {
	t.Helper()
	tables := remote.NewMem()
	logger := slog.New(slog.DiscardHandler)
	registry := cache.NewRegistry(tables, mirror.NewMem(), 0, logger)
	synth := demand.NewSynthesizer(registry, tables, logger)
	sink := &captureSink{}
	sched := NewScheduler(synth, sink, "", logger)
	// Saturday evening; tomorrow is Sunday 2025-01-05.
	sched.now = func() time.Time { return time.Date(2025, 1, 4, 18, 0, 0, 0, time.UTC) }
	return sched, tables, sink
}

func seedBooking(tables *remote.Mem, id, familyID, day, volunteer, transporter string) {
	fields := map[string]any{
		"family_id":   familyID,
		"family_name": "Levi",
		"district":    "D1",
		"city_id":     "C1",
		"date":        day,
		"cancelled":   false,
	}
	if volunteer != "" {
		fields["volunteer_id"] = volunteer
	}
	if transporter != "" {
		fields["transporting_volunteer_id"] = transporter
	}
	tables.Seed(cache.TableBookings, remote.Record{ID: id, Fields: fields})
}

func TestRemindTomorrowNotifiesVolunteerAndTransporter(t *testing.T) {
	sched, tables, sink := setupScheduler(t)
	seedBooking(tables, "recB1", "F1", "2025-01-05", "V1", "V2")

	if err := sched.RemindTomorrow(context.Background()); err != nil {
		t.Fatalf("remind: %v", err)
	}

	sent := sink.all()
	if len(sent) != 1 {
		t.Fatalf("got %d notifications, want 1: %+v", len(sent), sent)
	}
	n := sent[0]
	if n.Channel != model.ChannelReminder {
		t.Errorf("channel = %q, want %q", n.Channel, model.ChannelReminder)
	}
	if len(n.Users) != 2 || n.Users[0] != "V1" || n.Users[1] != "V2" {
		t.Errorf("users = %v, want [V1 V2]", n.Users)
	}
}

func TestRemindTomorrowDeduplicatesSelfTransport(t *testing.T) {
	sched, tables, sink := setupScheduler(t)
	seedBooking(tables, "recB1", "F1", "2025-01-05", "V1", "V1")

	if err := sched.RemindTomorrow(context.Background()); err != nil {
		t.Fatalf("remind: %v", err)
	}

	sent := sink.all()
	if len(sent) != 1 || len(sent[0].Users) != 1 {
		t.Fatalf("got %+v, want one notification to V1 only", sent)
	}
}

func TestRemindTomorrowIgnoresOtherDays(t *testing.T) {
	sched, tables, sink := setupScheduler(t)
	seedBooking(tables, "recB1", "F1", "2025-01-06", "V1", "")

	if err := sched.RemindTomorrow(context.Background()); err != nil {
		t.Fatalf("remind: %v", err)
	}
	if sent := sink.all(); len(sent) != 0 {
		t.Errorf("got %d notifications, want none for a booking two days out", len(sent))
	}
}
