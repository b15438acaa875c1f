package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tovarim/mealrota/internal/calendar"
	"github.com/tovarim/mealrota/internal/demand"
	"github.com/tovarim/mealrota/internal/model"
)

// DefaultReminderSpec fires the day-before reminder run at 18:00.
const DefaultReminderSpec = "0 18 * * *"

// Scheduler sends cooking reminders to volunteers booked for tomorrow.
type Scheduler struct {
	synth  *demand.Synthesizer
	sink   Sink
	spec   string
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time
}

func NewScheduler(synth *demand.Synthesizer, sink Sink, spec string, logger *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultReminderSpec
	}
	return &Scheduler{
		synth:  synth,
		sink:   sink,
		spec:   spec,
		logger: logger,
		now:    time.Now,
	}
}

// Start schedules the reminder run.
func (s *Scheduler) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.RemindTomorrow(ctx); err != nil {
		s.logger.Error("reminder run failed", "error", err)
	}
}

// RemindTomorrow notifies every volunteer with a booking tomorrow.
func (s *Scheduler) RemindTomorrow(ctx context.Context) error {
	tomorrow := calendar.Day(s.now()).AddDate(0, 0, 1)

	slots, err := s.synth.Synthesize(ctx, demand.Query{
		Statuses: []model.SlotStatus{model.StatusOccupied},
		From:     tomorrow,
		To:       tomorrow,
	})
	if err != nil {
		return err
	}

	for _, slot := range slots {
		users := []string{}
		if slot.VolunteerID != "" {
			users = append(users, slot.VolunteerID)
		}
		if slot.TransportingVolunteerID != "" && slot.TransportingVolunteerID != slot.VolunteerID {
			users = append(users, slot.TransportingVolunteerID)
		}
		if len(users) == 0 {
			continue
		}

		n := Notification{
			Title:   "Cooking tomorrow",
			Body:    fmt.Sprintf("Reminder: you are cooking for %s on %s.", slot.FamilyName, slot.Date.Format("Mon, Jan 2")),
			Channel: model.ChannelReminder,
			Users:   users,
		}
		if err := s.sink.Enqueue(ctx, n); err != nil {
			s.logger.Warn("reminder enqueue failed", "slot", slot.ID, "error", err)
		}
	}
	return nil
}
