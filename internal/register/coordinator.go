// Package register applies bookings and cancellations to demand slots.
// Every mutation runs under a lease on the slot id, with a freshness
// re-check after the lease is held, so concurrent volunteers can never
// double-book: the loser always observes ErrAlreadyExists.
package register

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tovarim/mealrota/internal/cache"
	"github.com/tovarim/mealrota/internal/calendar"
	"github.com/tovarim/mealrota/internal/demand"
	"github.com/tovarim/mealrota/internal/lock"
	"github.com/tovarim/mealrota/internal/model"
	"github.com/tovarim/mealrota/internal/notify"
	"github.com/tovarim/mealrota/internal/remote"
)

var (
	// ErrAlreadyExists reports a concurrency conflict: the slot is
	// locked by someone else, already booked, or already cancelled.
	ErrAlreadyExists = errors.New("slot state conflicts with request")
	// ErrNotFound reports a slot or booking that does not exist.
	ErrNotFound = errors.New("slot not found")
)

// cancellationNoticeWindow is how close to its date a cancellation must
// be to alert the district's volunteers.
const cancellationNoticeWindow = 10

// Coordinator serializes slot mutations through the lease lock.
type Coordinator struct {
	locks    *lock.LeaseLock
	synth    *demand.Synthesizer
	registry *cache.Registry
	tables   remote.Client
	sink     notify.Sink
	logger   *slog.Logger
	leaseFor time.Duration
	now      func() time.Time
}

func NewCoordinator(locks *lock.LeaseLock, synth *demand.Synthesizer, registry *cache.Registry, tables remote.Client, sink notify.Sink, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		locks:    locks,
		synth:    synth,
		registry: registry,
		tables:   tables,
		sink:     sink,
		logger:   logger,
		leaseFor: lock.DefaultLeaseDuration,
		now:      time.Now,
	}
}

// Book assigns a volunteer to a demand slot. Synthetic slot ids are
// re-derived and re-checked against current bookings under the lease;
// real ids are fetched directly.
func (c *Coordinator) Book(ctx context.Context, slotID, familyID, cityID, volunteerID string) error {
	lease, err := c.locks.Acquire(ctx, slotID, c.leaseFor)
	if err != nil {
		return fmt.Errorf("book %s: %w", slotID, err)
	}
	if lease == nil {
		return fmt.Errorf("book %s: %w", slotID, ErrAlreadyExists)
	}
	defer c.release(lease)

	if demand.IsSynthetic(slotID) {
		return c.bookSynthetic(ctx, slotID, familyID, cityID, volunteerID)
	}
	return c.rebookRecord(ctx, slotID, volunteerID)
}

func (c *Coordinator) bookSynthetic(ctx context.Context, slotID, familyID, cityID, volunteerID string) error {
	sid, err := demand.ParseSyntheticID(slotID)
	if err != nil {
		return err
	}
	if sid.FamilyID != familyID || sid.CityID != cityID {
		return fmt.Errorf("%w: id %q does not match family %q city %q", demand.ErrBadSlotID, slotID, familyID, cityID)
	}

	// Freshness re-check under the lease: the slot may have been booked
	// between the caller's read and now.
	existing, err := c.synth.OccupiedOn(ctx, sid.FamilyID, sid.Date)
	if err != nil {
		return fmt.Errorf("book %s: %w", slotID, err)
	}
	if existing != nil {
		return fmt.Errorf("book %s: %w", slotID, ErrAlreadyExists)
	}

	family, err := c.lookupFamily(ctx, familyID)
	if err != nil {
		return err
	}

	_, err = c.tables.Create(ctx, cache.TableBookings, map[string]any{
		"family_id":    family.ID,
		"family_name":  family.Name,
		"city_id":      cityID,
		"district":     family.District,
		"date":         calendar.Day(sid.Date).Format("2006-01-02"),
		"volunteer_id": volunteerID,
		"type":         string(model.TypeMeal),
		"client_ref":   uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("book %s: %w", slotID, err)
	}
	return nil
}

// rebookRecord re-opens a cancelled booking record for a new volunteer.
// A live booking is a conflict.
func (c *Coordinator) rebookRecord(ctx context.Context, slotID, volunteerID string) error {
	rec, err := c.tables.Get(ctx, cache.TableBookings, slotID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return fmt.Errorf("book %s: %w", slotID, ErrNotFound)
		}
		return fmt.Errorf("book %s: %w", slotID, err)
	}

	slot, err := demand.MapBooking(rec)
	if err != nil {
		return err
	}
	if slot.Status != model.StatusCancelled {
		return fmt.Errorf("book %s: %w", slotID, ErrAlreadyExists)
	}

	_, err = c.tables.Update(ctx, cache.TableBookings, slotID, map[string]any{
		"volunteer_id":  volunteerID,
		"cancelled":     false,
		"cancel_reason": "",
	})
	if err != nil {
		return fmt.Errorf("book %s: %w", slotID, err)
	}
	return nil
}

// Cancel releases an occupied slot. Cancelling close to the cooking date
// alerts the district's volunteers so the slot can be re-filled.
func (c *Coordinator) Cancel(ctx context.Context, slotID, reason string) error {
	lease, err := c.locks.Acquire(ctx, slotID, c.leaseFor)
	if err != nil {
		return fmt.Errorf("cancel %s: %w", slotID, err)
	}
	if lease == nil {
		return fmt.Errorf("cancel %s: %w", slotID, ErrAlreadyExists)
	}
	defer c.release(lease)

	if demand.IsSynthetic(slotID) {
		// A synthetic id is by definition unbooked.
		return fmt.Errorf("cancel %s: %w", slotID, ErrNotFound)
	}

	rec, err := c.tables.Get(ctx, cache.TableBookings, slotID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return fmt.Errorf("cancel %s: %w", slotID, ErrNotFound)
		}
		return fmt.Errorf("cancel %s: %w", slotID, err)
	}

	slot, err := demand.MapBooking(rec)
	if err != nil {
		return err
	}
	if slot.Status == model.StatusCancelled {
		return fmt.Errorf("cancel %s: %w", slotID, ErrAlreadyExists)
	}

	if _, err := c.tables.Update(ctx, cache.TableBookings, slotID, map[string]any{
		"cancelled":     true,
		"cancel_reason": reason,
	}); err != nil {
		return fmt.Errorf("cancel %s: %w", slotID, err)
	}

	c.notifyCancellation(ctx, slot)
	return nil
}

func (c *Coordinator) notifyCancellation(ctx context.Context, slot model.DemandSlot) {
	today := calendar.Day(c.now())
	day := calendar.Day(slot.Date)
	if day.Before(today) || day.After(today.AddDate(0, 0, cancellationNoticeWindow)) {
		return
	}

	n := notify.Notification{
		Title:     "Cooking slot reopened",
		Body:      fmt.Sprintf("A booking for %s on %s was cancelled. Can you take it?", slot.FamilyName, slot.Date.Format("Mon, Jan 2")),
		Channel:   model.ChannelCancellation,
		Districts: []string{slot.District},
	}
	if err := c.sink.Enqueue(ctx, n); err != nil {
		c.logger.Warn("cancellation notice failed", "slot", slot.ID, "error", err)
	}
}

func (c *Coordinator) lookupFamily(ctx context.Context, familyID string) (model.Family, error) {
	families, err := c.registry.Families.Get(ctx, func(f model.Family) bool {
		return f.ID == familyID
	})
	if err != nil {
		return model.Family{}, fmt.Errorf("lookup family %s: %w", familyID, err)
	}
	if len(families) == 0 {
		return model.Family{}, fmt.Errorf("family %s: %w", familyID, ErrNotFound)
	}
	return families[0], nil
}

// release runs on every exit path so a failed re-check cannot leak the
// lease for the rest of its duration.
func (c *Coordinator) release(lease *model.Lease) {
	if err := c.locks.Release(context.Background(), lease); err != nil {
		c.logger.Warn("lease release failed", "lock", lease.LockID, "error", err)
	}
}
