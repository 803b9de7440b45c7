package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KAsare1/slotbook-server/cmd/models"
)

func seedHost(t *testing.T, store *MemoryStore) models.Host {
	t.Helper()
	host := models.Host{Username: "ada", Email: "ada@example.com", FullName: "Ada", TimeZone: "UTC"}
	if err := store.Repositories().Hosts.Create(context.Background(), &host); err != nil {
		t.Fatalf("create host: %v", err)
	}
	return host
}

func TestMemoryWithTxRollsBackOnError(t *testing.T) {
	store := NewMemoryStore()
	host := seedHost(t, store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
		schedule := models.AvailabilitySchedule{HostID: host.ID, Name: "Work", TimeZone: "UTC", IsDefault: true}
		if err := repos.Schedules.Create(ctx, &schedule); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	schedules, err := store.Repositories().Schedules.ListByHost(ctx, host.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(schedules) != 0 {
		t.Fatalf("expected rollback to drop schedule, got %d", len(schedules))
	}
}

func TestMemoryHostUniqueness(t *testing.T) {
	store := NewMemoryStore()
	seedHost(t, store)
	dup := models.Host{Username: "ada", Email: "other@example.com"}
	if err := store.Repositories().Hosts.Create(context.Background(), &dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := store.Repositories().Hosts.GetByUsername(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	host := seedHost(t, store)
	ctx := context.Background()
	repos := store.Repositories()

	schedule := models.AvailabilitySchedule{
		HostID: host.ID, Name: "Work", TimeZone: "UTC",
		Rules: []models.WeeklyRule{{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00"}},
	}
	if err := repos.Schedules.Create(ctx, &schedule); err != nil {
		t.Fatalf("create: %v", err)
	}
	loaded, err := repos.Schedules.Get(ctx, host.ID, schedule.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	loaded.Rules[0].StartTime = "00:00"

	again, _ := repos.Schedules.Get(ctx, host.ID, schedule.ID)
	if again.Rules[0].StartTime != "09:00" {
		t.Fatalf("stored rule was mutated through a returned value")
	}
	if _, err := repos.Schedules.Get(ctx, host.ID+1, schedule.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("schedule must be scoped to its host, got %v", err)
	}
}

func TestMemoryUpsertOverrideReplacesSameDate(t *testing.T) {
	store := NewMemoryStore()
	host := seedHost(t, store)
	ctx := context.Background()
	repos := store.Repositories()

	schedule := models.AvailabilitySchedule{HostID: host.ID, Name: "Work", TimeZone: "UTC"}
	if err := repos.Schedules.Create(ctx, &schedule); err != nil {
		t.Fatalf("create: %v", err)
	}
	first := models.DateOverride{ScheduleID: schedule.ID, Date: "2026-11-02", IsBlocked: true}
	second := models.DateOverride{ScheduleID: schedule.ID, Date: "2026-11-02", StartTime: "10:00", EndTime: "12:00"}
	if err := repos.Schedules.UpsertOverride(ctx, &first); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repos.Schedules.UpsertOverride(ctx, &second); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	loaded, _ := repos.Schedules.Get(ctx, host.ID, schedule.ID)
	if len(loaded.Overrides) != 1 || loaded.Overrides[0].IsBlocked {
		t.Fatalf("expected single replacing override, got %+v", loaded.Overrides)
	}
	if err := repos.Schedules.DeleteOverride(ctx, schedule.ID, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("replaced override should be gone, got %v", err)
	}
	if err := repos.Schedules.DeleteOverride(ctx, schedule.ID, second.ID); err != nil {
		t.Fatalf("delete override: %v", err)
	}
}

func TestMemoryBookingQueries(t *testing.T) {
	store := NewMemoryStore()
	host := seedHost(t, store)
	ctx := context.Background()
	repos := store.Repositories()
	base := time.Date(2026, time.November, 3, 9, 0, 0, 0, time.UTC)

	mk := func(uid string, offset time.Duration, status models.BookingStatus) models.Booking {
		b := models.Booking{
			UID: uid, HostID: host.ID, BookerName: "B", BookerEmail: "b@example.com",
			StartTime: base.Add(offset), EndTime: base.Add(offset + 30*time.Minute), Status: status,
		}
		if err := repos.Bookings.Create(ctx, &b); err != nil {
			t.Fatalf("create booking: %v", err)
		}
		return b
	}
	first := mk("a", 0, models.BookingConfirmed)
	mk("b", 2*time.Hour, models.BookingConfirmed)
	mk("c", time.Hour, models.BookingCancelled)

	overlap, err := repos.Bookings.Overlapping(ctx, host.ID, base.Add(-time.Hour), base.Add(3*time.Hour), 0)
	if err != nil {
		t.Fatalf("overlapping: %v", err)
	}
	if len(overlap) != 2 || overlap[0].UID != "a" || overlap[1].UID != "b" {
		t.Fatalf("unexpected overlap result %+v", overlap)
	}
	overlap, _ = repos.Bookings.Overlapping(ctx, host.ID, base, base.Add(30*time.Minute), first.ID)
	if len(overlap) != 0 {
		t.Fatalf("excluded booking returned: %+v", overlap)
	}

	list, total, err := repos.Bookings.List(ctx, BookingQuery{
		HostID: host.ID, Status: models.BookingConfirmed, Descending: true, Limit: 1,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(list) != 1 || list[0].UID != "b" {
		t.Fatalf("unexpected page total=%d list=%+v", total, list)
	}

	list, _, _ = repos.Bookings.List(ctx, BookingQuery{HostID: host.ID, EndBefore: base.Add(time.Hour)})
	if len(list) != 1 || list[0].UID != "a" {
		t.Fatalf("EndBefore filter broken: %+v", list)
	}
}

func TestMemoryBookingListNegativeOffset(t *testing.T) {
	store := NewMemoryStore()
	host := seedHost(t, store)
	ctx := context.Background()
	repos := store.Repositories()
	start := time.Date(2026, time.November, 3, 9, 0, 0, 0, time.UTC)
	b := models.Booking{UID: "only", HostID: host.ID, BookerName: "B", BookerEmail: "b@example.com",
		StartTime: start, EndTime: start.Add(30 * time.Minute), Status: models.BookingConfirmed}
	if err := repos.Bookings.Create(ctx, &b); err != nil {
		t.Fatal(err)
	}

	list, total, err := repos.Bookings.List(ctx, BookingQuery{HostID: host.ID, Offset: -5, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].UID != "only" {
		t.Fatalf("negative offset should read from the start, got total=%d list=%+v", total, list)
	}

	list, total, _ = repos.Bookings.List(ctx, BookingQuery{HostID: host.ID, Offset: 50, Limit: 10})
	if total != 1 || len(list) != 0 {
		t.Fatalf("offset past the end: total=%d list=%+v", total, list)
	}
}

func TestMemoryBookingUpdateWritesMutableFieldsOnly(t *testing.T) {
	store := NewMemoryStore()
	host := seedHost(t, store)
	ctx := context.Background()
	repos := store.Repositories()
	start := time.Date(2026, time.November, 3, 9, 0, 0, 0, time.UTC)
	b := models.Booking{UID: "keep", HostID: host.ID, BookerName: "Original", BookerEmail: "b@example.com",
		StartTime: start, EndTime: start.Add(30 * time.Minute), Status: models.BookingConfirmed}
	if err := repos.Bookings.Create(ctx, &b); err != nil {
		t.Fatal(err)
	}

	stale := b
	stale.BookerName = "Overwritten"
	stale.Status = models.BookingCancelled
	stale.CancellationReason = "ill"
	if err := repos.Bookings.Update(ctx, &stale); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, err := repos.Bookings.GetByUIDForUpdate(ctx, "keep")
	if err != nil {
		t.Fatal(err)
	}
	if stored.BookerName != "Original" {
		t.Fatalf("immutable field written: %q", stored.BookerName)
	}
	if stored.Status != models.BookingCancelled || stored.CancellationReason != "ill" {
		t.Fatalf("mutable fields not written: %+v", stored)
	}

	missing := models.Booking{ID: 999}
	if err := repos.Bookings.Update(ctx, &missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
