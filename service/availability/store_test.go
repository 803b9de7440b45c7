package availability

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/KAsare1/slotbook-server/cmd/models"
	"github.com/KAsare1/slotbook-server/repository"
)

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context, uint) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *repository.MemoryStore, models.Host, *countingInvalidator) {
	t.Helper()
	mem := repository.NewMemoryStore()
	host := models.Host{Username: "linus", Email: "linus@example.com", TimeZone: "UTC"}
	if err := mem.Repositories().Hosts.Create(context.Background(), &host); err != nil {
		t.Fatal(err)
	}
	inv := &countingInvalidator{}
	return NewStore(mem, inv, slog.New(slog.NewTextHandler(io.Discard, nil))), mem, host, inv
}

func boolPtr(b bool) *bool { return &b }

func TestCreateScheduleDefaults(t *testing.T) {
	store, _, host, inv := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreateSchedule(ctx, host.ID, ScheduleInput{Name: "Work", TimeZone: "Europe/Paris"})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if !first.IsDefault {
		t.Fatal("first schedule must become default")
	}
	if len(first.Rules) != 5 || first.Rules[0].DayOfWeek != 1 || first.Rules[0].StartTime != "09:00" {
		t.Fatalf("expected Mon-Fri 09:00-17:00, got %+v", first.Rules)
	}

	second, err := store.CreateSchedule(ctx, host.ID, ScheduleInput{Name: "Weekend", TimeZone: "UTC", Rules: []RuleInput{}})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if second.IsDefault || len(second.Rules) != 0 {
		t.Fatalf("second schedule should be plain and empty, got %+v", second)
	}
	if inv.calls != 2 {
		t.Fatalf("expected cache invalidation per write, got %d", inv.calls)
	}
}

func TestCreateScheduleValidation(t *testing.T) {
	store, _, host, _ := newTestStore(t)
	ctx := context.Background()

	cases := []ScheduleInput{
		{Name: "", TimeZone: "UTC"},
		{Name: "x", TimeZone: "Not/AZone"},
		{Name: "x", TimeZone: "UTC", Rules: []RuleInput{{DayOfWeek: 7, StartTime: "09:00", EndTime: "10:00"}}},
		{Name: "x", TimeZone: "UTC", Rules: []RuleInput{{DayOfWeek: 1, StartTime: "10:00", EndTime: "09:00"}}},
		{Name: "x", TimeZone: "UTC", Rules: []RuleInput{
			{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"},
			{DayOfWeek: 1, StartTime: "11:00", EndTime: "12:00"},
		}},
		{Name: "x", TimeZone: "UTC", Rules: []RuleInput{{DayOfWeek: 1, StartTime: "9am", EndTime: "10:00"}}},
	}
	for i, in := range cases {
		if _, err := store.CreateSchedule(ctx, host.ID, in); !apperror.Is(err, apperror.KindValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestReplaceScheduleSwitchesDefault(t *testing.T) {
	store, _, host, _ := newTestStore(t)
	ctx := context.Background()
	first, _ := store.CreateSchedule(ctx, host.ID, ScheduleInput{Name: "A", TimeZone: "UTC"})
	second, _ := store.CreateSchedule(ctx, host.ID, ScheduleInput{Name: "B", TimeZone: "UTC"})

	if _, err := store.ReplaceSchedule(ctx, host.ID, first.ID, ScheduleInput{Name: "A", TimeZone: "UTC", IsDefault: boolPtr(false)}); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("unsetting the only default must fail, got %v", err)
	}

	updated, err := store.ReplaceSchedule(ctx, host.ID, second.ID, ScheduleInput{
		Name: "B2", TimeZone: "Asia/Tokyo", IsDefault: boolPtr(true),
		Rules: []RuleInput{{DayOfWeek: 6, StartTime: "10:00", EndTime: "14:00"}},
	})
	if err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}
	if !updated.IsDefault || updated.Name != "B2" || len(updated.Rules) != 1 || updated.Rules[0].DayOfWeek != 6 {
		t.Fatalf("unexpected replacement %+v", updated)
	}

	reloaded, _ := store.GetSchedule(ctx, host.ID, first.ID)
	if reloaded.IsDefault {
		t.Fatal("previous default must be unset")
	}
	if _, err := store.ReplaceSchedule(ctx, host.ID+100, first.ID, ScheduleInput{Name: "x", TimeZone: "UTC"}); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("foreign schedule must be not found, got %v", err)
	}
}

func TestConcurrentDefaultSettingLeavesOneDefault(t *testing.T) {
	store, _, host, _ := newTestStore(t)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 6; i++ {
		s, err := store.CreateSchedule(ctx, host.ID, ScheduleInput{Name: "S", TimeZone: "UTC"})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, s.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, _ = store.ReplaceSchedule(ctx, host.ID, id, ScheduleInput{Name: "S", TimeZone: "UTC", IsDefault: boolPtr(true)})
		}(id)
	}
	wg.Wait()

	schedules, _ := store.GetSchedules(ctx, host.ID)
	defaults := 0
	for _, s := range schedules {
		if s.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default, got %d", defaults)
	}
}

func TestDeleteSchedule(t *testing.T) {
	store, mem, host, _ := newTestStore(t)
	ctx := context.Background()
	first, _ := store.CreateSchedule(ctx, host.ID, ScheduleInput{Name: "A", TimeZone: "UTC"})

	if err := store.DeleteSchedule(ctx, host.ID, first.ID); !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("deleting the last schedule must conflict, got %v", err)
	}

	second, _ := store.CreateSchedule(ctx, host.ID, ScheduleInput{Name: "B", TimeZone: "UTC"})
	eventType := models.EventType{HostID: host.ID, Title: "T", Slug: "t", Duration: 30, ScheduleID: &first.ID}
	if err := mem.Repositories().EventTypes.Create(ctx, &eventType); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteSchedule(ctx, host.ID, first.ID); err != nil {
		t.Fatalf("DeleteSchedule: %v", err)
	}
	promoted, _ := store.GetSchedule(ctx, host.ID, second.ID)
	if !promoted.IsDefault {
		t.Fatal("remaining schedule must be promoted to default")
	}
	reloaded, _ := mem.Repositories().EventTypes.GetByID(ctx, eventType.ID)
	if reloaded.ScheduleID != nil {
		t.Fatal("event type must fall back to the default schedule")
	}
	if err := store.DeleteSchedule(ctx, host.ID, 9999); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOverrides(t *testing.T) {
	store, _, host, _ := newTestStore(t)
	ctx := context.Background()
	schedule, _ := store.CreateSchedule(ctx, host.ID, ScheduleInput{Name: "A", TimeZone: "UTC"})

	if _, err := store.AddOverride(ctx, host.ID, schedule.ID, OverrideInput{Date: "2026-13-01", IsBlocked: true}); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("bad date must fail validation, got %v", err)
	}
	if _, err := store.AddOverride(ctx, host.ID, schedule.ID, OverrideInput{Date: "2026-12-24", StartTime: "12:00", EndTime: "11:00"}); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("inverted window must fail validation, got %v", err)
	}

	blocked, err := store.AddOverride(ctx, host.ID, schedule.ID, OverrideInput{Date: "2026-12-24", IsBlocked: true, StartTime: "09:00", EndTime: "10:00"})
	if err != nil {
		t.Fatalf("AddOverride: %v", err)
	}
	if blocked.StartTime != "" || blocked.EndTime != "" {
		t.Fatalf("blocked override must not keep a window, got %+v", blocked)
	}
	window, err := store.AddOverride(ctx, host.ID, schedule.ID, OverrideInput{Date: "2026-12-24", StartTime: "10:00", EndTime: "12:00"})
	if err != nil {
		t.Fatalf("AddOverride: %v", err)
	}

	loaded, _ := store.GetSchedule(ctx, host.ID, schedule.ID)
	if len(loaded.Overrides) != 1 || loaded.Overrides[0].IsBlocked {
		t.Fatalf("second override must replace the first, got %+v", loaded.Overrides)
	}

	if err := store.RemoveOverride(ctx, host.ID, schedule.ID, window.ID); err != nil {
		t.Fatalf("RemoveOverride: %v", err)
	}
	if err := store.RemoveOverride(ctx, host.ID, schedule.ID, window.ID); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
