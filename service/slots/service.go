package slots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/KAsare1/slotbook-server/cmd/models"
	"github.com/KAsare1/slotbook-server/repository"
)

// lookaround covers the widest buffer a neighbouring booking can carry.
const lookaround = 24 * time.Hour

type Result struct {
	EventType models.EventType
	Schedule  models.AvailabilitySchedule
	Date      string
	Slots     []Slot
}

type Service struct {
	store repository.Store
	cache Cache
	step  time.Duration
	now   func() time.Time
	log   *slog.Logger
}

func NewService(store repository.Store, cache Cache, intervalMinutes int, log *slog.Logger) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Service{
		store: store,
		cache: cache,
		step:  time.Duration(intervalMinutes) * time.Minute,
		now:   time.Now,
		log:   log,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) Step() time.Duration {
	return s.step
}

// ScheduleFor returns the event type's own schedule, or the host default when it has none.
func (s *Service) ScheduleFor(ctx context.Context, repos repository.Repositories, eventType models.EventType) (models.AvailabilitySchedule, error) {
	if eventType.ScheduleID != nil {
		schedule, err := repos.Schedules.Get(ctx, eventType.HostID, *eventType.ScheduleID)
		if err == nil {
			return schedule, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return models.AvailabilitySchedule{}, apperror.Internal(err, "failed to load schedule")
		}
	}
	schedule, err := repos.Schedules.GetDefault(ctx, eventType.HostID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.AvailabilitySchedule{}, apperror.NotFound("host has no availability schedule")
	}
	if err != nil {
		return models.AvailabilitySchedule{}, apperror.Internal(err, "failed to load schedule")
	}
	return schedule, nil
}

// Available resolves the open slots of the host's event type on date.
func (s *Service) Available(ctx context.Context, hostID uint, slug, date string) (Result, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return Result{}, apperror.Validation("date must be YYYY-MM-DD").WithField("date", "invalid format")
	}

	repos := s.store.Repositories()
	eventType, err := repos.EventTypes.GetBySlug(ctx, hostID, slug)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !eventType.IsActive) {
		return Result{}, apperror.NotFound("event type not found")
	}
	if err != nil {
		return Result{}, apperror.Internal(err, "failed to load event type")
	}

	schedule, err := s.ScheduleFor(ctx, repos, eventType)
	if err != nil {
		return Result{}, err
	}
	result := Result{EventType: eventType, Schedule: schedule, Date: date}

	now := s.now()
	loc, err := schedule.Location()
	if err != nil {
		return Result{}, apperror.Internal(err, "schedule timezone is invalid")
	}
	cacheable := date > now.In(loc).Format(models.DateLayout)
	cacheKey := fmt.Sprintf("%d:%d:%s", eventType.ID, int(s.step.Minutes()), date)
	if cacheable {
		if cached, ok := s.cache.Get(ctx, hostID, cacheKey); ok {
			result.Slots = cached
			return result, nil
		}
	}

	winStart, winEnd, open, err := Window(schedule, date)
	if err != nil {
		return Result{}, apperror.Internal(err, "failed to compute availability window")
	}
	var bookings []models.Booking
	if open {
		bookings, err = repos.Bookings.Overlapping(ctx, hostID, winStart.Add(-lookaround), winEnd.Add(lookaround), 0)
		if err != nil {
			return Result{}, apperror.Internal(err, "failed to load bookings")
		}
	}

	result.Slots, err = Resolve(Input{
		EventType: eventType,
		Schedule:  schedule,
		Date:      date,
		Bookings:  bookings,
		Now:       now,
		Step:      s.step,
	})
	if err != nil {
		return Result{}, apperror.Internal(err, "failed to resolve slots")
	}
	if cacheable {
		s.cache.Set(ctx, hostID, cacheKey, result.Slots)
	}
	s.log.Debug("slots resolved", "host_id", hostID, "event_type", slug, "date", date, "count", len(result.Slots))
	return result, nil
}

// Grid resolves the availability grid for date without consulting bookings.
func (s *Service) Grid(eventType models.EventType, schedule models.AvailabilitySchedule, date string) ([]Slot, error) {
	return Resolve(Input{
		EventType: eventType,
		Schedule:  schedule,
		Date:      date,
		Now:       s.now(),
		Step:      s.step,
	})
}

// Invalidate drops cached slot lists of the host.
func (s *Service) Invalidate(ctx context.Context, hostID uint) {
	s.cache.Invalidate(ctx, hostID)
}
