package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/KAsare1/slotbook-server/cmd/models"
	"github.com/KAsare1/slotbook-server/cmd/utils"
	"github.com/KAsare1/slotbook-server/repository"
)

type RuleInput struct {
	DayOfWeek int    `json:"day_of_week" validate:"gte=0,lte=6"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
}

type ScheduleInput struct {
	Name     string `json:"name" validate:"required,max=255"`
	TimeZone string `json:"timezone" validate:"required,timezone"`
	// IsDefault nil leaves the flag unchanged on replace.
	IsDefault *bool `json:"is_default"`
	// Rules nil means "not supplied": defaults on create, unchanged on replace.
	Rules []RuleInput `json:"schedules" validate:"omitempty,dive"`
}

type OverrideInput struct {
	Date      string `json:"date" validate:"required,date"`
	IsBlocked bool   `json:"is_blocked"`
	StartTime string `json:"start_time" validate:"omitempty,clock"`
	EndTime   string `json:"end_time" validate:"omitempty,clock"`
}

// DefaultRules is the working week a new schedule gets when none is supplied.
func DefaultRules() []RuleInput {
	rules := make([]RuleInput, 0, 5)
	for day := 1; day <= 5; day++ {
		rules = append(rules, RuleInput{DayOfWeek: day, StartTime: "09:00", EndTime: "17:00"})
	}
	return rules
}

type invalidator interface {
	Invalidate(ctx context.Context, hostID uint)
}

// Store owns schedules, weekly rules and date overrides.
type Store struct {
	store repository.Store
	cache invalidator
	log   *slog.Logger
}

func NewStore(store repository.Store, cache invalidator, log *slog.Logger) *Store {
	return &Store{store: store, cache: cache, log: log}
}

func (s *Store) invalidate(ctx context.Context, hostID uint) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, hostID)
	}
}

func (s *Store) GetSchedules(ctx context.Context, hostID uint) ([]models.AvailabilitySchedule, error) {
	schedules, err := s.store.Repositories().Schedules.ListByHost(ctx, hostID)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load schedules")
	}
	if schedules == nil {
		schedules = []models.AvailabilitySchedule{}
	}
	return schedules, nil
}

func (s *Store) GetSchedule(ctx context.Context, hostID, id uint) (models.AvailabilitySchedule, error) {
	schedule, err := s.store.Repositories().Schedules.Get(ctx, hostID, id)
	if err != nil {
		return models.AvailabilitySchedule{}, notFoundOr(err, "schedule")
	}
	return schedule, nil
}

func (s *Store) CreateSchedule(ctx context.Context, hostID uint, in ScheduleInput) (models.AvailabilitySchedule, error) {
	if in.Rules == nil {
		in.Rules = DefaultRules()
	}
	rules, err := buildRules(in.Rules)
	if err != nil {
		return models.AvailabilitySchedule{}, err
	}
	if err := utils.ValidateStruct(in); err != nil {
		return models.AvailabilitySchedule{}, err
	}

	schedule := models.AvailabilitySchedule{
		HostID:   hostID,
		Name:     in.Name,
		TimeZone: in.TimeZone,
		Rules:    rules,
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Hosts.Lock(ctx, hostID); err != nil {
			return notFoundOr(err, "host")
		}
		existing, err := repos.Schedules.ListByHost(ctx, hostID)
		if err != nil {
			return err
		}
		schedule.IsDefault = len(existing) == 0 || (in.IsDefault != nil && *in.IsDefault)
		if schedule.IsDefault {
			if err := repos.Schedules.ClearDefault(ctx, hostID, 0); err != nil {
				return err
			}
		}
		return repos.Schedules.Create(ctx, &schedule)
	})
	if err != nil {
		return models.AvailabilitySchedule{}, wrap(err, "failed to create schedule")
	}
	s.invalidate(ctx, hostID)
	s.log.Info("schedule created", "host_id", hostID, "schedule_id", schedule.ID, "default", schedule.IsDefault)
	return schedule, nil
}

// ReplaceSchedule overwrites name, timezone and default flag and swaps the weekly rules as a whole.
func (s *Store) ReplaceSchedule(ctx context.Context, hostID, id uint, in ScheduleInput) (models.AvailabilitySchedule, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return models.AvailabilitySchedule{}, err
	}
	var rules []models.WeeklyRule
	if in.Rules != nil {
		var err error
		if rules, err = buildRules(in.Rules); err != nil {
			return models.AvailabilitySchedule{}, err
		}
	}

	var saved models.AvailabilitySchedule
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Hosts.Lock(ctx, hostID); err != nil {
			return notFoundOr(err, "host")
		}
		current, err := repos.Schedules.Get(ctx, hostID, id)
		if err != nil {
			return notFoundOr(err, "schedule")
		}

		isDefault := current.IsDefault
		if in.IsDefault != nil {
			isDefault = *in.IsDefault
		}
		if current.IsDefault && !isDefault {
			return apperror.Validation("a host must keep one default schedule; mark another schedule as default instead").
				WithField("is_default", "cannot unset the default schedule")
		}
		if isDefault && !current.IsDefault {
			if err := repos.Schedules.ClearDefault(ctx, hostID, id); err != nil {
				return err
			}
		}

		current.Name = in.Name
		current.TimeZone = in.TimeZone
		current.IsDefault = isDefault
		if in.Rules != nil {
			current.Rules = rules
		}
		if err := repos.Schedules.Update(ctx, &current); err != nil {
			return err
		}
		saved, err = repos.Schedules.Get(ctx, hostID, id)
		return err
	})
	if err != nil {
		return models.AvailabilitySchedule{}, wrap(err, "failed to update schedule")
	}
	s.invalidate(ctx, hostID)
	return saved, nil
}

// DeleteSchedule removes a schedule. The last schedule cannot be removed; removing the default
// promotes the oldest remaining one.
func (s *Store) DeleteSchedule(ctx context.Context, hostID, id uint) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Hosts.Lock(ctx, hostID); err != nil {
			return notFoundOr(err, "host")
		}
		schedules, err := repos.Schedules.ListByHost(ctx, hostID)
		if err != nil {
			return err
		}

		var target *models.AvailabilitySchedule
		for i := range schedules {
			if schedules[i].ID == id {
				target = &schedules[i]
			}
		}
		if target == nil {
			return apperror.NotFound("schedule not found")
		}
		if len(schedules) == 1 {
			return apperror.Conflict("cannot delete the only availability schedule")
		}

		if err := repos.Schedules.Delete(ctx, hostID, id); err != nil {
			return notFoundOr(err, "schedule")
		}
		if err := repos.EventTypes.DetachSchedule(ctx, hostID, id); err != nil {
			return err
		}
		if !target.IsDefault {
			return nil
		}
		for _, candidate := range schedules {
			if candidate.ID != id {
				return repos.Schedules.SetDefault(ctx, hostID, candidate.ID)
			}
		}
		return nil
	})
	if err != nil {
		return wrap(err, "failed to delete schedule")
	}
	s.invalidate(ctx, hostID)
	s.log.Info("schedule deleted", "host_id", hostID, "schedule_id", id)
	return nil
}

// AddOverride stores an override for a date, replacing any earlier one for that date.
func (s *Store) AddOverride(ctx context.Context, hostID, scheduleID uint, in OverrideInput) (models.DateOverride, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return models.DateOverride{}, err
	}
	override := models.DateOverride{ScheduleID: scheduleID, Date: in.Date, IsBlocked: in.IsBlocked}
	if !in.IsBlocked {
		if err := checkWindow(in.StartTime, in.EndTime, "start_time", "end_time"); err != nil {
			return models.DateOverride{}, err
		}
		override.StartTime, override.EndTime = in.StartTime, in.EndTime
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Schedules.Get(ctx, hostID, scheduleID); err != nil {
			return notFoundOr(err, "schedule")
		}
		return repos.Schedules.UpsertOverride(ctx, &override)
	})
	if err != nil {
		return models.DateOverride{}, wrap(err, "failed to save override")
	}
	s.invalidate(ctx, hostID)
	return override, nil
}

func (s *Store) RemoveOverride(ctx context.Context, hostID, scheduleID, overrideID uint) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Schedules.Get(ctx, hostID, scheduleID); err != nil {
			return notFoundOr(err, "schedule")
		}
		if err := repos.Schedules.DeleteOverride(ctx, scheduleID, overrideID); err != nil {
			return notFoundOr(err, "override")
		}
		return nil
	})
	if err != nil {
		return wrap(err, "failed to delete override")
	}
	s.invalidate(ctx, hostID)
	return nil
}

func buildRules(in []RuleInput) ([]models.WeeklyRule, error) {
	seen := make(map[int]bool, len(in))
	rules := make([]models.WeeklyRule, 0, len(in))
	for i, r := range in {
		field := fmt.Sprintf("schedules[%d]", i)
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return nil, apperror.Validation("day_of_week must be between 0 and 6").
				WithField(field+".day_of_week", "must be between 0 and 6")
		}
		if seen[r.DayOfWeek] {
			return nil, apperror.Validation("only one rule per day is allowed").
				WithField(field+".day_of_week", "duplicate day")
		}
		seen[r.DayOfWeek] = true
		if err := checkWindow(r.StartTime, r.EndTime, field+".start_time", field+".end_time"); err != nil {
			return nil, err
		}
		rules = append(rules, models.WeeklyRule{DayOfWeek: r.DayOfWeek, StartTime: r.StartTime, EndTime: r.EndTime})
	}
	return rules, nil
}

func checkWindow(start, end, startField, endField string) error {
	startMin, err := models.ClockMinutes(start)
	if err != nil || start == "24:00" {
		return apperror.Validation("start time must be HH:MM").WithField(startField, "must be HH:MM")
	}
	endMin, err := models.ClockMinutes(end)
	if err != nil {
		return apperror.Validation("end time must be HH:MM").WithField(endField, "must be HH:MM")
	}
	if startMin >= endMin {
		return apperror.Validation("start time must be before end time").WithField(endField, "must be after start_time")
	}
	return nil
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("%s not found", what)
	}
	return err
}

// wrap passes application errors through and turns anything else into an internal error.
func wrap(err error, message string) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return apperror.Conflict("%s: concurrent change, retry", message)
	}
	return apperror.Internal(err, message)
}

// DefaultSchedule is the schedule every new host starts with.
func DefaultSchedule(hostID uint, timezone string) models.AvailabilitySchedule {
	schedule := models.AvailabilitySchedule{
		HostID:    hostID,
		Name:      "Working hours",
		TimeZone:  timezone,
		IsDefault: true,
	}
	for _, r := range DefaultRules() {
		schedule.Rules = append(schedule.Rules, models.WeeklyRule{DayOfWeek: r.DayOfWeek, StartTime: r.StartTime, EndTime: r.EndTime})
	}
	return schedule
}
