package eventtype

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/KAsare1/slotbook-server/cmd/models"
	"github.com/KAsare1/slotbook-server/cmd/utils"
	"github.com/KAsare1/slotbook-server/repository"
)

type QuestionInput struct {
	Question     string   `json:"question" validate:"required,max=1000"`
	Required     bool     `json:"required"`
	QuestionType string   `json:"question_type" validate:"omitempty,oneof=text textarea select"`
	Options      []string `json:"options" validate:"omitempty,dive,required"`
}

type Input struct {
	Title        string          `json:"title" validate:"required,max=255"`
	Slug         string          `json:"slug" validate:"required,max=128,slug"`
	Description  string          `json:"description" validate:"max=5000"`
	Color        string          `json:"color" validate:"omitempty,hexcolor"`
	Duration     int             `json:"duration" validate:"gt=0,lte=1440"`
	BufferBefore int             `json:"buffer_before" validate:"gte=0,lte=1440"`
	BufferAfter  int             `json:"buffer_after" validate:"gte=0,lte=1440"`
	IsActive     *bool           `json:"is_active"`
	ScheduleID   *uint           `json:"schedule_id"`
	Questions    []QuestionInput `json:"questions" validate:"omitempty,dive"`
}

type invalidator interface {
	Invalidate(ctx context.Context, hostID uint)
}

type Service struct {
	store repository.Store
	cache invalidator
	log   *slog.Logger
}

func NewService(store repository.Store, cache invalidator, log *slog.Logger) *Service {
	return &Service{store: store, cache: cache, log: log}
}

func (s *Service) invalidate(ctx context.Context, hostID uint) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, hostID)
	}
}

func (s *Service) List(ctx context.Context, hostID uint) ([]models.EventType, error) {
	eventTypes, err := s.store.Repositories().EventTypes.ListByHost(ctx, hostID, false)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load event types")
	}
	if eventTypes == nil {
		eventTypes = []models.EventType{}
	}
	return eventTypes, nil
}

func (s *Service) Get(ctx context.Context, hostID, id uint) (models.EventType, error) {
	eventType, err := s.store.Repositories().EventTypes.Get(ctx, hostID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.EventType{}, apperror.NotFound("event type not found")
	}
	if err != nil {
		return models.EventType{}, apperror.Internal(err, "failed to load event type")
	}
	return eventType, nil
}

func (s *Service) Create(ctx context.Context, hostID uint, in Input) (models.EventType, error) {
	eventType, err := build(hostID, in)
	if err != nil {
		return models.EventType{}, err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := checkReferences(ctx, repos, eventType, 0); err != nil {
			return err
		}
		return repos.EventTypes.Create(ctx, &eventType)
	})
	if err != nil {
		return models.EventType{}, wrap(err, "failed to create event type")
	}
	s.log.Info("event type created", "host_id", hostID, "event_type_id", eventType.ID, "slug", eventType.Slug)
	return eventType, nil
}

func (s *Service) Update(ctx context.Context, hostID, id uint, in Input) (models.EventType, error) {
	eventType, err := build(hostID, in)
	if err != nil {
		return models.EventType{}, err
	}
	eventType.ID = id

	var saved models.EventType
	err = s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		current, err := repos.EventTypes.Get(ctx, hostID, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("event type not found")
		}
		if err != nil {
			return err
		}
		if in.IsActive == nil {
			eventType.IsActive = current.IsActive
		}
		if err := checkReferences(ctx, repos, eventType, id); err != nil {
			return err
		}
		if err := repos.EventTypes.Update(ctx, &eventType); err != nil {
			return err
		}
		saved, err = repos.EventTypes.Get(ctx, hostID, id)
		return err
	})
	if err != nil {
		return models.EventType{}, wrap(err, "failed to update event type")
	}
	s.invalidate(ctx, hostID)
	return saved, nil
}

func (s *Service) Delete(ctx context.Context, hostID, id uint) error {
	err := s.store.Repositories().EventTypes.Delete(ctx, hostID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("event type not found")
	}
	if err != nil {
		return apperror.Internal(err, "failed to delete event type")
	}
	s.invalidate(ctx, hostID)
	s.log.Info("event type deleted", "host_id", hostID, "event_type_id", id)
	return nil
}

func build(hostID uint, in Input) (models.EventType, error) {
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	if err := utils.ValidateStruct(in); err != nil {
		return models.EventType{}, err
	}

	eventType := models.EventType{
		HostID:       hostID,
		ScheduleID:   in.ScheduleID,
		Title:        strings.TrimSpace(in.Title),
		Slug:         in.Slug,
		Description:  in.Description,
		Color:        in.Color,
		Duration:     in.Duration,
		BufferBefore: in.BufferBefore,
		BufferAfter:  in.BufferAfter,
		IsActive:     in.IsActive == nil || *in.IsActive,
		Questions:    make([]models.Question, 0, len(in.Questions)),
	}
	for i, q := range in.Questions {
		kind := q.QuestionType
		if kind == "" {
			kind = models.QuestionText
		}
		if kind == models.QuestionSelect && len(q.Options) == 0 {
			return models.EventType{}, apperror.Validation("select questions need options").
				WithField(fmt.Sprintf("questions[%d].options", i), "is required for select")
		}
		question := models.Question{Position: i, Text: q.Question, Type: kind, Required: q.Required}
		if kind == models.QuestionSelect {
			question.Options = q.Options
		}
		eventType.Questions = append(eventType.Questions, question)
	}
	return eventType, nil
}

// checkReferences enforces slug uniqueness per host and schedule ownership.
func checkReferences(ctx context.Context, repos repository.Repositories, eventType models.EventType, selfID uint) error {
	existing, err := repos.EventTypes.GetBySlug(ctx, eventType.HostID, eventType.Slug)
	if err == nil && existing.ID != selfID {
		return apperror.Conflict("slug %q is already in use", eventType.Slug).WithField("slug", "already in use")
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if eventType.ScheduleID != nil {
		if _, err := repos.Schedules.Get(ctx, eventType.HostID, *eventType.ScheduleID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperror.Validation("unknown schedule").WithField("schedule_id", "not found")
			}
			return err
		}
	}
	return nil
}

func wrap(err error, message string) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return apperror.Conflict("slug is already in use").WithField("slug", "already in use")
	}
	return apperror.Internal(err, message)
}
