package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/KAsare1/slotbook-server/cmd/models"
	"github.com/KAsare1/slotbook-server/cmd/utils"
	"github.com/KAsare1/slotbook-server/repository"
	"github.com/KAsare1/slotbook-server/service/slots"
)

const (
	EventCreated     = "booking.created"
	EventCancelled   = "booking.cancelled"
	EventRescheduled = "booking.rescheduled"
)

// Notifier receives booking lifecycle events for a host.
type Notifier interface {
	Publish(hostID uint, event string, payload interface{})
}

type AnswerInput struct {
	QuestionID uint   `json:"question_id" validate:"required"`
	Answer     string `json:"answer"`
}

type BookRequest struct {
	EventTypeID uint          `json:"event_type_id" validate:"required"`
	BookerName  string        `json:"booker_name" validate:"required,max=255"`
	BookerEmail string        `json:"booker_email" validate:"required,email,max=255"`
	StartTime   time.Time     `json:"start_time" validate:"required"`
	EndTime     time.Time     `json:"end_time" validate:"required"`
	Notes       string        `json:"notes" validate:"max=5000"`
	Answers     []AnswerInput `json:"answers" validate:"omitempty,dive"`
}

type RescheduleRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

// Orchestrator turns a slot selection into a booking and drives later lifecycle changes.
type Orchestrator struct {
	store    repository.Store
	ledger   *Ledger
	slots    *slots.Service
	notifier Notifier
	log      *slog.Logger
}

func NewOrchestrator(store repository.Store, ledger *Ledger, slotService *slots.Service, notifier Notifier, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		ledger:   ledger,
		slots:    slotService,
		notifier: notifier,
		log:      log,
	}
}

func (o *Orchestrator) publish(ctx context.Context, event string, booking models.Booking) {
	o.slots.Invalidate(ctx, booking.HostID)
	if o.notifier != nil {
		o.notifier.Publish(booking.HostID, event, booking)
	}
}

// Book validates the request against the event type and the availability grid, then asks the
// ledger to insert it. A conflict at insert time means another booker won the slot.
func (o *Orchestrator) Book(ctx context.Context, req BookRequest) (models.Booking, error) {
	req.BookerName = strings.TrimSpace(req.BookerName)
	req.BookerEmail = strings.TrimSpace(req.BookerEmail)
	if err := utils.ValidateStruct(req); err != nil {
		return models.Booking{}, err
	}
	if !req.StartTime.Before(req.EndTime) {
		return models.Booking{}, apperror.Validation("start time must be before end time").
			WithField("end_time", "must be after start_time")
	}

	repos := o.store.Repositories()
	eventType, err := repos.EventTypes.GetByID(ctx, req.EventTypeID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !eventType.IsActive) {
		return models.Booking{}, apperror.NotFound("event type not found")
	}
	if err != nil {
		return models.Booking{}, apperror.Internal(err, "failed to load event type")
	}

	answers, err := collectAnswers(eventType, req.Answers)
	if err != nil {
		return models.Booking{}, err
	}

	if err := o.checkSlot(ctx, repos, eventType, req.StartTime, req.EndTime); err != nil {
		return models.Booking{}, err
	}

	booking := models.Booking{
		EventTypeID:  eventType.ID,
		HostID:       eventType.HostID,
		EventTitle:   eventType.Title,
		BookerName:   req.BookerName,
		BookerEmail:  req.BookerEmail,
		StartTime:    req.StartTime.UTC(),
		EndTime:      req.EndTime.UTC(),
		BufferBefore: eventType.BufferBefore,
		BufferAfter:  eventType.BufferAfter,
		Answers:      answers,
		Notes:        strings.TrimSpace(req.Notes),
	}
	if err := o.ledger.Insert(ctx, &booking); err != nil {
		if apperror.Is(err, apperror.KindConflict) {
			o.log.Info("booking rejected", "host_id", booking.HostID, "event_type_id", eventType.ID, "start", booking.StartTime)
		}
		return models.Booking{}, err
	}

	o.log.Info("booking confirmed", "uid", booking.UID, "host_id", booking.HostID, "start", booking.StartTime)
	o.publish(ctx, EventCreated, booking)
	return booking, nil
}

// checkSlot requires the interval to last the event duration and to start on an open grid slot.
// Bookings are not consulted here; the ledger re-checks conflicts under the host lock.
func (o *Orchestrator) checkSlot(ctx context.Context, repos repository.Repositories, eventType models.EventType, start, end time.Time) error {
	duration := time.Duration(eventType.Duration) * time.Minute
	if !end.Equal(start.Add(duration)) {
		return apperror.Validation("booking must last %d minutes", eventType.Duration).
			WithField("end_time", "does not match the event duration")
	}

	schedule, err := o.slots.ScheduleFor(ctx, repos, eventType)
	if err != nil {
		return err
	}
	loc, err := schedule.Location()
	if err != nil {
		return apperror.Internal(err, "schedule timezone is invalid")
	}
	grid, err := o.slots.Grid(eventType, schedule, start.In(loc).Format(models.DateLayout))
	if err != nil {
		return apperror.Internal(err, "failed to resolve availability")
	}
	if !slots.Contains(grid, start) {
		return apperror.Validation("slot not available").
			WithField("start_time", "is not an available slot")
	}
	return nil
}

func collectAnswers(eventType models.EventType, in []AnswerInput) ([]models.Answer, error) {
	questions := make(map[uint]models.Question, len(eventType.Questions))
	for _, q := range eventType.Questions {
		questions[q.ID] = q
	}

	given := make(map[uint]string, len(in))
	answers := make([]models.Answer, 0, len(in))
	for i, a := range in {
		q, ok := questions[a.QuestionID]
		if !ok {
			return nil, apperror.Validation("unknown question %d", a.QuestionID).
				WithField(fmt.Sprintf("answers[%d].question_id", i), "does not belong to this event type")
		}
		text := strings.TrimSpace(a.Answer)
		if text == "" {
			continue
		}
		if len(q.Options) > 0 && !contains(q.Options, text) {
			return nil, apperror.Validation("invalid answer for %q", q.Text).
				WithField(fmt.Sprintf("answers[%d].answer", i), "must be one of the listed options")
		}
		given[q.ID] = text
		answers = append(answers, models.Answer{QuestionID: q.ID, Question: q.Text, Answer: text})
	}

	for _, q := range eventType.RequiredQuestions() {
		if given[q.ID] == "" {
			return nil, apperror.Validation("answer required for %q", q.Text).
				WithField(fmt.Sprintf("questions.%d", q.ID), "is required")
		}
	}
	return answers, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (o *Orchestrator) Get(ctx context.Context, uid string) (models.Booking, error) {
	return o.ledger.Get(ctx, uid)
}

func (o *Orchestrator) Cancel(ctx context.Context, uid, reason string) (models.Booking, error) {
	booking, err := o.ledger.Cancel(ctx, uid, reason)
	if err != nil {
		return models.Booking{}, err
	}
	o.log.Info("booking cancelled", "uid", uid, "host_id", booking.HostID)
	o.publish(ctx, EventCancelled, booking)
	return booking, nil
}

// Reschedule is the booker's move: the new interval must be an open slot of the booking's event
// type, exactly like a new booking.
func (o *Orchestrator) Reschedule(ctx context.Context, uid string, req RescheduleRequest) (models.Booking, error) {
	if err := o.checkReschedule(req); err != nil {
		return models.Booking{}, err
	}
	current, err := o.ledger.Get(ctx, uid)
	if err != nil {
		return models.Booking{}, err
	}
	repos := o.store.Repositories()
	eventType, err := repos.EventTypes.GetByID(ctx, current.EventTypeID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Booking{}, apperror.Conflict("the event type of this booking no longer exists")
	}
	if err != nil {
		return models.Booking{}, apperror.Internal(err, "failed to load event type")
	}
	if err := o.checkSlot(ctx, repos, eventType, req.StartTime, req.EndTime); err != nil {
		return models.Booking{}, err
	}
	return o.reschedule(ctx, uid, req)
}

func (o *Orchestrator) checkReschedule(req RescheduleRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return err
	}
	if req.StartTime.Before(o.slots.Now()) {
		return apperror.Validation("cannot reschedule into the past").
			WithField("start_time", "is in the past")
	}
	return nil
}

func (o *Orchestrator) reschedule(ctx context.Context, uid string, req RescheduleRequest) (models.Booking, error) {
	booking, err := o.ledger.Reschedule(ctx, uid, req.StartTime, req.EndTime)
	if err != nil {
		return models.Booking{}, err
	}
	o.log.Info("booking rescheduled", "uid", uid, "host_id", booking.HostID, "start", booking.StartTime)
	o.publish(ctx, EventRescheduled, booking)
	return booking, nil
}

// ownedBy hides bookings of other hosts behind not found.
func (o *Orchestrator) ownedBy(ctx context.Context, hostID uint, uid string) error {
	booking, err := o.ledger.Get(ctx, uid)
	if err != nil {
		return err
	}
	if booking.HostID != hostID {
		return apperror.NotFound("booking not found")
	}
	return nil
}

func (o *Orchestrator) CancelForHost(ctx context.Context, hostID uint, uid, reason string) (models.Booking, error) {
	if err := o.ownedBy(ctx, hostID, uid); err != nil {
		return models.Booking{}, err
	}
	return o.Cancel(ctx, uid, reason)
}

// RescheduleForHost lets the host move their own booking anywhere in the future, on or off the
// grid, as long as it stays clear of other bookings.
func (o *Orchestrator) RescheduleForHost(ctx context.Context, hostID uint, uid string, req RescheduleRequest) (models.Booking, error) {
	if err := o.checkReschedule(req); err != nil {
		return models.Booking{}, err
	}
	if err := o.ownedBy(ctx, hostID, uid); err != nil {
		return models.Booking{}, err
	}
	return o.reschedule(ctx, uid, req)
}
