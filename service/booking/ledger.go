package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/KAsare1/slotbook-server/cmd/models"
	"github.com/KAsare1/slotbook-server/cmd/utils"
	"github.com/KAsare1/slotbook-server/repository"
	"github.com/google/uuid"
)

// conflictReach bounds how far a neighbouring booking's buffer can extend.
const conflictReach = 24 * time.Hour

type Filter string

const (
	FilterUpcoming  Filter = "upcoming"
	FilterPast      Filter = "past"
	FilterCancelled Filter = "cancelled"
)

// ParseFilter maps a list query value to a filter. The dashboard's unconfirmed and recurring
// tabs are views over upcoming bookings.
func ParseFilter(value string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "upcoming", "unconfirmed", "recurring":
		return FilterUpcoming, nil
	case "past":
		return FilterPast, nil
	case "cancelled", "canceled":
		return FilterCancelled, nil
	default:
		return "", apperror.Validation("unknown booking filter %q", value).
			WithField("type", "must be upcoming, past or cancelled")
	}
}

type Page struct {
	Bookings []models.Booking `json:"bookings"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// Ledger is the only writer of bookings. Every write re-checks conflicts under the host lock.
type Ledger struct {
	store repository.Store
	now   func() time.Time
}

func NewLedger(store repository.Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) List(ctx context.Context, hostID uint, filter Filter, page, pageSize int) (Page, error) {
	if page < 1 || page > utils.MaxPage {
		return Page{}, apperror.Validation("page must be between 1 and %d", utils.MaxPage).WithField("page", "out of range")
	}
	if pageSize < 1 || pageSize > utils.MaxPageSize {
		return Page{}, apperror.Validation("page_size must be between 1 and %d", utils.MaxPageSize).WithField("page_size", "out of range")
	}
	query := repository.BookingQuery{
		HostID: hostID,
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	}
	now := l.now()
	switch filter {
	case FilterUpcoming:
		query.Status = models.BookingConfirmed
		query.EndAtOrAfter = now
	case FilterPast:
		query.Status = models.BookingConfirmed
		query.EndBefore = now
		query.Descending = true
	case FilterCancelled:
		query.Status = models.BookingCancelled
	default:
		return Page{}, apperror.Validation("unknown booking filter %q", filter)
	}

	bookings, total, err := l.store.Repositories().Bookings.List(ctx, query)
	if err != nil {
		return Page{}, apperror.Internal(err, "failed to list bookings")
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return Page{Bookings: bookings, Total: total, Page: page, PageSize: pageSize}, nil
}

func (l *Ledger) Get(ctx context.Context, uid string) (models.Booking, error) {
	booking, err := l.store.Repositories().Bookings.GetByUID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Booking{}, apperror.NotFound("booking not found")
	}
	if err != nil {
		return models.Booking{}, apperror.Internal(err, "failed to load booking")
	}
	return booking, nil
}

// Insert stores a confirmed booking unless it conflicts with another confirmed booking of the host.
func (l *Ledger) Insert(ctx context.Context, booking *models.Booking) error {
	if !booking.StartTime.Before(booking.EndTime) {
		return apperror.Validation("start time must be before end time").WithField("end_time", "must be after start_time")
	}
	if booking.UID == "" {
		booking.UID = uuid.New().String()
	}
	booking.Status = models.BookingConfirmed

	err := l.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Hosts.Lock(ctx, booking.HostID); err != nil {
			return err
		}
		if err := checkConflicts(ctx, repos, *booking, 0); err != nil {
			return err
		}
		return repos.Bookings.Create(ctx, booking)
	})
	return wrap(err, "failed to save booking")
}

// Cancel moves a confirmed booking to cancelled. The status check runs on the row-locked copy, so
// concurrent cancels and reschedules of one booking see each other's outcome.
func (l *Ledger) Cancel(ctx context.Context, uid, reason string) (models.Booking, error) {
	var booking models.Booking
	err := l.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		booking, err = repos.Bookings.GetByUIDForUpdate(ctx, uid)
		if err != nil {
			return err
		}
		if booking.Status == models.BookingCancelled {
			return apperror.Conflict("booking is already cancelled")
		}
		booking.Status = models.BookingCancelled
		booking.CancellationReason = strings.TrimSpace(reason)
		return repos.Bookings.Update(ctx, &booking)
	})
	if err != nil {
		return models.Booking{}, wrap(err, "failed to cancel booking")
	}
	return booking, nil
}

// Reschedule moves a confirmed booking in place. Identity, answers and buffers are kept.
// Lock order is host, then booking row, matching Insert.
func (l *Ledger) Reschedule(ctx context.Context, uid string, start, end time.Time) (models.Booking, error) {
	if !start.Before(end) {
		return models.Booking{}, apperror.Validation("start time must be before end time").
			WithField("end_time", "must be after start_time")
	}

	var booking models.Booking
	err := l.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		current, err := repos.Bookings.GetByUID(ctx, uid)
		if err != nil {
			return err
		}
		if err := repos.Hosts.Lock(ctx, current.HostID); err != nil {
			return err
		}
		booking, err = repos.Bookings.GetByUIDForUpdate(ctx, uid)
		if err != nil {
			return err
		}
		if booking.Status == models.BookingCancelled {
			return apperror.Conflict("cancelled bookings cannot be rescheduled")
		}
		booking.StartTime = start.UTC()
		booking.EndTime = end.UTC()
		if err := checkConflicts(ctx, repos, booking, booking.ID); err != nil {
			return err
		}
		return repos.Bookings.Update(ctx, &booking)
	})
	if err != nil {
		return models.Booking{}, wrap(err, "failed to reschedule booking")
	}
	return booking, nil
}

func checkConflicts(ctx context.Context, repos repository.Repositories, candidate models.Booking, excludeID uint) error {
	neighbours, err := repos.Bookings.Overlapping(ctx, candidate.HostID,
		candidate.StartTime.Add(-conflictReach), candidate.EndTime.Add(conflictReach), excludeID)
	if err != nil {
		return err
	}
	for _, b := range neighbours {
		if candidate.ConflictsWith(b) {
			return apperror.Conflict("time slot is no longer available")
		}
	}
	return nil
}

func wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("booking not found")
	}
	return apperror.Internal(err, message)
}
