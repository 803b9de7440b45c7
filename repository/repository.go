package repository

import (
	"context"
	"errors"
	"time"

	"github.com/KAsare1/slotbook-server/cmd/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type Hosts interface {
	Create(ctx context.Context, host *models.Host) error
	GetByID(ctx context.Context, id uint) (models.Host, error)
	GetByUsername(ctx context.Context, username string) (models.Host, error)
	GetByEmail(ctx context.Context, email string) (models.Host, error)
	// Lock serializes writers touching the host's calendar until the transaction ends.
	Lock(ctx context.Context, id uint) error
}

type Schedules interface {
	ListByHost(ctx context.Context, hostID uint) ([]models.AvailabilitySchedule, error)
	Get(ctx context.Context, hostID, id uint) (models.AvailabilitySchedule, error)
	GetDefault(ctx context.Context, hostID uint) (models.AvailabilitySchedule, error)
	Create(ctx context.Context, schedule *models.AvailabilitySchedule) error
	// Update saves name, timezone and default flag and replaces the weekly rules.
	Update(ctx context.Context, schedule *models.AvailabilitySchedule) error
	SetDefault(ctx context.Context, hostID, id uint) error
	ClearDefault(ctx context.Context, hostID, exceptID uint) error
	Delete(ctx context.Context, hostID, id uint) error
	// UpsertOverride replaces any override already stored for the same date.
	UpsertOverride(ctx context.Context, override *models.DateOverride) error
	DeleteOverride(ctx context.Context, scheduleID, overrideID uint) error
}

type EventTypes interface {
	ListByHost(ctx context.Context, hostID uint, activeOnly bool) ([]models.EventType, error)
	Get(ctx context.Context, hostID, id uint) (models.EventType, error)
	GetByID(ctx context.Context, id uint) (models.EventType, error)
	GetBySlug(ctx context.Context, hostID uint, slug string) (models.EventType, error)
	Create(ctx context.Context, eventType *models.EventType) error
	// Update saves scalar fields and replaces the question list.
	Update(ctx context.Context, eventType *models.EventType) error
	Delete(ctx context.Context, hostID, id uint) error
	DetachSchedule(ctx context.Context, hostID, scheduleID uint) error
}

// BookingQuery filters a host's bookings. Zero times leave that bound open; a negative offset reads as zero.
type BookingQuery struct {
	HostID       uint
	Status       models.BookingStatus
	EndAtOrAfter time.Time
	EndBefore    time.Time
	Descending   bool
	Offset       int
	Limit        int
}

type Bookings interface {
	GetByUID(ctx context.Context, uid string) (models.Booking, error)
	// GetByUIDForUpdate reads the booking and holds a row lock on it until the transaction ends.
	GetByUIDForUpdate(ctx context.Context, uid string) (models.Booking, error)
	List(ctx context.Context, query BookingQuery) ([]models.Booking, int64, error)
	// Overlapping returns confirmed bookings of the host with start < to and end > from.
	Overlapping(ctx context.Context, hostID uint, from, to time.Time, excludeID uint) ([]models.Booking, error)
	Create(ctx context.Context, booking *models.Booking) error
	// Update writes the mutable fields: status, cancellation reason and the interval.
	Update(ctx context.Context, booking *models.Booking) error
}

type Repositories struct {
	Hosts      Hosts
	Schedules  Schedules
	EventTypes EventTypes
	Bookings   Bookings
}

type TxFunc func(ctx context.Context, repos Repositories) error

// Store hands out repositories bound to the connection or to a transaction.
type Store interface {
	Repositories() Repositories
	WithTx(ctx context.Context, fn TxFunc) error
}
