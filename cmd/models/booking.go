package models

import (
	"time"

	"gorm.io/datatypes"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type Answer struct {
	QuestionID uint   `json:"question_id"`
	Question   string `json:"question,omitempty"`
	Answer     string `json:"answer"`
}

// Booking is a reserved interval on a host's calendar. Buffers are copied from the
// event type when the booking is made.
type Booking struct {
	ID                 uint                        `gorm:"primaryKey" json:"-"`
	UID                string                      `gorm:"column:uid;size:36;not null;uniqueIndex" json:"uid"`
	EventTypeID        uint                        `gorm:"column:event_type_id;not null;index" json:"event_type_id"`
	HostID             uint                        `gorm:"column:host_id;not null;index:idx_booking_host_start" json:"host_id"`
	EventTitle         string                      `gorm:"column:event_title;size:255" json:"event_title"`
	BookerName         string                      `gorm:"column:booker_name;size:255;not null" json:"booker_name"`
	BookerEmail        string                      `gorm:"column:booker_email;size:255;not null" json:"booker_email"`
	StartTime          time.Time                   `gorm:"column:start_time;not null;index:idx_booking_host_start" json:"start_time"`
	EndTime            time.Time                   `gorm:"column:end_time;not null" json:"end_time"`
	BufferBefore       int                         `gorm:"column:buffer_before;not null;default:0" json:"buffer_before"`
	BufferAfter        int                         `gorm:"column:buffer_after;not null;default:0" json:"buffer_after"`
	Status             BookingStatus               `gorm:"column:status;size:16;not null;index" json:"status"`
	Answers            datatypes.JSONSlice[Answer] `gorm:"column:answers" json:"answers"`
	Notes              string                      `gorm:"column:notes;type:text" json:"notes"`
	CancellationReason string                      `gorm:"column:cancellation_reason;type:text" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

// BlockedFrom is the start of the interval this booking keeps free of other bookings.
func (b Booking) BlockedFrom() time.Time {
	return b.StartTime.Add(-time.Duration(b.BufferBefore) * time.Minute)
}

// BlockedUntil is the end of the interval this booking keeps free of other bookings.
func (b Booking) BlockedUntil() time.Time {
	return b.EndTime.Add(time.Duration(b.BufferAfter) * time.Minute)
}

// ConflictsWith reports whether two bookings violate each other's buffered interval.
func (b Booking) ConflictsWith(other Booking) bool {
	return overlaps(b.BlockedFrom(), b.BlockedUntil(), other.StartTime, other.EndTime) ||
		overlaps(b.StartTime, b.EndTime, other.BlockedFrom(), other.BlockedUntil())
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
