package booking

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/KAsare1/slotbook-server/cmd/models"
	"github.com/emersion/go-ical"
)

const productID = "-//slotbook//EN"

// WriteICS encodes the booking as a single-event calendar.
func WriteICS(w io.Writer, booking models.Booking, host models.Host, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropMethod, "PUBLISH")
	cal.Children = append(cal.Children, toEvent(booking, host, now))

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode booking %s: %w", booking.UID, err)
	}
	return nil
}

func toEvent(booking models.Booking, host models.Host, now time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, booking.UID+"@slotbook")
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, booking.StartTime.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, booking.EndTime.UTC())

	summary := booking.EventTitle
	if host.FullName != "" {
		summary = fmt.Sprintf("%s between %s and %s", booking.EventTitle, host.FullName, booking.BookerName)
	}
	ve.Props.SetText(ical.PropSummary, summary)

	status := "CONFIRMED"
	if booking.Status == models.BookingCancelled {
		status = "CANCELLED"
	}
	ve.Props.SetText(ical.PropStatus, status)

	if description := describe(booking); description != "" {
		ve.Props.SetText(ical.PropDescription, description)
	}
	if host.Email != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.SetText(fmt.Sprintf("mailto:%s", host.Email))
		ve.Props.Add(p)
	}
	p := ical.NewProp(ical.PropAttendee)
	p.SetText(fmt.Sprintf("mailto:%s", booking.BookerEmail))
	ve.Props.Add(p)
	return ve
}

func describe(booking models.Booking) string {
	var lines []string
	if booking.Notes != "" {
		lines = append(lines, booking.Notes)
	}
	for _, a := range booking.Answers {
		lines = append(lines, fmt.Sprintf("%s: %s", a.Question, a.Answer))
	}
	return strings.Join(lines, "\n")
}
