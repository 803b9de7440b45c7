package booking

import (
	"context"
	"errors"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/KAsare1/slotbook-server/cmd/models"
	"github.com/KAsare1/slotbook-server/repository"
)

// View is a booking with what the confirmation and dashboard pages show next to it.
type View struct {
	models.Booking
	HostName  string `json:"host_name"`
	HostEmail string `json:"host_email"`
	// TimeZone is the timezone of the schedule the booking was made against.
	TimeZone string `json:"timezone"`
	// Duration is the booked length in minutes.
	Duration int `json:"duration"`
}

type ViewPage struct {
	Bookings []View `json:"bookings"`
	Total    int64  `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// viewer resolves hosts and timezones once per request.
type viewer struct {
	o         *Orchestrator
	repos     repository.Repositories
	hosts     map[uint]models.Host
	timezones map[uint]string
}

func (o *Orchestrator) newViewer() *viewer {
	return &viewer{
		o:         o,
		repos:     o.store.Repositories(),
		hosts:     map[uint]models.Host{},
		timezones: map[uint]string{},
	}
}

func (v *viewer) view(ctx context.Context, booking models.Booking) (View, error) {
	host, ok := v.hosts[booking.HostID]
	if !ok {
		var err error
		host, err = v.repos.Hosts.GetByID(ctx, booking.HostID)
		if err != nil {
			return View{}, apperror.Internal(err, "failed to load host")
		}
		v.hosts[booking.HostID] = host
	}

	tz, ok := v.timezones[booking.EventTypeID]
	if !ok {
		var err error
		tz, err = v.timezone(ctx, booking, host)
		if err != nil {
			return View{}, err
		}
		v.timezones[booking.EventTypeID] = tz
	}

	return View{
		Booking:   booking,
		HostName:  host.FullName,
		HostEmail: host.Email,
		TimeZone:  tz,
		Duration:  int(booking.EndTime.Sub(booking.StartTime).Minutes()),
	}, nil
}

// timezone falls back to the host's own timezone when the event type or its schedule is gone.
func (v *viewer) timezone(ctx context.Context, booking models.Booking, host models.Host) (string, error) {
	eventType, err := v.repos.EventTypes.GetByID(ctx, booking.EventTypeID)
	if errors.Is(err, repository.ErrNotFound) {
		return host.TimeZone, nil
	}
	if err != nil {
		return "", apperror.Internal(err, "failed to load event type")
	}
	schedule, err := v.o.slots.ScheduleFor(ctx, v.repos, eventType)
	if apperror.Is(err, apperror.KindNotFound) {
		return host.TimeZone, nil
	}
	if err != nil {
		return "", err
	}
	return schedule.TimeZone, nil
}

// Detail returns the booking addressed by uid with host and timezone details.
func (o *Orchestrator) Detail(ctx context.Context, uid string) (View, error) {
	booking, err := o.ledger.Get(ctx, uid)
	if err != nil {
		return View{}, err
	}
	return o.newViewer().view(ctx, booking)
}

// ListViews is List with every booking expanded to a View.
func (o *Orchestrator) ListViews(ctx context.Context, hostID uint, filter Filter, page, pageSize int) (ViewPage, error) {
	result, err := o.ledger.List(ctx, hostID, filter, page, pageSize)
	if err != nil {
		return ViewPage{}, err
	}
	v := o.newViewer()
	views := make([]View, 0, len(result.Bookings))
	for _, booking := range result.Bookings {
		view, err := v.view(ctx, booking)
		if err != nil {
			return ViewPage{}, err
		}
		views = append(views, view)
	}
	return ViewPage{Bookings: views, Total: result.Total, Page: result.Page, PageSize: result.PageSize}, nil
}
