package public

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/KAsare1/slotbook-server/cmd/models"
	"github.com/KAsare1/slotbook-server/cmd/utils"
	"github.com/KAsare1/slotbook-server/repository"
	"github.com/KAsare1/slotbook-server/service/slots"
	"github.com/gorilla/mux"
)

type Host struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	TimeZone string `json:"timezone"`
}

type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	// Time is the start as HH:MM in the requested timezone.
	Time string `json:"time"`
}

// Handler serves the booking pages' data without authentication.
type Handler struct {
	store repository.Store
	slots *slots.Service
}

func NewHandler(store repository.Store, slotService *slots.Service) *Handler {
	return &Handler{store: store, slots: slotService}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/public/{username}", h.GetProfile).Methods("GET")
	router.HandleFunc("/public/{username}/{slug}", h.GetEventType).Methods("GET")
	router.HandleFunc("/public/{username}/{slug}/slots", h.GetSlots).Methods("GET")
}

func (h *Handler) host(r *http.Request) (models.Host, error) {
	host, err := h.store.Repositories().Hosts.GetByUsername(r.Context(), strings.ToLower(mux.Vars(r)["username"]))
	if errors.Is(err, repository.ErrNotFound) {
		return models.Host{}, apperror.NotFound("user not found")
	}
	if err != nil {
		return models.Host{}, apperror.Internal(err, "failed to load user")
	}
	return host, nil
}

func publicHost(host models.Host) Host {
	return Host{Username: host.Username, FullName: host.FullName, TimeZone: host.TimeZone}
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	host, err := h.host(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	eventTypes, err := h.store.Repositories().EventTypes.ListByHost(r.Context(), host.ID, true)
	if err != nil {
		utils.WriteError(w, r, apperror.Internal(err, "failed to load event types"))
		return
	}
	if eventTypes == nil {
		eventTypes = []models.EventType{}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"host":        publicHost(host),
		"event_types": eventTypes,
	})
}

func (h *Handler) GetEventType(w http.ResponseWriter, r *http.Request) {
	host, err := h.host(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	eventType, err := h.store.Repositories().EventTypes.GetBySlug(r.Context(), host.ID, mux.Vars(r)["slug"])
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !eventType.IsActive) {
		utils.WriteError(w, r, apperror.NotFound("event type not found"))
		return
	}
	if err != nil {
		utils.WriteError(w, r, apperror.Internal(err, "failed to load event type"))
		return
	}
	questions := eventType.Questions
	if questions == nil {
		questions = []models.Question{}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"host":       publicHost(host),
		"event_type": eventType,
		"questions":  questions,
	})
}

func (h *Handler) GetSlots(w http.ResponseWriter, r *http.Request) {
	host, err := h.host(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		utils.WriteError(w, r, apperror.Validation("date is required").WithField("date", "is required"))
		return
	}

	tz := r.URL.Query().Get("timezone")
	var loc *time.Location
	if tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			utils.WriteError(w, r, apperror.Validation("unknown timezone %q", tz).WithField("timezone", "must be an IANA timezone"))
			return
		}
	}

	result, err := h.slots.Available(r.Context(), host.ID, mux.Vars(r)["slug"], date)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if loc == nil {
		tz = result.Schedule.TimeZone
		if loc, err = result.Schedule.Location(); err != nil {
			utils.WriteError(w, r, apperror.Internal(err, "schedule timezone is invalid"))
			return
		}
	}

	out := make([]Slot, len(result.Slots))
	for i, s := range result.Slots {
		out[i] = Slot{Start: s.Start, End: s.End, Time: s.Start.In(loc).Format("15:04")}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"date":     result.Date,
		"timezone": tz,
		"slots":    out,
	})
}
