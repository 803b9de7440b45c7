package booking

import (
	"bytes"
	"net/http"
	"time"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/KAsare1/slotbook-server/cmd/utils"
	"github.com/KAsare1/slotbook-server/repository"
	"github.com/gorilla/mux"
)

type Handler struct {
	orchestrator *Orchestrator
	hosts        repository.Hosts
}

func NewHandler(orchestrator *Orchestrator, hosts repository.Hosts) *Handler {
	return &Handler{orchestrator: orchestrator, hosts: hosts}
}

// RegisterPublicRoutes mounts the booker actions. Knowing the uid is the credential.
func (h *Handler) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/public/book", h.Book).Methods("POST")
	router.HandleFunc("/bookings/{uid}", h.GetBooking).Methods("GET")
	router.HandleFunc("/bookings/{uid}/cancel", h.CancelBooking).Methods("POST")
	router.HandleFunc("/bookings/{uid}/reschedule", h.RescheduleBooking).Methods("POST")
	router.HandleFunc("/bookings/{uid}/ics", h.ExportBooking).Methods("GET")
}

// RegisterHostRoutes expects a router that already authenticates the host.
func (h *Handler) RegisterHostRoutes(router *mux.Router) {
	router.HandleFunc("/bookings", h.ListBookings).Methods("GET")
	router.HandleFunc("/me/bookings/{uid}/cancel", h.HostCancelBooking).Methods("POST")
	router.HandleFunc("/me/bookings/{uid}/reschedule", h.HostRescheduleBooking).Methods("POST")
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	booking, err := h.orchestrator.Book(r.Context(), req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, booking)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	view, err := h.orchestrator.Detail(r.Context(), mux.Vars(r)["uid"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if r.ContentLength != 0 {
		if err := utils.ParseJSON(r, &req); err != nil {
			utils.WriteError(w, r, err)
			return
		}
	}
	booking, err := h.orchestrator.Cancel(r.Context(), mux.Vars(r)["uid"], req.Reason)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, booking)
}

func (h *Handler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	var req RescheduleRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	booking, err := h.orchestrator.Reschedule(r.Context(), mux.Vars(r)["uid"], req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, booking)
}

func (h *Handler) ExportBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.orchestrator.Get(r.Context(), mux.Vars(r)["uid"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	host, err := h.hosts.GetByID(r.Context(), booking.HostID)
	if err != nil {
		utils.WriteError(w, r, apperror.Internal(err, "failed to load host"))
		return
	}

	var buf bytes.Buffer
	if err := WriteICS(&buf, booking, host, time.Now()); err != nil {
		utils.WriteError(w, r, apperror.Internal(err, "failed to render calendar"))
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+booking.UID+`.ics"`)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	filter, err := ParseFilter(r.URL.Query().Get("type"))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	page, pageSize := utils.Pagination(r)
	result, err := h.orchestrator.ListViews(r.Context(), hostID, filter, page, pageSize)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bookings":    result.Bookings,
		"type":        filter,
		"total":       result.Total,
		"page":        result.Page,
		"page_size":   result.PageSize,
		"total_pages": utils.TotalPages(result.Total, result.PageSize),
	})
}

func (h *Handler) HostCancelBooking(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req CancelRequest
	if r.ContentLength != 0 {
		if err := utils.ParseJSON(r, &req); err != nil {
			utils.WriteError(w, r, err)
			return
		}
	}
	booking, err := h.orchestrator.CancelForHost(r.Context(), hostID, mux.Vars(r)["uid"], req.Reason)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, booking)
}

func (h *Handler) HostRescheduleBooking(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req RescheduleRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	booking, err := h.orchestrator.RescheduleForHost(r.Context(), hostID, mux.Vars(r)["uid"], req)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, booking)
}
