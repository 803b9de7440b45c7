package availability

import (
	"net/http"

	"github.com/KAsare1/slotbook-server/cmd/utils"
	"github.com/gorilla/mux"
)

type AvailabilityHandler struct {
	store *Store
}

func NewAvailabilityHandler(store *Store) *AvailabilityHandler {
	return &AvailabilityHandler{store: store}
}

// RegisterRoutes expects a router that already authenticates the host.
func (h *AvailabilityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/availability", h.GetSchedules).Methods("GET")
	router.HandleFunc("/availability", h.CreateSchedule).Methods("POST")
	router.HandleFunc("/availability/{id}", h.GetSchedule).Methods("GET")
	router.HandleFunc("/availability/{id}", h.ReplaceSchedule).Methods("PUT")
	router.HandleFunc("/availability/{id}", h.DeleteSchedule).Methods("DELETE")
	router.HandleFunc("/availability/{id}/overrides", h.AddOverride).Methods("POST")
	router.HandleFunc("/availability/{id}/overrides/{overrideId}", h.RemoveOverride).Methods("DELETE")
}

func (h *AvailabilityHandler) GetSchedules(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	schedules, err := h.store.GetSchedules(r.Context(), hostID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"availability": schedules})
}

func (h *AvailabilityHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	schedule, err := h.store.GetSchedule(r.Context(), hostID, id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, schedule)
}

func (h *AvailabilityHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var in ScheduleInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	schedule, err := h.store.CreateSchedule(r.Context(), hostID, in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, schedule)
}

func (h *AvailabilityHandler) ReplaceSchedule(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var in ScheduleInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	schedule, err := h.store.ReplaceSchedule(r.Context(), hostID, id, in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, schedule)
}

func (h *AvailabilityHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := h.store.DeleteSchedule(r.Context(), hostID, id); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AvailabilityHandler) AddOverride(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	scheduleID, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var in OverrideInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	override, err := h.store.AddOverride(r.Context(), hostID, scheduleID, in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, override)
}

func (h *AvailabilityHandler) RemoveOverride(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	scheduleID, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	overrideID, err := utils.PathID(r, "overrideId")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := h.store.RemoveOverride(r.Context(), hostID, scheduleID, overrideID); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
