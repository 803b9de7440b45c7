package eventtype

import (
	"net/http"

	"github.com/KAsare1/slotbook-server/cmd/utils"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/event-types", h.ListEventTypes).Methods("GET")
	router.HandleFunc("/event-types", h.CreateEventType).Methods("POST")
	router.HandleFunc("/event-types/{id}", h.GetEventType).Methods("GET")
	router.HandleFunc("/event-types/{id}", h.UpdateEventType).Methods("PUT")
	router.HandleFunc("/event-types/{id}", h.DeleteEventType).Methods("DELETE")
}

func (h *Handler) ListEventTypes(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	eventTypes, err := h.service.List(r.Context(), hostID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"event_types": eventTypes})
}

func (h *Handler) GetEventType(w http.ResponseWriter, r *http.Request) {
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
	eventType, err := h.service.Get(r.Context(), hostID, id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, eventType)
}

func (h *Handler) CreateEventType(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var in Input
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	eventType, err := h.service.Create(r.Context(), hostID, in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, eventType)
}

func (h *Handler) UpdateEventType(w http.ResponseWriter, r *http.Request) {
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
	var in Input
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	eventType, err := h.service.Update(r.Context(), hostID, id, in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, eventType)
}

func (h *Handler) DeleteEventType(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.Delete(r.Context(), hostID, id); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
