package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"apartur/internal/reservations/service"
	apperrors "apartur/pkg/errors"
	httputil "apartur/pkg/http"
	"apartur/pkg/logger"
	"apartur/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

// reservationRequest accepts plain calendar dates for entry and exit.
type reservationRequest struct {
	ApartmentID string  `json:"apartment_id"`
	UserID      string  `json:"user_id"`
	GuestName   string  `json:"guest_name"`
	GuestPhone  string  `json:"guest_phone"`
	GuestEmail  string  `json:"guest_email"`
	Entry       string  `json:"entry"`
	Exit        string  `json:"exit"`
	Guests      int     `json:"guests"`
	Price       float64 `json:"price"`
	Status      string  `json:"status"`
}

type reservationUpdateRequest struct {
	GuestName  string   `json:"guest_name"`
	GuestPhone string   `json:"guest_phone"`
	GuestEmail string   `json:"guest_email"`
	Entry      string   `json:"entry"`
	Exit       string   `json:"exit"`
	Guests     *int     `json:"guests"`
	Price      *float64 `json:"price"`
	Status     string   `json:"status"`
}

func (req *reservationRequest) toModel() (*model.Reservation, error) {
	reservation := &model.Reservation{
		ApartmentID: req.ApartmentID,
		UserID:      req.UserID,
		GuestName:   req.GuestName,
		GuestPhone:  req.GuestPhone,
		GuestEmail:  req.GuestEmail,
		Guests:      req.Guests,
		Price:       req.Price,
		Status:      req.Status,
	}
	if req.Entry == "" || req.Exit == "" {
		return nil, apperrors.InvalidInput("entry and exit are required")
	}
	entry, err := httputil.ParseDate("entry", req.Entry)
	if err != nil {
		return nil, err
	}
	exit, err := httputil.ParseDate("exit", req.Exit)
	if err != nil {
		return nil, err
	}
	reservation.Entry, reservation.Exit = entry, exit
	return reservation, nil
}

func (req *reservationUpdateRequest) toModel() (*model.ReservationUpdate, error) {
	update := &model.ReservationUpdate{
		GuestName:  req.GuestName,
		GuestPhone: req.GuestPhone,
		GuestEmail: req.GuestEmail,
		Guests:     req.Guests,
		Price:      req.Price,
		Status:     req.Status,
	}
	if req.Entry != "" {
		entry, err := httputil.ParseDate("entry", req.Entry)
		if err != nil {
			return nil, err
		}
		update.Entry = &entry
	}
	if req.Exit != "" {
		exit, err := httputil.ParseDate("exit", req.Exit)
		if err != nil {
			return nil, err
		}
		update.Exit = &exit
	}
	return update, nil
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	reservation, err := req.toModel()
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := h.service.Create(r.Context(), reservation); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	var reservations []*model.Reservation
	var total int64
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		reservations, total, err = h.service.ListByUser(r.Context(), userID, limit, offset)
	} else {
		reservations, total, err = h.service.GetAll(r.Context(), limit, offset)
	}
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	apartmentID := r.URL.Query().Get("apartment_id")
	if apartmentID == "" {
		h.writeError(w, "Search", apperrors.InvalidInput("'apartment_id' query parameter is required"))
		return
	}

	from, err := httputil.ParseOptionalDate(r, "from")
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}
	to, err := httputil.ParseOptionalDate(r, "to")
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	reservations, total, err := h.service.SearchByApartment(r.Context(), apartmentID, from, to, limit, offset)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Search", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	apartmentID := query.Get("apartment_id")
	entryStr, exitStr := query.Get("entry"), query.Get("exit")
	if apartmentID == "" || entryStr == "" || exitStr == "" {
		h.writeError(w, "Availability", apperrors.InvalidInput("'apartment_id', 'entry' and 'exit' query parameters are required"))
		return
	}

	entry, err := httputil.ParseDate("entry", entryStr)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	exit, err := httputil.ParseDate("exit", exitStr)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	result, err := h.service.CheckAvailability(r.Context(), apartmentID, entry, exit, query.Get("exclude_id"))
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Availability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req reservationUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Update", apperrors.InvalidInput("Invalid request body"))
		return
	}

	updates, err := req.toModel()
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	reservation, err := h.service.Update(r.Context(), ps.ByName("id"), updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.changeStatus(w, r, ps, "Confirm", h.service.Confirm)
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.changeStatus(w, r, ps, "Cancel", h.service.Cancel)
}

func (h *ReservationHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.changeStatus(w, r, ps, "Complete", h.service.Complete)
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations", h.GetAll)
	router.GET("/api/v1/reservations/search", h.Search)
	router.GET("/api/v1/reservations/availability", h.Availability)
	router.GET("/api/v1/reservations/id/:id", h.GetByID)
	router.PATCH("/api/v1/reservations/id/:id", h.Update)
	router.DELETE("/api/v1/reservations/id/:id", h.Delete)
	router.POST("/api/v1/reservations/id/:id/confirm", h.Confirm)
	router.POST("/api/v1/reservations/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/reservations/id/:id/complete", h.Complete)
}

func (h *ReservationHandler) changeStatus(
	w http.ResponseWriter,
	r *http.Request,
	ps httprouter.Params,
	name string,
	action func(ctx context.Context, id string) (*model.Reservation, error),
) {
	reservation, err := action(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, name string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
	}
}
