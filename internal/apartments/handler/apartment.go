package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"apartur/internal/apartments/service"
	apperrors "apartur/pkg/errors"
	httputil "apartur/pkg/http"
	"apartur/pkg/logger"
	"apartur/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ApartmentHandler struct {
	service service.ApartmentService
	admin   func(http.Handler) http.Handler
	log     *logger.Logger
}

// NewApartmentHandler guards price maintenance with admin, typically
// middleware.AdminSignature.
func NewApartmentHandler(service service.ApartmentService, admin func(http.Handler) http.Handler, log *logger.Logger) *ApartmentHandler {
	return &ApartmentHandler{
		service: service,
		admin:   admin,
		log:     log,
	}
}

func (h *ApartmentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	apartment, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, apartment); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ApartmentHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	apartments, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, apartments, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *ApartmentHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	filter := model.ApartmentFilter{
		Province:     query.Get("province"),
		Municipality: query.Get("municipality"),
		Query:        query.Get("q"),
		Limit:        limit,
		Offset:       offset,
	}
	if s := query.Get("min_capacity"); s != "" {
		filter.MinCapacity, err = strconv.Atoi(s)
		if err != nil {
			h.writeError(w, "Search", apperrors.InvalidInput("invalid min_capacity parameter: "+s))
			return
		}
	}

	apartments, total, err := h.service.Search(r.Context(), filter)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	if err := httputil.WritePaginated(w, apartments, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Search", "operation", "WritePaginated", "error", err)
	}
}

func (h *ApartmentHandler) Nearest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	lat, err := httputil.ParseFloat(r, "lat")
	if err != nil {
		h.writeError(w, "Nearest", err)
		return
	}
	lon, err := httputil.ParseFloat(r, "lon")
	if err != nil {
		h.writeError(w, "Nearest", err)
		return
	}

	query := r.URL.Query()
	limit := 0
	if s := query.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			h.writeError(w, "Nearest", apperrors.InvalidInput("invalid limit parameter: "+s))
			return
		}
	}
	maxKm := 0.0
	if query.Get("max_km") != "" {
		if maxKm, err = httputil.ParseFloat(r, "max_km"); err != nil {
			h.writeError(w, "Nearest", err)
			return
		}
	}

	results, err := h.service.Nearest(r.Context(), lat, lon, limit, maxKm)
	if err != nil {
		h.writeError(w, "Nearest", err)
		return
	}

	if err := httputil.WriteSuccess(w, results); err != nil {
		h.log.Error("failed to write success response", "handler", "Nearest", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ApartmentHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	ps := httprouter.ParamsFromContext(r.Context())

	var update model.PriceUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, "SetPrice", apperrors.InvalidInput("Invalid request body"))
		return
	}

	apartment, err := h.service.SetPrice(r.Context(), ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "SetPrice", err)
		return
	}

	if err := httputil.WriteSuccess(w, apartment); err != nil {
		h.log.Error("failed to write success response", "handler", "SetPrice", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ApartmentHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/apartments", h.GetAll)
	router.GET("/api/v1/apartments/search", h.Search)
	router.GET("/api/v1/apartments/nearest", h.Nearest)
	router.GET("/api/v1/apartments/id/:id", h.GetByID)
	router.Handler(http.MethodPut, "/api/v1/apartments/id/:id/price", h.admin(http.HandlerFunc(h.SetPrice)))
}

func (h *ApartmentHandler) writeError(w http.ResponseWriter, name string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
	}
}
