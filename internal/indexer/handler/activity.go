package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"tripshare/internal/indexer/service"
	httputil "tripshare/pkg/http"
	"tripshare/pkg/logger"
)

type ActivityHandler struct {
	service service.ActivityService
	log     *logger.Logger
}

func NewActivityHandler(service service.ActivityService, log *logger.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		log:     log,
	}
}

func (h *ActivityHandler) ListByBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := httputil.ExtractUint("booking id", ps.ByName("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	activities, total, err := h.service.ListByBooking(r.Context(), id, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := httputil.WritePaginated(w, activities, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListByBooking", "operation", "WritePaginated", "error", err)
	}
}

func (h *ActivityHandler) writeError(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "ListByBooking", "operation", "WriteError", "error", writeErr)
	}
}

func (h *ActivityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/bookings/id/:id/activity", h.ListByBooking)
}
