package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"tripshare/internal/bookings/service"
	apperrors "tripshare/pkg/errors"
	httputil "tripshare/pkg/http"
	"tripshare/pkg/logger"
	"tripshare/pkg/middleware"
	"tripshare/pkg/model"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// transition is a state-changing booking call that takes no body.
type transition func(ctx context.Context, actor string, id uint64) (*model.Result, error)

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreateBookingRequest
	if !h.decode(w, r, "Create", &req) {
		return
	}

	result, err := h.service.Create(r.Context(), actor(r), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := h.bookingID(w, ps, "GetByID")
	if !ok {
		return
	}

	booking, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := h.bookingID(w, ps, "Update")
	if !ok {
		return
	}
	var req model.UpdateBookingRequest
	if !h.decode(w, r, "Update", &req) {
		return
	}

	result, err := h.service.Update(r.Context(), actor(r), id, &req)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}
	h.writeSuccess(w, "Update", result)
}

func (h *BookingHandler) Participate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := h.bookingID(w, ps, "Participate")
	if !ok {
		return
	}
	var req model.ParticipateRequest
	if !h.decode(w, r, "Participate", &req) {
		return
	}

	result, err := h.service.Participate(r.Context(), actor(r), id, &req)
	if err != nil {
		h.writeError(w, "Participate", err)
		return
	}
	h.writeSuccess(w, "Participate", result)
}

func (h *BookingHandler) InitializeEscrow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, "InitializeEscrow", h.service.InitializeEscrow)
}

func (h *BookingHandler) FundEscrow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, "FundEscrow", h.service.FundEscrow)
}

func (h *BookingHandler) OptIn(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, "OptIn", h.service.OptIn)
}

func (h *BookingHandler) CancelParticipation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, "CancelParticipation", h.service.CancelParticipation)
}

func (h *BookingHandler) Start(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, "Start", h.service.Start)
}

func (h *BookingHandler) Finish(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, "Finish", h.service.Finish)
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, "Delete", h.service.Delete)
}

func (h *BookingHandler) CloseOut(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, "CloseOut", h.service.CloseOut)
}

func (h *BookingHandler) GetParticipant(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := h.bookingID(w, ps, "GetParticipant")
	if !ok {
		return
	}

	participation, err := h.service.GetParticipant(r.Context(), id, ps.ByName("address"))
	if err != nil {
		h.writeError(w, "GetParticipant", err)
		return
	}
	h.writeSuccess(w, "GetParticipant", participation)
}

func (h *BookingHandler) Balance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	balance, err := h.service.Balance(r.Context(), ps.ByName("address"))
	if err != nil {
		h.writeError(w, "Balance", err)
		return
	}
	h.writeSuccess(w, "Balance", balance)
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, ps httprouter.Params, name string, call transition) {
	id, ok := h.bookingID(w, ps, name)
	if !ok {
		return
	}

	result, err := call(r.Context(), actor(r), id)
	if err != nil {
		h.writeError(w, name, err)
		return
	}
	h.writeSuccess(w, name, result)
}

func (h *BookingHandler) bookingID(w http.ResponseWriter, ps httprouter.Params, name string) (uint64, bool) {
	id, err := httputil.ExtractUint("booking id", ps.ByName("id"))
	if err != nil {
		h.writeError(w, name, err)
		return 0, false
	}
	return id, true
}

func (h *BookingHandler) decode(w http.ResponseWriter, r *http.Request, name string, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, name, apperrors.InvalidInput("Invalid request body: "+err.Error()))
		return false
	}
	return true
}

func (h *BookingHandler) writeSuccess(w http.ResponseWriter, name string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, name string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
	}
}

func actor(r *http.Request) string {
	return r.Header.Get(middleware.AccountHeader)
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/bookings/id/:id", h.Update)
	router.DELETE("/api/v1/bookings/id/:id", h.Delete)
	router.POST("/api/v1/bookings/id/:id/escrow", h.InitializeEscrow)
	router.POST("/api/v1/bookings/id/:id/escrow/fund", h.FundEscrow)
	router.POST("/api/v1/bookings/id/:id/optin", h.OptIn)
	router.POST("/api/v1/bookings/id/:id/participants", h.Participate)
	router.DELETE("/api/v1/bookings/id/:id/participants", h.CancelParticipation)
	router.GET("/api/v1/bookings/id/:id/participants/:address", h.GetParticipant)
	router.POST("/api/v1/bookings/id/:id/closeout", h.CloseOut)
	router.POST("/api/v1/bookings/id/:id/start", h.Start)
	router.POST("/api/v1/bookings/id/:id/finish", h.Finish)
	router.GET("/api/v1/accounts/:address/balance", h.Balance)
}
