// Package http exposes the purchase API over chi.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/pkg/logger"
	"github.com/cinetix/cinetix/internal/service"
)

var validate = validator.New()

type Handler struct {
	ticketing *service.Ticketing
}

func NewHandler(ticketing *service.Ticketing) *Handler {
	return &Handler{ticketing: ticketing}
}

type seatRequest struct {
	Row    int `json:"row" validate:"required,min=1,max=100"`
	Number int `json:"number" validate:"required,min=1,max=500"`
}

type purchaseRequest struct {
	CustomerID     string        `json:"customer_id" validate:"required,uuid"`
	ShowtimeID     string        `json:"showtime_id" validate:"required,uuid"`
	Seats          []seatRequest `json:"seats" validate:"required,min=1,max=10,dive"`
	PaymentMethod  string        `json:"payment_method" validate:"required,oneof=card cash"`
	CardNumber     string        `json:"card_number" validate:"required_if=PaymentMethod card"`
	CardHolderName string        `json:"card_holder_name" validate:"required_if=PaymentMethod card"`
}

type purchaseResponse struct {
	SagaID        uuid.UUID     `json:"saga_id"`
	TicketID      uuid.UUID     `json:"ticket_id"`
	TicketNumber  string        `json:"ticket_number"`
	ReservationID uuid.UUID     `json:"reservation_id"`
	PaymentID     uuid.UUID     `json:"payment_id"`
	MovieTitle    string        `json:"movie_title"`
	ScreeningTime time.Time     `json:"screening_time"`
	Seats         []domain.Seat `json:"seats"`
	AmountCents   int64         `json:"amount_cents"`
	Currency      string        `json:"currency"`
}

type errorResponse struct {
	Error   string    `json:"error"`
	Message string    `json:"message"`
	SagaID  uuid.UUID `json:"saga_id,omitzero"`
}

// Purchase drives a whole ticket purchase synchronously and returns the
// issued ticket, or the saga id of the failed (and compensated) attempt.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "customer_id is not a uuid")
		return
	}
	showtimeID, err := uuid.Parse(req.ShowtimeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "showtime_id is not a uuid")
		return
	}
	seats := make([]domain.Seat, 0, len(req.Seats))
	for _, s := range req.Seats {
		seat, err := domain.NewSeat(s.Row, s.Number)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_seat", err.Error())
			return
		}
		seats = append(seats, seat)
	}

	res, err := h.ticketing.Purchase(r.Context(), service.PurchaseRequest{
		CustomerID:     customerID,
		ShowtimeID:     showtimeID,
		Seats:          seats,
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		CardNumber:     req.CardNumber,
		CardHolderName: req.CardHolderName,
	})
	if err != nil {
		h.writePurchaseError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, purchaseResponse{
		SagaID:        res.SagaID,
		TicketID:      res.TicketID,
		TicketNumber:  res.TicketNumber,
		ReservationID: res.ReservationID,
		PaymentID:     res.PaymentID,
		MovieTitle:    res.MovieTitle,
		ScreeningTime: res.ScreeningTime,
		Seats:         res.Seats,
		AmountCents:   res.TotalPrice.Amount(),
		Currency:      res.TotalPrice.Currency(),
	})
}

// SagaStatus reports a saga's progress, including the per-step audit log.
func (h *Handler) SagaStatus(w http.ResponseWriter, r *http.Request) {
	sagaID, err := uuid.Parse(chi.URLParam(r, "sagaID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "sagaID is not a uuid")
		return
	}

	view, err := h.ticketing.SagaStatus(r.Context(), sagaID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "saga not found")
			return
		}
		logger.From(r.Context()).Error("saga status query failed", "saga_id", sagaID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "saga status query failed")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) writePurchaseError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *service.PurchaseError
	if errors.As(err, &perr) {
		// The saga already compensated; 409 regardless of which step failed,
		// the response carries the reason and the queryable saga id.
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   "purchase_failed",
			Message: perr.Reason,
			SagaID:  perr.SagaID,
		})
		return
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		logger.From(r.Context()).Error("purchase failed before saga start", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "purchase failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}
