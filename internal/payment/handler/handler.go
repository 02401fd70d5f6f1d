package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"campusreg/internal/payment/models"
	paymentservice "campusreg/internal/payment/service"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
	"campusreg/pkg/platform/httputil"
	"campusreg/pkg/requestcontext"
)

const maxCallbackBytes = 1 << 20

// Service defines the payment gate operations exposed over HTTP.
type Service interface {
	StartCheckout(ctx context.Context, req paymentservice.CheckoutRequest) (*models.Order, error)
	HandleCallback(ctx context.Context, provider string, payload []byte, headers http.Header) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID id.OrderID, userID id.UserID) (*models.Order, error)
	RetryRegistration(ctx context.Context, orderID id.OrderID) (*models.Order, error)
	GetOrder(ctx context.Context, orderID id.OrderID, userID id.UserID) (*models.Order, error)
}

// Handler wires checkout and webhook endpoints to the payment gate.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the authenticated checkout endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/events/{eventID}/checkout", h.HandleStartCheckout)
	r.Get("/orders/{orderID}", h.HandleGetOrder)
	r.Post("/orders/{orderID}/cancel", h.HandleCancelOrder)
	r.Post("/orders/{orderID}/retry", h.HandleRetryRegistration)
}

// RegisterWebhooks mounts gateway callbacks. They carry no bearer token and
// are authenticated by signature.
func (h *Handler) RegisterWebhooks(r chi.Router) {
	r.Post("/webhooks/payments/{provider}", h.HandleCallback)
}

// HandleStartCheckout handles POST /events/{eventID}/checkout.
func (h *Handler) HandleStartCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CheckoutRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	order, err := h.service.StartCheckout(ctx, paymentservice.CheckoutRequest{
		EventID:    eventID,
		Registrant: req.Registrant(userID),
		TeamID:     req.ParsedTeamID(),
		Metadata:   req.Metadata(),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "checkout not started",
			"request_id", requestID,
			"event_id", eventID.String(),
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromOrder(order))
}

// HandleGetOrder handles GET /orders/{orderID}.
func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	h.withOrder(w, r, func(ctx context.Context, orderID id.OrderID, userID id.UserID) (*models.Order, error) {
		return h.service.GetOrder(ctx, orderID, userID)
	})
}

// HandleCancelOrder handles POST /orders/{orderID}/cancel.
func (h *Handler) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	h.withOrder(w, r, h.service.CancelOrder)
}

// HandleRetryRegistration handles POST /orders/{orderID}/retry.
func (h *Handler) HandleRetryRegistration(w http.ResponseWriter, r *http.Request) {
	h.withOrder(w, r, func(ctx context.Context, orderID id.OrderID, userID id.UserID) (*models.Order, error) {
		if _, err := h.service.GetOrder(ctx, orderID, userID); err != nil {
			return nil, err
		}
		return h.service.RetryRegistration(ctx, orderID)
	})
}

func (h *Handler) withOrder(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orderID id.OrderID, userID id.UserID) (*models.Order, error)) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	orderID, err := id.ParseOrderID(chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	order, err := fn(ctx, orderID, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "order request failed",
			"request_id", requestcontext.RequestID(ctx),
			"order_id", orderID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOrder(order))
}

// HandleCallback handles POST /webhooks/payments/{provider}.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable callback body"))
		return
	}
	order, err := h.service.HandleCallback(ctx, provider, payload, r.Header)
	if err != nil {
		h.logger.WarnContext(ctx, "payment callback failed",
			"request_id", requestcontext.RequestID(ctx),
			"provider", provider,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := map[string]string{"status": "ignored"}
	if order != nil {
		resp = map[string]string{"status": string(order.State), "order_id": order.ID.String()}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
