// Package service is the payment gate: it drives one checkout order per
// attempt through NotStarted → OrderCreated → PaymentSucceeded | PaymentFailed |
// PaymentCancelled and creates the registration once payment succeeds.
package service

import (
	"context"
	"log/slog"
	"net/http"

	"campusreg/internal/catalog"
	"campusreg/internal/notify"
	"campusreg/internal/payment/metrics"
	"campusreg/internal/payment/models"
	teammodels "campusreg/internal/team/models"
	id "campusreg/pkg/domain"
)

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, orderID id.OrderID) (*models.Order, error)
	FindByProviderRef(ctx context.Context, provider, ref string) (*models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID id.PaymentID) (*models.Order, error)
	Execute(ctx context.Context, orderID id.OrderID, fn func(*models.Order) error) (*models.Order, error)
}

// Gateway is a payment provider adapter.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, order *models.Order) (models.CheckoutSession, error)
	ParseCallback(payload []byte, headers http.Header) (models.CallbackEvent, error)
}

// Registrar creates the registration for a succeeded order and reports
// whether a user already holds one. RegisterPaid returns the existing
// registration's id with a CodeAlreadyRegistered error when a different
// payment already registered the user.
type Registrar interface {
	RegisterPaid(ctx context.Context, order *models.Order) (id.RegistrationID, error)
	IsRegistered(ctx context.Context, userID id.UserID, eventID id.EventID) (bool, error)
}

type EventCatalog interface {
	FindEvent(ctx context.Context, eventID id.EventID) (*catalog.Event, error)
}

// TeamLookup lets checkout refuse users who are not on the team they pay for.
type TeamLookup interface {
	FindByID(ctx context.Context, eventID id.EventID, teamID id.TeamID) (*teammodels.Team, error)
}

// Gate orchestrates checkout orders and gateway callbacks.
type Gate struct {
	orders    OrderStore
	catalog   EventCatalog
	registrar Registrar
	gateways  map[string]Gateway
	primary   string
	teams     TeamLookup
	notifier  notify.Notifier
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(g *Gate) {
		g.notifier = n
	}
}

func WithTeams(t TeamLookup) Option {
	return func(g *Gate) {
		g.teams = t
	}
}

// WithGateway accepts callbacks from an additional provider. New orders always
// go to the primary gateway.
func WithGateway(gw Gateway) Option {
	return func(g *Gate) {
		g.gateways[gw.Name()] = gw
	}
}

// New constructs a Gate whose new orders are created with primary.
func New(orders OrderStore, events EventCatalog, registrar Registrar, primary Gateway, opts ...Option) *Gate {
	g := &Gate{
		orders:    orders,
		catalog:   events,
		registrar: registrar,
		gateways:  map[string]Gateway{primary.Name(): primary},
		primary:   primary.Name(),
		notifier:  notify.Discard{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}
