// Package service is the registration orchestrator: the only writer of
// registration records, team rosters and the membership index.
//
// Every mutation runs inside RegistrationTx.RunInTx, serialized per event, so
// the "already registered" check and the write it guards observe the same
// state. A record is created pending, the membership index is written, and
// only then is the record confirmed.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"campusreg/internal/catalog"
	"campusreg/internal/datasync"
	"campusreg/internal/identity"
	"campusreg/internal/notify"
	paymodels "campusreg/internal/payment/models"
	"campusreg/internal/registration/metrics"
	"campusreg/internal/registration/models"
	teammodels "campusreg/internal/team/models"
	id "campusreg/pkg/domain"
)

type RegistrationStore interface {
	Create(ctx context.Context, r *models.Registration) error
	Update(ctx context.Context, r *models.Registration) error
	FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	FindConfirmed(ctx context.Context, eventID id.EventID, userID id.UserID) (*models.Registration, error)
	ListByEvent(ctx context.Context, eventID id.EventID) ([]*models.Registration, error)
}

type TeamStore interface {
	CreateIfNameAvailable(ctx context.Context, team *teammodels.Team) error
	FindByID(ctx context.Context, eventID id.EventID, teamID id.TeamID) (*teammodels.Team, error)
	FindByName(ctx context.Context, eventID id.EventID, name string) (*teammodels.Team, error)
	FindByMember(ctx context.Context, eventID id.EventID, userID id.UserID) (*teammodels.Team, error)
	AddMember(ctx context.Context, teamID id.TeamID, member teammodels.Member) error
	RemoveMember(ctx context.Context, teamID id.TeamID, userID id.UserID) error
	DeleteIfEmpty(ctx context.Context, teamID id.TeamID) (bool, error)
	SearchByPrefix(ctx context.Context, eventID id.EventID, prefix string, limit int) ([]*teammodels.Team, error)
}

// MembershipIndex is the bidirectional user↔event index.
type MembershipIndex interface {
	AddMembership(ctx context.Context, userID id.UserID, eventID id.EventID) error
	RemoveMembership(ctx context.Context, userID id.UserID, eventID id.EventID) error
	IsMember(ctx context.Context, userID id.UserID, eventID id.EventID) (bool, error)
}

type PaymentRecordStore interface {
	Create(ctx context.Context, rec *paymodels.PaymentRecord) error
}

// PaymentVerifier confirms that paymentID is a succeeded payment made by userID
// for eventID and returns the amount paid.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, paymentID id.PaymentID, userID id.UserID, eventID id.EventID) (catalog.Money, error)
}

type EventCatalog interface {
	FindEvent(ctx context.Context, eventID id.EventID) (*catalog.Event, error)
}

type UserDirectory interface {
	FindUser(ctx context.Context, userID id.UserID) (*identity.User, error)
}

// ChangePublisher pushes fresh collections to live subscribers.
type ChangePublisher interface {
	Changed(ctx context.Context, topics ...datasync.Topic)
}

// Stores is the set of stores bound to one transaction.
type Stores struct {
	Registrations RegistrationStore
	Teams         TeamStore
	Memberships   MembershipIndex
	Payments      PaymentRecordStore
}

// RegistrationTx runs fn atomically with respect to other mutations of the same
// event. Implementations pass fn a context that carries their transaction.
type RegistrationTx interface {
	RunInTx(ctx context.Context, eventID id.EventID, fn func(ctx context.Context, stores Stores) error) error
}

// Service orchestrates registration, team and cancellation flows.
type Service struct {
	tx        RegistrationTx
	reads     Stores
	catalog   EventCatalog
	directory UserDirectory
	verifier  PaymentVerifier
	notifier  notify.Notifier
	publisher ChangePublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithPublisher(p ChangePublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithDirectory(d UserDirectory) Option {
	return func(s *Service) {
		s.directory = d
	}
}

// WithPaymentVerifier enables RegisterForPaidEvent. Without it paid
// registrations fail verification.
func WithPaymentVerifier(v PaymentVerifier) Option {
	return func(s *Service) {
		s.verifier = v
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service. reads is used for lookups outside a transaction.
func New(tx RegistrationTx, reads Stores, events EventCatalog, opts ...Option) *Service {
	s := &Service{
		tx:       tx,
		reads:    reads,
		catalog:  events,
		notifier: notify.Discard{},
		logger:   slog.Default(),
		tracer:   otel.Tracer("campusreg/registration"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
