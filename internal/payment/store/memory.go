package store

import (
	"context"
	"fmt"
	"sync"

	"campusreg/internal/payment/models"
	regmodels "campusreg/internal/registration/models"
	id "campusreg/pkg/domain"
	"campusreg/pkg/platform/sentinel"
)

type providerKey struct {
	provider string
	ref      string
}

// InMemoryOrders keeps orders behind one mutex; Execute holds it across the
// callback so validate-then-mutate is atomic.
type InMemoryOrders struct {
	mu         sync.Mutex
	orders     map[id.OrderID]*models.Order
	byProvider map[providerKey]id.OrderID
}

func NewInMemoryOrders() *InMemoryOrders {
	return &InMemoryOrders{
		orders:     make(map[id.OrderID]*models.Order),
		byProvider: make(map[providerKey]id.OrderID),
	}
}

func (s *InMemoryOrders) Create(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("order %s: %w", o.ID, sentinel.ErrAlreadyUsed)
	}
	s.putLocked(o)
	return nil
}

func (s *InMemoryOrders) FindByID(_ context.Context, orderID id.OrderID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, sentinel.ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (s *InMemoryOrders) FindByProviderRef(_ context.Context, provider, ref string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orderID, ok := s.byProvider[providerKey{provider, ref}]
	if !ok || ref == "" {
		return nil, fmt.Errorf("order ref %s/%s: %w", provider, ref, sentinel.ErrNotFound)
	}
	return cloneOrder(s.orders[orderID]), nil
}

func (s *InMemoryOrders) FindByPaymentID(_ context.Context, paymentID id.PaymentID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if !paymentID.IsNil() && o.PaymentID == paymentID {
			return cloneOrder(o), nil
		}
	}
	return nil, fmt.Errorf("order for payment %s: %w", paymentID, sentinel.ErrNotFound)
}

// Execute loads the order, applies fn to a copy and stores the copy only when
// fn succeeds.
func (s *InMemoryOrders) Execute(_ context.Context, orderID id.OrderID, fn func(*models.Order) error) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, sentinel.ErrNotFound)
	}
	working := cloneOrder(o)
	if err := fn(working); err != nil {
		return nil, err
	}
	s.putLocked(working)
	return cloneOrder(working), nil
}

func (s *InMemoryOrders) putLocked(o *models.Order) {
	cp := cloneOrder(o)
	s.orders[o.ID] = cp
	if cp.ProviderRef != "" {
		s.byProvider[providerKey{cp.Provider, cp.ProviderRef}] = cp.ID
	}
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	if o.TeamID != nil {
		t := *o.TeamID
		cp.TeamID = &t
	}
	if o.RegistrationID != nil {
		r := *o.RegistrationID
		cp.RegistrationID = &r
	}
	cp.Metadata = regmodels.Metadata{AdditionalInfo: o.Metadata.AdditionalInfo}
	if o.Metadata.Fields != nil {
		cp.Metadata.Fields = make(map[string]string, len(o.Metadata.Fields))
		for k, v := range o.Metadata.Fields {
			cp.Metadata.Fields[k] = v
		}
	}
	return &cp
}

// InMemoryRecords is the append-only payment record ledger.
type InMemoryRecords struct {
	mu             sync.RWMutex
	byPayment      map[id.PaymentID]models.PaymentRecord
	byRegistration map[id.RegistrationID]id.PaymentID
}

func NewInMemoryRecords() *InMemoryRecords {
	return &InMemoryRecords{
		byPayment:      make(map[id.PaymentID]models.PaymentRecord),
		byRegistration: make(map[id.RegistrationID]id.PaymentID),
	}
}

// Create rejects a payment id that was already recorded, and a second
// non-duplicate record for the same registration, with sentinel.ErrAlreadyUsed.
func (s *InMemoryRecords) Create(_ context.Context, rec *models.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPayment[rec.PaymentID]; ok {
		return fmt.Errorf("payment %s: %w", rec.PaymentID, sentinel.ErrAlreadyUsed)
	}
	if rec.Duplicate {
		s.byPayment[rec.PaymentID] = *rec
		return nil
	}
	if _, ok := s.byRegistration[rec.RegistrationID]; ok {
		return fmt.Errorf("registration %s already paid: %w", rec.RegistrationID, sentinel.ErrAlreadyUsed)
	}
	s.byPayment[rec.PaymentID] = *rec
	s.byRegistration[rec.RegistrationID] = rec.PaymentID
	return nil
}

func (s *InMemoryRecords) FindByPaymentID(_ context.Context, paymentID id.PaymentID) (*models.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byPayment[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", paymentID, sentinel.ErrNotFound)
	}
	return &rec, nil
}

func (s *InMemoryRecords) FindByRegistration(_ context.Context, regID id.RegistrationID) (*models.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paymentID, ok := s.byRegistration[regID]
	if !ok {
		return nil, fmt.Errorf("payment for registration %s: %w", regID, sentinel.ErrNotFound)
	}
	rec := s.byPayment[paymentID]
	return &rec, nil
}
