// README: Payment service; initialization and idempotent confirmation.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chomp/internal/logging"
	"chomp/internal/metrics"
	"chomp/internal/types"
)

var (
	ErrNotFound = errors.New("payment not found")
	// ErrDeclined wraps the gateway's verdict when a reference did not pay.
	ErrDeclined = errors.New("payment declined")
)

// Records is the persistence the service needs; the Postgres Store
// implements it.
type Records interface {
	Create(ctx context.Context, p *Payment) error
	GetByReference(ctx context.Context, reference string) (*Payment, error)
	MarkSuccess(ctx context.Context, reference, channel string, paidAt *time.Time) (bool, error)
	MarkFailed(ctx context.Context, reference string) (bool, error)
}

// OrderConfirmer moves a paid order forward.
type OrderConfirmer interface {
	ConfirmPaid(ctx context.Context, orderID types.ID) error
}

// AdActivator creates the campaign a successful ad payment bought.
type AdActivator interface {
	ActivateForPayment(ctx context.Context, paymentID, vendorID types.ID, packageName string, packagePrice int64) error
}

type Service struct {
	store   Records
	gateway Gateway
	orders  OrderConfirmer
	ads     AdActivator
}

func NewService(store Records, gateway Gateway, orders OrderConfirmer, ads AdActivator) *Service {
	return &Service{store: store, gateway: gateway, orders: orders, ads: ads}
}

// InitializeOrder registers a pending payment for an order and returns the
// gateway's authorization URL for the customer to complete.
func (s *Service) InitializeOrder(ctx context.Context, orderID types.ID, amount int64, email string) (string, *Payment, error) {
	p := &Payment{
		ID:        types.ID(uuid.NewString()),
		Reference: newReference(),
		Amount:    amount,
		Status:    StatusPending,
		Type:      TypeOrder,
		OrderID:   &orderID,
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, p); err != nil {
		return "", nil, err
	}
	authURL, err := s.gateway.Initialize(ctx, p.Reference, p.Amount, email)
	if err != nil {
		return "", nil, err
	}
	return authURL, p, nil
}

// InitializeAd registers a pending ad-package purchase for a vendor.
func (s *Service) InitializeAd(ctx context.Context, vendorID types.ID, packageName string, packagePrice int64, email string) (string, *Payment, error) {
	p := &Payment{
		ID:           types.ID(uuid.NewString()),
		Reference:    newReference(),
		Amount:       packagePrice,
		Status:       StatusPending,
		Type:         TypeAd,
		VendorID:     &vendorID,
		PackageName:  packageName,
		PackagePrice: packagePrice,
		CreatedAt:    time.Now(),
	}
	if err := s.store.Create(ctx, p); err != nil {
		return "", nil, err
	}
	authURL, err := s.gateway.Initialize(ctx, p.Reference, p.Amount, email)
	if err != nil {
		return "", nil, err
	}
	return authURL, p, nil
}

// Confirm verifies a reference with the gateway and acts on first success.
// Safe under at-least-once delivery: an already-processed reference returns
// the stored record without reprocessing, and the conditional success flip
// picks a single winner among concurrent deliveries.
func (s *Service) Confirm(ctx context.Context, reference string) (*Payment, error) {
	p, err := s.store.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusSuccess {
		metrics.PaymentConfirms.WithLabelValues("duplicate").Inc()
		return p, nil
	}
	if p.Status == StatusFailed {
		return p, ErrDeclined
	}

	res, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		// gateway unreachable or errored; surface its message, never invent
		// an outcome
		return p, err
	}
	if res.Status != "success" {
		_, _ = s.store.MarkFailed(ctx, reference)
		metrics.PaymentConfirms.WithLabelValues("failed").Inc()
		p.Status = StatusFailed
		return p, fmt.Errorf("%w: gateway status %q", ErrDeclined, res.Status)
	}

	won, err := s.store.MarkSuccess(ctx, reference, res.Channel, res.PaidAt)
	if err != nil {
		return nil, err
	}
	if !won {
		// a concurrent delivery processed it; answer with the stored result
		metrics.PaymentConfirms.WithLabelValues("duplicate").Inc()
		return s.store.GetByReference(ctx, reference)
	}

	metrics.PaymentConfirms.WithLabelValues("success").Inc()
	logging.Log(logging.Fields{
		Component: "payment",
		Reference: reference,
		Status:    "confirmed",
	})

	switch p.Type {
	case TypeOrder:
		if p.OrderID != nil {
			if err := s.orders.ConfirmPaid(ctx, *p.OrderID); err != nil {
				// the payment is recorded; the order transition can be
				// retried by the caller
				logging.Log(logging.Fields{
					Component: "payment",
					Reference: reference,
					OrderID:   string(*p.OrderID),
					Status:    "order_confirm_failed",
					Error:     err.Error(),
				})
			}
		}
	case TypeAd:
		if p.VendorID != nil {
			if err := s.ads.ActivateForPayment(ctx, p.ID, *p.VendorID, p.PackageName, p.PackagePrice); err != nil {
				logging.Log(logging.Fields{
					Component: "payment",
					Reference: reference,
					Status:    "ad_activation_failed",
					Error:     err.Error(),
				})
			}
		}
	}

	return s.store.GetByReference(ctx, reference)
}

// Lookup reads a payment record without touching the gateway.
func (s *Service) Lookup(ctx context.Context, reference string) (*Payment, error) {
	return s.store.GetByReference(ctx, reference)
}

func newReference() string {
	return "chp_" + uuid.NewString()
}
