// README: Order aggregate and status definitions.
package order

import (
	"time"

	"chomp/internal/types"
)

type Status string

const (
	StatusNone           Status = "none"
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusPickedUp       Status = "picked_up"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

type PaymentStatus string

const (
	// PaymentAwaiting covers the gateway's pre-confirmation window; the
	// source design sometimes called this "awaiting_payment" as an order
	// status, normalized here to pending + awaiting.
	PaymentAwaiting PaymentStatus = "awaiting"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentCash     PaymentStatus = "on_delivery"
)

// AllowedTransitions represents the order lifecycle as code. Forward-only,
// with cancellation reachable from every non-terminal state.
var AllowedTransitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusPickedUp, StatusOutForDelivery, StatusCancelled},
	StatusPickedUp:       {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transitions leave the status.
func Terminal(s Status) bool {
	return len(AllowedTransitions[s]) == 0
}

type Order struct {
	ID            types.ID
	Code          string
	CustomerID    types.ID
	VendorID      types.ID
	RiderID       *types.ID
	Status        Status
	StatusVersion int

	// Money, whole NGN. TotalAmount = OriginalAmount - DiscountAmount.
	TotalAmount           int64
	OriginalAmount        int64
	DiscountAmount        int64
	DeliveryFee           int64
	ServiceFee            int64
	VAT                   int64
	LoyaltyPointsRedeemed int

	DeliveryAddress string
	City            string
	State           string
	Zip             string
	DistanceKm      float64
	GeoConfidence   float64

	PaymentStatus PaymentStatus
	PaymentMethod string

	CreatedAt             time.Time
	UpdatedAt             time.Time
	EstimatedDeliveryTime *time.Time
	ActualDeliveryTime    *time.Time

	Items []Item
}

// Item is a menu snapshot captured at order time; later menu edits must not
// alter it.
type Item struct {
	ID        types.ID
	OrderID   types.ID
	Name      string
	UnitPrice int64
	Quantity  int
}

// Event is one row of the append-only status audit log.
type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}
