// README: Order service implements checkout, state transitions, and
// persistence orchestration.
package order

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"

	"chomp/internal/geo"
	"chomp/internal/metrics"
	"chomp/internal/modules/loyalty"
	"chomp/internal/modules/pricing"
	"chomp/internal/notify"
	"chomp/internal/types"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("order not found")
	ErrConflict          = errors.New("order state conflict")
	ErrVendorNotFound    = errors.New("vendor not found")
	ErrBadRequest        = errors.New("bad request")
)

// StatusUpdate carries the side columns a transition may set alongside the
// status itself.
type StatusUpdate struct {
	RiderID       *types.ID
	PaymentStatus *PaymentStatus
}

// Storage is what the service needs from persistence. The Postgres Store
// implements it; tests use an in-memory one.
type Storage interface {
	CreateWithItems(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, upd StatusUpdate) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	PromoteExpired(ctx context.Context, now time.Time) ([]types.ID, error)
	VendorPoint(ctx context.Context, vendorID types.ID) (types.Point, bool, error)
	ListByCustomer(ctx context.Context, customerID types.ID, limit int) ([]Order, error)
	ListByVendor(ctx context.Context, vendorID types.ID, limit int) ([]Order, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address, city, state string) geo.Location
}

type Router interface {
	RoadDistance(ctx context.Context, a, b types.Point) (float64, time.Duration)
}

type Loyalty interface {
	Balance(ctx context.Context, customerID types.ID) (int, error)
	Redeem(ctx context.Context, customerID types.ID, points int) error
	AwardBestEffort(ctx context.Context, customerID types.ID, points int)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, e notify.Event)
}

type Service struct {
	store    Storage
	geocoder Geocoder
	router   Router
	loyalty  Loyalty
	events   Publisher
}

func NewService(store Storage, geocoder Geocoder, router Router, loyalty Loyalty, events Publisher) *Service {
	return &Service{store: store, geocoder: geocoder, router: router, loyalty: loyalty, events: events}
}

type ItemInput struct {
	Name      string
	UnitPrice int64
	Quantity  int
}

type QuoteQuery struct {
	CustomerID   types.ID
	VendorID     types.ID
	Address      string
	City         string
	State        string
	Subtotal     int64
	ItemCount    int
	RedeemPoints bool
}

// QuoteResult pairs the price breakdown with the resolved geography so the
// checkout UI can show both.
type QuoteResult struct {
	Quote         pricing.Quote
	DistanceKm    float64
	GeoConfidence float64
}

type CheckoutCommand struct {
	CustomerID    types.ID
	VendorID      types.ID
	Items         []ItemInput
	Address       string
	City          string
	State         string
	Zip           string
	PaymentMethod string // "gateway" or "cash"
	RedeemPoints  bool
}

type ActorCommand struct {
	OrderID   types.ID
	ActorType string
	ActorID   *types.ID
}

type RiderCommand struct {
	OrderID types.ID
	RiderID types.ID
}

type CancelCommand struct {
	OrderID   types.ID
	ActorType string
	Reason    string
}

// Quote resolves geography and prices a prospective order. Pure aside from
// the lookups; nothing is persisted.
func (s *Service) Quote(ctx context.Context, q QuoteQuery) (QuoteResult, error) {
	if q.VendorID == "" || q.Subtotal < 0 {
		return QuoteResult{}, ErrBadRequest
	}
	distance, loc, err := s.resolveDistance(ctx, q.VendorID, q.Address, q.City, q.State)
	if err != nil {
		return QuoteResult{}, err
	}

	balance := 0
	if q.CustomerID != "" && s.loyalty != nil {
		if b, err := s.loyalty.Balance(ctx, q.CustomerID); err == nil {
			balance = b
		}
	}

	quote := pricing.Compute(pricing.QuoteRequest{
		Subtotal:       q.Subtotal,
		DistanceKm:     distance,
		ItemCount:      q.ItemCount,
		RedeemPoints:   q.RedeemPoints,
		LoyaltyBalance: balance,
	})
	return QuoteResult{Quote: quote, DistanceKm: distance, GeoConfidence: loc.Confidence}, nil
}

// Checkout prices the cart, spends loyalty points when requested, and
// persists the order with its item snapshot. Gateway orders start pending
// and await payment confirmation; cash orders are confirmed immediately.
func (s *Service) Checkout(ctx context.Context, cmd CheckoutCommand) (*Order, error) {
	if err := validateCheckout(cmd); err != nil {
		return nil, err
	}

	var subtotal int64
	for _, it := range cmd.Items {
		subtotal += it.UnitPrice * int64(it.Quantity)
	}

	distance, loc, err := s.resolveDistance(ctx, cmd.VendorID, cmd.Address, cmd.City, cmd.State)
	if err != nil {
		return nil, err
	}

	balance := 0
	if s.loyalty != nil {
		if b, err := s.loyalty.Balance(ctx, cmd.CustomerID); err == nil {
			balance = b
		}
	}

	quote := pricing.Compute(pricing.QuoteRequest{
		Subtotal:       subtotal,
		DistanceKm:     distance,
		ItemCount:      len(cmd.Items),
		RedeemPoints:   cmd.RedeemPoints,
		LoyaltyBalance: balance,
	})

	// Spend the points before writing the order. A balance that shrank
	// since the quote downgrades to a no-discount order instead of failing
	// the checkout.
	if quote.PointsRedeemed > 0 {
		switch err := s.loyalty.Redeem(ctx, cmd.CustomerID, quote.PointsRedeemed); {
		case err == nil:
		case errors.Is(err, loyalty.ErrInsufficientPoints):
			quote = pricing.Compute(pricing.QuoteRequest{
				Subtotal:       subtotal,
				DistanceKm:     distance,
				ItemCount:      len(cmd.Items),
				RedeemPoints:   false,
				LoyaltyBalance: balance,
			})
		default:
			return nil, err
		}
	}

	now := time.Now()
	eta := now.Add(time.Duration(quote.EstimatedMinutes) * time.Minute)

	status := StatusPending
	payStatus := PaymentAwaiting
	if cmd.PaymentMethod == "cash" {
		status = StatusConfirmed
		payStatus = PaymentCash
	}

	o := &Order{
		ID:                    types.ID(uuid.NewString()),
		Code:                  newCode(),
		CustomerID:            cmd.CustomerID,
		VendorID:              cmd.VendorID,
		Status:                status,
		StatusVersion:         0,
		TotalAmount:           quote.Total,
		OriginalAmount:        quote.Total + quote.Discount,
		DiscountAmount:        quote.Discount,
		DeliveryFee:           quote.DeliveryFee,
		ServiceFee:            quote.ServiceFee,
		VAT:                   quote.VAT,
		LoyaltyPointsRedeemed: quote.PointsRedeemed,
		DeliveryAddress:       cmd.Address,
		City:                  cmd.City,
		State:                 cmd.State,
		Zip:                   cmd.Zip,
		DistanceKm:            distance,
		GeoConfidence:         loc.Confidence,
		PaymentStatus:         payStatus,
		PaymentMethod:         cmd.PaymentMethod,
		CreatedAt:             now,
		UpdatedAt:             now,
		EstimatedDeliveryTime: &eta,
	}
	for _, it := range cmd.Items {
		o.Items = append(o.Items, Item{
			ID:        types.ID(uuid.NewString()),
			OrderID:   o.ID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}

	if err := s.store.CreateWithItems(ctx, o); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusNone,
		ToStatus:   o.Status,
		ActorType:  "customer",
		ActorID:    &cmd.CustomerID,
		CreatedAt:  now,
	})
	s.publish(ctx, o.ID, o.Status)
	return o, nil
}

// ConfirmPaid moves a gateway order from pending to confirmed. Called by the
// payment module after its idempotency gate has fired, so a duplicate here
// means a real state problem, not a webhook retry.
func (s *Service) ConfirmPaid(ctx context.Context, orderID types.ID) error {
	paid := PaymentPaid
	return s.transition(ctx, orderID, StatusConfirmed, StatusUpdate{PaymentStatus: &paid}, "payment", nil)
}

// Accept is the vendor taking the order: confirmed -> preparing.
func (s *Service) Accept(ctx context.Context, cmd ActorCommand) error {
	return s.transition(ctx, cmd.OrderID, StatusPreparing, StatusUpdate{}, cmd.ActorType, cmd.ActorID)
}

// MarkReady is the vendor finishing preparation: preparing -> ready.
func (s *Service) MarkReady(ctx context.Context, cmd ActorCommand) error {
	return s.transition(ctx, cmd.OrderID, StatusReady, StatusUpdate{}, cmd.ActorType, cmd.ActorID)
}

// PickUp assigns the rider and moves ready -> picked_up.
func (s *Service) PickUp(ctx context.Context, cmd RiderCommand) error {
	return s.transition(ctx, cmd.OrderID, StatusPickedUp, StatusUpdate{RiderID: &cmd.RiderID}, "rider", &cmd.RiderID)
}

// Depart moves the order out for delivery, from ready or picked_up.
func (s *Service) Depart(ctx context.Context, cmd RiderCommand) error {
	return s.transition(ctx, cmd.OrderID, StatusOutForDelivery, StatusUpdate{RiderID: &cmd.RiderID}, "rider", &cmd.RiderID)
}

// Deliver completes the order. The loyalty credit is best-effort and only
// applies to orders that did not spend points.
func (s *Service) Deliver(ctx context.Context, cmd RiderCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, StatusDelivered) {
		return ErrInvalidTransition
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, StatusDelivered, o.StatusVersion, StatusUpdate{})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	metrics.OrderTransitions.WithLabelValues(string(StatusDelivered)).Inc()
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   StatusDelivered,
		ActorType:  "rider",
		ActorID:    &cmd.RiderID,
		CreatedAt:  time.Now(),
	})
	s.publish(ctx, o.ID, StatusDelivered)

	if s.loyalty != nil && o.LoyaltyPointsRedeemed == 0 {
		s.loyalty.AwardBestEffort(ctx, o.CustomerID, 1)
	}
	return nil
}

// Cancel is permitted from every non-terminal state.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	return s.transition(ctx, cmd.OrderID, StatusCancelled, StatusUpdate{}, cmd.ActorType, nil)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID types.ID, limit int) ([]Order, error) {
	return s.store.ListByCustomer(ctx, customerID, limit)
}

func (s *Service) ListByVendor(ctx context.Context, vendorID types.ID, limit int) ([]Order, error) {
	return s.store.ListByVendor(ctx, vendorID, limit)
}

func (s *Service) transition(ctx context.Context, orderID types.ID, to Status, upd StatusUpdate, actorType string, actorID *types.ID) error {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, to) {
		return ErrInvalidTransition
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, to, o.StatusVersion, upd)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	metrics.OrderTransitions.WithLabelValues(string(to)).Inc()
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	})
	s.publish(ctx, o.ID, to)
	return nil
}

func (s *Service) resolveDistance(ctx context.Context, vendorID types.ID, address, city, state string) (float64, geo.Location, error) {
	vendorPoint, found, err := s.store.VendorPoint(ctx, vendorID)
	if err != nil {
		return 0, geo.Location{}, err
	}
	if !found {
		return 0, geo.Location{}, ErrVendorNotFound
	}
	loc := s.geocoder.Geocode(ctx, address, city, state)
	distance, _ := s.router.RoadDistance(ctx, vendorPoint, loc.Point)
	return distance, loc, nil
}

func (s *Service) publish(ctx context.Context, id types.ID, status Status) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, "orders", notify.Event{
		Kind:   "order",
		ID:     string(id),
		Status: string(status),
		At:     time.Now(),
	})
}

func validateCheckout(cmd CheckoutCommand) error {
	if cmd.CustomerID == "" || cmd.VendorID == "" || len(cmd.Items) == 0 || cmd.Address == "" {
		return ErrBadRequest
	}
	if cmd.PaymentMethod != "gateway" && cmd.PaymentMethod != "cash" {
		return ErrBadRequest
	}
	for _, it := range cmd.Items {
		if it.Name == "" || it.Quantity <= 0 || it.UnitPrice < 0 {
			return ErrBadRequest
		}
	}
	return nil
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newCode generates the human order code shown on receipts.
func newCode() string {
	var b [6]byte
	_, _ = rand.Read(b[:])
	out := make([]byte, 6)
	for i, v := range b {
		out[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return "CH-" + string(out)
}
