// README: Advertisement service; campaigns exist only after a successful
// linked payment.
package ads

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"chomp/internal/logging"
	"chomp/internal/types"
)

var (
	ErrNoActiveCampaign = errors.New("no active campaign")
	ErrNotFound         = errors.New("advertisement not found")
)

type Campaigns interface {
	Create(ctx context.Context, a *Advertisement) error
	ExistsForPayment(ctx context.Context, paymentID types.ID) (bool, error)
	ActiveByVendor(ctx context.Context, vendorID types.ID) (*Advertisement, error)
	IncrementCounter(ctx context.Context, adID types.ID, column string) (bool, error)
	ExpireCampaigns(ctx context.Context, now time.Time) (int, error)
}

type Service struct {
	store Campaigns
}

func NewService(store Campaigns) *Service {
	return &Service{store: store}
}

// ActivateForPayment creates the one-day campaign a payment bought. The
// payment module's idempotency gate means this runs once per reference, but
// the payment-id existence check keeps a crashed-and-retried activation from
// doubling up.
func (s *Service) ActivateForPayment(ctx context.Context, paymentID, vendorID types.ID, packageName string, packagePrice int64) error {
	exists, err := s.store.ExistsForPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	now := time.Now()
	return s.store.Create(ctx, &Advertisement{
		ID:           types.ID(uuid.NewString()),
		VendorID:     vendorID,
		PaymentID:    paymentID,
		PackageName:  packageName,
		PackagePrice: packagePrice,
		StartDate:    now,
		EndDate:      now.Add(CampaignDuration),
		Status:       StatusActive,
		CreatedAt:    now,
	})
}

func (s *Service) ActiveByVendor(ctx context.Context, vendorID types.ID) (*Advertisement, error) {
	return s.store.ActiveByVendor(ctx, vendorID)
}

func (s *Service) RecordImpression(ctx context.Context, adID types.ID) error {
	return s.bump(ctx, adID, "impressions")
}

func (s *Service) RecordClick(ctx context.Context, adID types.ID) error {
	return s.bump(ctx, adID, "clicks")
}

func (s *Service) RecordConversion(ctx context.Context, adID types.ID) error {
	return s.bump(ctx, adID, "conversions")
}

func (s *Service) bump(ctx context.Context, adID types.ID, column string) error {
	ok, err := s.store.IncrementCounter(ctx, adID, column)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// RunCampaignSweeper expires elapsed campaigns on the given interval until
// the context is cancelled.
func (s *Service) RunCampaignSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.ExpireCampaigns(ctx, time.Now())
			if err != nil {
				logging.Log(logging.Fields{
					Component: "ads_sweeper",
					Status:    "sweep_failed",
					Error:     err.Error(),
				})
				continue
			}
			if n > 0 {
				logging.Log(logging.Fields{
					Component: "ads_sweeper",
					Status:    "expired",
					Count:     n,
				})
			}
		}
	}
}
