// README: Loyalty ledger; point accrual and redemption against a customer's
// balance.
package loyalty

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"chomp/internal/logging"
	"chomp/internal/metrics"
	"chomp/internal/types"
)

var (
	ErrInsufficientPoints = errors.New("insufficient loyalty points")
	ErrNotFound           = errors.New("customer not found")
)

// Balances is what the ledger needs from storage. The Postgres Store
// implements it; tests use an in-memory fake.
type Balances interface {
	AddPoints(ctx context.Context, customerID types.ID, points int) (bool, error)
	DeductPoints(ctx context.Context, customerID types.ID, points int) (bool, error)
	Balance(ctx context.Context, customerID types.ID) (int, bool, error)
	History(ctx context.Context, customerID types.ID) ([]Entry, error)
}

type Service struct {
	store Balances
}

func NewService(store Balances) *Service {
	return &Service{store: store}
}

// Award credits points to the customer. Callers in the order flow treat a
// failure as non-fatal; AwardBestEffort wraps that policy.
func (s *Service) Award(ctx context.Context, customerID types.ID, points int) error {
	ok, err := s.store.AddPoints(ctx, customerID, points)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// AwardBestEffort logs and counts a failed award instead of propagating it,
// so a ledger hiccup never blocks order completion.
func (s *Service) AwardBestEffort(ctx context.Context, customerID types.ID, points int) {
	if err := s.Award(ctx, customerID, points); err != nil {
		metrics.LoyaltyAwardFailures.Inc()
		logging.Log(logging.Fields{
			Component:  "loyalty",
			CustomerID: string(customerID),
			Status:     "award_failed",
			Error:      err.Error(),
		})
	}
}

// Redeem spends points atomically: the conditional decrement either commits
// with a covered balance or touches nothing.
func (s *Service) Redeem(ctx context.Context, customerID types.ID, points int) error {
	ok, err := s.store.DeductPoints(ctx, customerID, points)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	_, exists, err := s.store.Balance(ctx, customerID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInsufficientPoints
}

func (s *Service) Balance(ctx context.Context, customerID types.ID) (int, error) {
	balance, exists, err := s.store.Balance(ctx, customerID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotFound
	}
	return balance, nil
}

func (s *Service) History(ctx context.Context, customerID types.ID) ([]Entry, error) {
	return s.store.History(ctx, customerID)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
