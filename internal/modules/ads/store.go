// README: Advertisement store backed by PostgreSQL. Counter bumps are
// single statements; no read-modify-write.
package ads

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chomp/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, a *Advertisement) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO advertisements (
            id, vendor_id, payment_id, package_name, package_price,
            start_date, end_date, impressions, clicks, conversions,
            status, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, 0, $8, $9)`,
		string(a.ID), string(a.VendorID), string(a.PaymentID),
		a.PackageName, a.PackagePrice,
		a.StartDate, a.EndDate, string(a.Status), a.CreatedAt,
	)
	return err
}

func (s *Store) ExistsForPayment(ctx context.Context, paymentID types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM advertisements WHERE payment_id = $1)`,
		string(paymentID),
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) ActiveByVendor(ctx context.Context, vendorID types.ID) (*Advertisement, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, vendor_id, payment_id, package_name, package_price,
               start_date, end_date, impressions, clicks, conversions,
               status, created_at
        FROM advertisements
        WHERE vendor_id = $1 AND status = 'active'
        ORDER BY start_date DESC
        LIMIT 1`, string(vendorID),
	)
	var a Advertisement
	err := row.Scan(
		&a.ID, &a.VendorID, &a.PaymentID, &a.PackageName, &a.PackagePrice,
		&a.StartDate, &a.EndDate, &a.Impressions, &a.Clicks, &a.Conversions,
		&a.Status, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveCampaign
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) IncrementCounter(ctx context.Context, adID types.ID, column string) (bool, error) {
	// column comes from the service's fixed set, never from input
	tag, err := s.db.Exec(ctx, `
        UPDATE advertisements
        SET `+column+` = `+column+` + 1
        WHERE id = $1 AND status = 'active'`,
		string(adID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireCampaigns closes every active campaign whose window has elapsed.
func (s *Store) ExpireCampaigns(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE advertisements
        SET status = 'expired'
        WHERE status = 'active' AND end_date <= $1`, now,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
