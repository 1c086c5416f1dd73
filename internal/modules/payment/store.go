// README: Payment store backed by PostgreSQL. The success flip is a
// conditional UPDATE so a reference can only be processed once.
package payment

import (
	"context"
	"encoding/json"
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

func (s *Store) Create(ctx context.Context, p *Payment) error {
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO payments (
            id, reference, amount, status, payment_type,
            order_id, vendor_id, package_name, package_price,
            channel, metadata, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(p.ID), p.Reference, p.Amount, string(p.Status), string(p.Type),
		idPtr(p.OrderID), idPtr(p.VendorID), p.PackageName, p.PackagePrice,
		p.Channel, meta, p.CreatedAt,
	)
	return err
}

func (s *Store) GetByReference(ctx context.Context, reference string) (*Payment, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, reference, amount, status, payment_type,
               order_id, vendor_id, package_name, package_price,
               channel, metadata, created_at, paid_at
        FROM payments
        WHERE reference = $1`, reference,
	)

	var p Payment
	var orderID, vendorID *string
	var meta []byte
	err := row.Scan(
		&p.ID, &p.Reference, &p.Amount, &p.Status, &p.Type,
		&orderID, &vendorID, &p.PackageName, &p.PackagePrice,
		&p.Channel, &meta, &p.CreatedAt, &p.PaidAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.OrderID = toID(orderID)
	p.VendorID = toID(vendorID)
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &p.Metadata)
	}
	return &p, nil
}

// MarkSuccess flips pending to success exactly once. A false return means
// another delivery of the same event got there first.
func (s *Store) MarkSuccess(ctx context.Context, reference, channel string, paidAt *time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE payments
        SET status = 'success', channel = $2, paid_at = COALESCE($3, NOW())
        WHERE reference = $1 AND status = 'pending'`,
		reference, channel, paidAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkFailed(ctx context.Context, reference string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE payments
        SET status = 'failed'
        WHERE reference = $1 AND status = 'pending'`,
		reference,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toID(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}
