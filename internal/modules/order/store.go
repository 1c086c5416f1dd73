// README: Order store backed by PostgreSQL.
package order

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

func (s *Store) CreateWithItems(ctx context.Context, o *Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
        INSERT INTO orders (
            id, code, customer_id, vendor_id, rider_id, status, status_version,
            total_amount, original_amount, discount_amount, delivery_fee, service_fee, vat,
            loyalty_points_redeemed,
            delivery_address, city, state, zip, distance_km, geo_confidence,
            payment_status, payment_method,
            created_at, updated_at, estimated_delivery_time
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7,
            $8, $9, $10, $11, $12, $13,
            $14,
            $15, $16, $17, $18, $19, $20,
            $21, $22,
            $23, $24, $25
        )`,
		string(o.ID), o.Code, string(o.CustomerID), string(o.VendorID), toStringPtr(o.RiderID),
		string(o.Status), o.StatusVersion,
		o.TotalAmount, o.OriginalAmount, o.DiscountAmount, o.DeliveryFee, o.ServiceFee, o.VAT,
		o.LoyaltyPointsRedeemed,
		o.DeliveryAddress, o.City, o.State, o.Zip, o.DistanceKm, o.GeoConfidence,
		string(o.PaymentStatus), o.PaymentMethod,
		o.CreatedAt, o.UpdatedAt, o.EstimatedDeliveryTime,
	)
	if err != nil {
		return err
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
            INSERT INTO order_items (id, order_id, name, unit_price, quantity)
            VALUES ($1, $2, $3, $4, $5)`,
			string(it.ID), string(o.ID), it.Name, it.UnitPrice, it.Quantity,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, code, customer_id, vendor_id, rider_id, status, status_version,
               total_amount, original_amount, discount_amount, delivery_fee, service_fee, vat,
               loyalty_points_redeemed,
               delivery_address, city, state, zip, distance_km, geo_confidence,
               payment_status, payment_method,
               created_at, updated_at, estimated_delivery_time, actual_delivery_time
        FROM orders
        WHERE id = $1`, string(id),
	)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
        SELECT id, order_id, name, unit_price, quantity
        FROM order_items
        WHERE order_id = $1`, string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Name, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// UpdateStatus is a compare-and-set on status + status_version, stamping the
// timing columns that belong to the target status.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, upd StatusUpdate) (bool, error) {
	var rider *string
	if upd.RiderID != nil {
		v := string(*upd.RiderID)
		rider = &v
	}
	var payStatus *string
	if upd.PaymentStatus != nil {
		v := string(*upd.PaymentStatus)
		payStatus = &v
	}
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET status = $1,
            status_version = status_version + 1,
            rider_id = COALESCE($2, rider_id),
            payment_status = COALESCE($3, payment_status),
            actual_delivery_time = CASE WHEN $1 = 'delivered' THEN NOW() ELSE actual_delivery_time END,
            updated_at = NOW()
        WHERE id = $4 AND status = $5 AND status_version = $6`,
		string(to), rider, payStatus, string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO order_status_events (
            order_id, from_status, to_status, actor_type, actor_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID), string(e.FromStatus), string(e.ToStatus),
		e.ActorType, toStringPtr(e.ActorID), e.CreatedAt,
	)
	return err
}

// PromoteExpired bulk-advances preparing orders whose estimated delivery
// time has elapsed. Idempotent: promoted rows stop matching the filter.
func (s *Store) PromoteExpired(ctx context.Context, now time.Time) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
        UPDATE orders
        SET status = 'ready',
            status_version = status_version + 1,
            updated_at = NOW()
        WHERE status = 'preparing'
          AND estimated_delivery_time IS NOT NULL
          AND estimated_delivery_time <= $1
        RETURNING id`, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

func (s *Store) VendorPoint(ctx context.Context, vendorID types.ID) (types.Point, bool, error) {
	row := s.db.QueryRow(ctx, `
        SELECT lat, lng FROM vendors WHERE id = $1`, string(vendorID),
	)
	var p types.Point
	if err := row.Scan(&p.Lat, &p.Lng); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Point{}, false, nil
		}
		return types.Point{}, false, err
	}
	return p, true, nil
}

func (s *Store) ListByCustomer(ctx context.Context, customerID types.ID, limit int) ([]Order, error) {
	return s.list(ctx, "customer_id", customerID, limit)
}

func (s *Store) ListByVendor(ctx context.Context, vendorID types.ID, limit int) ([]Order, error) {
	return s.list(ctx, "vendor_id", vendorID, limit)
}

func (s *Store) list(ctx context.Context, column string, id types.ID, limit int) ([]Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
        SELECT id, code, customer_id, vendor_id, rider_id, status, status_version,
               total_amount, original_amount, discount_amount, delivery_fee, service_fee, vat,
               loyalty_points_redeemed,
               delivery_address, city, state, zip, distance_km, geo_confidence,
               payment_status, payment_method,
               created_at, updated_at, estimated_delivery_time, actual_delivery_time
        FROM orders
        WHERE `+column+` = $1
        ORDER BY created_at DESC
        LIMIT $2`, string(id), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var riderID *string
	var estimated, actual *time.Time

	err := row.Scan(
		&o.ID, &o.Code, &o.CustomerID, &o.VendorID, &riderID, &o.Status, &o.StatusVersion,
		&o.TotalAmount, &o.OriginalAmount, &o.DiscountAmount, &o.DeliveryFee, &o.ServiceFee, &o.VAT,
		&o.LoyaltyPointsRedeemed,
		&o.DeliveryAddress, &o.City, &o.State, &o.Zip, &o.DistanceKm, &o.GeoConfidence,
		&o.PaymentStatus, &o.PaymentMethod,
		&o.CreatedAt, &o.UpdatedAt, &estimated, &actual,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if riderID != nil {
		r := types.ID(*riderID)
		o.RiderID = &r
	}
	o.EstimatedDeliveryTime = estimated
	o.ActualDeliveryTime = actual
	return &o, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
