// README: Loyalty store backed by PostgreSQL; the decrement is a single
// conditional UPDATE so concurrent redemptions cannot lose updates.
package loyalty

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"chomp/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) AddPoints(ctx context.Context, customerID types.ID, points int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE customers
        SET loyalty_points = loyalty_points + $2
        WHERE id = $1`,
		string(customerID), points,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeductPoints decrements only when the balance covers it. Returns false
// when the condition did not hold (missing customer or short balance).
func (s *Store) DeductPoints(ctx context.Context, customerID types.ID, points int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE customers
        SET loyalty_points = loyalty_points - $2
        WHERE id = $1 AND loyalty_points >= $2`,
		string(customerID), points,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Balance(ctx context.Context, customerID types.ID) (int, bool, error) {
	row := s.db.QueryRow(ctx, `
        SELECT loyalty_points FROM customers WHERE id = $1`,
		string(customerID),
	)
	var balance int
	if err := row.Scan(&balance); err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return balance, true, nil
}

// History derives the ledger from orders: one "earned" line per order with
// no redemption, one "redeemed" line per order that spent points.
func (s *Store) History(ctx context.Context, customerID types.ID) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, code, loyalty_points_redeemed, created_at
        FROM orders
        WHERE customer_id = $1
        ORDER BY created_at DESC`,
		string(customerID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var redeemed int
		if err := rows.Scan(&e.OrderID, &e.OrderCode, &redeemed, &e.CreatedAt); err != nil {
			return nil, err
		}
		if redeemed > 0 {
			e.Type = EntryRedeemed
			e.Points = -redeemed
		} else {
			e.Type = EntryEarned
			e.Points = 1
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
