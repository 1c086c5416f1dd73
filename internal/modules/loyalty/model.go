// README: Loyalty ledger types.
package loyalty

import (
	"time"

	"chomp/internal/types"
)

type EntryType string

const (
	// EntryEarned is an order on which no redemption occurred (+1 point).
	EntryEarned EntryType = "earned"
	// EntryRedeemed is an order that spent points on a discount.
	EntryRedeemed EntryType = "redeemed"
)

// Entry is one ledger-history line. Each order contributes at most one entry.
type Entry struct {
	OrderID   types.ID
	OrderCode string
	Type      EntryType
	Points    int
	CreatedAt time.Time
}
