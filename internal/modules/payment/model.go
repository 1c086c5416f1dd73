// README: Payment record linked to exactly one order or ad purchase.
package payment

import (
	"time"

	"chomp/internal/types"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

type Type string

const (
	TypeOrder Type = "order"
	TypeAd    Type = "ad"
)

type Payment struct {
	ID        types.ID
	Reference string
	Amount    int64 // whole NGN; minor units exist only on the wire
	Status    Status
	Type      Type

	// Exactly one of OrderID / (VendorID + package fields) is set,
	// depending on Type.
	OrderID      *types.ID
	VendorID     *types.ID
	PackageName  string
	PackagePrice int64

	Channel   string
	Metadata  map[string]string
	CreatedAt time.Time
	PaidAt    *time.Time
}
