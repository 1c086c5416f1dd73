// README: Vendor promotion campaign.
package ads

import (
	"time"

	"chomp/internal/types"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

// CampaignDuration is fixed: every package runs for one day from activation.
const CampaignDuration = 24 * time.Hour

type Advertisement struct {
	ID           types.ID
	VendorID     types.ID
	PaymentID    types.ID
	PackageName  string
	PackagePrice int64
	StartDate    time.Time
	EndDate      time.Time
	Impressions  int64
	Clicks       int64
	Conversions  int64
	Status       Status
	CreatedAt    time.Time
}
