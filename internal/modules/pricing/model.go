// README: Fee schedule constants and the quote breakdown type.
package pricing

// Fee schedule in whole NGN. These are fixed product decisions, not
// configuration.
const (
	BaseFee   int64 = 300
	PerKmRate int64 = 50
	MinFee    int64 = 300
	MaxFee    int64 = 2000

	ServiceBase    int64 = 200
	ServicePerItem int64 = 50
	ServiceCap     int64 = 500

	VATRate = 0.075

	RedemptionThreshold = 10
	RedemptionDiscount  = 0.50

	PreparationMinutes = 15
	AvgSpeedKmPerMin   = 0.5
)

// QuoteRequest carries everything the engine needs; it reads nothing else.
type QuoteRequest struct {
	Subtotal       int64
	DistanceKm     float64
	ItemCount      int
	RedeemPoints   bool
	LoyaltyBalance int
}

// Quote is the full price breakdown for a prospective order.
type Quote struct {
	Subtotal         int64 `json:"subtotal"`
	DeliveryFee      int64 `json:"delivery_fee"`
	ServiceFee       int64 `json:"service_fee"`
	VAT              int64 `json:"vat"`
	Discount         int64 `json:"discount"`
	Total            int64 `json:"total"`
	PointsRedeemed   int   `json:"points_redeemed"`
	CanRedeem        bool  `json:"can_redeem"`
	EstimatedMinutes int   `json:"estimated_minutes"`
}
