// README: Pricing engine; pure computation, callers persist the result.
package pricing

import "math"

// Compute builds the full quote from the request. No side effects.
func Compute(req QuoteRequest) Quote {
	q := Quote{
		Subtotal:    req.Subtotal,
		DeliveryFee: DeliveryFee(req.DistanceKm),
		ServiceFee:  ServiceFee(req.ItemCount),
		VAT:         VAT(req.Subtotal),
		CanRedeem:   req.LoyaltyBalance >= RedemptionThreshold,
	}

	if req.RedeemPoints && q.CanRedeem {
		q.Discount = int64(math.Round(float64(req.Subtotal) * RedemptionDiscount))
	}
	if q.Discount > 0 {
		q.PointsRedeemed = RedemptionThreshold
	}

	q.Total = req.Subtotal + q.DeliveryFee + q.ServiceFee + q.VAT - q.Discount
	if q.Total < 0 {
		q.Total = 0
	}

	q.EstimatedMinutes = EstimatedMinutes(req.DistanceKm)
	return q
}

// DeliveryFee is base + per-km, clamped to [MinFee, MaxFee]. Non-positive
// distance means the pickup and dropoff resolved to the same spot; charge
// the minimum.
func DeliveryFee(distanceKm float64) int64 {
	if distanceKm <= 0 {
		return MinFee
	}
	fee := int64(math.Round(float64(BaseFee) + distanceKm*float64(PerKmRate)))
	if fee < MinFee {
		return MinFee
	}
	if fee > MaxFee {
		return MaxFee
	}
	return fee
}

func ServiceFee(itemCount int) int64 {
	fee := ServiceBase + int64(itemCount)*ServicePerItem
	if fee > ServiceCap {
		return ServiceCap
	}
	return fee
}

func VAT(subtotal int64) int64 {
	return int64(math.Round(float64(subtotal) * VATRate))
}

// EstimatedMinutes is preparation time plus travel time at the average
// delivery speed, rounded up.
func EstimatedMinutes(distanceKm float64) int {
	if distanceKm <= 0 {
		return PreparationMinutes
	}
	return int(math.Ceil(PreparationMinutes + distanceKm/AvgSpeedKmPerMin))
}
