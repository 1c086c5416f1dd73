// README: Advertisement handlers for campaign purchase and engagement counters.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chomp/internal/modules/ads"
	"chomp/internal/modules/payment"
	"chomp/internal/types"
)

// adPackages is the fixed price list, whole NGN.
var adPackages = map[string]int64{
	"spotlight": 5000,
	"featured":  10000,
	"premium":   20000,
}

type AdsHandler struct {
	ads      *ads.Service
	payments *payment.Service
}

func NewAdsHandler(svc *ads.Service, payments *payment.Service) *AdsHandler {
	return &AdsHandler{ads: svc, payments: payments}
}

type purchaseAdReq struct {
	VendorID string `json:"vendor_id" binding:"required"`
	Package  string `json:"package" binding:"required"`
	Email    string `json:"email"`
}

// Purchase starts an ad-package payment. The campaign itself activates when
// the gateway confirms.
func (h *AdsHandler) Purchase(c *gin.Context) {
	var req purchaseAdReq
	if !bindJSON(c, &req) {
		return
	}
	price, ok := adPackages[req.Package]
	if !ok {
		writeError(c, http.StatusBadRequest, "unknown package")
		return
	}
	authURL, p, err := h.payments.InitializeAd(c.Request.Context(), types.ID(req.VendorID), req.Package, price, req.Email)
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"authorization_url": authURL,
		"payment_reference": p.Reference,
		"package":           req.Package,
		"amount":            price,
	})
}

func (h *AdsHandler) Active(c *gin.Context) {
	ad, err := h.ads.ActiveByVendor(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAdsError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"ad_id":       ad.ID,
		"vendor_id":   ad.VendorID,
		"package":     ad.PackageName,
		"status":      ad.Status,
		"start_date":  ad.StartDate.Format(time.RFC3339),
		"end_date":    ad.EndDate.Format(time.RFC3339),
		"impressions": ad.Impressions,
		"clicks":      ad.Clicks,
		"conversions": ad.Conversions,
	})
}

func (h *AdsHandler) Impression(c *gin.Context) {
	h.bump(c, h.ads.RecordImpression)
}

func (h *AdsHandler) Click(c *gin.Context) {
	h.bump(c, h.ads.RecordClick)
}

func (h *AdsHandler) Conversion(c *gin.Context) {
	h.bump(c, h.ads.RecordConversion)
}

func (h *AdsHandler) bump(c *gin.Context, fn func(ctx context.Context, adID types.ID) error) {
	if err := fn(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeAdsError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
