// README: Payment handlers for gateway webhook and redirect callback.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chomp/internal/modules/payment"
)

type PaymentHandler struct {
	payments *payment.Service
}

func NewPaymentHandler(payments *payment.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type webhookReq struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// Webhook handles the gateway's server-to-server notification. Delivery is
// at-least-once; Confirm absorbs duplicates. Always answers 200 for
// references we know about so the gateway stops retrying.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req webhookReq
	if !bindJSON(c, &req) {
		return
	}
	if req.Data.Reference == "" {
		writeError(c, http.StatusBadRequest, "missing reference")
		return
	}
	p, err := h.payments.Confirm(c.Request.Context(), req.Data.Reference)
	if err != nil && p == nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, paymentView(p))
}

// Callback handles the customer's browser redirect after paying. It verifies
// the reference rather than trusting the redirect.
func (h *PaymentHandler) Callback(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		reference = c.Query("trxref")
	}
	if reference == "" {
		writeError(c, http.StatusBadRequest, "missing reference")
		return
	}
	p, err := h.payments.Confirm(c.Request.Context(), reference)
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, paymentView(p))
}

func (h *PaymentHandler) Get(c *gin.Context) {
	p, err := h.payments.Lookup(c.Request.Context(), c.Param("reference"))
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, paymentView(p))
}

func paymentView(p *payment.Payment) gin.H {
	v := gin.H{
		"payment_id": p.ID,
		"reference":  p.Reference,
		"amount":     p.Amount,
		"status":     p.Status,
		"type":       p.Type,
		"created_at": p.CreatedAt.Format(time.RFC3339),
	}
	if p.OrderID != nil {
		v["order_id"] = *p.OrderID
	}
	if p.VendorID != nil {
		v["vendor_id"] = *p.VendorID
	}
	if p.Channel != "" {
		v["channel"] = p.Channel
	}
	if p.PaidAt != nil {
		v["paid_at"] = p.PaidAt.Format(time.RFC3339)
	}
	return v
}
