// README: Order handlers for quoting, checkout, and lifecycle transitions.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chomp/internal/modules/order"
	"chomp/internal/modules/payment"
	"chomp/internal/types"
)

type OrderHandler struct {
	orders   *order.Service
	payments *payment.Service
}

func NewOrderHandler(orders *order.Service, payments *payment.Service) *OrderHandler {
	return &OrderHandler{orders: orders, payments: payments}
}

type quoteReq struct {
	CustomerID   string `json:"customer_id"`
	VendorID     string `json:"vendor_id" binding:"required"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	Subtotal     int64  `json:"subtotal" binding:"min=0"`
	ItemCount    int    `json:"item_count" binding:"min=0"`
	RedeemPoints bool   `json:"redeem_points"`
}

func (h *OrderHandler) Quote(c *gin.Context) {
	var req quoteReq
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.orders.Quote(c.Request.Context(), order.QuoteQuery{
		CustomerID:   types.ID(req.CustomerID),
		VendorID:     types.ID(req.VendorID),
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		Subtotal:     req.Subtotal,
		ItemCount:    req.ItemCount,
		RedeemPoints: req.RedeemPoints,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"subtotal":          res.Quote.Subtotal,
		"delivery_fee":      res.Quote.DeliveryFee,
		"service_fee":       res.Quote.ServiceFee,
		"vat":               res.Quote.VAT,
		"discount":          res.Quote.Discount,
		"total":             res.Quote.Total,
		"points_redeemed":   res.Quote.PointsRedeemed,
		"estimated_minutes": res.Quote.EstimatedMinutes,
		"distance_km":       res.DistanceKm,
		"geo_confidence":    res.GeoConfidence,
	})
}

type checkoutItemReq struct {
	Name      string `json:"name" binding:"required"`
	UnitPrice int64  `json:"unit_price" binding:"min=0"`
	Quantity  int    `json:"quantity" binding:"min=1"`
}

type checkoutReq struct {
	CustomerID    string            `json:"customer_id" binding:"required"`
	Email         string            `json:"email"`
	VendorID      string            `json:"vendor_id" binding:"required"`
	Items         []checkoutItemReq `json:"items" binding:"required,min=1,dive"`
	Address       string            `json:"address" binding:"required"`
	City          string            `json:"city"`
	State         string            `json:"state"`
	Zip           string            `json:"zip"`
	PaymentMethod string            `json:"payment_method" binding:"required,oneof=gateway cash"`
	RedeemPoints  bool              `json:"redeem_points"`
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	var req checkoutReq
	if !bindJSON(c, &req) {
		return
	}
	items := make([]order.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemInput{Name: it.Name, UnitPrice: it.UnitPrice, Quantity: it.Quantity}
	}
	o, err := h.orders.Checkout(c.Request.Context(), order.CheckoutCommand{
		CustomerID:    types.ID(req.CustomerID),
		VendorID:      types.ID(req.VendorID),
		Items:         items,
		Address:       req.Address,
		City:          req.City,
		State:         req.State,
		Zip:           req.Zip,
		PaymentMethod: req.PaymentMethod,
		RedeemPoints:  req.RedeemPoints,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}

	resp := gin.H{"order": orderView(o)}
	if req.PaymentMethod == "gateway" {
		authURL, p, err := h.payments.InitializeOrder(c.Request.Context(), o.ID, o.TotalAmount, req.Email)
		if err != nil {
			// order stands; the client can re-initialize payment
			resp["payment_error"] = err.Error()
		} else {
			resp["authorization_url"] = authURL
			resp["payment_reference"] = p.Reference
		}
	}
	writeJSON(c, http.StatusCreated, resp)
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

func (h *OrderHandler) ListByCustomer(c *gin.Context) {
	h.list(c, h.orders.ListByCustomer)
}

func (h *OrderHandler) ListByVendor(c *gin.Context) {
	h.list(c, h.orders.ListByVendor)
}

func (h *OrderHandler) list(c *gin.Context, fn func(ctx context.Context, id types.ID, limit int) ([]order.Order, error)) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(c, http.StatusBadRequest, "limit must be 1..100")
			return
		}
		limit = n
	}
	orders, err := fn(c.Request.Context(), types.ID(c.Param("id")), limit)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	views := make([]gin.H, len(orders))
	for i := range orders {
		views[i] = orderView(&orders[i])
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": views})
}

type vendorActionReq struct {
	VendorID string `json:"vendor_id"`
}

func (h *OrderHandler) Accept(c *gin.Context) {
	h.vendorAction(c, h.orders.Accept)
}

func (h *OrderHandler) MarkReady(c *gin.Context) {
	h.vendorAction(c, h.orders.MarkReady)
}

func (h *OrderHandler) vendorAction(c *gin.Context, fn func(ctx context.Context, cmd order.ActorCommand) error) {
	var req vendorActionReq
	_ = c.ShouldBindJSON(&req)
	cmd := order.ActorCommand{OrderID: types.ID(c.Param("id")), ActorType: "vendor"}
	if req.VendorID != "" {
		id := types.ID(req.VendorID)
		cmd.ActorID = &id
	}
	if err := fn(c.Request.Context(), cmd); err != nil {
		writeOrderError(c, err)
		return
	}
	o, err := h.orders.Get(c.Request.Context(), cmd.OrderID)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": o.ID, "status": o.Status})
}

type riderActionReq struct {
	RiderID string `json:"rider_id" binding:"required"`
}

func (h *OrderHandler) PickUp(c *gin.Context) {
	h.riderAction(c, h.orders.PickUp)
}

func (h *OrderHandler) Depart(c *gin.Context) {
	h.riderAction(c, h.orders.Depart)
}

func (h *OrderHandler) Deliver(c *gin.Context) {
	h.riderAction(c, h.orders.Deliver)
}

func (h *OrderHandler) riderAction(c *gin.Context, fn func(ctx context.Context, cmd order.RiderCommand) error) {
	var req riderActionReq
	if !bindJSON(c, &req) {
		return
	}
	cmd := order.RiderCommand{OrderID: types.ID(c.Param("id")), RiderID: types.ID(req.RiderID)}
	if err := fn(c.Request.Context(), cmd); err != nil {
		writeOrderError(c, err)
		return
	}
	o, err := h.orders.Get(c.Request.Context(), cmd.OrderID)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": o.ID, "status": o.Status})
}

type cancelReq struct {
	ActorType string `json:"actor_type"`
	Reason    string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	if req.ActorType == "" {
		req.ActorType = "customer"
	}
	err := h.orders.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID:   types.ID(c.Param("id")),
		ActorType: req.ActorType,
		Reason:    req.Reason,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": c.Param("id"), "status": order.StatusCancelled})
}

func orderView(o *order.Order) gin.H {
	items := make([]gin.H, len(o.Items))
	for i, it := range o.Items {
		items[i] = gin.H{
			"name":       it.Name,
			"unit_price": it.UnitPrice,
			"quantity":   it.Quantity,
		}
	}
	v := gin.H{
		"order_id":        o.ID,
		"code":            o.Code,
		"customer_id":     o.CustomerID,
		"vendor_id":       o.VendorID,
		"status":          o.Status,
		"total_amount":    o.TotalAmount,
		"original_amount": o.OriginalAmount,
		"discount":        o.DiscountAmount,
		"delivery_fee":    o.DeliveryFee,
		"service_fee":     o.ServiceFee,
		"vat":             o.VAT,
		"points_redeemed": o.LoyaltyPointsRedeemed,
		"address":         o.DeliveryAddress,
		"city":            o.City,
		"state":           o.State,
		"distance_km":     o.DistanceKm,
		"payment_status":  o.PaymentStatus,
		"payment_method":  o.PaymentMethod,
		"created_at":      o.CreatedAt.Format(time.RFC3339),
		"items":           items,
	}
	if o.RiderID != nil {
		v["rider_id"] = *o.RiderID
	}
	if o.EstimatedDeliveryTime != nil {
		v["estimated_delivery_time"] = o.EstimatedDeliveryTime.Format(time.RFC3339)
	}
	if o.ActualDeliveryTime != nil {
		v["actual_delivery_time"] = o.ActualDeliveryTime.Format(time.RFC3339)
	}
	return v
}
