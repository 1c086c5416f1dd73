// README: Loyalty handlers for balance and point history.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chomp/internal/modules/loyalty"
	"chomp/internal/types"
)

type LoyaltyHandler struct {
	loyalty *loyalty.Service
}

func NewLoyaltyHandler(svc *loyalty.Service) *LoyaltyHandler {
	return &LoyaltyHandler{loyalty: svc}
}

func (h *LoyaltyHandler) Balance(c *gin.Context) {
	balance, err := h.loyalty.Balance(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeLoyaltyError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"customer_id": c.Param("id"),
		"balance":     balance,
	})
}

func (h *LoyaltyHandler) History(c *gin.Context) {
	entries, err := h.loyalty.History(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeLoyaltyError(c, err)
		return
	}
	views := make([]gin.H, len(entries))
	for i, e := range entries {
		views[i] = gin.H{
			"order_id":   e.OrderID,
			"type":       e.Type,
			"points":     e.Points,
			"created_at": e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(c, http.StatusOK, gin.H{
		"customer_id": c.Param("id"),
		"entries":     views,
	})
}
