// README: Rider availability handlers.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chomp/internal/modules/rider"
	"chomp/internal/types"
)

type RiderHandler struct {
	riders *rider.Service
}

func NewRiderHandler(svc *rider.Service) *RiderHandler {
	return &RiderHandler{riders: svc}
}

type availabilityReq struct {
	Lat float64 `json:"lat" binding:"min=-90,max=90"`
	Lng float64 `json:"lng" binding:"min=-180,max=180"`
}

func (h *RiderHandler) SetAvailable(c *gin.Context) {
	var req availabilityReq
	if !bindJSON(c, &req) {
		return
	}
	err := h.riders.SetAvailable(c.Request.Context(), types.ID(c.Param("id")), types.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeRiderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rider_id": c.Param("id"), "available": true})
}

func (h *RiderHandler) SetUnavailable(c *gin.Context) {
	if err := h.riders.SetUnavailable(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeRiderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rider_id": c.Param("id"), "available": false})
}

func (h *RiderHandler) Nearest(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	radius := 0.0
	if v := c.Query("radius_km"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 {
			writeError(c, http.StatusBadRequest, "invalid radius_km")
			return
		}
		radius = r
	}
	ids, err := h.riders.Nearest(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeRiderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"riders": ids})
}
