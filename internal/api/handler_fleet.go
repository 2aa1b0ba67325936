package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smart-bin-backend/internal/fleet"
)

const defaultFleetDays = 7

type fleetResponse struct {
	fleet.Summary
	Days        int                `json:"days"`
	AverageFill map[string]float64 `json:"average_fill"`
}

// GetFleet handles GET /api/fleet?days=N.
func (h *Handler) GetFleet(c *gin.Context) {
	days := defaultFleetDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 366 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 366"})
			return
		}
		days = n
	}

	ctx := c.Request.Context()
	now := h.now()

	statuses, err := h.store.ListStatuses(ctx)
	if err != nil {
		log.Printf("Failed to list bins for fleet summary: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve bins"})
		return
	}

	readings, err := h.store.ReadingsSince(ctx, now.Add(-time.Duration(days)*24*time.Hour))
	if err != nil {
		log.Printf("Failed to load readings for fleet summary: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve history"})
		return
	}

	c.JSON(http.StatusOK, fleetResponse{
		Summary:     fleet.Summarize(statuses, now, h.offlineAfter),
		Days:        days,
		AverageFill: fleet.AverageFill(readings),
	})
}
