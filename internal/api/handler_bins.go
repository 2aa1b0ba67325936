package api

import (
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"smart-bin-backend/internal/fleet"
	"smart-bin-backend/internal/model"
	"smart-bin-backend/internal/store"
)

// maxHistoryLimit bounds ?limit on the history endpoint.
const maxHistoryLimit = 500

// binResponse is the flattened structure for the API response.
type binResponse struct {
	model.Status
	State    fleet.State `json:"state"`
	LastSeen string      `json:"last_seen"`
}

type binDetailResponse struct {
	binResponse
	RiskIndex int    `json:"risk_index"`
	RiskLevel string `json:"risk_level"`
}

type historyResponse struct {
	DeviceID string          `json:"device_id"`
	Readings []model.Reading `json:"readings"`
	ETA      fleet.Estimate  `json:"eta"`
}

func (h *Handler) toBinResponse(s model.Status) binResponse {
	now := h.now()
	return binResponse{
		Status:   s,
		State:    fleet.Classify(s, now, h.offlineAfter),
		LastSeen: fleet.TimeAgo(s.LastUpdated, now),
	}
}

// ListBins handles GET /api/bins.
func (h *Handler) ListBins(c *gin.Context) {
	statuses, err := h.store.ListStatuses(c.Request.Context())
	if err != nil {
		log.Printf("Failed to list bins: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve bins"})
		return
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].DeviceID < statuses[j].DeviceID })

	response := make([]binResponse, 0, len(statuses))
	for _, s := range statuses {
		response = append(response, h.toBinResponse(s))
	}
	c.JSON(http.StatusOK, response)
}

// GetBin handles GET /api/bins/{device_id}.
func (h *Handler) GetBin(c *gin.Context) {
	deviceID := c.Param("device_id")
	status, err := h.store.GetStatus(c.Request.Context(), deviceID)
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "bin not found"})
		return
	}
	if err != nil {
		log.Printf("Failed to load bin %s: %v", deviceID, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve bin"})
		return
	}

	risk := fleet.RiskIndex(status.FillPercentage, deref(status.HumidityPct), deref(status.TempC))
	c.JSON(http.StatusOK, binDetailResponse{
		binResponse: h.toBinResponse(status),
		RiskIndex:   risk,
		RiskLevel:   fleet.RiskLevel(risk),
	})
}

// GetBinHistory handles GET /api/bins/{device_id}/history?limit=N.
func (h *Handler) GetBinHistory(c *gin.Context) {
	deviceID := c.Param("device_id")

	limit := store.DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	readings, err := h.store.RecentReadings(c.Request.Context(), deviceID, limit)
	if err != nil {
		log.Printf("Failed to load history for %s: %v", deviceID, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve history"})
		return
	}
	if readings == nil {
		readings = []model.Reading{}
	}

	c.JSON(http.StatusOK, historyResponse{
		DeviceID: deviceID,
		Readings: readings,
		ETA:      fleet.EstimateTimeToFull(readings),
	})
}

type putCommandRequest struct {
	Action string `json:"action" binding:"required"`
}

// PutCommand handles PUT /api/bins/{device_id}/command. The device receives
// the action on its next command check.
func (h *Handler) PutCommand(c *gin.Context) {
	var req putCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := model.Command{
		DeviceID:  c.Param("device_id"),
		Action:    req.Action,
		CreatedAt: h.now().UTC(),
	}
	if err := h.store.PutCommand(c.Request.Context(), cmd); err != nil {
		log.Printf("Failed to store command for %s: %v", cmd.DeviceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, cmd)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
