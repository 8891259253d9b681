package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/klipps/zuteilung-api-go/pkg/database"
)

// GetMyUsage returns usage stats for the authenticated API key
func (h *Handler) GetMyUsage(c *gin.Context) {
	apiKeyRaw, exists := c.Get("apiKey")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "API Key context missing"})
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	var usage []database.APIUsage
	if err := h.DB.Where("key_id = ?", apiKey.ID).Order("date desc").Limit(30).Find(&usage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch usage details"})
		return
	}

	// Calculate totals
	var totalRequests, totalStudents, totalClinics int64
	for _, u := range usage {
		totalRequests += int64(u.RequestCount)
		totalStudents += int64(u.TotalStudents)
		totalClinics += int64(u.TotalClinics)
	}

	c.JSON(http.StatusOK, gin.H{
		"key_name":      apiKey.Name,
		"rate_limit":    apiKey.RateLimit,
		"usage_history": usage,
		"totals": gin.H{
			"requests": totalRequests,
			"students": totalStudents,
			"clinics":  totalClinics,
		},
	})
}

// ListRuns returns recent allocation run summaries for the admin interface
func (h *Handler) ListRuns(c *gin.Context) {
	var runs []database.AllocationRun
	if err := h.DB.Order("created_at desc").Limit(50).Find(&runs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
