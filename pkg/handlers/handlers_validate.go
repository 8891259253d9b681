package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/klipps/zuteilung-api-go/pkg/models"
	"github.com/klipps/zuteilung-api-go/pkg/roster"
)

// ValidateInput handles the JSON-based validation request: it runs the full
// record validation without allocating, so a client can surface every input
// problem before committing to a run.
func (h *Handler) ValidateInput(c *gin.Context) {
	var input models.AllocationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	set, err := roster.BuildClinicSet(input.Clinics, input.Groups)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}

	students, err := roster.ValidateStudents(input.Students, set, input.RequireOutside)
	if err != nil {
		resp := gin.H{"valid": false, "error": err.Error()}
		var rowErrs *roster.RowErrors
		if errors.As(err, &rowErrs) {
			resp["errors"] = rowErrs.Lines
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"stats": gin.H{
			"student_count": len(students),
			"clinic_count":  len(set.Clinics),
			"groups":        set.Groups,
		},
	})
}
