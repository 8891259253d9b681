package handlers

import (
	"embed"
	"errors"
	"io/fs"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/klipps/zuteilung-api-go/pkg/allocator"
	"github.com/klipps/zuteilung-api-go/pkg/auth"
	"github.com/klipps/zuteilung-api-go/pkg/database"
	"github.com/klipps/zuteilung-api-go/pkg/models"
	"github.com/klipps/zuteilung-api-go/pkg/roster"
)

//go:embed static/*
var staticEmbed embed.FS

// Handler contains dependencies for the route handlers
type Handler struct {
	DB *gorm.DB
}

// AuthMiddleware verifies the JWT token for admin routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Strip "Bearer " if present
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}

		claims, err := auth.VerifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// APIKeyMiddleware verifies the API key for allocation routes using HMAC
func (h *Handler) APIKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Authorization")
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "API Key required"})
			c.Abort()
			return
		}

		if len(key) > 7 && key[:7] == "Bearer " {
			key = key[7:]
		}

		userID, err := auth.VerifyHMACKey(key)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key signature"})
			c.Abort()
			return
		}

		// Fetch or create API key record to track usage
		var apiKey database.APIKey
		h.DB.Where(database.APIKey{Key: key}).FirstOrCreate(&apiKey, database.APIKey{
			Key:       key,
			Name:      userID,
			RateLimit: 10000,
		})

		c.Set("apiKey", &apiKey)
		c.Set("userID", userID)
		c.Next()
	}
}

// inputError renders a validation or capacity failure. Row-level student
// errors carry their individual lines so clients can list them.
func inputError(c *gin.Context, err error) {
	var rowErrs *roster.RowErrors
	if errors.As(err, &rowErrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "errors": rowErrs.Lines})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// AllocateJSON handles the JSON-based allocation request
func (h *Handler) AllocateJSON(c *gin.Context) {
	var input models.AllocationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	set, err := roster.BuildClinicSet(input.Clinics, input.Groups)
	if err != nil {
		inputError(c, err)
		return
	}
	students, err := roster.ValidateStudents(input.Students, set, input.RequireOutside)
	if err != nil {
		inputError(c, err)
		return
	}

	assigned, stats, err := allocator.Assign(students, set.Clinics, set.Groups)
	if err != nil {
		if errors.Is(err, allocator.ErrNoSeatLeft) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		inputError(c, err)
		return
	}
	rows := allocator.Project(students, assigned, set.ByID)

	h.RecordUsage(c, len(students), len(set.Clinics))
	h.RecordRun(c, len(students), stats)

	c.JSON(http.StatusOK, models.AllocationResponse{
		Groups:       set.Groups,
		StudentCount: len(students),
		Rows:         rows,
		Stats:        stats,
	})
}

// AllocateCSV handles CSV file uploads for allocation and returns the output
// table as CSV text alongside the statistics
func (h *Handler) AllocateCSV(c *gin.Context) {
	clinicsFile, _ := c.FormFile("kliniken_file")
	studentsFile, _ := c.FormFile("studierende_file")

	if clinicsFile == nil || studentsFile == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kliniken_file and studierende_file are required"})
		return
	}
	requireOutside := roster.ParseBool(c.PostForm("require_outside"))

	set, err := parseClinicsUpload(clinicsFile)
	if err != nil {
		inputError(c, err)
		return
	}
	students, err := parseStudentsUpload(studentsFile, set, requireOutside)
	if err != nil {
		inputError(c, err)
		return
	}

	assigned, stats, err := allocator.Assign(students, set.Clinics, set.Groups)
	if err != nil {
		if errors.Is(err, allocator.ErrNoSeatLeft) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		inputError(c, err)
		return
	}
	rows := allocator.Project(students, assigned, set.ByID)

	var out strings.Builder
	if err := allocator.WriteCSV(&out, rows); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to serialize output CSV"})
		return
	}

	h.RecordUsage(c, len(students), len(set.Clinics))
	h.RecordRun(c, len(students), stats)

	c.JSON(http.StatusOK, gin.H{
		"csv":           out.String(),
		"groups":        set.Groups,
		"student_count": len(students),
		"stats":         stats,
	})
}

func parseClinicsUpload(fh *multipart.FileHeader) (*roster.ClinicSet, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return roster.ParseClinics(f)
}

func parseStudentsUpload(fh *multipart.FileHeader, set *roster.ClinicSet, requireOutside bool) ([]*models.Student, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return roster.ParseStudents(f, set, requireOutside)
}

// RecordUsage records API usage in the database using an efficient upsert
func (h *Handler) RecordUsage(c *gin.Context, studentCount, clinicCount int) {
	apiKeyRaw, exists := c.Get("apiKey")
	if !exists {
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	today := time.Now().Format("2006-01-02")

	// Use OnConflict for a single-query upsert (supported by both Postgres and SQLite)
	h.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":  gorm.Expr("request_count + ?", 1),
			"total_students": gorm.Expr("total_students + ?", studentCount),
			"total_clinics":  gorm.Expr("total_clinics + ?", clinicCount),
		}),
	}).Create(&database.APIUsage{
		KeyID:         apiKey.ID,
		Date:          today,
		RequestCount:  1,
		TotalStudents: studentCount,
		TotalClinics:  clinicCount,
	})
}

// RecordRun stores the summary of a completed allocation run
func (h *Handler) RecordRun(c *gin.Context, studentCount int, stats models.Stats) {
	var keyID uint
	if apiKeyRaw, exists := c.Get("apiKey"); exists {
		keyID = apiKeyRaw.(*database.APIKey).ID
	}

	h.DB.Create(&database.AllocationRun{
		ID:           uuid.NewString(),
		KeyID:        keyID,
		StudentCount: studentCount,
		GroupPrio1:   stats.GroupPrio1,
		GroupPrio2:   stats.GroupPrio2,
		ClinicPrio1:  stats.ClinicPrio1,
		ClinicPrio2:  stats.ClinicPrio2,
		ClinicPrio3:  stats.ClinicPrio3,
	})
}

// Login handles admin login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user database.MasterUser
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := auth.CreateToken(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// GenerateKey creates a new API key using the HMAC strategy
func (h *Handler) GenerateKey(c *gin.Context) {
	var req struct {
		Name      string `json:"name"`
		RateLimit int    `json:"rate_limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if req.RateLimit == 0 {
		req.RateLimit = 10000
	}

	// Generate key using HMAC
	key := auth.GenerateHMACKey(req.Name)

	// Create preview (e.g., sk_...****)
	preview := ""
	if len(key) > 8 {
		preview = key[:3] + "..." + key[len(key)-4:]
	} else {
		preview = "****"
	}

	apiKey := database.APIKey{
		Key:        key,
		Name:       req.Name,
		KeyPreview: preview,
		RateLimit:  req.RateLimit,
	}

	if err := h.DB.Create(&apiKey).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create key record"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name": req.Name,
		"key":  key,
	})
}

// ListKeys returns all API keys
func (h *Handler) ListKeys(c *gin.Context) {
	var keys []database.APIKey
	h.DB.Find(&keys)
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// RevokeKey deletes an API key
func (h *Handler) RevokeKey(c *gin.Context) {
	id := c.Param("id")
	if err := h.DB.Delete(&database.APIKey{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key revoked"})
}

// UpdateKeyLimit updates the rate limit for a key
func (h *Handler) UpdateKeyLimit(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		RateLimit int `json:"rate_limit" form:"rate_limit"`
	}

	// Try JSON first, then Form/Query
	if err := c.ShouldBindJSON(&req); err != nil {
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rate_limit is required"})
			return
		}
	}

	if req.RateLimit == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate limit"})
		return
	}

	if err := h.DB.Model(&database.APIKey{}).Where("id = ?", id).Update("rate_limit", req.RateLimit).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update key limit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rate limit updated successfully"})
}

// GetUsage returns usage stats for a key
func (h *Handler) GetUsage(c *gin.Context) {
	id := c.Param("id")
	var usage []database.APIUsage
	h.DB.Where("key_id = ?", id).Order("date desc").Limit(30).Find(&usage)
	c.JSON(http.StatusOK, gin.H{"usage": usage})
}

// AdminInterface serves the admin web interface from embedded files
func (h *Handler) AdminInterface(c *gin.Context) {
	_ = auth.EnsureAdminExists(h.DB)

	data, err := staticEmbed.ReadFile("static/index.html")
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "static/index.html not found in embedded FS"})
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}

// GetStaticFS returns the embedded filesystem for static assets
func (h *Handler) GetStaticFS() http.FileSystem {
	sub, err := fs.Sub(staticEmbed, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
