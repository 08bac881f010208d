package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"gorm.io/gorm"

	"github.com/md-ryhan-uddin/document-extraction-ai-system/models"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/pipeline"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".tif": true, ".tiff": true, ".bmp": true,
}

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.POST("/documents", uploadDocumentHandler)
	authGroup.GET("/documents", listDocumentsHandler)
	authGroup.GET("/documents/:id", getDocumentHandler)
	authGroup.POST("/documents/:id/cancel", cancelDocumentHandler)
	authGroup.POST("/documents/:id/reprocess", reprocessDocumentHandler)
	authGroup.DELETE("/documents/:id", deleteDocumentHandler)

	adminGroup := authGroup.Group("/admin")
	adminGroup.Use(requireRole("administrator"))
	adminGroup.POST("/cancel-all", forceCancelAllHandler)
	adminGroup.DELETE("/documents", deleteAllDocumentsHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func requireRole(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get("role")
		if role != name {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": usernameVal.(string)})
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := RegisterUser(req.Username, req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	// Resolve role name from RoleID for the token claim.
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString})
}

// uploadDocumentHandler stores the file, creates the document row and hands it
// to the processing queue. The response returns immediately; processing is
// asynchronous.
func uploadDocumentHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > 50*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 50MB)"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	var fileType string
	switch {
	case ext == ".pdf":
		fileType = models.FileTypePDF
	case imageExts[ext]:
		fileType = models.FileTypeImage
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported file extension %q", ext)})
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = strings.TrimSuffix(file.Filename, ext)
	}

	baseDir := filepath.Join(uploadBaseDir(), "documents")
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mkdir failed"})
		return
	}
	storePath := filepath.Join(baseDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, storePath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	// Reject structurally broken PDFs before they ever reach a worker.
	pageCount := 0
	if fileType == models.FileTypePDF {
		if err := api.ValidateFile(storePath, nil); err != nil {
			os.Remove(storePath)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pdf: " + err.Error()})
			return
		}
		if n, err := api.PageCountFile(storePath); err == nil {
			pageCount = n
		}
	}

	doc := models.Document{
		Title:            title,
		OriginalFilename: file.Filename,
		StorePath:        storePath,
		FileType:         fileType,
		FileSize:         file.Size,
		Status:           models.StatusUploaded,
	}
	if err := db.Create(&doc).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}
	queue.Enqueue(doc.ID)
	resp := gin.H{"id": doc.ID, "status": doc.Status, "file_type": doc.FileType}
	if pageCount > 0 {
		resp["page_count"] = pageCount
	}
	c.JSON(http.StatusAccepted, resp)
}

// listDocumentsHandler returns recent documents, optionally filtered by status.
func listDocumentsHandler(c *gin.Context) {
	q := db.Model(&models.Document{})
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var docs []models.Document
	if err := q.Order("id desc").Limit(200).Find(&docs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, docs)
}

func getDocumentHandler(c *gin.Context) {
	var doc models.Document
	err := db.
		Preload("Pages", func(tx *gorm.DB) *gorm.DB { return tx.Order("page_number") }).
		Preload("Pages.ContentBlocks", func(tx *gorm.DB) *gorm.DB { return tx.Order("block_number") }).
		Preload("Pages.ContentBlocks.TableCells").
		Preload("Pages.ContentBlocks.FormFields", func(tx *gorm.DB) *gorm.DB { return tx.Order("field_order") }).
		First(&doc, c.Param("id")).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// cancelDocumentHandler requests cooperative cancellation. Only a document
// that is currently processing can be cancelled; the worker honors the flag
// at its next checkpoint.
func cancelDocumentHandler(c *gin.Context) {
	var doc models.Document
	if err := db.First(&doc, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if doc.Status != models.StatusProcessing {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document is not processing", "status": doc.Status})
		return
	}
	registry.Request(doc.ID)
	c.JSON(http.StatusOK, gin.H{"message": "cancellation requested", "id": doc.ID})
}

// reprocessDocumentHandler purges all extracted content and queues the
// document again. Extraction logs are kept as the audit trail.
func reprocessDocumentHandler(c *gin.Context) {
	var doc models.Document
	if err := db.First(&doc, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	switch doc.Status {
	case models.StatusCompleted, models.StatusFailed, models.StatusCancelled:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "document is not in a terminal state", "status": doc.Status})
		return
	}
	if err := pipeline.DeleteDocumentPages(db, doc.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "purge failed"})
		return
	}
	doc.Status = models.StatusUploaded
	doc.ErrorMessage = ""
	doc.TotalPages = 0
	doc.ProcessedAt = nil
	doc.ProcessingTime = 0
	if err := db.Save(&doc).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}
	queue.Enqueue(doc.ID)
	c.JSON(http.StatusAccepted, gin.H{"id": doc.ID, "status": doc.Status})
}

func deleteDocumentHandler(c *gin.Context) {
	var doc models.Document
	if err := db.First(&doc, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if doc.Status == models.StatusProcessing {
		c.JSON(http.StatusConflict, gin.H{"error": "cancel processing first"})
		return
	}
	if err := pipeline.DeleteDocumentPages(db, doc.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "purge failed"})
		return
	}
	db.Where("document_id = ?", doc.ID).Delete(&models.ExtractionLog{})
	if err := db.Delete(&doc).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	os.Remove(doc.StorePath) // best effort
	c.JSON(http.StatusOK, gin.H{"message": "document deleted", "id": doc.ID})
}

// forceCancelAllHandler flags every in-flight document for cancellation.
func forceCancelAllHandler(c *gin.Context) {
	var ids []uint
	if err := db.Model(&models.Document{}).Where("status = ?", models.StatusProcessing).Pluck("id", &ids).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	for _, id := range ids {
		registry.Request(id)
	}
	c.JSON(http.StatusOK, gin.H{"message": "cancellation requested", "count": len(ids)})
}

// deleteAllDocumentsHandler wipes every document together with its content
// and audit logs. Destructive; admin only.
func deleteAllDocumentsHandler(c *gin.Context) {
	var ids []uint
	if err := db.Model(&models.Document{}).Pluck("id", &ids).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	for _, id := range ids {
		if err := pipeline.DeleteDocumentPages(db, id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("purge failed for document %d", id)})
			return
		}
	}
	db.Where("1 = 1").Delete(&models.ExtractionLog{})
	db.Where("1 = 1").Delete(&models.Document{})
	c.JSON(http.StatusOK, gin.H{"message": "all documents deleted", "count": len(ids)})
}
