package api

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/receiptvault/server/internal/models"
	"github.com/receiptvault/server/internal/repository"
	"github.com/receiptvault/server/internal/service"
	"github.com/receiptvault/server/internal/storage"
	"go.uber.org/zap"
)

// Handler wires the HTTP routes to the service layer
type Handler struct {
	svc        service.Service
	logger     *zap.Logger
	stagingDir string
}

// NewHandler creates a new API handler. stagingDir holds album uploads
// between the multipart save and the move into their album directory; it
// must live on the same filesystem as the uploads tree.
func NewHandler(svc service.Service, logger *zap.Logger, stagingDir string) *Handler {
	return &Handler{svc: svc, logger: logger, stagingDir: stagingDir}
}

// SetupRoutes registers all routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	auth := router.Group("/api/auth")
	auth.POST("/signup", h.SignUp)
	auth.POST("/login", h.Login)

	authed := router.Group("/api", AuthMiddleware())
	authed.GET("/dirs", h.ListDirectories)
	authed.POST("/access/grants", h.GrantAccess)
	authed.DELETE("/access/grants", h.RevokeAccess)

	dir := authed.Group("/dirs/:domain/:local")
	dir.GET("/docs", h.ListDocuments)
	dir.POST("/docs", h.UploadDocuments)
	dir.GET("/docs/:file", h.GetDocument)
	dir.PUT("/docs/:file", h.PublishInvoice)
	dir.DELETE("/docs/:file", h.DeleteDocument)
	dir.POST("/archive", h.ArchiveDirectory)
	dir.GET("/zip", h.ExportDirectory)

	authed.POST("/albums", h.CreateAlbum)
	authed.GET("/albums", h.ListAlbums)
	authed.POST("/albums/:id/members", h.AddAlbumMember)
	authed.POST("/albums/:id/images", h.SubmitImage)
	authed.DELETE("/images/:id", h.DeleteImage)
}

// currentAgent resolves the request-scoped identity set by AuthMiddleware.
// Every core operation receives this agent explicitly.
func (h *Handler) currentAgent(c *gin.Context) (*models.Agent, bool) {
	agent, err := h.svc.GetAgent(c.Request.Context(), c.GetString("agentId"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Status:  "error",
			Code:    "UNAUTHORIZED",
			Message: "Unknown agent",
		})
		return nil, false
	}
	return agent, true
}

// dirParam joins the two path segments of a directory route
func dirParam(c *gin.Context) string {
	return path.Join(c.Param("domain"), c.Param("local"))
}

// respondError maps service errors to HTTP responses
func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, models.ValidationErrorResponse{
			Status: "error",
			Code:   "VALIDATION_FAILED",
			Errors: verr.Fields,
		})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Status:  "error",
			Code:    "FORBIDDEN",
			Message: "You don't have access to this directory",
		})
	case errors.Is(err, service.ErrNoFiles):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "NO_FILES",
			Message: "No files in this directory",
		})
	case errors.Is(err, service.ErrNoInvoices):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "NO_INVOICES",
			Message: "No invoices in this directory",
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "NOT_FOUND",
			Message: "Not found",
		})
	case errors.Is(err, repository.ErrDuplicateKey):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status:  "error",
			Code:    "DUPLICATE_KEY",
			Message: "A record with this key already exists",
		})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status:  "error",
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		})
	}
}

// Authentication handlers
func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Status:  "error",
				Code:    "EMAIL_TAKEN",
				Message: err.Error(),
			})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    "INVALID_CREDENTIALS",
				Message: err.Error(),
			})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Directory handlers
func (h *Handler) ListDirectories(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	summaries, err := h.svc.ReadablesWithCounts(c.Request.Context(), agent)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.DirectoryListResponse{
		Status:      "success",
		Directories: summaries,
	})
}

func (h *Handler) GrantAccess(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	var req models.GrantAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.svc.GrantAccess(c.Request.Context(), agent, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) RevokeAccess(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	var req models.GrantAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	if err := h.svc.RevokeAccess(c.Request.Context(), agent, req); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// Document handlers
func (h *Handler) ListDocuments(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	resp, err := h.svc.ListDocuments(c.Request.Context(), agent, dirParam(c), page)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetDocument(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	dir, name := dirParam(c), c.Param("file")

	// ?raw=1 serves the file bytes instead of the metadata view
	if c.Query("raw") != "" {
		filePath, err := h.svc.DocumentPath(c.Request.Context(), agent, dir, name)
		if err != nil {
			h.respondError(c, err)
			return
		}

		if storage.Classify(name) == storage.KindImage {
			c.File(filePath)
		} else {
			c.FileAttachment(filePath, name)
		}
		return
	}

	resp, err := h.svc.GetDocument(c.Request.Context(), agent, dir, name)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) UploadDocuments(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	files, ok2 := h.formFiles(c)
	if !ok2 {
		return
	}

	dir := dirParam(c)
	uploaded := make([]string, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(fh.Filename)

		dst, err := h.svc.UploadPath(c.Request.Context(), agent, dir, name)
		if err != nil {
			h.respondError(c, err)
			return
		}

		if err := c.SaveUploadedFile(fh, dst); err != nil {
			h.respondError(c, fmt.Errorf("error saving %s: %w", name, err))
			return
		}

		uploaded = append(uploaded, name)
	}

	c.JSON(http.StatusCreated, models.UploadResponse{
		Status:   "success",
		Uploaded: uploaded,
	})
}

// formFiles collects the uploads of a multipart request, accepting both a
// repeated "files" field and a single "file" field.
func (h *Handler) formFiles(c *gin.Context) ([]*multipart.FileHeader, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return nil, false
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "NO_FILES_UPLOADED",
			Message: "No files in request",
		})
		return nil, false
	}

	return files, true
}

func (h *Handler) PublishInvoice(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	var req models.PublishInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	invoice, err := h.svc.PublishInvoice(c.Request.Context(), agent, dirParam(c), c.Param("file"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.InvoiceResponse{
		Status:  "success",
		Invoice: invoice,
	})
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteDocument(c.Request.Context(), agent, dirParam(c), c.Param("file")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) ArchiveDirectory(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	moved, err := h.svc.Archive(c.Request.Context(), agent, dirParam(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ArchiveResponse{
		Status:   "success",
		Archived: moved,
	})
}

func (h *Handler) ExportDirectory(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	// The bundle is assembled in memory so a converter failure surfaces
	// as a clean error response instead of a truncated download.
	var buf bytes.Buffer
	filename, err := h.svc.BuildExport(c.Request.Context(), agent, dirParam(c), &buf)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

// Album handlers
func (h *Handler) CreateAlbum(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	var req models.CreateAlbumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.svc.CreateAlbum(c.Request.Context(), agent, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListAlbums(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	albums, err := h.svc.ListAlbums(c.Request.Context(), agent)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AlbumListResponse{
		Status: "success",
		Albums: albums,
	})
}

func (h *Handler) AddAlbumMember(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	var req models.AddAlbumMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	if err := h.svc.AddAlbumMember(c.Request.Context(), agent, c.Param("id"), req); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success"})
}

func (h *Handler) SubmitImage(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	files, ok2 := h.formFiles(c)
	if !ok2 {
		return
	}

	// Stage uploads next to the uploads tree so the album move is a rename
	staged := make([]service.StagedFile, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		tmp := filepath.Join(h.stagingDir, uuid.New().String()+"-"+name)

		if err := c.SaveUploadedFile(fh, tmp); err != nil {
			h.respondError(c, fmt.Errorf("error staging %s: %w", name, err))
			return
		}

		staged = append(staged, service.StagedFile{Name: name, TempPath: tmp})
	}

	resp, err := h.svc.SubmitImage(c.Request.Context(), agent, c.Param("id"), staged)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) DeleteImage(c *gin.Context) {
	agent, ok := h.currentAgent(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteImage(c.Request.Context(), agent, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
