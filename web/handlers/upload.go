package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"datachat/files"
	"datachat/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UploadHandler struct {
	service *files.Service
	dir     string
	logger  *zap.Logger
}

func NewUploadHandler(service *files.Service, dir string, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{service: service, dir: dir, logger: logger}
}

// Upload accepts a multipart file, stores it in the uploads directory and
// registers it as a selectable dataset.
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "No file provided")
		return
	}

	name := utils.SanitizeFilename(fileHeader.Filename)
	if name == "" || !files.Accepts(name) {
		respondWithClientError(c, http.StatusBadRequest, "Unsupported file type")
		return
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Could not store the upload", h.logger)
		return
	}
	dest := filepath.Join(h.dir, name)
	if err := c.SaveUploadedFile(fileHeader, dest); err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Could not store the upload", h.logger,
			zap.String("filename", name))
		return
	}

	if err := h.service.Register(c.Request.Context(), name); err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Uploaded but could not register the file", h.logger,
			zap.String("filename", name))
		return
	}

	h.logger.Info("File uploaded", zap.String("filename", name), zap.Int64("size", fileHeader.Size))
	c.JSON(http.StatusOK, gin.H{"name": name})
}

// List returns the registered uploads.
func (h *UploadHandler) List(c *gin.Context) {
	uploads, err := h.service.List(c.Request.Context())
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Could not list uploads", h.logger)
		return
	}
	c.JSON(http.StatusOK, uploads)
}

// Delete removes an upload from disk and from the registry.
func (h *UploadHandler) Delete(c *gin.Context) {
	name := utils.SanitizeFilename(c.Param("name"))
	if name == "" {
		respondWithClientError(c, http.StatusBadRequest, "Invalid file name")
		return
	}
	if !utils.VerifyFileExists(h.dir, name) {
		respondWithClientError(c, http.StatusNotFound, "File not found")
		return
	}
	if err := os.Remove(filepath.Join(h.dir, name)); err != nil && !os.IsNotExist(err) {
		respondWithError(c, http.StatusInternalServerError, err, "Could not delete the file", h.logger,
			zap.String("filename", name))
		return
	}
	if err := h.service.Unregister(c.Request.Context(), name); err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Could not unregister the file", h.logger,
			zap.String("filename", name))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
