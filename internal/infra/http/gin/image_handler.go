package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"communityeats/internal/infra/storage/s3"
)

// ImageHTTP exposes presigned upload/download URL minting.
type ImageHTTP interface {
	UploadURL(c *gin.Context)
	DownloadURL(c *gin.Context)
}

type ImageHandler struct {
	Store  s3.ImageStore
	Logger *slog.Logger
}

// UploadURL mints an object key under the caller's prefix and a presigned PUT
// URL for it. The client uploads directly to object storage and references
// the returned key when creating or updating a listing.
func (h ImageHandler) UploadURL(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		FileName string `json:"file_name"`
		// ContentType is advisory; the presigned PUT does not pin it.
		ContentType string `json:"content_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(req.FileName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_name is required"})
		return
	}

	key, uploadURL, err := h.Store.PresignUpload(c.Request.Context(), principal.ID, req.FileName)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("presign upload failed", "error", err)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key":        key,
		"upload_url": uploadURL,
		"public_url": h.Store.ObjectURL(key),
	})
}

// DownloadURL returns a presigned GET URL for a stored object.
func (h ImageHandler) DownloadURL(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	url, err := h.Store.PresignGet(c.Request.Context(), key)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("presign get failed", "key", key, "error", err)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

var _ ImageHTTP = (*ImageHandler)(nil)
