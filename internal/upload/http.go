package upload

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the upload coordinator under the provided group.
// The group is expected to carry the API key middleware.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.GET("/upload-url", handler.createUploadURL)
}

type httpHandler struct {
	service *Service
}

func (h *httpHandler) createUploadURL(c *gin.Context) {
	req := Request{
		City:     c.DefaultQuery("city", "unknown"),
		DeviceID: c.DefaultQuery("deviceId", "unknown"),
		FileType: c.DefaultQuery("fileType", "image/jpeg"),
	}

	if cc := c.Query("countryCode"); cc != "" {
		req.CountryCode = &cc
	}

	if raw := c.Query("timestamp"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC 3339"})
			return
		}
		req.Timestamp = &ts
	}

	var badParam string
	req.Temperature, badParam = parseOptionalFloat(c, "temp", badParam)
	req.Humidity, badParam = parseOptionalFloat(c, "humidity", badParam)
	req.Pressure, badParam = parseOptionalFloat(c, "pressure", badParam)
	if badParam != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": badParam + " must be numeric"})
		return
	}

	auth, err := h.service.CreateUploadURL(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidFileType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidFileType.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create upload url"})
		return
	}

	c.JSON(http.StatusOK, auth)
}

func parseOptionalFloat(c *gin.Context, name, bad string) (*float64, string) {
	raw := c.Query(name)
	if raw == "" {
		return nil, bad
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if bad == "" {
			bad = name
		}
		return nil, bad
	}
	return &val, bad
}
