package query

import (
	"net/http"
	"time"

	"github.com/SwipSwup/the-weather-archive/internal/capture"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the read endpoints under the provided group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.GET("/captures", handler.captures)
	group.GET("/cities", handler.cities)
}

type httpHandler struct {
	service *Service
}

func (h *httpHandler) captures(c *gin.Context) {
	city := c.Query("city")
	date := c.Query("date")
	listDates := c.Query("list_dates")

	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
	}

	var (
		payload []byte
		hit     bool
		err     error
	)

	if listDates != "" {
		if city == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "city parameter is required to list dates"})
			return
		}
		payload, hit, err = h.service.Dates(c.Request.Context(), city)
	} else {
		payload, hit, err = h.service.Captures(c.Request.Context(), city, date)
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if hit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Data(http.StatusOK, "application/json", payload)
}

func (h *httpHandler) cities(c *gin.Context) {
	cities, err := h.service.Cities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list cities"})
		return
	}
	if cities == nil {
		cities = []capture.CityInfo{}
	}
	c.JSON(http.StatusOK, cities)
}
