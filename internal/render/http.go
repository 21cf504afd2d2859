package render

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// The hosting environment bounds a scheduler invocation; triggered runs
// get the same ceiling.
const triggerRunTimeout = 10 * time.Minute

type triggerRequest struct {
	Date string `json:"date" binding:"required"`
}

// RegisterRoutes mounts the render trigger under the provided group.
// The group is expected to carry the API key middleware.
func RegisterRoutes(group *gin.RouterGroup, scheduler *Scheduler) {
	handler := &httpHandler{scheduler: scheduler}
	group.POST("/render", handler.trigger)
}

type httpHandler struct {
	scheduler *Scheduler
}

// trigger schedules a run for the requested date and returns
// immediately; the run itself is fire-and-forget.
func (h *httpHandler) trigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'date' parameter"})
		return
	}

	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	go func(date string) {
		ctx, cancel := context.WithTimeout(context.Background(), triggerRunTimeout)
		defer cancel()
		_ = h.scheduler.Run(ctx, date)
	}(req.Date)

	c.JSON(http.StatusAccepted, gin.H{"message": "video generation triggered for " + req.Date})
}
