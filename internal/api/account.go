package api

import (
	"io"
	"net/http"
	"time"

	"storefront/internal/realtime"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) registerProfile(c *gin.Context) {
	var in service.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	profile, err := h.svc.Profiles.Register(c.Request.Context(), currentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (h *Handler) getProfile(c *gin.Context) {
	profile, err := h.svc.Profiles.Me(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var in service.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	profile, err := h.svc.Profiles.UpdateMe(c.Request.Context(), currentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// stream pushes change notifications to the client as Server-Sent Events
func (h *Handler) stream(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Live updates are unavailable"})
		return
	}

	userID := currentUser(c)
	ctx := c.Request.Context()
	out := make(chan realtime.Notification, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.hub.Stream(ctx, userID.String(), out)
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case err := <-errCh:
			if err != nil {
				h.logger.Warn("Notification stream ended", zap.String("user_id", userID.String()), zap.Error(err))
			}
			return false
		case n := <-out:
			c.SSEvent(n.Table, n)
			return true
		case t := <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"time": t.Unix()})
			return true
		}
	})
}
