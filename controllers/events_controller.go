package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cafe-orders-api/services"
	"go.uber.org/zap"
)

const defaultHeartbeat = 25 * time.Second

// EventSource hands out live subscriptions
type EventSource interface {
	Subscribe(audience services.Audience) *services.Subscription
}

// EventsController streams lifecycle events over Server-Sent Events
type EventsController struct {
	source    EventSource
	logger    *zap.Logger
	heartbeat time.Duration
}

// NewEventsController creates the controller. A heartbeat of zero uses the default.
func NewEventsController(source EventSource, logger *zap.Logger, heartbeat time.Duration) *EventsController {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &EventsController{source: source, logger: logger, heartbeat: heartbeat}
}

// Stream handles GET /api/v1/events. Admins receive the staff feed, customers
// their own order updates. Nothing is replayed: clients refetch state after
// reconnecting.
func (ctl *EventsController) Stream(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	audience := services.CustomerAudience(p.ID)
	if p.IsAdmin() {
		audience = services.StaffAudience
	}

	sub := ctl.source.Subscribe(audience)
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctl.logger.Debug("Event stream opened",
		zap.String("subscription_id", sub.ID()),
		zap.String("audience", string(audience)),
	)

	c.SSEvent("ready", gin.H{"subscription_id": sub.ID(), "audience": audience})
	c.Writer.Flush()

	ticker := time.NewTicker(ctl.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			ctl.logger.Debug("Event stream closed by client", zap.String("subscription_id", sub.ID()))
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			c.SSEvent(string(event.Kind), event)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"time": time.Now().UTC()})
			c.Writer.Flush()
		}
	}
}
