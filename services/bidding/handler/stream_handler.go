package handler

import (
	"io"
	"net/http"
	"time"

	"auction-house/internal/fanout"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

const keepAliveInterval = 15 * time.Second

// EventSource hands out live subscriptions
type EventSource interface {
	Subscribe(topic string) *fanout.Subscription
	SubscribeUser(userID string) *fanout.Subscription
}

// StreamHandler serves fanout topics as server-sent events
type StreamHandler struct {
	events EventSource
}

func NewStreamHandler(events EventSource) *StreamHandler {
	return &StreamHandler{events: events}
}

// AuctionEventsHandler handles GET /auctions/:auction_id/events
func (h *StreamHandler) AuctionEventsHandler(c *gin.Context) {
	h.stream(c, "AuctionEventsHandler", h.events.Subscribe(fanout.AuctionTopic(c.Param("auction_id"))))
}

// GlobalEventsHandler handles GET /events
func (h *StreamHandler) GlobalEventsHandler(c *gin.Context) {
	h.stream(c, "GlobalEventsHandler", h.events.Subscribe(fanout.GlobalTopic))
}

// UserEventsHandler handles GET /users/:user_id/events
func (h *StreamHandler) UserEventsHandler(c *gin.Context) {
	h.stream(c, "UserEventsHandler", h.events.SubscribeUser(c.Param("user_id")))
}

// stream relays events until the client goes away or the subscription closes
func (h *StreamHandler) stream(c *gin.Context, handlerName string, sub *fanout.Subscription) {
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	utils.Debug(handlerName+": subscriber connected", map[string]any{"path": c.Request.URL.Path})
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
	utils.Debug(handlerName+": subscriber disconnected", map[string]any{"path": c.Request.URL.Path})
}
