package handlers

import (
	"io"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"restaurant-order-engine/events"
	"restaurant-order-engine/middleware"
)

const heartbeatInterval = 15 * time.Second

// Subscribe streams live events for a topic as server-sent events. Nothing
// is replayed; clients load the current state with a list call and then
// apply the stream. A client that falls behind is told so and disconnected.
func (h *Handler) Subscribe(c *gin.Context) {
	h.stream(c, c.Param("topic"))
}

// SubscribeMenu streams catalog changes without authentication, matching
// the public menu listing.
func (h *Handler) SubscribeMenu(c *gin.Context) {
	h.stream(c, events.TopicMenu)
}

func (h *Handler) stream(c *gin.Context, topic string) {
	sub, err := h.Engine.Subscribe(middleware.GetRole(c), topic, h.EventBuffer)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer sub.Close()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Render(-1, sse.Event{Event: "subscribed", Data: gin.H{"topic": sub.Topic()}})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-heartbeat.C:
			c.Render(-1, sse.Event{Event: "ping", Data: time.Now().UTC().Format(time.RFC3339)})
			return true
		case e, ok := <-sub.Events():
			if !ok {
				c.Render(-1, sse.Event{Event: "dropped", Data: gin.H{"error": "subscriber fell behind; reload state"}})
				return false
			}
			c.Render(-1, sse.Event{
				Id:    strconv.FormatUint(e.Seq, 10),
				Event: string(e.Type),
				Data:  envelope(e),
			})
			return true
		}
	})
}

func envelope(e events.Event) gin.H {
	return gin.H{"type": e.Type, "payload": e.Payload, "seq": e.Seq}
}
