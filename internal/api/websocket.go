package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"papertrade-core/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var wsTopics = map[string]events.Event{
	"price_tick":      events.EventPriceTick,
	"signal":          events.EventSignal,
	"order.filled":    events.EventOrderFilled,
	"position_change": events.EventPositionChange,
	"risk_alert":      events.EventRiskAlert,
}

// websocket streams bus events to the client. The topic query parameter
// selects the feed; it defaults to price ticks.
func (s *Server) websocket(c *gin.Context) {
	topic := c.DefaultQuery("topic", "price_tick")
	event, ok := wsTopics[topic]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown topic: " + topic})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	stream, unsub := s.Bus.Subscribe(event, 100)
	defer unsub()

	for msg := range stream {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
