package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"momentum-core/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocket streams signals and position lifecycle events to the UI.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	signals, unsubS := s.Bus.Subscribe(events.TopicSignal, 100)
	opened, unsubO := s.Bus.Subscribe(events.TopicPositionOpened, 100)
	closed, unsubC := s.Bus.Subscribe(events.TopicPositionClosed, 100)
	alerts, unsubA := s.Bus.Subscribe(events.TopicRiskAlert, 100)
	defer unsubS()
	defer unsubO()
	defer unsubC()
	defer unsubA()

	type envelope struct {
		Topic   string `json:"topic"`
		Payload any    `json:"payload"`
	}

	write := func(topic string, payload any) bool {
		if err := conn.WriteJSON(envelope{Topic: topic, Payload: payload}); err != nil {
			log.Printf("ws write error: %v", err)
			return false
		}
		return true
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-signals:
			if !write("signal", msg) {
				return
			}
		case msg := <-opened:
			if !write("position.opened", msg) {
				return
			}
		case msg := <-closed:
			if !write("position.closed", msg) {
				return
			}
		case msg := <-alerts:
			if !write("risk_alert", msg) {
				return
			}
		}
	}
}
