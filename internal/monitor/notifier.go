package monitor

import (
	"context"
	"fmt"
	"log"

	"momentum-core/internal/events"
)

// Notifier fans bus alerts out to the configured sinks. Delivery is
// fire-and-forget; a failing sink never blocks the pipeline.
type Notifier struct {
	bus   *events.Bus
	sinks []AlertSink
}

// NewNotifier wires alert delivery. With no sinks it defaults to LogSink.
func NewNotifier(bus *events.Bus, sinks ...AlertSink) *Notifier {
	if len(sinks) == 0 {
		sinks = []AlertSink{LogSink{}}
	}
	return &Notifier{bus: bus, sinks: sinks}
}

// Run consumes alert topics until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	alerts, unsubA := n.bus.Subscribe(events.TopicRiskAlert, 32)
	broker, unsubB := n.bus.Subscribe(events.TopicBrokerUnreachable, 8)
	closed, unsubC := n.bus.Subscribe(events.TopicPositionClosed, 32)
	defer unsubA()
	defer unsubB()
	defer unsubC()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-alerts:
			if s, ok := msg.(string); ok {
				n.send(s)
			}
		case msg := <-broker:
			n.send(fmt.Sprintf("broker unreachable: %v", msg))
		case msg := <-closed:
			if ev, ok := msg.(events.PositionEvent); ok && ev.ExitReason == "RISK_HALT" {
				n.send(fmt.Sprintf("position %s liquidated (risk halt), return %.2f%%", ev.Ticker, ev.ReturnPct))
			}
		}
	}
}

func (n *Notifier) send(message string) {
	for _, sink := range n.sinks {
		go func(s AlertSink) {
			if err := s.Send(message); err != nil {
				log.Printf("[MONITOR] alert delivery failed: %v", err)
			}
		}(sink)
	}
}
