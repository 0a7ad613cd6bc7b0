package notify

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
)

// Broadcaster fans a message out to all live local subscribers.
// Implemented by the websocket hub.
type Broadcaster interface {
	Broadcast(data []byte)
}

// Service wires the throttler, the subscriber broadcast and the webhook
// dispatcher together. It is the engine's single notification surface.
type Service struct {
	throttler  *Throttler
	dispatcher *Dispatcher
	hub        Broadcaster
}

func NewService(throttler *Throttler, dispatcher *Dispatcher, hub Broadcaster) *Service {
	return &Service{
		throttler:  throttler,
		dispatcher: dispatcher,
		hub:        hub,
	}
}

// Detection runs the stability gate and escalation policy, then fans a
// passing event out to live subscribers. Independent of webhook routing.
func (s *Service) Detection(evt models.Event, now time.Time) {
	if !s.throttler.Allow(evt.PersonID, now) {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"type": "event",
		"data": evt,
	})
	if err != nil {
		slog.Error("marshal broadcast event", "event", evt.Event, "error", err)
		return
	}

	if s.hub != nil {
		s.hub.Broadcast(payload)
		observability.NotificationsSent.WithLabelValues("broadcast").Inc()
	}
}

// Dispatch routes one event to its webhook sink, at most once.
func (s *Service) Dispatch(evt models.Event) {
	s.dispatcher.Send(evt)

	if evt.Event == models.EventTempVisitorDeparted {
		s.throttler.Forget(evt.PersonID)
	}
}
