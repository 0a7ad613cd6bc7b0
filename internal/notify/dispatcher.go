package notify

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
)

// Dispatcher posts attendance events to the two external webhook sinks.
// Delivery is fire-and-forget: bounded timeout, no retries, failures
// logged and counted. Attendance state is authoritative regardless of
// delivery success.
type Dispatcher struct {
	cfg    config.WebhooksConfig
	client *http.Client
	sem    chan struct{}
}

func NewDispatcher(cfg config.WebhooksConfig) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sem:    make(chan struct{}, cfg.MaxInFlight),
	}
}

// Send routes the event to the role-matched sink and posts it in the
// background. At-most-once: the caller invokes Send once per event and
// Send never retries.
func (d *Dispatcher) Send(evt models.Event) {
	sink, url := d.route(evt)
	if url == "" {
		return
	}

	body, err := json.Marshal(evt)
	if err != nil {
		slog.Error("marshal webhook event", "event", evt.Event, "error", err)
		return
	}

	select {
	case d.sem <- struct{}{}:
	default:
		// All slots busy; dropping beats blocking the frame pipeline.
		observability.WebhookFailures.WithLabelValues(sink).Inc()
		slog.Warn("webhook dropped, too many in flight", "sink", sink, "event", evt.Event)
		return
	}

	go func() {
		defer func() { <-d.sem }()
		d.post(sink, url, body, evt)
	}()
}

func (d *Dispatcher) route(evt models.Event) (sink, url string) {
	if evt.Role == models.RoleEmployee {
		return "employee", d.cfg.EmployeeURL
	}
	return "stranger", d.cfg.StrangerURL
}

func (d *Dispatcher) post(sink, url string, body []byte, evt models.Event) {
	resp, err := d.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		observability.WebhookFailures.WithLabelValues(sink).Inc()
		slog.Warn("webhook delivery failed",
			"sink", sink, "event", evt.Event, "person_id", evt.PersonID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.WebhookFailures.WithLabelValues(sink).Inc()
		slog.Warn("webhook rejected",
			"sink", sink, "event", evt.Event, "person_id", evt.PersonID, "status", resp.StatusCode)
		return
	}

	observability.NotificationsSent.WithLabelValues(sink).Inc()
}
