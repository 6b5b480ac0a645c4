package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"retake/internal/config"
)

const userAgent = "Retake-Go/0.1.0"

// Event identifies a rebuild-loop milestone worth pushing to the operator.
type Event string

const (
	EventRunStarted     Event = "run_started"
	EventRoundCompleted Event = "round_completed"
	EventReviewNeeded   Event = "review_needed"
	EventRunFinished    Event = "run_finished"
	EventError          Event = "error"
)

// Payload carries the event-specific fields used to format messages.
type Payload map[string]any

// Service defines the notification surface exposed to the control loop.
type Service interface {
	Publish(ctx context.Context, event Event, data Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		roundUpdates: cfg.Notifications.RoundUpdates,
		review:       cfg.Notifications.Review,
		errors:       cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	roundUpdates bool
	review       bool
	errors       bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := compose(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventRoundCompleted:
		return n.roundUpdates
	case EventReviewNeeded:
		return n.review
	case EventError:
		return n.errors
	}
	return true
}

func compose(event Event, data Payload) (message, bool) {
	switch event {
	case EventRunStarted:
		production := stringField(data, "production")
		return message{
			title: "Retake - Run Started",
			body:  fmt.Sprintf("Rebuild started: %s", production),
			tags:  []string{"retake", "run", "started"},
		}, true

	case EventRoundCompleted:
		round := intField(data, "round")
		passes := intField(data, "passes")
		flagged := intField(data, "flagged")
		body := fmt.Sprintf("Round %d: %d gates passing, %d segments flagged", round, passes, flagged)
		if boolField(data, "improved") {
			body += " (new best)"
		}
		return message{
			title: fmt.Sprintf("Retake - Round %d", round),
			body:  body,
			tags:  []string{"retake", "round", "completed"},
		}, true

	case EventReviewNeeded:
		production := stringField(data, "production")
		segments := intField(data, "segments")
		return message{
			title:    "Retake - Review Needed",
			body:     fmt.Sprintf("%d segment(s) need manual review: %s", segments, production),
			tags:     []string{"retake", "review", "needed"},
			priority: "high",
		}, true

	case EventRunFinished:
		production := stringField(data, "production")
		status := stringField(data, "status")
		rounds := intField(data, "rounds")
		if status == "passing" {
			return message{
				title:    "Retake - Run Complete",
				body:     fmt.Sprintf("All gates passing: %s after %d round(s)", production, rounds),
				tags:     []string{"retake", "run", "completed"},
				priority: "high",
			}, true
		}
		return message{
			title:    fmt.Sprintf("Retake - Run Complete (%s)", status),
			body:     fmt.Sprintf("Stopped %s: %s after %d round(s)", status, production, rounds),
			tags:     []string{"retake", "run", "completed"},
			priority: "high",
		}, true

	case EventError:
		label := stringField(data, "context")
		errText := stringField(data, "error")
		if errText == "" {
			errText = "unknown"
		}
		var builder strings.Builder
		builder.WriteString("Error")
		if label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		builder.WriteString(errText)
		return message{
			title:    "Retake - Error",
			body:     builder.String(),
			tags:     []string{"retake", "error", "alert"},
			priority: "high",
		}, true
	}
	return message{}, false
}

func stringField(data Payload, key string) string {
	if data == nil {
		return ""
	}
	switch v := data[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func intField(data Payload, key string) int {
	if data == nil {
		return 0
	}
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func boolField(data Payload, key string) bool {
	if data == nil {
		return false
	}
	v, _ := data[key].(bool)
	return v
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
