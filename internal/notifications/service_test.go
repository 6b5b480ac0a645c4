package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"retake/internal/config"
	"retake/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRunStarted, notifications.Payload{"production": "example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "run started",
			event: notifications.EventRunStarted,
			payload: notifications.Payload{
				"production": "winter-feature",
				"session":    "abc-123",
			},
			expectTitle:   "Retake - Run Started",
			expectMessage: "Rebuild started: winter-feature",
			expectTags:    "retake,run,started",
		},
		{
			name:  "round completed",
			event: notifications.EventRoundCompleted,
			payload: notifications.Payload{
				"round":   3,
				"passes":  5,
				"flagged": 2,
			},
			expectTitle:   "Retake - Round 3",
			expectMessage: "Round 3: 5 gates passing, 2 segments flagged",
			expectTags:    "retake,round,completed",
		},
		{
			name:  "round completed with new best",
			event: notifications.EventRoundCompleted,
			payload: notifications.Payload{
				"round":    4,
				"passes":   6,
				"flagged":  1,
				"improved": true,
			},
			expectTitle:   "Retake - Round 4",
			expectMessage: "Round 4: 6 gates passing, 1 segments flagged (new best)",
			expectTags:    "retake,round,completed",
		},
		{
			name:  "review needed",
			event: notifications.EventReviewNeeded,
			payload: notifications.Payload{
				"production": "winter-feature",
				"segments":   2,
			},
			expectTitle:    "Retake - Review Needed",
			expectMessage:  "2 segment(s) need manual review: winter-feature",
			expectTags:     "retake,review,needed",
			expectPriority: "high",
		},
		{
			name:  "run finished passing",
			event: notifications.EventRunFinished,
			payload: notifications.Payload{
				"production": "winter-feature",
				"status":     "passing",
				"rounds":     4,
			},
			expectTitle:    "Retake - Run Complete",
			expectMessage:  "All gates passing: winter-feature after 4 round(s)",
			expectTags:     "retake,run,completed",
			expectPriority: "high",
		},
		{
			name:  "run finished stalled",
			event: notifications.EventRunFinished,
			payload: notifications.Payload{
				"production": "winter-feature",
				"status":     "stalled",
				"rounds":     7,
			},
			expectTitle:    "Retake - Run Complete (stalled)",
			expectMessage:  "Stopped stalled: winter-feature after 7 round(s)",
			expectTags:     "retake,run,completed",
			expectPriority: "high",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "assembly",
				"error":   errors.New("sample rate mismatch"),
			},
			expectTitle:    "Retake - Error",
			expectMessage:  "Error with assembly: sample rate mismatch",
			expectTags:     "retake,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsSuppressionFlags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RoundUpdates = false
	cfg.Notifications.Review = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	suppressed := []notifications.Event{
		notifications.EventRoundCompleted,
		notifications.EventReviewNeeded,
		notifications.EventError,
	}

	for _, event := range suppressed {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"round": 1}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	err := svc.Publish(context.Background(), notifications.EventRunStarted, notifications.Payload{"production": "x"})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
