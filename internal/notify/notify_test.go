package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohost/internal/config"
)

func TestCaptchaDetected_PostsToChannels(t *testing.T) {
	var slackPayload, adminPayload map[string]string
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&slackPayload))
	}))
	defer slack.Close()
	admin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&adminPayload))
	}))
	defer admin.Close()

	s := New(&config.Config{SlackWebhookURL: slack.URL, AdminWebhookURL: admin.URL})
	s.CaptchaDetected(context.Background(), "send_worker", "")

	require.NotNil(t, slackPayload)
	assert.Contains(t, slackPayload["text"], "CAPTCHA")
	require.NotNil(t, adminPayload)
	assert.Equal(t, "captcha:send_worker", adminPayload["alert"])
	assert.Contains(t, adminPayload["body"], "send_worker")
}

func TestSend_CooldownSuppressesRepeats(t *testing.T) {
	var calls int
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))
	defer slack.Close()

	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	s := New(&config.Config{SlackWebhookURL: slack.URL})
	s.now = func() time.Time { return now }

	s.SessionExpired(context.Background(), "sync_worker")
	s.SessionExpired(context.Background(), "sync_worker")
	assert.Equal(t, 1, calls, "repeat within cooldown must be suppressed")

	now = now.Add(defaultCooldown + time.Minute)
	s.SessionExpired(context.Background(), "sync_worker")
	assert.Equal(t, 2, calls, "alert fires again after the cooldown")
}

func TestSend_DistinctAlertsNotThrottledTogether(t *testing.T) {
	var calls int
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))
	defer slack.Close()

	s := New(&config.Config{SlackWebhookURL: slack.URL})
	s.SessionExpired(context.Background(), "sync_worker")
	s.SessionExpired(context.Background(), "send_worker")
	assert.Equal(t, 2, calls)
}

func TestSend_DeliveryFailureIsSwallowed(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer failing.Close()

	s := New(&config.Config{SlackWebhookURL: failing.URL, AdminWebhookURL: "http://127.0.0.1:1/unreachable"})

	// Must not panic or block
	s.WorkerError(context.Background(), "send_worker", 5, assert.AnError)
}

func TestSend_NoChannelsConfigured(t *testing.T) {
	s := New(&config.Config{})
	s.CaptchaDetected(context.Background(), "send_worker", "")
}
