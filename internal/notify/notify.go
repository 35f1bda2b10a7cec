// Package notify fans operational alerts out to Slack, an admin webhook
// and email. Delivery failures are logged and swallowed: an alert that
// cannot be sent must never take a worker down with it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"cohost/internal/config"
)

const defaultCooldown = 15 * time.Minute

// Service delivers alerts to whichever channels are configured. Repeats
// of the same alert are suppressed for the cooldown window so a stuck
// worker does not flood the channels.
type Service struct {
	client      *http.Client
	slackURL    string
	adminURL    string
	sendgridKey string
	alertEmail  string

	mu       sync.Mutex
	lastSent map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

func New(cfg *config.Config) *Service {
	return &Service{
		client:      &http.Client{Timeout: 10 * time.Second},
		slackURL:    cfg.SlackWebhookURL,
		adminURL:    cfg.AdminWebhookURL,
		sendgridKey: cfg.SendGridAPIKey,
		alertEmail:  cfg.AlertEmail,
		lastSent:    map[string]time.Time{},
		cooldown:    defaultCooldown,
		now:         time.Now,
	}
}

// CaptchaDetected alerts that Airbnb is challenging the automated session.
// Human action is required; the delivery worker stops until then.
func (s *Service) CaptchaDetected(ctx context.Context, workerName, detail string) {
	s.send(ctx, "captcha:"+workerName,
		"CAPTCHA challenge detected",
		fmt.Sprintf("Worker %s hit a CAPTCHA and stopped. Log in manually to clear it. %s", workerName, detail))
}

// SessionExpired alerts that the stored Airbnb session no longer works
func (s *Service) SessionExpired(ctx context.Context, workerName string) {
	s.send(ctx, "session:"+workerName,
		"Airbnb session expired",
		fmt.Sprintf("Worker %s was redirected to login. Refresh the saved session.", workerName))
}

// WorkerError alerts that a worker keeps failing loop after loop
func (s *Service) WorkerError(ctx context.Context, workerName string, consecutive int, err error) {
	s.send(ctx, "error:"+workerName,
		"Worker failing repeatedly",
		fmt.Sprintf("Worker %s failed %d consecutive cycles. Last error: %v", workerName, consecutive, err))
}

// Admin raises a generic operator alert, keyed by title for cooldown
func (s *Service) Admin(ctx context.Context, title, body string) {
	s.send(ctx, "admin:"+title, title, body)
}

func (s *Service) send(ctx context.Context, key, title, body string) {
	if !s.shouldSend(key) {
		log.Debug().Str("alert", key).Msg("Alert suppressed by cooldown")
		return
	}

	log.Warn().Str("alert", key).Str("title", title).Msg(body)

	if s.slackURL != "" {
		s.postJSON(ctx, s.slackURL, map[string]string{
			"text": fmt.Sprintf("*%s*\n%s", title, body),
		})
	}
	if s.adminURL != "" {
		s.postJSON(ctx, s.adminURL, map[string]string{
			"alert":     key,
			"title":     title,
			"body":      body,
			"timestamp": s.now().UTC().Format(time.RFC3339),
		})
	}
	if s.sendgridKey != "" && s.alertEmail != "" {
		s.sendEmail(title, body)
	}
}

func (s *Service) shouldSend(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.lastSent[key]; ok && now.Sub(last) < s.cooldown {
		return false
	}
	s.lastSent[key] = now
	return true
}

func (s *Service) postJSON(ctx context.Context, url string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal alert payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to build alert request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Failed to deliver alert")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("Alert endpoint rejected alert")
	}
}

func (s *Service) sendEmail(subject, body string) {
	from := mail.NewEmail("Cohost Alerts", "alerts@cohost.local")
	to := mail.NewEmail("Host", s.alertEmail)
	message := mail.NewSingleEmail(from, "[cohost] "+subject, to, body, body)

	client := sendgrid.NewSendClient(s.sendgridKey)
	response, err := client.Send(message)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to send alert email")
		return
	}
	if response.StatusCode >= 400 {
		log.Warn().Int("status", response.StatusCode).Msg("SendGrid rejected alert email")
	}
}
