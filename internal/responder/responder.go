// Package responder turns an unanswered guest message into a draft reply,
// either through an external drafting webhook or directly through OpenAI.
package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"cohost/internal/config"
	"cohost/internal/models"
	"cohost/internal/utils"
)

const contextMessageLimit = 20

// Store is the slice of the database layer the responder reads from
type Store interface {
	GetThreadMessages(ctx context.Context, threadID int64, limit int) ([]models.Message, error)
	CountGuestThreads(ctx context.Context, guestName string, listingID int64) (int, error)
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
}

// Responder drafts replies. The webhook provider wins when configured;
// otherwise OpenAI is used directly, and with neither configured every
// draft comes back empty so callers fall through to the canned reply.
type Responder struct {
	store         Store
	client        *http.Client
	webhookURL    string
	apiKey        string
	openaiClient  *openai.Client
	fallbackReply string
}

func New(store Store, cfg *config.Config) *Responder {
	r := &Responder{
		store:         store,
		client:        &http.Client{Timeout: cfg.AITimeout},
		webhookURL:    cfg.AIWebhookURL,
		apiKey:        cfg.AIAPIKey,
		fallbackReply: cfg.FallbackReply,
	}
	if cfg.AIWebhookURL == "" && cfg.OpenAIKey != "" {
		r.openaiClient = openai.NewClient(cfg.OpenAIKey)
	}
	return r
}

// draftRequest is the payload sent to the drafting webhook
type draftRequest struct {
	ConversationID string         `json:"conversation_id"`
	GuestName      string         `json:"guest_name"`
	PropertyName   string         `json:"property_name,omitempty"`
	ReturningGuest bool           `json:"returning_guest"`
	Messages       []draftMessage `json:"messages"`
	Instruction    string         `json:"instruction"`
}

type draftMessage struct {
	Direction string    `json:"direction"`
	Sender    string    `json:"sender,omitempty"`
	Content   string    `json:"content"`
	SentAt    time.Time `json:"sent_at"`
}

// Draft produces a reply for the latest guest message in a thread. An
// empty string with a nil error means the provider had nothing to say;
// the caller decides whether to fall back.
func (r *Responder) Draft(ctx context.Context, thread *models.Thread, latest models.Message) (string, error) {
	req, err := r.buildRequest(ctx, thread, latest)
	if err != nil {
		return "", err
	}

	switch {
	case r.webhookURL != "":
		return r.draftViaWebhook(ctx, req)
	case r.openaiClient != nil:
		return r.draftViaOpenAI(ctx, req)
	default:
		log.Warn().Str("thread", thread.ExternalID).Msg("No draft provider configured")
		return "", nil
	}
}

// Fallback is the canned reply used when no draft could be produced
func (r *Responder) Fallback(guestName string) string {
	first := utils.FirstName(guestName)
	if first == "" {
		return r.fallbackReply
	}
	return fmt.Sprintf("Hi %s! %s", first, r.fallbackReply)
}

func (r *Responder) buildRequest(ctx context.Context, thread *models.Thread, latest models.Message) (*draftRequest, error) {
	history, err := r.store.GetThreadMessages(ctx, thread.ID, contextMessageLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	req := &draftRequest{
		ConversationID: thread.ExternalID,
		GuestName:      thread.GuestName,
		Instruction:    utils.GetLanguageInstruction(utils.DetectLanguage(latest.Content)),
	}

	if listing, err := r.store.GetListing(ctx, thread.ListingID); err == nil && listing != nil {
		req.PropertyName = listing.Name
	}

	if thread.GuestName != "" {
		count, err := r.store.CountGuestThreads(ctx, thread.GuestName, thread.ListingID)
		if err == nil && count > 1 {
			req.ReturningGuest = true
		}
	}

	for _, m := range history {
		req.Messages = append(req.Messages, draftMessage{
			Direction: m.Direction,
			Sender:    m.SenderName,
			Content:   m.Content,
			SentAt:    m.SentAt,
		})
	}
	return req, nil
}

func (r *Responder) draftViaWebhook(ctx context.Context, req *draftRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal draft request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.webhookURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build draft request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("draft webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("draft webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode draft response: %w", err)
	}
	return extractReply(parsed), nil
}

// extractReply probes the field names drafting services answer with
func extractReply(parsed map[string]any) string {
	for _, key := range []string{"response", "message", "text", "content"} {
		if value, ok := parsed[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (r *Responder) draftViaOpenAI(ctx context.Context, req *draftRequest) (string, error) {
	var transcript strings.Builder
	for _, m := range req.Messages {
		role := "Guest"
		if m.Direction == models.DirectionOutbound {
			role = "Host"
		}
		fmt.Fprintf(&transcript, "%s: %s\n", role, m.Content)
	}

	system := "You are a friendly, professional co-host replying to Airbnb guests on the host's behalf. " +
		"Answer the guest's latest message concisely and helpfully. Do not invent facts about the property. " +
		req.Instruction
	if req.PropertyName != "" {
		system += " The property is \"" + req.PropertyName + "\"."
	}
	if req.ReturningGuest {
		system += " This is a returning guest; greet them warmly."
	}

	resp, err := r.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: transcript.String()},
		},
		MaxTokens:   400,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("openai draft failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
