package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"cohost/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// WebhookStore extends the messaging surface with the upserts needed to
// register a conversation the scraper has not seen yet
type WebhookStore interface {
	MessageStore
	UpsertListing(ctx context.Context, externalID, name string) (int64, error)
	UpsertThread(ctx context.Context, externalID string, listingID int64, guestName string, lastMessageAt *time.Time) (int64, error)
}

// AIWebhookHandler accepts replies pushed by an external drafting
// service and queues them for delivery. The conversation id is the
// external thread id; an unseen conversation is registered under the
// placeholder listing so the reply is not dropped.
// @Summary Accept an externally drafted reply
// @Accept json
// @Produce json
// @Param request body models.AIWebhookRequest true "Drafted reply"
// @Success 200 {object} models.SendMessageResponse
// @Failure 400 {object} models.SendMessageResponse
// @Router /api/ai/webhook [post]
func AIWebhookHandler(store WebhookStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.AIWebhookRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.SendMessageResponse{
				Error: "invalid request body",
			})
		}
		if strings.TrimSpace(req.ConversationID) == "" || strings.TrimSpace(req.Message) == "" {
			return c.JSON(http.StatusBadRequest, models.SendMessageResponse{
				Error: "conversation_id and message are required",
			})
		}

		ctx := c.Request().Context()
		thread, err := store.GetThreadByExternalID(ctx, req.ConversationID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.SendMessageResponse{
				Error: "failed to look up conversation",
			})
		}

		var threadID int64
		if thread != nil {
			threadID = thread.ID
		} else {
			threadID, err = registerConversation(ctx, store, req.ConversationID)
			if err != nil {
				log.Error().Err(err).Str("conversation", req.ConversationID).Msg("Failed to register conversation")
				return c.JSON(http.StatusInternalServerError, models.SendMessageResponse{
					Error: "failed to register conversation",
				})
			}
		}

		metadata := req.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["source"] = "ai_webhook"
		if req.Sender != "" {
			metadata["sender"] = req.Sender
		}

		outboxID, err := store.Enqueue(ctx, threadID, req.Message, metadata)
		if err != nil {
			log.Error().Err(err).Str("conversation", req.ConversationID).Msg("Failed to enqueue webhook reply")
			return c.JSON(http.StatusInternalServerError, models.SendMessageResponse{
				Error: "failed to queue message",
			})
		}

		return c.JSON(http.StatusOK, models.SendMessageResponse{
			Success:  true,
			OutboxID: outboxID,
		})
	}
}

// registerConversation creates a thread under the placeholder listing.
// The next scrape of the real thread fills in listing and guest details.
func registerConversation(ctx context.Context, store WebhookStore, conversationID string) (int64, error) {
	listingID, err := store.UpsertListing(ctx, "unknown", "Unknown listing")
	if err != nil {
		return 0, err
	}
	now := time.Now()
	return store.UpsertThread(ctx, conversationID, listingID, "Guest", &now)
}
