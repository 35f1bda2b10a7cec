package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cohost/internal/cache"
	"cohost/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const threadListCacheTTL = 30 * time.Second

// MessageStore is the storage surface the messaging endpoints use
type MessageStore interface {
	GetThreadByExternalID(ctx context.Context, externalID string) (*models.Thread, error)
	GetThreadMessages(ctx context.Context, threadID int64, limit int) ([]models.Message, error)
	ListThreads(ctx context.Context, limit int) ([]models.Thread, error)
	Enqueue(ctx context.Context, threadID int64, message string, metadata map[string]string) (int64, error)
}

// SendMessageHandler queues a message for delivery to a guest. The
// message goes onto the outbox; the send worker delivers it.
// @Summary Queue a message for delivery
// @Accept json
// @Produce json
// @Param request body models.SendMessageRequest true "Message to queue"
// @Success 200 {object} models.SendMessageResponse
// @Failure 400 {object} models.SendMessageResponse
// @Failure 404 {object} models.SendMessageResponse
// @Router /api/messages/send [post]
func SendMessageHandler(store MessageStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.SendMessageRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.SendMessageResponse{
				Error: "invalid request body",
			})
		}
		if strings.TrimSpace(req.ThreadID) == "" || strings.TrimSpace(req.Message) == "" {
			return c.JSON(http.StatusBadRequest, models.SendMessageResponse{
				Error: "thread_id and message are required",
			})
		}

		ctx := c.Request().Context()
		thread, err := store.GetThreadByExternalID(ctx, req.ThreadID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.SendMessageResponse{
				Error: "failed to look up thread",
			})
		}
		if thread == nil {
			return c.JSON(http.StatusNotFound, models.SendMessageResponse{
				Error: "unknown thread",
			})
		}

		metadata := req.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		if metadata["source"] == "" {
			metadata["source"] = "api"
		}

		outboxID, err := store.Enqueue(ctx, thread.ID, req.Message, metadata)
		if err != nil {
			log.Error().Err(err).Str("thread", req.ThreadID).Msg("Failed to enqueue message")
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

// ListThreadsHandler returns threads ordered by recent activity. Results
// are cached briefly; the inbox view polls this.
// @Summary List conversation threads
// @Produce json
// @Param limit query int false "Max threads" default(50)
// @Success 200 {array} models.Thread
// @Router /api/threads [get]
func ListThreadsHandler(store MessageStore, threadCache *cache.Cache) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := queryInt(c, "limit", 50)
		cacheKey := "threads:" + strconv.Itoa(limit)

		if cached, ok := threadCache.Get(cacheKey); ok {
			return c.JSON(http.StatusOK, cached)
		}

		threads, err := store.ListThreads(c.Request().Context(), limit)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to list threads",
			})
		}

		threadCache.Set(cacheKey, threads, threadListCacheTTL)
		return c.JSON(http.StatusOK, threads)
	}
}

// ThreadMessagesHandler returns the recent messages of one thread,
// addressed by its external id
// @Summary Get messages of a thread
// @Produce json
// @Param id path string true "External thread id"
// @Param limit query int false "Max messages" default(50)
// @Success 200 {array} models.Message
// @Failure 404 {object} map[string]string
// @Router /api/threads/{id}/messages [get]
func ThreadMessagesHandler(store MessageStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		thread, err := store.GetThreadByExternalID(ctx, c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to look up thread",
			})
		}
		if thread == nil {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "unknown thread",
			})
		}

		messages, err := store.GetThreadMessages(ctx, thread.ID, queryInt(c, "limit", 50))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to load messages",
			})
		}
		return c.JSON(http.StatusOK, messages)
	}
}

func queryInt(c echo.Context, name string, defaultValue int) int {
	if raw := c.QueryParam(name); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			return value
		}
	}
	return defaultValue
}
