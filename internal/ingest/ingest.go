package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"cohost/internal/database"
	"cohost/internal/models"
	"cohost/internal/utils"
)

// Store is the slice of the database layer ingest needs
type Store interface {
	UpsertListing(ctx context.Context, externalID, name string) (int64, error)
	UpsertThread(ctx context.Context, externalID string, listingID int64, guestName string, lastMessageAt *time.Time) (int64, error)
	InsertMessageIfAbsent(ctx context.Context, msg *models.Message) (*models.Message, bool, error)
}

// Result summarizes one ingested snapshot
type Result struct {
	ThreadID   int64
	NewInbound []models.Message
	Inserted   int
	Duplicates int
	Skipped    int
}

// Ingestor folds scraped thread snapshots into storage. Re-ingesting the
// same snapshot is a no-op: every message carries a dedup identity and
// only first sightings produce rows.
type Ingestor struct {
	store Store
}

func New(store Store) *Ingestor {
	return &Ingestor{store: store}
}

// ProcessSnapshot persists one scraped thread and its messages. It returns
// the inbound messages seen for the first time, which are the ones that
// still need a reply.
func (in *Ingestor) ProcessSnapshot(ctx context.Context, snap models.ThreadSnapshot) (*Result, error) {
	if strings.TrimSpace(snap.ExternalThreadID) == "" {
		return nil, fmt.Errorf("snapshot has no thread id")
	}

	listingExternalID := snap.ListingExternalID
	if listingExternalID == "" {
		listingExternalID = "unknown"
	}
	listingName := snap.ListingName
	if listingName == "" {
		listingName = "Unknown listing"
	}

	listingID, err := in.store.UpsertListing(ctx, listingExternalID, listingName)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert listing %s: %w", listingExternalID, err)
	}

	guestName := utils.NormalizeGuestName(snap.GuestName)
	threadID, err := in.store.UpsertThread(ctx, snap.ExternalThreadID, listingID, guestName, snap.LastMessageAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert thread %s: %w", snap.ExternalThreadID, err)
	}

	result := &Result{ThreadID: threadID}
	for _, ms := range snap.Messages {
		content := strings.TrimSpace(ms.Content)
		if content == "" {
			result.Skipped++
			continue
		}

		direction := ms.Direction
		if direction == "" {
			direction = models.DirectionInbound
		}

		// The dedup hash must be stable across scrape runs, so a missing
		// timestamp hashes as the epoch even though the stored row gets a
		// real sent_at.
		identitySentAt := time.Unix(0, 0)
		sentAt := time.Now().UTC()
		if ms.SentAt != nil {
			identitySentAt = *ms.SentAt
			sentAt = *ms.SentAt
		} else if snap.LastMessageAt != nil {
			sentAt = *snap.LastMessageAt
		}

		msg := &models.Message{
			ThreadID:   threadID,
			Direction:  direction,
			Content:    content,
			ExternalID: database.MessageIdentity(snap.ExternalThreadID, ms.ExternalMessageID, content, ms.SenderName, identitySentAt),
			SenderName: ms.SenderName,
			SentAt:     sentAt,
		}

		inserted, created, err := in.store.InsertMessageIfAbsent(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("failed to ingest message in thread %s: %w", snap.ExternalThreadID, err)
		}
		if !created {
			result.Duplicates++
			continue
		}

		result.Inserted++
		if inserted.Direction == models.DirectionInbound {
			result.NewInbound = append(result.NewInbound, *inserted)
			log.Info().
				Str("thread", snap.ExternalThreadID).
				Str("guest", guestName).
				Strs("topics", utils.ExtractTopics(content, 5)).
				Msg("New guest message")
		}
	}

	return result, nil
}
