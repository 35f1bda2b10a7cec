package airbnb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"cohost/internal/faults"
	"cohost/internal/models"
)

// Scraper reads thread snapshots out of the host inbox
type Scraper struct {
	browser *Browser
}

func NewScraper(b *Browser) *Scraper {
	return &Scraper{browser: b}
}

// threadRef is one row of the inbox thread list
type threadRef struct {
	ID            string `json:"id"`
	GuestName     string `json:"guest_name"`
	LastMessageAt string `json:"last_message_at"`
}

// rawMessage is one message row as extracted from the thread page
type rawMessage struct {
	Outbound  bool   `json:"outbound"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	MessageID string `json:"message_id"`
	SentAt    string `json:"sent_at"`
}

// rawThreadPage is everything extracted from one open thread
type rawThreadPage struct {
	ListingID   string       `json:"listing_id"`
	ListingName string       `json:"listing_name"`
	Messages    []rawMessage `json:"messages"`
}

// FetchThreads opens the inbox and returns snapshots of up to maxThreads
// conversations, most recently active first. A CAPTCHA or login redirect
// aborts the whole fetch with a typed fault.
func (s *Scraper) FetchThreads(ctx context.Context, maxThreads int) ([]models.ThreadSnapshot, error) {
	tab, cancel := s.browser.newTab(ctx)
	defer cancel()

	if err := chromedp.Run(tab,
		chromedp.Navigate(inboxURL),
		chromedp.WaitReady("body"),
	); err != nil {
		return nil, faults.Wrap(faults.KindTransient, "failed to open inbox", err)
	}
	humanDelay(tab, time.Second, 3*time.Second)

	if err := checkChallenges(tab); err != nil {
		return nil, err
	}

	refs, err := s.listThreads(tab, maxThreads)
	if err != nil {
		return nil, err
	}
	log.Info().Int("threads", len(refs)).Msg("Inbox scraped")

	snapshots := make([]models.ThreadSnapshot, 0, len(refs))
	for _, ref := range refs {
		snap, err := s.scrapeThread(tab, ref)
		if err != nil {
			if faults.IsCaptcha(err) || faults.IsSessionExpired(err) {
				return snapshots, err
			}
			log.Warn().Err(err).Str("thread", ref.ID).Msg("Skipping unreadable thread")
			continue
		}
		snapshots = append(snapshots, *snap)
		humanDelay(tab, 800*time.Millisecond, 2500*time.Millisecond)
	}
	return snapshots, nil
}

// listThreads extracts the inbox thread list, scrolling until maxThreads
// rows are loaded or the list stops growing
func (s *Scraper) listThreads(tab context.Context, maxThreads int) ([]threadRef, error) {
	script := fmt.Sprintf(`(() => {
		const sels = [%s];
		let rows = [];
		for (const s of sels) {
			rows = Array.from(document.querySelectorAll(s));
			if (rows.length) break;
		}
		return rows.map(el => {
			const link = el.closest('a[href]') || el.querySelector('a[href]') || el;
			const href = link.getAttribute ? (link.getAttribute('href') || '') : '';
			const idMatch = href.match(/inbox\/(\d+)/);
			const nameEl = el.querySelector('[data-testid*="participant"], h3, strong');
			const timeEl = el.querySelector('time');
			return {
				id: idMatch ? idMatch[1] : '',
				guest_name: nameEl ? nameEl.textContent.trim() : '',
				last_message_at: timeEl ? (timeEl.getAttribute('datetime') || '') : ''
			};
		}).filter(r => r.id);
	})()`, quoteAll(threadListSelectors))

	var refs []threadRef
	previous := -1
	for len(refs) < maxThreads && len(refs) != previous {
		previous = len(refs)
		if err := chromedp.Run(tab, chromedp.Evaluate(script, &refs)); err != nil {
			return nil, faults.Wrap(faults.KindTransient, "failed to read thread list", err)
		}
		if len(refs) >= maxThreads {
			break
		}
		if err := chromedp.Run(tab,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		); err != nil {
			break
		}
		humanDelay(tab, time.Second, 2*time.Second)
	}

	if len(refs) > maxThreads {
		refs = refs[:maxThreads]
	}
	return refs, nil
}

// scrapeThread opens one conversation and extracts its messages
func (s *Scraper) scrapeThread(tab context.Context, ref threadRef) (*models.ThreadSnapshot, error) {
	threadURL := inboxURL + "/" + ref.ID
	if err := chromedp.Run(tab,
		chromedp.Navigate(threadURL),
		chromedp.WaitReady("body"),
	); err != nil {
		return nil, faults.Wrap(faults.KindTransient, "failed to open thread", err)
	}
	humanDelay(tab, 500*time.Millisecond, 1500*time.Millisecond)

	if err := checkChallenges(tab); err != nil {
		return nil, err
	}

	script := fmt.Sprintf(`(() => {
		const sels = [%s];
		let rows = [];
		for (const s of sels) {
			rows = Array.from(document.querySelectorAll(s));
			if (rows.length) break;
		}
		const listingLink = document.querySelector('a[href*="/rooms/"]');
		const listingMatch = listingLink ? (listingLink.getAttribute('href') || '').match(/rooms\/(\d+)/) : null;
		return {
			listing_id: listingMatch ? listingMatch[1] : '',
			listing_name: listingLink ? listingLink.textContent.trim() : '',
			messages: rows.map(el => {
				const timeEl = el.querySelector('time');
				const senderEl = el.querySelector('[data-testid*="sender"], .sender-name');
				return {
					outbound: el.matches('[data-testid*="outgoing"], [data-is-self="true"]') ||
						el.querySelector('[data-testid*="outgoing"]') !== null,
					sender: senderEl ? senderEl.textContent.trim() : '',
					content: el.textContent.trim(),
					message_id: el.getAttribute('data-message-id') || el.id || '',
					sent_at: timeEl ? (timeEl.getAttribute('datetime') || '') : ''
				};
			}).filter(m => m.content)
		};
	})()`, quoteAll(messageRowSelectors))

	var page rawThreadPage
	if err := chromedp.Run(tab, chromedp.Evaluate(script, &page)); err != nil {
		return nil, faults.Wrap(faults.KindTransient, "failed to read thread messages", err)
	}

	snap := &models.ThreadSnapshot{
		ExternalThreadID:  ref.ID,
		GuestName:         ref.GuestName,
		ListingExternalID: page.ListingID,
		ListingName:       page.ListingName,
		LastMessageAt:     parseTimestamp(ref.LastMessageAt),
	}
	for _, raw := range page.Messages {
		direction := models.DirectionInbound
		sender := raw.Sender
		if raw.Outbound {
			direction = models.DirectionOutbound
		} else if sender == "" {
			sender = ref.GuestName
		}

		snap.Messages = append(snap.Messages, models.MessageSnapshot{
			Direction:         direction,
			Content:           raw.Content,
			ExternalMessageID: raw.MessageID,
			SenderName:        sender,
			SentAt:            parseTimestamp(raw.SentAt),
		})
	}
	return snap, nil
}

// parseTimestamp parses the datetime attribute variants the inbox emits
func parseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}
