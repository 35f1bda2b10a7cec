package airbnb

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"cohost/internal/faults"
)

// Sender delivers replies through the thread composer
type Sender struct {
	browser *Browser
}

func NewSender(b *Browser) *Sender {
	return &Sender{browser: b}
}

// Send types message into the composer of the given thread and submits
// it. A CAPTCHA or login redirect surfaces as a typed fault so the
// delivery worker can react; anything else is a transient failure the
// retry budget absorbs.
func (s *Sender) Send(ctx context.Context, threadExternalID, message string) error {
	tab, cancel := s.browser.newTab(ctx)
	defer cancel()

	threadURL := inboxURL + "/" + threadExternalID
	if err := chromedp.Run(tab,
		chromedp.Navigate(threadURL),
		chromedp.WaitReady("body"),
	); err != nil {
		return faults.Wrap(faults.KindTransient, "failed to open thread", err)
	}
	humanDelay(tab, time.Second, 3*time.Second)

	if err := checkChallenges(tab); err != nil {
		return err
	}

	composer, err := firstMatch(tab, composerSelectors)
	if err != nil {
		return err
	}
	if composer == "" {
		return faults.New(faults.KindTransient, "composer not found on thread page")
	}

	if err := chromedp.Run(tab,
		chromedp.Click(composer, chromedp.ByQuery),
		chromedp.SendKeys(composer, message, chromedp.ByQuery),
	); err != nil {
		return faults.Wrap(faults.KindTransient, "failed to type message", err)
	}
	humanDelay(tab, 500*time.Millisecond, 1500*time.Millisecond)

	button, err := firstMatch(tab, sendButtonSelectors)
	if err != nil {
		return err
	}
	if button == "" {
		return faults.New(faults.KindTransient, "send button not found on thread page")
	}

	if err := chromedp.Run(tab, chromedp.Click(button, chromedp.ByQuery)); err != nil {
		return faults.Wrap(faults.KindTransient, "failed to click send", err)
	}
	humanDelay(tab, time.Second, 2*time.Second)

	// A still-populated composer means the submit did not go through
	var remaining string
	if err := chromedp.Run(tab, chromedp.Value(composer, &remaining, chromedp.ByQuery)); err == nil {
		if strings.TrimSpace(remaining) != "" {
			return faults.New(faults.KindTransient, "composer not cleared after send")
		}
	}

	if err := checkChallenges(tab); err != nil {
		return err
	}

	log.Info().Str("thread", threadExternalID).Msg("Reply delivered")
	return nil
}

// firstMatch returns the first selector in the list that matches at least
// one node on the page, or empty when none do
func firstMatch(tab context.Context, selectors []string) (string, error) {
	for _, selector := range selectors {
		var nodes []*cdp.Node
		err := chromedp.Run(tab,
			chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
		)
		if err != nil {
			return "", faults.Wrap(faults.KindTransient, "failed to probe selector", err)
		}
		if len(nodes) > 0 {
			return selector, nil
		}
	}
	return "", nil
}
