package airbnb

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"cohost/internal/faults"
)

// checkChallenges inspects the current page for the two conditions a
// worker cannot recover from on its own: a CAPTCHA challenge and a
// redirect to the login flow. Call it after every navigation.
func checkChallenges(ctx context.Context) error {
	var currentURL string
	if err := chromedp.Run(ctx, chromedp.Location(&currentURL)); err != nil {
		return faults.Wrap(faults.KindTransient, "failed to read page location", err)
	}

	lowered := strings.ToLower(currentURL)
	for _, marker := range loginMarkers {
		if strings.Contains(lowered, marker) {
			return faults.SessionExpired(fmt.Sprintf("redirected to %s", currentURL))
		}
	}

	present, err := anySelectorPresent(ctx, captchaSelectors)
	if err != nil {
		return faults.Wrap(faults.KindTransient, "failed to probe for challenge", err)
	}
	if present {
		return faults.Captcha(fmt.Sprintf("challenge shown on %s", currentURL))
	}
	return nil
}

// anySelectorPresent reports whether any of the selectors matches an
// element on the current page
func anySelectorPresent(ctx context.Context, selectors []string) (bool, error) {
	script := "[" + quoteAll(selectors) + "].some(s => document.querySelector(s) !== null)"

	var present bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &present)); err != nil {
		return false, err
	}
	return present, nil
}

func quoteAll(selectors []string) string {
	quoted := make([]string, len(selectors))
	for i, s := range selectors {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ",")
}
