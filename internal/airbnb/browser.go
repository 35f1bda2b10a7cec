// Package airbnb drives a real browser session against the Airbnb host
// inbox: reading threads and sending replies through the same UI a human
// host would use. The session directory persists login cookies between
// runs, so a one-time manual login is enough.
package airbnb

import (
	"context"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"cohost/internal/config"
)

const inboxURL = "https://www.airbnb.com/hosting/inbox"

// Browser owns the shared Chrome allocator. Tabs are cheap; the browser
// process and its logged-in profile are shared by scraper and sender.
type Browser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabTimeout  time.Duration
}

func NewBrowser(cfg *config.Config) *Browser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserDataDir(cfg.SessionDir),
		chromedp.WindowSize(1440, 900),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Browser{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabTimeout:  cfg.BrowserTimeout,
	}
}

// newTab opens a fresh tab bounded by the configured timeout and by the
// caller's context
func (b *Browser) newTab(ctx context.Context) (context.Context, context.CancelFunc) {
	tabCtx, tabCancel := chromedp.NewContext(b.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug().Msgf("[chromedp] "+format, args...)
		}),
	)
	timeoutCtx, timeoutCancel := context.WithTimeout(tabCtx, b.tabTimeout)

	stop := context.AfterFunc(ctx, timeoutCancel)
	return timeoutCtx, func() {
		stop()
		timeoutCancel()
		tabCancel()
	}
}

func (b *Browser) Close() {
	b.allocCancel()
}

// humanDelay sleeps a random duration in [min, max) so interaction
// timing does not look machine-regular
func humanDelay(ctx context.Context, min, max time.Duration) {
	d := min + time.Duration(rand.Int63n(int64(max-min)))
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
