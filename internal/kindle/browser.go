package kindle

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// chromeSession drives one Chrome tab over the DevTools protocol. The
// allocator owns the browser process; cancelling the session context tears
// the whole thing down.
type chromeSession struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

func newChromeSession(parent context.Context, cfg ScraperConfig) (*chromeSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(cfg.ProfileDir),
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(1280, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// Force the browser to actually start so launch failures surface here
	// rather than on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &chromeSession{ctx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc}, nil
}

// run executes actions on the tab while honouring the caller's context.
// chromedp actions are bound to the tab context, so cancellation of the
// caller's context is bridged manually.
func (c *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(c.ctx, actions...)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (c *chromeSession) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body"))
}

func (c *chromeSession) Location(ctx context.Context) (string, error) {
	var loc string
	if err := c.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (c *chromeSession) Evaluate(ctx context.Context, js string, out any) error {
	return c.run(ctx, chromedp.Evaluate(js, out))
}

func (c *chromeSession) Click(ctx context.Context, selector string) error {
	return c.run(ctx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
}

func (c *chromeSession) Close() error {
	c.cancelTab()
	c.cancelAlloc()
	return nil
}
