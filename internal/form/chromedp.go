package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// BrowserOptions configures the Chrome session behind the controller.
type BrowserOptions struct {
	Headless    bool
	Proxy       string
	UserAgent   string
	DownloadDir string
}

// Chrome implements Controller on a chromedp-driven Chrome instance.
type Chrome struct {
	ctx     context.Context
	cancels []context.CancelFunc
	limiter *rate.Limiter
}

// NewChrome starts a Chrome instance configured for unattended portal use:
// automation fingerprints disabled, optional proxy, downloads routed to the
// job directory without prompts.
func NewChrome(ctx context.Context, opts BrowserOptions) (*Chrome, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("credentials-enable-service", false),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	c := &Chrome{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{cancelBrowser, cancelAlloc},
		// The portal bans aggressive clients; space out actions.
		limiter: rate.NewLimiter(rate.Every(300*time.Millisecond), 1),
	}

	dl := browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(opts.DownloadDir).
		WithEventsEnabled(true)
	if err := chromedp.Run(browserCtx, dl); err != nil {
		c.Close()
		return nil, eris.Wrap(err, "form: set download behavior")
	}

	return c, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() error {
	for _, cancel := range c.cancels {
		cancel()
	}
	return nil
}

// run executes actions against the browser context with a deadline derived
// from wait, honoring cancellation of the caller's context.
func (c *Chrome) run(ctx context.Context, wait time.Duration, actions ...chromedp.Action) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "form: rate limit wait")
	}

	runCtx := c.ctx
	var cancel context.CancelFunc
	if wait > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, wait)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return classify(err)
	}
}

// classify maps chromedp errors onto the package failure taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrap(ErrWaitTimeout, err.Error())
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "could not find node") ||
		strings.Contains(msg, "no nodes found") ||
		strings.Contains(msg, "could not find element"):
		return eris.Wrap(ErrNotFound, err.Error())
	case strings.Contains(msg, "node with given id does not belong") ||
		strings.Contains(msg, "detached"):
		return eris.Wrap(ErrStale, err.Error())
	case strings.Contains(msg, "is not clickable") ||
		strings.Contains(msg, "other element would receive the click"):
		return eris.Wrap(ErrClickIntercepted, err.Error())
	}
	return eris.Wrap(err, "form: browser action")
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, 60*time.Second,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (c *Chrome) Click(ctx context.Context, sel string, wait time.Duration) error {
	return c.run(ctx, wait,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
}

func (c *Chrome) SendKeys(ctx context.Context, sel, text string, wait time.Duration) error {
	return c.run(ctx, wait,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	)
}

func (c *Chrome) SelectByText(ctx context.Context, sel, optionText string, wait time.Duration) error {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return "noelement";
		for (const opt of el.options) {
			if (opt.text.trim() === %q) {
				el.value = opt.value;
				el.dispatchEvent(new Event("change", {bubbles: true}));
				return "ok";
			}
		}
		return "nooption";
	})()`, sel, optionText)

	var res string
	err := c.run(ctx, wait,
		chromedp.WaitReady(sel, chromedp.ByQuery),
		chromedp.Evaluate(js, &res),
	)
	if err != nil {
		return err
	}
	if res != "ok" {
		return eris.Wrapf(ErrNotFound, "form: option %q on %s (%s)", optionText, sel, res)
	}
	return nil
}

func (c *Chrome) ClickByText(ctx context.Context, sel, text string, wait time.Duration) error {
	js := fmt.Sprintf(`(() => {
		for (const el of document.querySelectorAll(%q)) {
			if (el.textContent.trim().includes(%q)) {
				el.click();
				return "ok";
			}
		}
		return "notext";
	})()`, sel, text)

	var res string
	err := c.run(ctx, wait,
		chromedp.WaitReady(sel, chromedp.ByQuery),
		chromedp.Evaluate(js, &res),
	)
	if err != nil {
		return err
	}
	if res != "ok" {
		return eris.Wrapf(ErrNotFound, "form: element %s with text %q", sel, text)
	}
	return nil
}

func (c *Chrome) Value(ctx context.Context, sel string, wait time.Duration) (string, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el ? String(el.value) : null;
	})()`, sel)

	var res *string
	err := c.run(ctx, wait,
		chromedp.WaitReady(sel, chromedp.ByQuery),
		chromedp.Evaluate(js, &res),
	)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", eris.Wrapf(ErrNotFound, "form: value of %s", sel)
	}
	return *res, nil
}

func (c *Chrome) Attribute(ctx context.Context, sel, name string, wait time.Duration) (string, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return null;
		return el.getAttribute(%q) || "";
	})()`, sel, name)

	var res *string
	err := c.run(ctx, wait,
		chromedp.WaitReady(sel, chromedp.ByQuery),
		chromedp.Evaluate(js, &res),
	)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", eris.Wrapf(ErrNotFound, "form: attribute %s of %s", name, sel)
	}
	return *res, nil
}

func (c *Chrome) Text(ctx context.Context, sel string, wait time.Duration) (string, error) {
	var res string
	err := c.run(ctx, wait,
		chromedp.WaitReady(sel, chromedp.ByQuery),
		chromedp.Text(sel, &res, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res), nil
}

func (c *Chrome) TextAll(ctx context.Context, sel string, wait time.Duration) ([]string, error) {
	js := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.textContent.trim())`, sel)

	var res []string
	err := c.run(ctx, wait,
		chromedp.WaitReady(sel, chromedp.ByQuery),
		chromedp.Evaluate(js, &res),
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Chrome) AttributeAll(ctx context.Context, sel, name string, wait time.Duration) ([]string, error) {
	js := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.getAttribute(%q) || "")`,
		sel, name)

	var res []string
	err := c.run(ctx, wait,
		chromedp.WaitReady(sel, chromedp.ByQuery),
		chromedp.Evaluate(js, &res),
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Chrome) Screenshot(ctx context.Context, sel string, wait time.Duration) ([]byte, error) {
	var buf []byte
	err := c.run(ctx, wait,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Screenshot(sel, &buf, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
