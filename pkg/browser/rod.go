package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	errs "igharvest/pkg/errors"
	"igharvest/pkg/logger"
	"igharvest/pkg/models"
)

// hideWebdriver removes the most obvious automation marker from new documents
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Options configures how the browser is launched or attached
type Options struct {
	// ControlURL attaches to an already running browser instead of launching one
	ControlURL   string
	Bin          string
	Headless     bool
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	PageTimeout  time.Duration
}

// Rod implements Driver on top of go-rod
type Rod struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	main     Handle
	timeout  time.Duration

	mu    sync.Mutex
	pages map[Handle]*rod.Page
	log   logger.Logger
}

// Launch starts (or attaches to) a browser and prepares the main tab
func Launch(opts Options) (*Rod, error) {
	log := logger.GetLogger().WithField("component", "browser")

	controlURL := opts.ControlURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		if opts.UserAgent != "" {
			l = l.Set("user-agent", opts.UserAgent)
		}
		if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
			l = l.Set("window-size", fmt.Sprintf("%d,%d", opts.WindowWidth, opts.WindowHeight))
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeSetup, "launch browser", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, errs.Wrap(errs.ErrorTypeSetup, "connect browser", err)
	}

	r := &Rod{
		browser:  b,
		launcher: l,
		timeout:  opts.PageTimeout,
		pages:    make(map[Handle]*rod.Page),
		log:      log,
	}
	if r.timeout <= 0 {
		r.timeout = 10 * time.Second
	}

	main, err := r.mainPage()
	if err != nil {
		r.Close()
		return nil, errs.Wrap(errs.ErrorTypeSetup, "open main tab", err)
	}
	if _, err := main.EvalOnNewDocument(hideWebdriver); err != nil {
		log.WithError(err).Debug("Failed to install page init script")
	}
	if opts.UserAgent != "" {
		if err := main.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			log.WithError(err).Debug("Failed to override user agent")
		}
	}

	r.main = Handle(main.TargetID)
	r.pages[r.main] = main

	log.InfoWithFields("Browser ready", map[string]interface{}{
		"control_url": controlURL,
		"headless":    opts.Headless,
		"main":        string(r.main),
	})
	return r, nil
}

func (r *Rod) mainPage() (*rod.Page, error) {
	pages, err := r.browser.Pages()
	if err != nil {
		return nil, err
	}
	if len(pages) > 0 {
		return pages.First(), nil
	}
	return r.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// page resolves a handle, refreshing from the browser for tabs opened by
// page scripts
func (r *Rod) page(h Handle) (*rod.Page, error) {
	r.mu.Lock()
	p, ok := r.pages[h]
	r.mu.Unlock()
	if ok {
		return p, nil
	}

	p, err := r.browser.PageFromTarget(proto.TargetTargetID(h))
	if err != nil {
		return nil, errs.Transient("resolve tab", err)
	}
	r.mu.Lock()
	r.pages[h] = p
	r.mu.Unlock()
	return p, nil
}

func (r *Rod) scoped(ctx context.Context, h Handle) (*rod.Page, error) {
	p, err := r.page(h)
	if err != nil {
		return nil, err
	}
	return p.Context(ctx), nil
}

// Main returns the session's main tab
func (r *Rod) Main() Handle {
	return r.main
}

// Handles lists the open page targets
func (r *Rod) Handles(ctx context.Context) ([]Handle, error) {
	pages, err := r.browser.Context(ctx).Pages()
	if err != nil {
		return nil, errs.Transient("list tabs", err)
	}

	handles := make([]Handle, 0, len(pages))
	live := make(map[Handle]*rod.Page, len(pages))
	for _, p := range pages {
		h := Handle(p.TargetID)
		handles = append(handles, h)
		live[h] = p
	}

	r.mu.Lock()
	for h := range r.pages {
		if _, ok := live[h]; !ok {
			delete(r.pages, h)
		}
	}
	for h, p := range live {
		if _, ok := r.pages[h]; !ok {
			r.pages[h] = p
		}
	}
	r.mu.Unlock()

	return handles, nil
}

// OpenTab runs window.open in the page of from
func (r *Rod) OpenTab(ctx context.Context, from Handle, url string) error {
	_, err := r.Eval(ctx, from, `(u) => { window.open(u, '_blank'); return true }`, url)
	if err != nil {
		return errs.Transient("open tab", err)
	}
	return nil
}

// Activate focuses the tab
func (r *Rod) Activate(ctx context.Context, h Handle) error {
	p, err := r.scoped(ctx, h)
	if err != nil {
		return err
	}
	if _, err := p.Activate(); err != nil {
		return errs.Transient("activate tab", err)
	}
	return nil
}

// CloseTab closes the tab and forgets it
func (r *Rod) CloseTab(ctx context.Context, h Handle) error {
	p, err := r.scoped(ctx, h)
	if err != nil {
		return err
	}
	err = p.Close()

	r.mu.Lock()
	delete(r.pages, h)
	r.mu.Unlock()

	if err != nil {
		return errs.Transient("close tab", err)
	}
	return nil
}

// Navigate loads url in the tab and waits for the load event
func (r *Rod) Navigate(ctx context.Context, h Handle, url string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	p, err := r.scoped(ctx, h)
	if err != nil {
		return err
	}
	if err := p.Navigate(url); err != nil {
		return errs.Transient("navigate", err)
	}
	if err := p.WaitLoad(); err != nil {
		return errs.Transient("wait load", err)
	}
	return nil
}

// Reload reloads the tab
func (r *Rod) Reload(ctx context.Context, h Handle) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	p, err := r.scoped(ctx, h)
	if err != nil {
		return err
	}
	if err := p.Reload(); err != nil {
		return errs.Transient("reload", err)
	}
	if err := p.WaitLoad(); err != nil {
		return errs.Transient("wait load", err)
	}
	return nil
}

// URL returns the tab's current location
func (r *Rod) URL(ctx context.Context, h Handle) (string, error) {
	p, err := r.scoped(ctx, h)
	if err != nil {
		return "", err
	}
	info, err := p.Info()
	if err != nil {
		return "", errs.Transient("tab info", err)
	}
	return info.URL, nil
}

// Eval runs js, a function expression, with args and returns its JSON value.
// Promises are awaited.
func (r *Rod) Eval(ctx context.Context, h Handle, js string, args ...interface{}) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errs.Transient("eval", fmt.Errorf("page script panic: %v", rec))
		}
	}()

	p, err := r.scoped(ctx, h)
	if err != nil {
		return nil, err
	}
	obj, err := p.Evaluate(rod.Eval(js, args...).ByPromise())
	if err != nil {
		return nil, errs.Transient("eval", err)
	}
	raw, err := obj.Value.MarshalJSON()
	if err != nil {
		return nil, errs.Transient("eval", err)
	}
	return Result(raw), nil
}

// MoveMouse moves the pointer to (x, y) in steps
func (r *Rod) MoveMouse(ctx context.Context, h Handle, x, y float64, steps int) error {
	p, err := r.scoped(ctx, h)
	if err != nil {
		return err
	}
	if steps < 1 {
		steps = 1
	}
	if err := p.Mouse.MoveLinear(proto.Point{X: x, Y: y}, steps); err != nil {
		return errs.Transient("move mouse", err)
	}
	return nil
}

// Click clicks the first element matching selector
func (r *Rod) Click(ctx context.Context, h Handle, selector string) error {
	p, err := r.scoped(ctx, h)
	if err != nil {
		return err
	}
	el, err := p.Element(selector)
	if err != nil {
		return errs.Transient("find element", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return errs.Transient("click", err)
	}
	return nil
}

// SetCookies installs cookies browser-wide
func (r *Rod) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	if err := r.browser.Context(ctx).SetCookies(CookieParams(cookies)); err != nil {
		return errs.Transient("set cookies", err)
	}
	return nil
}

// Close shuts the browser down, killing it if this process launched it
func (r *Rod) Close() error {
	var err error
	if r.browser != nil {
		err = r.browser.Close()
	}
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher.Cleanup()
	}
	r.log.Debug("Browser closed")
	return err
}

// CookieParams converts stored cookies to CDP parameters. Fractional
// expiries are truncated to whole seconds.
func CookieParams(cookies []models.Cookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if p.Path == "" {
			p.Path = "/"
		}
		if c.Expiry > 0 {
			p.Expires = proto.TimeSinceEpoch(float64(int64(c.Expiry)))
		}
		switch c.SameSite {
		case "Strict":
			p.SameSite = proto.NetworkCookieSameSiteStrict
		case "Lax":
			p.SameSite = proto.NetworkCookieSameSiteLax
		case "None":
			p.SameSite = proto.NetworkCookieSameSiteNone
		}
		params = append(params, p)
	}
	return params
}
