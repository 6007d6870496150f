package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"igharvest/pkg/models"
)

// EvalFunc answers a page script on a Fake. url is the tab's location.
type EvalFunc func(h Handle, url, js string, args []interface{}) (interface{}, error)

// Fake is an in-memory Driver for tests. Tabs are plain records with a
// location; scripts are answered by OnEval.
type Fake struct {
	mu      sync.Mutex
	main    Handle
	order   []Handle
	urls    map[Handle]string
	nextID  int
	closed  bool
	active  Handle
	history []string

	// OnEval answers Eval calls; nil returns JSON null
	OnEval EvalFunc
	// BlockOpen makes OpenTab succeed without creating a tab for the URL
	BlockOpen func(url string) bool
	// OnClose runs after a tab is closed, outside the lock
	OnClose func(f *Fake, h Handle)
	// OnOpen runs after OpenTab, outside the lock
	OnOpen func(f *Fake, url string)

	Cookies   []models.Cookie
	Clicks    []string
	MouseMove int
	Closed    []Handle
}

// NewFake creates a fake browser with one main tab at startURL
func NewFake(startURL string) *Fake {
	f := &Fake{urls: make(map[Handle]string)}
	f.main = f.add(startURL)
	f.active = f.main
	return f
}

func (f *Fake) add(url string) Handle {
	h := Handle(fmt.Sprintf("tab-%d", f.nextID))
	f.nextID++
	f.order = append(f.order, h)
	f.urls[h] = url
	return h
}

// Main returns the main tab
func (f *Fake) Main() Handle {
	return f.main
}

// Handles lists open tabs in creation order
func (f *Fake) Handles(ctx context.Context) ([]Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Handle, len(f.order))
	copy(out, f.order)
	return out, nil
}

// OpenTab adds a tab at url unless BlockOpen rejects it
func (f *Fake) OpenTab(ctx context.Context, from Handle, url string) error {
	f.mu.Lock()
	if _, ok := f.urls[from]; !ok {
		f.mu.Unlock()
		return fmt.Errorf("no such tab %s", from)
	}
	if f.BlockOpen == nil || !f.BlockOpen(url) {
		f.add(url)
	}
	hook := f.OnOpen
	f.mu.Unlock()

	if hook != nil {
		hook(f, url)
	}
	return nil
}

// Spawn adds a tab at url as if the page had opened it
func (f *Fake) Spawn(url string) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.add(url)
}

// Activate records the active tab
func (f *Fake) Activate(ctx context.Context, h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.urls[h]; !ok {
		return fmt.Errorf("no such tab %s", h)
	}
	f.active = h
	return nil
}

// Active returns the last activated tab
func (f *Fake) Active() Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// CloseTab removes the tab
func (f *Fake) CloseTab(ctx context.Context, h Handle) error {
	f.mu.Lock()
	if _, ok := f.urls[h]; !ok {
		f.mu.Unlock()
		return fmt.Errorf("no such tab %s", h)
	}
	f.remove(h)
	f.Closed = append(f.Closed, h)
	hook := f.OnClose
	f.mu.Unlock()

	if hook != nil {
		hook(f, h)
	}
	return nil
}

func (f *Fake) remove(h Handle) {
	delete(f.urls, h)
	for i, x := range f.order {
		if x == h {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Drop removes tabs without recording a close, as if the user closed them
func (f *Fake) Drop(handles ...Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range handles {
		f.remove(h)
	}
}

// Navigate sets the tab's location
func (f *Fake) Navigate(ctx context.Context, h Handle, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.urls[h]; !ok {
		return fmt.Errorf("no such tab %s", h)
	}
	f.urls[h] = url
	f.history = append(f.history, url)
	return nil
}

// SetURL moves a tab without going through Navigate
func (f *Fake) SetURL(h Handle, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls[h] = url
}

// History returns the URLs passed to Navigate
func (f *Fake) History() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.history...)
}

// Reload is a no-op on an open tab
func (f *Fake) Reload(ctx context.Context, h Handle) error {
	_, err := f.URL(ctx, h)
	return err
}

// URL returns the tab's location
func (f *Fake) URL(ctx context.Context, h Handle) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.urls[h]
	if !ok {
		return "", fmt.Errorf("no such tab %s", h)
	}
	return u, nil
}

// Eval delegates to OnEval and encodes its answer
func (f *Fake) Eval(ctx context.Context, h Handle, js string, args ...interface{}) (Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := f.URL(ctx, h)
	if err != nil {
		return nil, err
	}
	if f.OnEval == nil {
		return Result("null"), nil
	}
	v, err := f.OnEval(h, u, js, args)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Result(raw), nil
}

// MoveMouse counts pointer moves
func (f *Fake) MoveMouse(ctx context.Context, h Handle, x, y float64, steps int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MouseMove++
	return nil
}

// Click records the selector
func (f *Fake) Click(ctx context.Context, h Handle, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Clicks = append(f.Clicks, selector)
	return nil
}

// SetCookies stores the cookies
func (f *Fake) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cookies = append(f.Cookies, cookies...)
	return nil
}

// Close marks the fake closed
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// IsClosed reports whether Close was called
func (f *Fake) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
