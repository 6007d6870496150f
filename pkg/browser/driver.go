package browser

import (
	"context"
	"encoding/json"

	"igharvest/pkg/models"
)

// Handle identifies one tab of the browser session
type Handle string

// Result is the JSON value returned by a page script
type Result []byte

// Decode unmarshals the result into v
func (r Result) Decode(v interface{}) error {
	return json.Unmarshal(r, v)
}

// IsNull reports whether the script returned nothing usable
func (r Result) IsNull() bool {
	s := string(r)
	return s == "" || s == "null" || s == "undefined"
}

// Driver is the remote-controlled browser as seen by the harvester.
// Every tab operation names its target explicitly; there is no implicit
// "current tab" inside the driver.
type Driver interface {
	// Main is the tab the session was started with
	Main() Handle
	// Handles lists the open tabs
	Handles(ctx context.Context) ([]Handle, error)
	// OpenTab asks the page in from to open url in a new tab
	OpenTab(ctx context.Context, from Handle, url string) error
	// Activate brings h to the foreground
	Activate(ctx context.Context, h Handle) error
	// CloseTab closes h
	CloseTab(ctx context.Context, h Handle) error

	Navigate(ctx context.Context, h Handle, url string) error
	Reload(ctx context.Context, h Handle) error
	URL(ctx context.Context, h Handle) (string, error)

	// Eval runs a JavaScript function expression in h and returns its value
	Eval(ctx context.Context, h Handle, js string, args ...interface{}) (Result, error)
	MoveMouse(ctx context.Context, h Handle, x, y float64, steps int) error
	Click(ctx context.Context, h Handle, selector string) error

	SetCookies(ctx context.Context, cookies []models.Cookie) error
	Close() error
}

// Contains reports whether h is in handles
func Contains(handles []Handle, h Handle) bool {
	for _, x := range handles {
		if x == h {
			return true
		}
	}
	return false
}

// Diff returns the handles in after that are not in before, in after's order
func Diff(before, after []Handle) []Handle {
	seen := make(map[Handle]struct{}, len(before))
	for _, h := range before {
		seen[h] = struct{}{}
	}
	var out []Handle
	for _, h := range after {
		if _, ok := seen[h]; !ok {
			out = append(out, h)
		}
	}
	return out
}
