package guard

import (
	"context"

	"igharvest/pkg/browser"
)

// Guarded wraps a Driver and validates the tab's location after every
// operation that can move it.
type Guarded struct {
	browser.Driver
	guard *Guard
}

// Wrap decorates d with g
func Wrap(d browser.Driver, g *Guard) *Guarded {
	return &Guarded{Driver: d, guard: g}
}

func (d *Guarded) verify(ctx context.Context, h browser.Handle) error {
	url, err := d.Driver.URL(ctx, h)
	if err != nil {
		return nil
	}
	return d.guard.Check(ctx, url)
}

// Navigate loads url and then checks where the tab ended up
func (d *Guarded) Navigate(ctx context.Context, h browser.Handle, url string) error {
	if err := d.Driver.Navigate(ctx, h, url); err != nil {
		return err
	}
	return d.verify(ctx, h)
}

// Click clicks selector and then checks the tab's location
func (d *Guarded) Click(ctx context.Context, h browser.Handle, selector string) error {
	if err := d.Driver.Click(ctx, h, selector); err != nil {
		return err
	}
	return d.verify(ctx, h)
}

// Eval runs the script and then checks the tab's location
func (d *Guarded) Eval(ctx context.Context, h browser.Handle, js string, args ...interface{}) (browser.Result, error) {
	res, err := d.Driver.Eval(ctx, h, js, args...)
	if err != nil {
		return nil, err
	}
	if err := d.verify(ctx, h); err != nil {
		return nil, err
	}
	return res, nil
}
