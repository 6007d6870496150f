package browser

import (
	"context"
	"time"

	"igharvest/pkg/retry"
)

// rectJS returns the client rectangle of the element matching the selector,
// or of the viewport when the selector is empty
const rectJS = `(selector) => {
	if (!selector) {
		return {left: 0, top: 0, width: window.innerWidth, height: window.innerHeight};
	}
	const el = document.querySelector(selector);
	if (!el) return null;
	const r = el.getBoundingClientRect();
	return {left: r.left, top: r.top, width: r.width, height: r.height};
}`

type rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// HumanMouseMove wanders the pointer over the element matching selector
// (the viewport when empty) for roughly duration, in a few randomized legs.
func HumanMouseMove(ctx context.Context, d Driver, h Handle, selector string, pacer *retry.Pacer, duration time.Duration) error {
	res, err := d.Eval(ctx, h, rectJS, selector)
	if err != nil {
		return err
	}
	var r rect
	if res.IsNull() {
		return nil
	}
	if err := res.Decode(&r); err != nil {
		return err
	}

	const margin = 6.0
	if r.Width <= 2*margin || r.Height <= 2*margin {
		return nil
	}

	legs := pacer.IntBetween(3, 6)
	pause := duration / time.Duration(legs)
	for i := 0; i < legs; i++ {
		x := r.Left + margin + float64(pacer.IntBetween(0, int(r.Width-2*margin)))
		y := r.Top + margin + float64(pacer.IntBetween(0, int(r.Height-2*margin)))
		if err := d.MoveMouse(ctx, h, x, y, pacer.IntBetween(4, 12)); err != nil {
			return err
		}
		if err := pacer.Sleep(ctx, pause/2, pause); err != nil {
			return err
		}
	}
	return nil
}
