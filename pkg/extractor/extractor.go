// Package extractor reads post fields out of a rendered post page.
//
// Every field is fetched by its own page script and decoded independently,
// so a layout change that breaks one selector leaves the others intact.
package extractor

import (
	"context"
	"regexp"
	"strings"
	"time"

	"igharvest/pkg/browser"
	errs "igharvest/pkg/errors"
	"igharvest/pkg/logger"
	"igharvest/pkg/models"
	"igharvest/pkg/retry"
)

// PageExtractor pulls the fields of one post out of an open tab
type PageExtractor interface {
	// Title returns the caption block anchored on the author link anchorPath
	Title(ctx context.Context, h browser.Handle, anchorPath string) (*models.TitleData, error)
	// Media returns the images of the post, carousel first
	Media(ctx context.Context, h browser.Handle) ([]models.MediaRef, error)
	// Engagement returns the like counter
	Engagement(ctx context.Context, h browser.Handle) (*models.Engagement, error)
	// Comments scrolls the comment list about steps times and parses it
	Comments(ctx context.Context, h browser.Handle, steps int) ([]models.Comment, error)
}

// Options tunes the DOM extractor
type Options struct {
	TitleWaitMin, TitleWaitMax time.Duration

	ContainerMinMatches int

	ScrollStepMin, ScrollStepMax   int
	ScrollPauseMin, ScrollPauseMax time.Duration
	// ScrollRetries is how many unchanged scrolls end the comment scroll
	ScrollRetries int
	// BottomWaits is how many checks at the bottom end the comment scroll
	BottomWaits int
	// MouseChance is the probability of a pointer move per scroll step
	MouseChance float64
}

// DefaultOptions returns the extractor's standard timings
func DefaultOptions() Options {
	return Options{
		TitleWaitMin:        2 * time.Second,
		TitleWaitMax:        4500 * time.Millisecond,
		ContainerMinMatches: 3,
		ScrollStepMin:       180,
		ScrollStepMax:       400,
		ScrollPauseMin:      300 * time.Millisecond,
		ScrollPauseMax:      1100 * time.Millisecond,
		ScrollRetries:       1,
		BottomWaits:         3,
		MouseChance:         0.25,
	}
}

// DOM extracts fields by evaluating scripts through a browser.Driver
type DOM struct {
	driver browser.Driver
	pacer  *retry.Pacer
	opts   Options
	log    logger.Logger
}

// New creates a DOM extractor
func New(d browser.Driver, pacer *retry.Pacer, opts Options) *DOM {
	if pacer == nil {
		pacer = retry.NewPacer()
	}
	return &DOM{
		driver: d,
		pacer:  pacer,
		opts:   opts,
		log:    logger.GetLogger().WithField("component", "extractor"),
	}
}

var _ PageExtractor = (*DOM)(nil)

func (x *DOM) eval(ctx context.Context, op string, h browser.Handle, js string, v interface{}, args ...interface{}) (bool, error) {
	res, err := x.driver.Eval(ctx, h, js, args...)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, errs.Wrap(errs.ErrorTypeExtraction, op, err)
	}
	if res.IsNull() {
		return false, nil
	}
	if err := res.Decode(v); err != nil {
		return false, errs.Wrap(errs.ErrorTypeExtraction, op, err)
	}
	return true, nil
}

// Title waits for the caption to render and reads it. A nil result with no
// error means no block matched.
func (x *DOM) Title(ctx context.Context, h browser.Handle, anchorPath string) (*models.TitleData, error) {
	if err := x.pacer.Sleep(ctx, x.opts.TitleWaitMin, x.opts.TitleWaitMax); err != nil {
		return nil, err
	}

	var raw struct {
		TopDivClass  string   `json:"topDivClass"`
		AHref        *string  `json:"aHref"`
		ASrc         *string  `json:"aSrc"`
		TimeDatetime *string  `json:"timeDatetime"`
		SiblingTexts []string `json:"siblingTexts"`
	}
	ok, err := x.eval(ctx, "title", h, titleJS, &raw, anchorPath)
	if err != nil || !ok {
		return nil, err
	}

	title := &models.TitleData{
		TopDivClass:  raw.TopDivClass,
		AHref:        deref(raw.AHref),
		ASrc:         deref(raw.ASrc),
		TimeDatetime: deref(raw.TimeDatetime),
		SiblingTexts: raw.SiblingTexts,
	}
	title.Hashtags = NormalizeHashtags(strings.Join(raw.SiblingTexts, " "))
	return title, nil
}

// Media returns the carousel images, or the single post image when the
// post has no carousel
func (x *DOM) Media(ctx context.Context, h browser.Handle) ([]models.MediaRef, error) {
	var carousel []map[string]string
	if _, err := x.eval(ctx, "media", h, carouselJS, &carousel); err != nil {
		return nil, err
	}
	if len(carousel) > 0 {
		refs := make([]models.MediaRef, 0, len(carousel))
		for _, attrs := range carousel {
			refs = append(refs, mediaRef(attrs))
		}
		return refs, nil
	}

	var single map[string]string
	ok, err := x.eval(ctx, "media", h, singleImageJS, &single)
	if err != nil || !ok {
		return nil, err
	}
	return []models.MediaRef{mediaRef(single)}, nil
}

func mediaRef(attrs map[string]string) models.MediaRef {
	return models.MediaRef{
		Src:        attrs["src"],
		Alt:        attrs["alt"],
		Attributes: attrs,
	}
}

// Engagement returns the highest like counter on the page, nil if none
func (x *DOM) Engagement(ctx context.Context, h browser.Handle) (*models.Engagement, error) {
	var e models.Engagement
	ok, err := x.eval(ctx, "engagement", h, likesJS, &e)
	if err != nil || !ok {
		return nil, err
	}
	return &e, nil
}

type containerMetrics struct {
	ScrollTop    float64 `json:"scrollTop"`
	ScrollHeight float64 `json:"scrollHeight"`
	ClientHeight float64 `json:"clientHeight"`
}

func (m containerMetrics) atBottom() bool {
	return m.ScrollTop+m.ClientHeight >= m.ScrollHeight
}

// Comments loads more comments by scrolling their container, then parses
// every rendered comment. The number of scroll steps is jittered by 20%.
// When no container is found the comments already on the page are parsed.
func (x *DOM) Comments(ctx context.Context, h browser.Handle, steps int) ([]models.Comment, error) {
	if steps > 0 {
		jittered := x.pacer.IntBetween(steps*8/10, steps*12/10)
		if err := x.scrollComments(ctx, h, jittered); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			x.log.WithError(err).Debug("Comment scroll failed, parsing what is rendered")
		}
	}

	var raw []struct {
		Likes       *string  `json:"likes"`
		Handle      *string  `json:"handle"`
		Date        *string  `json:"date"`
		Comment     *string  `json:"comment"`
		CommentImgs []string `json:"commentImgs"`
	}
	if _, err := x.eval(ctx, "comments", h, commentsJS, &raw); err != nil {
		return nil, err
	}

	comments := make([]models.Comment, 0, len(raw))
	for _, c := range raw {
		comments = append(comments, models.Comment{
			Handle:      deref(c.Handle),
			Date:        deref(c.Date),
			Text:        deref(c.Comment),
			Likes:       deref(c.Likes),
			CommentImgs: c.CommentImgs,
		})
	}
	return comments, nil
}

// scrollComments scrolls the comment container until steps run out, the
// container sits at the bottom for BottomWaits checks, or ScrollRetries
// scrolls in a row change nothing
func (x *DOM) scrollComments(ctx context.Context, h browser.Handle, steps int) error {
	var found struct {
		Selector string `json:"selector"`
		Count    int    `json:"count"`
	}
	ok, err := x.eval(ctx, "comment container", h, commentContainerJS, &found, x.opts.ContainerMinMatches)
	if err != nil {
		return err
	}
	if !ok || found.Selector == "" {
		x.log.Debug("No comment container found")
		return nil
	}
	sel := found.Selector

	bottomWaits, retries := 0, 0
	for i := 0; i < steps; i++ {
		var before containerMetrics
		ok, err := x.eval(ctx, "comment scroll", h, containerMetricsJS, &before, sel)
		if err != nil {
			return err
		}
		if !ok {
			return errs.New(errs.ErrorTypeExtraction, "comment scroll", "container detached: "+sel)
		}

		if before.atBottom() {
			bottomWaits++
			if bottomWaits >= x.opts.BottomWaits {
				break
			}
			if err := x.pacer.Sleep(ctx, time.Second, 3*time.Second); err != nil {
				return err
			}
		} else {
			bottomWaits = 0
		}

		dy := x.pacer.IntBetween(x.opts.ScrollStepMin, x.opts.ScrollStepMax)
		if _, err := x.driver.Eval(ctx, h, containerScrollJS, sel, dy); err != nil {
			return errs.Wrap(errs.ErrorTypeExtraction, "comment scroll", err)
		}
		if x.pacer.Chance(x.opts.MouseChance) {
			if err := browser.HumanMouseMove(ctx, x.driver, h, sel, x.pacer, 300*time.Millisecond); err != nil {
				x.log.WithError(err).Debug("Mouse move failed")
			}
		}

		var after containerMetrics
		if _, err := x.eval(ctx, "comment scroll", h, containerMetricsJS, &after, sel); err != nil {
			return err
		}
		if after.ScrollTop == before.ScrollTop && after.ScrollHeight == before.ScrollHeight {
			retries++
			if retries >= x.opts.ScrollRetries {
				break
			}
			if err := x.pacer.Sleep(ctx, time.Second, 4*time.Second); err != nil {
				return err
			}
		} else {
			retries = 0
		}

		if err := x.pacer.Sleep(ctx, x.opts.ScrollPauseMin, x.opts.ScrollPauseMax); err != nil {
			return err
		}
	}
	return nil
}

var hashtagRe = regexp.MustCompile(`#\w+`)

// NormalizeHashtags returns the unique hashtags of text in order of
// appearance, lower-cased. Nil when there are none.
func NormalizeHashtags(text string) []string {
	matches := hashtagRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		tag := strings.ToLower(m)
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
