package scraper

import (
	"igharvest/pkg/browser"
	"igharvest/pkg/config"
	"igharvest/pkg/extractor"
	"igharvest/pkg/retry"
)

// Launcher opens the browser a Session drives
type Launcher func(cfg *config.Config) (browser.Driver, error)

// ExtractorFactory builds the page extractor over the guarded driver
type ExtractorFactory func(d browser.Driver, pacer *retry.Pacer, cfg *config.Config) extractor.PageExtractor

// LaunchBrowser starts, or attaches to, a Chrome instance through rod
func LaunchBrowser(cfg *config.Config) (browser.Driver, error) {
	ua := cfg.Main.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	r, err := browser.Launch(browser.Options{
		ControlURL:   cfg.Browser.ControlURL,
		Bin:          cfg.Browser.Bin,
		Headless:     cfg.Main.Headless,
		UserAgent:    ua,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
		PageTimeout:  cfg.Browser.PageTimeout(),
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// DOMExtractor is the default ExtractorFactory
func DOMExtractor(d browser.Driver, pacer *retry.Pacer, cfg *config.Config) extractor.PageExtractor {
	opts := extractor.DefaultOptions()
	if cfg.Main.CommentsScrollRetries > 0 {
		opts.ScrollRetries = cfg.Main.CommentsScrollRetries
	}
	return extractor.New(d, pacer, opts)
}
