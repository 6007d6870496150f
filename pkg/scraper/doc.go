// Package scraper runs a harvest end to end.
//
// A Session owns the browser for the whole run. Start resolves the session
// cookies, launches the browser, attaches the navigation guard and logs in.
// For each profile the session then:
//
//   - opens the profile page (OpenProfile)
//   - loads the cached post URLs or scrolls the page for new ones (Collect)
//   - scrapes the outstanding posts in batches of tabs (ScrapeBatches)
//
// Progress is checkpointed to the profile's metadata and skipped stores as
// it goes, so a stopped run resumes where it left off.
//
// A Pipeline drives a Session over every configured profile and, when
// downloads are enabled, fetches the media of the harvested posts:
//
//	session := scraper.NewSession(cfg, scraper.SessionOptions{})
//	results, err := scraper.NewPipeline(cfg, session, scraper.PipelineOptions{}).Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Launcher and ExtractorFactory let tests swap the real browser and DOM
// extractor for fakes.
package scraper
