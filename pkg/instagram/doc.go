// Package instagram knows the shape of Instagram URLs and fetches media
// files from its CDN.
//
// The browser does all page work; this package only builds and parses
// profile and post URLs, and downloads the image and video files a scraped
// post points at.
//
// Example usage:
//
//	client := instagram.NewClient(30*time.Second, nil).
//		WithLimiter(limiter).
//		WithRetrier(retry.NewHTTPRetrier(3, log))
//
//	media, err := client.Download(ctx, ref.Src)
//	if errs.Is(err, errs.ErrorTypeNotFound) {
//		// expired CDN link
//	}
//	ext := instagram.ExtensionFor(media.ContentType)
package instagram
