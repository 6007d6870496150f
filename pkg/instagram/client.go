package instagram

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	errs "igharvest/pkg/errors"
	"igharvest/pkg/logger"
	"igharvest/pkg/ratelimit"
	"igharvest/pkg/retry"
)

// MaxMediaBytes caps a single downloaded file
const MaxMediaBytes = 200 << 20

// Media is a downloaded file
type Media struct {
	URL         string
	ContentType string
	Data        []byte
}

// Client downloads media files
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	limiter    ratelimit.Limiter
	retrier    *retry.HTTPRetrier
	logger     logger.Logger
}

// NewClient creates a media client
func NewClient(timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Accept":          "image/avif,image/webp,image/apng,image/*,video/*,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         BaseURL + "/",
			"Sec-Fetch-Dest":  "image",
			"Sec-Fetch-Mode":  "no-cors",
			"Sec-Fetch-Site":  "cross-site",
		},
		logger: log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// WithLimiter makes every request wait on l
func (c *Client) WithLimiter(l ratelimit.Limiter) *Client {
	c.limiter = l
	return c
}

// WithRetrier retries failed requests through r
func (c *Client) WithRetrier(r *retry.HTTPRetrier) *Client {
	c.retrier = r
	return c
}

// Download fetches url, retrying retryable failures when a retrier is set
func (c *Client) Download(ctx context.Context, url string) (*Media, error) {
	if c.retrier == nil {
		return c.fetch(ctx, url)
	}
	var media *Media
	err := c.retrier.WithContext(ctx).Do(func() error {
		m, err := c.fetch(ctx, url)
		if err != nil {
			return err
		}
		media = m
		return nil
	})
	return media, err
}

func (c *Client) fetch(ctx context.Context, url string) (*Media, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeUnknown, Op: "download", Message: "failed to create request", Err: err}
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{Type: errs.ErrorTypeNetwork, Op: "download", Message: "network error", Err: err}
	}
	defer resp.Body.Close()

	logger.LogRequest(http.MethodGet, url, resp.StatusCode, float64(duration.Milliseconds()))

	if err := c.checkResponseStatus(resp, url); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaBytes+1))
	if err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeNetwork, Op: "download", Message: "failed to read body", Code: resp.StatusCode, Err: err}
	}
	if len(data) > MaxMediaBytes {
		return nil, &errs.Error{Type: errs.ErrorTypeUnknown, Op: "download", Message: fmt.Sprintf("media larger than %d bytes", MaxMediaBytes), Code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &Media{URL: url, ContentType: contentType, Data: data}, nil
}

// checkResponseStatus maps an HTTP status to a typed error
func (c *Client) checkResponseStatus(resp *http.Response, url string) error {
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    url,
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusForbidden:
		c.logger.WarnWithFields("media not available", fields)
		return &errs.Error{Type: errs.ErrorTypeNotFound, Op: "download", Message: "media not available", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", fields)
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Op: "download", Message: "rate limit exceeded", Code: resp.StatusCode}
	case resp.StatusCode >= 500:
		c.logger.ErrorWithFields("server error", fields)
		return &errs.Error{Type: errs.ErrorTypeServerError, Op: "download", Message: "server error", Code: resp.StatusCode}
	default:
		c.logger.ErrorWithFields("unexpected status", fields)
		return &errs.Error{Type: errs.ErrorTypeUnknown, Op: "download", Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode), Code: resp.StatusCode}
	}
}

// ExtensionFor picks a file extension for a media content type
func ExtensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case mediaType == "image/jpeg" || mediaType == "image/jpg":
		return ".jpg"
	case mediaType == "image/png":
		return ".png"
	case mediaType == "image/webp":
		return ".webp"
	case mediaType == "image/gif":
		return ".gif"
	case mediaType == "image/heic":
		return ".heic"
	case strings.HasPrefix(mediaType, "video/"):
		return ".mp4"
	default:
		return ".bin"
	}
}
