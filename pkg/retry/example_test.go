package retry_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	errs "igharvest/pkg/errors"
	"igharvest/pkg/logger"
	"igharvest/pkg/retry"
)

func navigate() error {
	return errs.New(errs.ErrorTypeTransient, "navigate", "net::ERR_CONNECTION_RESET")
}

func ExampleDo() {
	// nil uses DefaultConfig: three attempts with exponential backoff
	err := retry.Do(navigate, nil)
	if err != nil {
		log.Printf("navigation failed after retries: %v", err)
	}
}

func ExampleDo_customConfig() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := &retry.Config{
		MaxAttempts: 5,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    2 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		RetryIf: func(err error) bool {
			return errs.Is(err, errs.ErrorTypeTransient)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.Printf("attempt %d failed: %v (waiting %v)", attempt, err, delay)
		},
		Context: ctx,
		Logger:  logger.GetLogger(),
	}

	if err := retry.Do(navigate, cfg); err != nil {
		log.Printf("giving up: %v", err)
	}
}

func ExampleDoWithResult() {
	shortcode, err := retry.DoWithResult(func() (string, error) {
		return "", errors.New("grid not rendered yet")
	}, nil)
	if err != nil {
		log.Printf("no post found: %v", err)
		return
	}
	fmt.Println(shortcode)
}

func ExampleNewHTTPRetrier() {
	retrier := retry.NewHTTPRetrier(4, logger.GetLogger())

	// rate limits wait longer than network faults
	retrier.Backoffs().RateLimitBackoff = &retry.LinearBackoff{
		BaseDelay:    time.Minute,
		MaxDelay:     5 * time.Minute,
		Increment:    30 * time.Second,
		JitterFactor: 0.1,
	}

	err := retrier.WithContext(context.Background()).Do(func() error {
		return errs.New(errs.ErrorTypeRateLimit, "download", "HTTP 429")
	})
	if err != nil {
		log.Printf("download failed: %v", err)
	}
}

func ExamplePacer() {
	pacer := retry.NewPacer()
	ctx := context.Background()

	// pause like a person between two batches of tabs
	if err := pacer.Sleep(ctx, 2*time.Second, 5*time.Second); err != nil {
		return
	}
	if pacer.Chance(0.3) {
		_ = pacer.SleepFor(ctx, pacer.Between(time.Second, 3*time.Second))
	}
}
