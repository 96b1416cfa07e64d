package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	telegoapi "help112-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"
)

const defaultRetryWait = 2 * time.Second

// retryingAPI retries outgoing messages that Telegram rejected with
// "429 Too Many Requests", waiting as long as the API asks to.
type retryingAPI struct {
	telegoapi.BotAPI
	maxRetries int
	logger     logrus.FieldLogger
	// wait is replaced in tests
	wait func(ctx context.Context, d time.Duration) error
}

func withRetry(api telegoapi.BotAPI, maxRetries int, logger logrus.FieldLogger) *retryingAPI {
	return &retryingAPI{BotAPI: api, maxRetries: maxRetries, logger: logger, wait: sleepCtx}
}

// SendMessage implements telegoapi.BotAPI.
func (r *retryingAPI) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		msg, err := r.BotAPI.SendMessage(ctx, params)
		if err == nil {
			if attempt > 1 {
				r.logger.WithField("attempts", attempt).Info("Message sent after retry")
			}
			return msg, nil
		}
		lastErr = err

		if !isTooManyRequests(err) {
			return nil, err
		}
		waitFor := defaultRetryWait
		if seconds, ok := parseRetryAfter(err.Error()); ok {
			waitFor = time.Duration(seconds) * time.Second
		}
		r.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"wait":    waitFor,
		}).Warn("Telegram rate limit hit, retrying")

		if err := r.wait(ctx, waitFor); err != nil {
			return nil, fmt.Errorf("context cancelled during rate limit wait (attempt %d/%d): %w", attempt, r.maxRetries, err)
		}
	}
	return nil, fmt.Errorf("max retries (%d) exceeded for sending message: %w", r.maxRetries, lastErr)
}

func isTooManyRequests(err error) bool {
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "429")
}

// parseRetryAfter extracts the retry duration in seconds from a Telegram error
// string such as "429 Too Many Requests: retry after 5".
func parseRetryAfter(errorString string) (int, bool) {
	idx := strings.Index(strings.ToLower(errorString), "retry after")
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimLeftFunc(errorString[idx+len("retry after"):], func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	end := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsDigit(r) })
	if end >= 0 {
		rest = rest[:end]
	}
	seconds, err := strconv.Atoi(rest)
	if err != nil || seconds <= 0 {
		return 0, false
	}
	return seconds, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
