// Package fetch downloads listing pages and listing photos over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default per-request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultRetries is the default number of retries after a failed request
	DefaultRetries = 3
	// DefaultMaxImageSize is the default maximum image size (10MB)
	DefaultMaxImageSize = 10 * 1024 * 1024
	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	maxDocumentSize = 20 * 1024 * 1024
)

// ErrGone is returned when the source site reports the listing as removed
// (404 or 410). It also matches listing.ErrInputUnavailable.
var ErrGone = errors.New("listing is gone")

type ClientOpts struct {
	Timeout time.Duration
	Retries int
	// Delay is the minimum spacing between requests. Zero disables throttling.
	Delay        time.Duration
	MaxImageSize int64
	UserAgent    string
}

// Client fetches documents and images through a shared rate limiter.
type Client struct {
	httpClient   *resty.Client
	limiter      *rate.Limiter
	maxImageSize int64
}

func NewClient(opts ClientOpts) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = DefaultMaxImageSize
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	c := &Client{
		limiter:      rate.NewLimiter(limit, 1),
		maxImageSize: opts.MaxImageSize,
	}
	c.httpClient = resty.New().
		SetDebug(false).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(res *resty.Response, err error) bool {
			if err != nil || res == nil {
				return true
			}
			return res.StatusCode() == http.StatusTooManyRequests || res.StatusCode() >= 500
		}).
		SetHeaders(
			map[string]string{
				"User-Agent":      opts.UserAgent,
				"Accept-Language": "ru-RU,ru;q=0.9,en;q=0.8",
			},
		)

	return c
}

// FetchDocument downloads a listing page. Every failure matches
// listing.ErrInputUnavailable; removed listings additionally match ErrGone.
func (c *Client) FetchDocument(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w: %w", url, listing.ErrInputUnavailable, err)
	}

	log.Debug().Str("url", url).Msg("fetching document")

	res, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w: %w", url, listing.ErrInputUnavailable, err)
	}

	switch {
	case res.StatusCode() == http.StatusNotFound || res.StatusCode() == http.StatusGone:
		return nil, fmt.Errorf("failed to fetch %s: %w: %w", url, listing.ErrInputUnavailable, ErrGone)
	case res.IsError():
		return nil, fmt.Errorf("failed to fetch %s: %w: status %d", url, listing.ErrInputUnavailable, res.StatusCode())
	}

	body := res.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("failed to fetch %s: %w: empty body", url, listing.ErrInputUnavailable)
	}
	if len(body) > maxDocumentSize {
		return nil, fmt.Errorf("failed to fetch %s: %w: document too large", url, listing.ErrInputUnavailable)
	}

	return body, nil
}

// FetchImage downloads image data from a URL.
// It respects context cancellation and enforces the size limit.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := c.httpClient.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("download failed: status %d", res.StatusCode())
	}

	// Validate Content-Type is an image
	contentType := res.Header().Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("invalid content type: expected image/*, got %s", contentType)
	}

	if res.RawResponse.ContentLength > c.maxImageSize {
		return nil, fmt.Errorf("image too large: %d bytes exceeds limit of %d bytes", res.RawResponse.ContentLength, c.maxImageSize)
	}

	// LimitReader enforces the limit even if Content-Length is missing or wrong
	data, err := io.ReadAll(io.LimitReader(body, c.maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > c.maxImageSize {
		return nil, fmt.Errorf("image too large: exceeds limit of %d bytes", c.maxImageSize)
	}

	return data, nil
}
