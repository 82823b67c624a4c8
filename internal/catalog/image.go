package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/iliyamo/screening-license/pkg/logger"
)

// ErrImageNotFound covers every upstream failure; callers answer 404.
var ErrImageNotFound = errors.New("image not found")

// ImageCacheControl is sent with every proxied image.
const ImageCacheControl = "public, max-age=3600"

// MaxImageBytes bounds a proxied image body.
const MaxImageBytes = 10 << 20

type ImageOptions struct {
	BaseURL         string
	SubscriptionKey string
	Attempts        uint          // default 3
	RetryDelay      time.Duration // default 1s, doubled per attempt
	MaxBytes        int64         // default MaxImageBytes
	Client          *http.Client
}

// Image is a fetched poster.
type Image struct {
	ContentType string
	Body        []byte
}

// ImageFetcher resolves catalog image ids through the upstream redirect
// endpoint.
type ImageFetcher struct {
	opts ImageOptions
	log  logger.Logger
}

func NewImageFetcher(opts ImageOptions, log logger.Logger) *ImageFetcher {
	if log == nil {
		panic("catalog.NewImageFetcher: nil logger")
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = MaxImageBytes
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &ImageFetcher{opts: opts, log: log}
}

func (f *ImageFetcher) imageURL(id string) string {
	return fmt.Sprintf("%s/api/Images/%s/Redirect?subscription-Key=%s",
		f.opts.BaseURL, url.PathEscape(id), url.QueryEscape(f.opts.SubscriptionKey))
}

// Fetch downloads image id.  Rate limited responses are retried after the
// upstream Retry-After, other failures after a doubling delay.
func (f *ImageFetcher) Fetch(ctx context.Context, id string) (Image, error) {
	if strings.TrimSpace(id) == "" || f.opts.BaseURL == "" {
		return Image{}, ErrImageNotFound
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.RetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0

	img, err := backoff.Retry(ctx, func() (Image, error) {
		return f.fetchOnce(ctx, id)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(f.opts.Attempts),
	)
	if err != nil {
		f.log.Warn("image fetch failed", "image_id", id, "error", err)
		return Image{}, ErrImageNotFound
	}
	return img, nil
}

func (f *ImageFetcher) fetchOnce(ctx context.Context, id string) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.imageURL(id), nil)
	if err != nil {
		return Image{}, backoff.Permanent(err)
	}
	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return Image{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			return Image{}, backoff.RetryAfter(secs)
		}
		return Image{}, errors.New("upstream rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return Image{}, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return Image{}, err
	}
	if int64(len(body)) > f.opts.MaxBytes {
		return Image{}, backoff.Permanent(fmt.Errorf("image larger than %d bytes", f.opts.MaxBytes))
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "image/jpeg"
	}
	return Image{ContentType: ct, Body: body}, nil
}
