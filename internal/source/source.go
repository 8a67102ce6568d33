// Package source loads the profile document from disk or over HTTP.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"profilechat/internal/domain"
)

// ErrNotFound is returned when the document does not exist at the source.
var ErrNotFound = errors.New("profile document not found")

const maxDocumentBytes = 4 << 20

// Fetcher reads the document at Location, bypassing any HTTP cache.
type Fetcher struct {
	Location string
	client   *http.Client
	now      func() time.Time
}

// Config configures a Fetcher.
type Config struct {
	Location string
	Timeout  time.Duration
}

func NewFetcher(cfg Config) *Fetcher {
	t := cfg.Timeout
	if t == 0 {
		t = 10 * time.Second
	}
	return &Fetcher{Location: cfg.Location, client: &http.Client{Timeout: t}, now: time.Now}
}

// Fetch returns the current document contents.
func (f *Fetcher) Fetch(ctx context.Context) (domain.Document, error) {
	loc := strings.TrimSpace(f.Location)
	if loc == "" {
		return domain.Document{}, ErrNotFound
	}
	if isHTTP(loc) {
		return f.fetchHTTP(ctx, loc)
	}
	data, err := os.ReadFile(loc)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Document{}, fmt.Errorf("%w: %s", ErrNotFound, loc)
		}
		return domain.Document{}, err
	}
	return domain.Document{Path: loc, Content: string(data)}, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, loc string) (domain.Document, error) {
	u, err := url.Parse(loc)
	if err != nil {
		return domain.Document{}, err
	}
	q := u.Query()
	q.Set("_", strconv.FormatInt(f.now().UnixNano(), 10))
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Document{}, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Document{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return domain.Document{}, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	if resp.StatusCode >= 300 {
		return domain.Document{}, fmt.Errorf("fetch %s failed: %s", loc, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{Path: loc, Content: string(data)}, nil
}

func isHTTP(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")
}
