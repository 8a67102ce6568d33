package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds every single probe.
const DefaultProbeTimeout = 1200 * time.Millisecond

// Head is what a probe learns about a resource.
type Head struct {
	ContentLength int64
	ContentType   string
}

// Prober checks resources addressed either by http(s) URL or by filesystem path.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

func NewProber(client *http.Client, timeout time.Duration) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{client: client, timeout: timeout}
}

// Head probes loc with a bounded timeout. Missing resources yield ErrNotFound.
func (p *Prober) Head(ctx context.Context, loc string) (Head, error) {
	if !isHTTP(loc) {
		fi, err := os.Stat(loc)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Head{}, fmt.Errorf("%w: %s", ErrNotFound, loc)
			}
			return Head{}, err
		}
		if fi.IsDir() {
			return Head{ContentLength: -1}, nil
		}
		return Head{ContentLength: fi.Size()}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	resp, err := p.do(ctx, http.MethodHead, loc)
	if err == nil && resp.StatusCode == http.StatusMethodNotAllowed {
		resp.Body.Close()
		resp, err = p.do(ctx, http.MethodGet, loc)
	}
	if err != nil {
		return Head{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return Head{}, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	if resp.StatusCode >= 300 {
		return Head{}, fmt.Errorf("probe %s failed: %s", loc, resp.Status)
	}
	return Head{ContentLength: resp.ContentLength, ContentType: resp.Header.Get("Content-Type")}, nil
}

// Exists reports whether loc is reachable.
func (p *Prober) Exists(ctx context.Context, loc string) error {
	_, err := p.Head(ctx, loc)
	return err
}

func (p *Prober) do(ctx context.Context, method, loc string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, loc, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	return p.client.Do(req)
}

// IsPlaceholder reports whether a weight shard looks like a large-file pointer:
// a tiny body or a plain-text content type.
func IsPlaceholder(h Head, minBytes int64) bool {
	if h.ContentLength >= 0 && h.ContentLength < minBytes {
		return true
	}
	return strings.HasPrefix(strings.ToLower(h.ContentType), "text/plain")
}

func isHTTP(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")
}

// joinLocation joins path elements onto a URL or filesystem base.
func joinLocation(base string, elems ...string) string {
	if isHTTP(base) {
		u, err := url.JoinPath(base, elems...)
		if err == nil {
			return u
		}
		return strings.TrimRight(base, "/") + "/" + strings.Join(elems, "/")
	}
	return filepath.Join(append([]string{base}, elems...)...)
}
