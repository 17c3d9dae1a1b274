package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/xpath2rss/pkg/domain"
)

// default timeouts, same as a patient browser
const (
	DefaultConnectTimeout = 60 * time.Second
	DefaultTimeout        = 120 * time.Second
)

// maxPageSize is the largest page accepted, bigger ones fail rather than get truncated
const maxPageSize = 32 << 20

// Page is a fetched document
type Page struct {
	URL         string
	ContentType string
	Body        []byte
}

// Config for the fetcher, zero values get defaults
type Config struct {
	ConnectTimeout  time.Duration // dial timeout
	Timeout         time.Duration // whole request, including reading the body
	UserAgent       string
	FollowRedirects bool
}

// Fetcher retrieves pages over HTTP or from local files.
// There are no retries, a failed fetch is reported as recoverable and left to the next run.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxSize   int64
}

// New creates a fetcher
func New(cfg Config) *Fetcher {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
			TLSHandshakeTimeout:   cfg.ConnectTimeout,
			ResponseHeaderTimeout: cfg.Timeout,
		},
	}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &Fetcher{client: client, userAgent: cfg.UserAgent, maxSize: maxPageSize}
}

// Fetch retrieves the page at rawURL. file:// URLs are read from disk.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfig, err, "parse URL %q", rawURL)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, rawURL)
	case "file":
		return f.fetchFile(u)
	default:
		return nil, domain.NewError(domain.ErrConfig, "unsupported URL %q, expected http, https or file scheme", rawURL)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfig, err, "create request")
	}

	req.Header.Set("User-Agent", f.userAgent)

	// add browser-like headers
	addBrowserHeaders(req)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		// cancelled by the caller, not a page failure
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch %s interrupted: %w", pageURL, ctxErr)
		}
		return nil, domain.WrapError(domain.ErrTransport, err, "connection error")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.ErrHTTPStatus, "HTTP error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch %s interrupted: %w", pageURL, ctxErr)
		}
		return nil, domain.WrapError(domain.ErrTransport, err, "read response from %s", pageURL)
	}
	if int64(len(body)) > f.maxSize {
		return nil, domain.NewError(domain.ErrTransport, "page %s is larger than %d bytes", pageURL, f.maxSize)
	}

	lgr.Printf("[DEBUG] fetched %s, %d bytes in %v", pageURL, len(body), time.Since(start))
	return &Page{URL: pageURL, ContentType: resp.Header.Get("Content-Type"), Body: body}, nil
}

func (f *Fetcher) fetchFile(u *url.URL) (*Page, error) {
	path := u.Path
	if u.Host != "" && u.Host != "localhost" {
		path = "//" + u.Host + u.Path
	}
	path = filepath.FromSlash(path)

	body, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransport, err, "read %s", path)
	}
	if int64(len(body)) > f.maxSize {
		return nil, domain.NewError(domain.ErrTransport, "page %s is larger than %d bytes", path, f.maxSize)
	}
	lgr.Printf("[DEBUG] read %s, %d bytes", path, len(body))
	return &Page{URL: u.String(), Body: body}, nil
}

// String describes fetcher settings for logs
func (f *Fetcher) String() string {
	return fmt.Sprintf("timeout %v, user agent %q", f.client.Timeout, f.userAgent)
}
