package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/xpath2rss/pkg/domain"
)

func TestFetcher_Fetch(t *testing.T) {
	t.Run("valid page", func(t *testing.T) {
		var gotUA, gotAccept string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotAccept = r.Header.Get("Accept")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><h1>hello</h1></html>"))
		}))
		defer server.Close()

		f := New(Config{Timeout: 5 * time.Second})
		page, err := f.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "<html><h1>hello</h1></html>", string(page.Body))
		assert.Equal(t, "text/html; charset=utf-8", page.ContentType)
		assert.Equal(t, server.URL, page.URL)
		assert.Equal(t, DefaultUserAgent, gotUA)
		assert.Contains(t, gotAccept, "text/html")
	})

	t.Run("custom user agent", func(t *testing.T) {
		var gotUA string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
		}))
		defer server.Close()

		_, err := New(Config{UserAgent: "test-agent/1.0"}).Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "test-agent/1.0", gotUA)
	})

	t.Run("server error is recoverable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		page, err := New(Config{}).Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.Nil(t, page)
		assert.True(t, domain.IsKind(err, domain.ErrHTTPStatus))
		assert.True(t, domain.IsRecoverable(err))
		assert.Contains(t, err.Error(), "HTTP error: 500")
	})

	t.Run("redirects not followed by default", func(t *testing.T) {
		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("moved here"))
		}))
		defer target.Close()
		server := httptest.NewServer(http.RedirectHandler(target.URL, http.StatusFound))
		defer server.Close()

		_, err := New(Config{}).Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.ErrHTTPStatus))
		assert.Contains(t, err.Error(), "302")

		page, err := New(Config{FollowRedirects: true}).Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "moved here", string(page.Body))
	})

	t.Run("timeout is recoverable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		_, err := New(Config{Timeout: 20 * time.Millisecond}).Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.ErrTransport))
		assert.True(t, domain.IsRecoverable(err))
	})

	t.Run("connection refused is recoverable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		_, err := New(Config{ConnectTimeout: time.Second}).Fetch(context.Background(), url)
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.ErrTransport))
		assert.Contains(t, err.Error(), "connection error")
	})

	t.Run("local file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "page.html")
		require.NoError(t, os.WriteFile(path, []byte("<h1>local</h1>"), 0o600))

		page, err := New(Config{}).Fetch(context.Background(), "file://"+filepath.ToSlash(path))
		require.NoError(t, err)
		assert.Equal(t, "<h1>local</h1>", string(page.Body))
		assert.Empty(t, page.ContentType)
	})

	t.Run("missing local file is recoverable", func(t *testing.T) {
		_, err := New(Config{}).Fetch(context.Background(), "file:///does/not/exist.html")
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.ErrTransport))
	})

	t.Run("cancelled context is fatal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<h1>late</h1>"))
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(Config{}).Fetch(ctx, server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, domain.IsRecoverable(err))
		assert.Contains(t, err.Error(), "interrupted")
	})

	t.Run("oversized page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<h1>0123456789</h1>"))
		}))
		defer server.Close()

		f := New(Config{})
		f.maxSize = 10
		_, err := f.Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.ErrTransport))
		assert.Contains(t, err.Error(), "larger than 10 bytes")

		f.maxSize = int64(len("<h1>0123456789</h1>"))
		page, err := f.Fetch(context.Background(), server.URL)
		require.NoError(t, err, "page of exactly max size is accepted")
		assert.Equal(t, "<h1>0123456789</h1>", string(page.Body))
	})

	t.Run("oversized local file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "page.html")
		require.NoError(t, os.WriteFile(path, []byte("<h1>0123456789</h1>"), 0o600))

		f := New(Config{})
		f.maxSize = 10
		_, err := f.Fetch(context.Background(), "file://"+filepath.ToSlash(path))
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.ErrTransport))
	})

	t.Run("unsupported scheme is fatal", func(t *testing.T) {
		for _, u := range []string{"ftp://example.com/page", "not-a-valid-url", "://bad"} {
			_, err := New(Config{}).Fetch(context.Background(), u)
			require.Error(t, err, u)
			assert.False(t, domain.IsRecoverable(err), u)
		}
	})
}

func TestNew_Defaults(t *testing.T) {
	f := New(Config{})
	assert.Equal(t, DefaultTimeout, f.client.Timeout)
	assert.Equal(t, DefaultUserAgent, f.userAgent)
	assert.Equal(t, int64(maxPageSize), f.maxSize)
	assert.Contains(t, f.String(), "timeout 2m0s")
}
