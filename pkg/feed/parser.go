package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/go-pkgz/lgr"
	"golang.org/x/net/html/charset"

	"github.com/umputun/xpath2rss/pkg/domain"
)

// Load hydrates the history from a previously written feed file.
// A missing file is not an error, it gives an empty history for the first run.
func Load(path string) (*History, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if errors.Is(err, fs.ErrNotExist) {
		lgr.Printf("[INFO] no feed file %s yet, starting with empty history", path)
		return NewHistory(), nil
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrHistory, err, "read feed file %s", path)
	}

	h, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, domain.WrapError(domain.ErrHistory, err, "load feed file %s", path)
	}
	lgr.Printf("[DEBUG] loaded %d items from %s", h.Len(), path)
	return h, nil
}

// Parse reads an RSS document and keeps its items keyed by guid, in document order
func Parse(r io.Reader) (*History, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	var doc RSS
	if err := decoder.Decode(&doc); err != nil {
		return nil, domain.WrapError(domain.ErrHistory, err, "parse feed")
	}

	h := NewHistory()
	if doc.Channel == nil {
		return nil, domain.NewError(domain.ErrHistory, "parse feed: no channel element")
	}
	for i, item := range doc.Channel.Items {
		guid := strings.TrimSpace(item.GUID.Value)
		if guid == "" {
			lgr.Printf("[WARN] item #%d has no guid, dropped", i+1)
			continue
		}
		if !h.Add(item) {
			lgr.Printf("[WARN] duplicate item %q dropped", guid)
		}
	}
	return h, nil
}
