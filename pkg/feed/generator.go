package feed

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pkgz/lgr"
)

// Render creates a pretty-printed RSS 2.0 document from the history.
// The output depends only on the history and channel, items keep insertion order.
func Render(h *History, ch Channel) ([]byte, error) {
	feed := &RSS{
		Version: "2.0",
		Channel: &RSSChannel{
			Title: ch.Title,
			Link:  ch.Link,
			Items: h.Items(),
		},
	}

	// marshal to XML
	output, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal RSS: %w", err)
	}

	// add XML declaration
	res := make([]byte, 0, len(xml.Header)+len(output)+1)
	res = append(res, xml.Header...)
	res = append(res, output...)
	return append(res, '\n'), nil
}

// Write renders the history and replaces the file at path with it.
// The document goes to a temporary file first, so the old feed stays intact if anything fails.
func Write(path string, h *History, ch Channel) error {
	data, err := Render(h, ch)
	if err != nil {
		return err
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp feed file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp feed file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp feed file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp feed file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // feed is public by nature
		return fmt.Errorf("chmod temp feed file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace feed file %s: %w", path, err)
	}

	lgr.Printf("[INFO] feed %s written, %d items", path, h.Len())
	return nil
}
