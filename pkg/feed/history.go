package feed

import (
	"strings"
	"time"

	"github.com/umputun/xpath2rss/pkg/domain"
)

// History is the insertion-ordered set of items already emitted, keyed by guid.
// The first item stored for a guid wins. Not safe for concurrent use.
type History struct {
	order []string
	items map[string]Item
}

// NewHistory makes an empty history
func NewHistory() *History {
	return &History{items: make(map[string]Item)}
}

// NewItem converts a freshly scraped record to its stored form
func NewItem(rec domain.Record) Item {
	return Item{
		Title:       rec.Title,
		Link:        rec.Link,
		GUID:        GUID{IsPermaLink: "false", Value: rec.GUID},
		PubDate:     rec.Published.Format(time.RFC1123Z),
		Description: rec.Description,
	}
}

// Contains checks if an item with guid is stored
func (h *History) Contains(guid string) bool {
	_, ok := h.items[guid]
	return ok
}

// Insert appends the record unless its guid is already stored
func (h *History) Insert(rec domain.Record) bool {
	return h.Add(NewItem(rec))
}

// Add appends an item in its stored form unless its guid is already stored.
// Items without guid are rejected.
func (h *History) Add(item Item) bool {
	guid := strings.TrimSpace(item.GUID.Value)
	if guid == "" || h.Contains(guid) {
		return false
	}
	h.items[guid] = item
	h.order = append(h.order, guid)
	return true
}

// Get returns the stored item for guid
func (h *History) Get(guid string) (Item, bool) {
	item, ok := h.items[guid]
	return item, ok
}

// Items returns all items in insertion order
func (h *History) Items() []Item {
	res := make([]Item, 0, len(h.order))
	for _, guid := range h.order {
		res = append(res, h.items[guid])
	}
	return res
}

// GUIDs returns all guids in insertion order
func (h *History) GUIDs() []string {
	res := make([]string, len(h.order))
	copy(res, h.order)
	return res
}

// Len returns the number of stored items
func (h *History) Len() int {
	return len(h.order)
}
