package scrape

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/xpath2rss/pkg/domain"
)

// GUIDVar is the name of the var every request has to define
const GUIDVar = "guid"

// Extractor evaluates XPath expressions against a loaded page
type Extractor interface {
	Extract(expression, contextExpr string) (string, error)
}

// Store keeps records emitted by previous runs
type Store interface {
	Contains(guid string) bool
	Insert(rec domain.Record) bool
}

// Request describes what to extract from the page and how to render the record
type Request struct {
	Vars        map[string]string // var name -> XPath expression, must have guid
	Context     string            // optional XPath of the context node
	FeedURL     string            // link fallback if there is no link template
	Link        string            // templates with %var% placeholders
	Title       string
	Description string
}

// Scraper turns a page into at most one new record per run
type Scraper struct {
	ext Extractor
	now func() time.Time
}

// New makes a scraper reading the page through ext
func New(ext Extractor) *Scraper {
	return &Scraper{ext: ext, now: time.Now}
}

// Scrape extracts all vars, skips the record if its guid is already in store and
// inserts a newly rendered record otherwise. Returns true if a record was inserted.
// A var without a match fails the whole scrape, there are no partial records.
func (s *Scraper) Scrape(req Request, store Store) (bool, error) {
	if _, ok := req.Vars[GUIDVar]; !ok {
		return false, domain.NewError(domain.ErrMissingGUIDVar, "a var called %q must always be defined", GUIDVar)
	}

	guid := ""
	bindings := make(map[string]string, len(req.Vars))
	for _, name := range VarNames(req.Vars) {
		val, err := s.ext.Extract(req.Vars[name], req.Context)
		if err != nil {
			return false, fmt.Errorf("extract var %s: %w", name, err)
		}
		if name == GUIDVar {
			guid = val
		}
		bindings[name] = Escape(val)
	}

	if guid == "" {
		return false, domain.NewError(domain.ErrNoMatch, "var %q matched an empty text", GUIDVar)
	}

	if store.Contains(guid) {
		lgr.Printf("[INFO] item %q already seen, nothing to add", guid)
		return false, nil
	}

	link := req.FeedURL
	if req.Link != "" {
		link = Render(req.Link, bindings)
	}

	rec := domain.Record{
		GUID:        guid,
		Title:       Render(req.Title, bindings),
		Link:        link,
		Description: Render(req.Description, bindings),
		Published:   s.now(),
	}
	if !store.Insert(rec) {
		return false, nil
	}
	lgr.Printf("[INFO] new item %q, title %q", guid, rec.Title)
	return true, nil
}

// VarNames returns var names in extraction order, guid first and the rest sorted
func VarNames(vars map[string]string) []string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		if name != GUIDVar {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := vars[GUIDVar]; ok {
		names = append([]string{GUIDVar}, names...)
	}
	return names
}
