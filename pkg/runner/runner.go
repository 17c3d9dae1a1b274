package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"

	"github.com/umputun/xpath2rss/pkg/config"
	"github.com/umputun/xpath2rss/pkg/domain"
	"github.com/umputun/xpath2rss/pkg/extract"
	"github.com/umputun/xpath2rss/pkg/feed"
	"github.com/umputun/xpath2rss/pkg/fetch"
	"github.com/umputun/xpath2rss/pkg/scrape"
)

// Mode selects what a run does
type Mode int

// run modes
const (
	ModeDefault Mode = iota // scrape and write the feed file
	ModeGentle              // as default, recoverable failures end the run quietly
	ModeTest                // report config, history and matches, change nothing
	ModeDryRun              // scrape and print the feed instead of writing it
)

func (m Mode) String() string {
	switch m {
	case ModeGentle:
		return "gentle"
	case ModeTest:
		return "test"
	case ModeDryRun:
		return "dry-run"
	default:
		return "default"
	}
}

// Fetcher retrieves the page to scrape
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// Runner executes one page-to-feed conversion.
// Runs against the same feed file must not overlap, the last writer wins.
type Runner struct {
	cfg     *config.Config
	fetcher Fetcher
	out     io.Writer
}

// New makes a runner printing dry-run feeds and test reports to out
func New(cfg *config.Config, fetcher Fetcher, out io.Writer) *Runner {
	return &Runner{cfg: cfg, fetcher: fetcher, out: out}
}

// Run executes a single run in the given mode.
// The feed file is either fully replaced or left untouched.
func (r *Runner) Run(ctx context.Context, mode Mode) error {
	lgr.Printf("[DEBUG] run in %s mode, page %s, feed %s", mode, r.cfg.URL, r.cfg.File)

	if mode == ModeTest {
		return r.Report(ctx)
	}

	err := r.update(ctx, mode == ModeDryRun)
	if err != nil && mode == ModeGentle && domain.IsRecoverable(err) {
		lgr.Printf("[WARN] nothing new this time, %v", err)
		return nil
	}
	return err
}

func (r *Runner) update(ctx context.Context, dryRun bool) error {
	history, err := feed.Load(r.cfg.File)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	ext, err := r.load(ctx)
	if err != nil {
		return err
	}

	if _, err = scrape.New(ext).Scrape(r.request(), history); err != nil {
		return fmt.Errorf("scrape %s: %w", r.cfg.URL, err)
	}

	ch := feed.Channel{Title: r.cfg.Feed, Link: r.cfg.URL}
	if dryRun {
		data, err := feed.Render(history, ch)
		if err != nil {
			return fmt.Errorf("render feed: %w", err)
		}
		if _, err := r.out.Write(data); err != nil {
			return fmt.Errorf("print feed: %w", err)
		}
		return nil
	}

	if err := feed.Write(r.cfg.File, history, ch); err != nil {
		return fmt.Errorf("save feed: %w", err)
	}
	return nil
}

// load fetches and parses the page
func (r *Runner) load(ctx context.Context) (*extract.Extractor, error) {
	page, err := r.fetcher.Fetch(ctx, r.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r.cfg.URL, err)
	}
	ext, err := extract.ParseBytes(page.Body, page.ContentType)
	if err != nil {
		return nil, fmt.Errorf("load page %s: %w", r.cfg.URL, err)
	}
	return ext, nil
}

func (r *Runner) request() scrape.Request {
	return scrape.Request{
		Vars:        r.cfg.Vars,
		Context:     r.cfg.Context,
		FeedURL:     r.cfg.URL,
		Link:        r.cfg.Link,
		Title:       r.cfg.Title,
		Description: r.cfg.Description,
	}
}

// Report prints the configuration, guids already in the feed file and what every var
// matches on the live page. Nothing is written. Failed vars are reported and returned joined.
func (r *Runner) Report(ctx context.Context) error {
	bad := color.New(color.FgRed)

	fmt.Fprintf(r.out, "\nConfiguration:\n\n")
	settings := map[string]string{
		"file": r.cfg.File, "url": r.cfg.URL, "feed": r.cfg.Feed, "title": r.cfg.Title,
		"description": r.cfg.Description, "link": r.cfg.Link, "context": r.cfg.Context,
	}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(r.out, "\t%s => %q\n", k, settings[k])
	}

	fmt.Fprintf(r.out, "\nCurrent guids in %q:\n\n", r.cfg.File)
	history, err := feed.Load(r.cfg.File)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	for _, guid := range history.GUIDs() {
		fmt.Fprintf(r.out, "\t%q\n", guid)
	}

	fmt.Fprintf(r.out, "\nXPath expressions from vars:\n\n")
	names := scrape.VarNames(r.cfg.Vars)
	for _, name := range names {
		fmt.Fprintf(r.out, "\t%s => %q\n", name, r.cfg.Vars[name])
	}

	fmt.Fprintf(r.out, "\nXPath matches against %q:\n\n", r.cfg.URL)
	ext, err := r.load(ctx)
	if err != nil {
		bad.Fprintf(r.out, "\t%v\n\n", err) //nolint:errcheck // report output
		return err
	}
	fmt.Fprintf(r.out, "\tpage title: %q\n", ext.Title())

	var errs []error
	for _, name := range names {
		val, err := ext.Extract(r.cfg.Vars[name], r.cfg.Context)
		if err != nil {
			bad.Fprintf(r.out, "\t%s => %v\n", name, err) //nolint:errcheck // report output
			errs = append(errs, fmt.Errorf("var %s: %w", name, err))
			continue
		}
		state := ""
		if name == scrape.GUIDVar && history.Contains(val) {
			state = " (already in feed)"
		}
		fmt.Fprintf(r.out, "\t%s => %q%s\n", name, val, state)
	}
	fmt.Fprintln(r.out)

	return errors.Join(errs...)
}
