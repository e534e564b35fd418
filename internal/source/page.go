package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/dotcommander/papermate/internal/errs"
)

const (
	userAgent      = "papermate/1.0 (+https://github.com/dotcommander/papermate)"
	requestTimeout = 30 * time.Second
	minPageText    = 100
)

var (
	contentSelectors = []string{
		"article", "main", ".ltx_document", ".content", ".post",
		".article", ".entry-content", "#content", "#main",
	}
	noiseSelectors = "script, style, noscript, nav, footer, header, aside, form, svg"
	blockSelectors = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, figcaption, td, th, .ltx_title, .ltx_p"
)

// Page is a fetched web page reduced to readable text.
type Page struct {
	URL   string
	Title string
	Text  string
}

// FromURL fetches an HTML page and returns its readable text.
func FromURL(rawURL string) TextSource {
	return func(ctx context.Context) (string, error) {
		page, err := FetchPage(ctx, rawURL)
		if err != nil {
			return "", err
		}
		if page.Title == "" {
			return page.Text, nil
		}
		return "# " + page.Title + "\n\n" + page.Text, nil
	}
}

// FetchPage downloads rawURL and extracts its title and body text.
func FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck
	}

	c := newCollector(ctx)
	page := &Page{URL: rawURL}
	c.OnHTML("html", func(e *colly.HTMLElement) {
		page.Title = cleanText(e.DOM.Find("title").First().Text())
		page.Text = Readable(e.DOM)
	})

	var scrapeErr error
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("fetch %s: %w (status: %d)", rawURL, err, r.StatusCode)
	})
	if err := c.Visit(rawURL); err != nil && scrapeErr == nil {
		scrapeErr = fmt.Errorf("visit %s: %w", rawURL, err)
	}
	c.Wait()

	if scrapeErr != nil {
		return nil, errs.Wrapf(scrapeErr, "Could not fetch %s.", rawURL)
	}
	if len(page.Text) < minPageText {
		return nil, errs.Error{
			Err:    fmt.Errorf("insufficient content scraped from %s", rawURL),
			Reason: "The page has no readable text.",
		}
	}
	page.Text = truncate(page.Text)
	return page, nil
}

// Readable drops scripts, styles and navigation from doc and returns the
// text of its main content, one block per paragraph.
func Readable(doc *goquery.Selection) string {
	doc.Find(noiseSelectors).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc
	}
	for _, sel := range contentSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 && len(cleanText(found.Text())) >= minPageText {
			root = found
			break
		}
	}

	var blocks []string
	root.Find(blockSelectors).Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are emitted by their innermost element.
		if s.Find(blockSelectors).Length() > 0 {
			return
		}
		if text := cleanText(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) == 0 {
		return cleanText(root.Text())
	}
	return strings.Join(blocks, "\n\n")
}

// ValidateURL checks if a URL is valid and uses http/https.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errs.Wrap(err, "Invalid URL.")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errs.Error{Err: fmt.Errorf("unsupported scheme %q", parsed.Scheme), Reason: "URL must use http or https."}
	}
	if parsed.Host == "" {
		return errs.Error{Err: fmt.Errorf("no host in %q", rawURL), Reason: "URL must have a host."}
	}
	return nil
}

func newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.MaxDepth(1),
	)
	timeout := requestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	c.SetRequestTimeout(timeout)
	return c
}
