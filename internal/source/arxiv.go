package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/dotcommander/papermate/internal/errs"
)

// DefaultArxivAPI is the arXiv export query endpoint.
const DefaultArxivAPI = "http://export.arxiv.org/api/query"

// Paper is one entry of an arXiv feed.
type Paper struct {
	ID         string
	Title      string
	Authors    []string
	Summary    string
	Published  time.Time
	Categories []string
	PDFURL     string
	AbsURL     string
}

// HTMLURL is the rendered HTML version of the paper.
func (p Paper) HTMLURL() string {
	return strings.Replace(p.AbsURL, "/abs/", "/html/", 1)
}

// Arxiv lists recent papers from the arXiv API.
type Arxiv struct {
	BaseURL string
	Now     func() time.Time
}

// ArxivQuery selects recent papers.
type ArxivQuery struct {
	Category   string
	MaxResults int
	DaysBack   int
}

// Recent returns the newest papers of q.Category published within
// q.DaysBack days, newest first.
func (a Arxiv) Recent(ctx context.Context, q ArxivQuery) ([]Paper, error) {
	if q.Category == "" {
		q.Category = "cs.AI"
	}
	if q.MaxResults <= 0 {
		q.MaxResults = 50
	}
	if q.DaysBack <= 0 {
		q.DaysBack = 7
	}
	base := a.BaseURL
	if base == "" {
		base = DefaultArxivAPI
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	params := url.Values{}
	params.Set("search_query", "cat:"+q.Category)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(q.MaxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	feedURL := base + "?" + params.Encode()

	today := now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -q.DaysBack)

	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck
	}
	c := newCollector(ctx)

	var papers []Paper
	c.OnXML("//entry", func(e *colly.XMLElement) {
		p, ok := parseEntry(e)
		if !ok {
			return
		}
		if p.Published.Before(since) || p.Published.After(today.Add(24*time.Hour)) {
			return
		}
		papers = append(papers, p)
	})

	var scrapeErr error
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("arxiv query: %w (status: %d)", err, r.StatusCode)
	})
	if err := c.Visit(feedURL); err != nil && scrapeErr == nil {
		scrapeErr = fmt.Errorf("arxiv query: %w", err)
	}
	c.Wait()
	if scrapeErr != nil {
		return nil, errs.Wrap(scrapeErr, "Could not query arXiv.")
	}
	return papers, nil
}

func parseEntry(e *colly.XMLElement) (Paper, bool) {
	id := e.ChildText("id")
	if id == "" {
		return Paper{}, false
	}
	published, err := time.Parse(time.RFC3339, e.ChildText("published"))
	if err != nil {
		return Paper{}, false
	}
	paperID := id[strings.LastIndex(id, "/")+1:]

	p := Paper{
		ID:        paperID,
		Title:     cleanText(e.ChildText("title")),
		Summary:   cleanText(e.ChildText("summary")),
		Published: published,
		AbsURL:    "https://arxiv.org/abs/" + paperID,
		PDFURL:    e.ChildAttr(`link[@title="pdf"]`, "href"),
	}
	if p.Title == "" {
		p.Title = "(untitled)"
	}
	for _, name := range e.ChildTexts("author/name") {
		if name = cleanText(name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	p.Categories = e.ChildAttrs("category", "term")
	return p, true
}

// FormatPapers renders papers as a numbered markdown list.
func FormatPapers(papers []Paper, days int) string {
	if len(papers) == 0 {
		return fmt.Sprintf("No new papers in the last %d days.", days)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Latest arXiv papers (%d)\n", len(papers))
	for i, p := range papers {
		authors := p.Authors
		more := ""
		if len(authors) > 3 { //nolint:mnd
			authors, more = authors[:3], " et al."
		}
		fmt.Fprintf(&sb, "\n%d. **%s**\n", i+1, p.Title)
		fmt.Fprintf(&sb, "   - Authors: %s%s\n", strings.Join(authors, ", "), more)
		fmt.Fprintf(&sb, "   - ID: `%s` (%s)\n", p.ID, p.Published.Format(time.DateOnly))
		if len(p.Categories) > 0 {
			fmt.Fprintf(&sb, "   - Categories: %s\n", strings.Join(p.Categories, ", "))
		}
		fmt.Fprintf(&sb, "   - HTML: %s\n", p.HTMLURL())
		if p.PDFURL != "" {
			fmt.Fprintf(&sb, "   - PDF: %s\n", p.PDFURL)
		}
		fmt.Fprintf(&sb, "   - %s\n", preview(p.Summary, 100)) //nolint:mnd
	}
	return sb.String()
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
