package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const paperHTML = `<!DOCTYPE html>
<html><head><title>Attention Is All You Need</title>
<style>body { color: red; }</style>
<script>var tracking = "do not read me";</script></head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Attention Is All You Need</h1>
<p>The dominant sequence transduction models are based on complex recurrent or convolutional neural networks.</p>
<ul><li><p>We propose a new simple network architecture, the Transformer, based solely on attention mechanisms.</p></li></ul>
</article>
<footer>Copyright</footer>
</body></html>`

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("ok", func(t *testing.T) {
		path := filepath.Join(dir, "paper.md")
		require.NoError(t, os.WriteFile(path, []byte("\n  some paper text\n"), 0o600))
		text, err := FromFile(path)(context.Background())
		require.NoError(t, err)
		require.Equal(t, "some paper text", text)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := FromFile(filepath.Join(dir, "nope"))(context.Background())
		require.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		path := filepath.Join(dir, "empty.txt")
		require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))
		_, err := FromFile(path)(context.Background())
		require.Error(t, err)
	})

	t.Run("binary", func(t *testing.T) {
		path := filepath.Join(dir, "bin")
		require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0xfd}, 0o600))
		_, err := FromFile(path)(context.Background())
		require.Error(t, err)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := FromFile(filepath.Join(dir, "paper.md"))(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestFromReader(t *testing.T) {
	text, err := FromReader(strings.NewReader("hello"))(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hello", text)

	long := strings.Repeat("é", MaxLength)
	text, err = FromReader(strings.NewReader(long))(context.Background())
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(text, "..."))
	require.LessOrEqual(t, len(text), MaxLength+3)
}

func TestReadable(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(paperHTML))
	require.NoError(t, err)

	text := Readable(doc.Selection)
	require.Contains(t, text, "Attention Is All You Need")
	require.Contains(t, text, "the Transformer, based solely on attention mechanisms.")
	require.NotContains(t, text, "tracking")
	require.NotContains(t, text, "color: red")
	require.NotContains(t, text, "About")
	require.NotContains(t, text, "Copyright")
	require.Equal(t, 1, strings.Count(text, "We propose"))
}

func TestFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/paper":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, paperHTML)
		case "/blank":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<html><body><p>hi</p></body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	t.Run("ok", func(t *testing.T) {
		text, err := FromURL(srv.URL + "/paper")(context.Background())
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(text, "# Attention Is All You Need\n\n"))
		require.Contains(t, text, "recurrent or convolutional")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := FromURL(srv.URL + "/missing")(context.Background())
		require.Error(t, err)
	})

	t.Run("no content", func(t *testing.T) {
		_, err := FromURL(srv.URL + "/blank")(context.Background())
		require.Error(t, err)
	})

	t.Run("bad scheme", func(t *testing.T) {
		_, err := FromURL("ftp://example.com/paper")(context.Background())
		require.Error(t, err)
	})
}

func TestOpen(t *testing.T) {
	text, err := Open("-", strings.NewReader("from stdin"))(context.Background())
	require.NoError(t, err)
	require.Equal(t, "from stdin", text)

	_, err = Open(filepath.Join(t.TempDir(), "missing.txt"), nil)(context.Background())
	require.Error(t, err)
}

func TestIsURL(t *testing.T) {
	require.True(t, IsURL("https://arxiv.org/abs/1706.03762"))
	require.True(t, IsURL("http://localhost:8080/paper"))
	require.False(t, IsURL("file:///tmp/paper.md"))
	require.False(t, IsURL("paper.txt"))
	require.False(t, IsURL("-"))
}

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <id>http://arxiv.org/api/query</id>
  <title>ArXiv Query</title>
  <entry>
    <id>http://arxiv.org/abs/2510.00001v1</id>
    <published>2025-10-17T12:00:00Z</published>
    <title>Fresh
      Paper</title>
    <summary>A fresh result.</summary>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <author><name>Grace Hopper</name></author>
    <author><name>Edsger Dijkstra</name></author>
    <link href="http://arxiv.org/abs/2510.00001v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2510.00001v1" rel="related" type="application/pdf"/>
    <category term="cs.AI" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00002v2</id>
    <published>2024-01-02T00:00:00Z</published>
    <title>Old Paper</title>
    <summary>An old result.</summary>
  </entry>
</feed>`

func TestArxivRecent(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
		fmt.Fprint(w, arxivFeed)
	}))
	t.Cleanup(srv.Close)

	ax := Arxiv{
		BaseURL: srv.URL + "/api/query",
		Now:     func() time.Time { return time.Date(2025, 10, 18, 9, 0, 0, 0, time.UTC) },
	}
	papers, err := ax.Recent(context.Background(), ArxivQuery{Category: "cs.CL", MaxResults: 5, DaysBack: 3})
	require.NoError(t, err)
	require.Contains(t, query, "search_query=cat%3Acs.CL")
	require.Contains(t, query, "max_results=5")
	require.Contains(t, query, "sortBy=submittedDate")

	require.Len(t, papers, 1)
	p := papers[0]
	require.Equal(t, "2510.00001v1", p.ID)
	require.Equal(t, "Fresh Paper", p.Title)
	require.Equal(t, []string{"Ada Lovelace", "Alan Turing", "Grace Hopper", "Edsger Dijkstra"}, p.Authors)
	require.Equal(t, []string{"cs.AI", "cs.LG"}, p.Categories)
	require.Equal(t, "http://arxiv.org/pdf/2510.00001v1", p.PDFURL)
	require.Equal(t, "https://arxiv.org/html/2510.00001v1", p.HTMLURL())

	out := FormatPapers(papers, 3)
	require.Contains(t, out, "**Fresh Paper**")
	require.Contains(t, out, "et al.")
	require.Contains(t, out, "2025-10-17")
}

func TestArxivError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := Arxiv{BaseURL: srv.URL}.Recent(context.Background(), ArxivQuery{})
	require.Error(t, err)
}

func TestFormatPapersEmpty(t *testing.T) {
	require.Equal(t, "No new papers in the last 7 days.", FormatPapers(nil, 7))
}
