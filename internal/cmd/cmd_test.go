package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/papermate/internal/config"
	"github.com/dotcommander/papermate/internal/errs"
	"github.com/dotcommander/papermate/internal/proto"
	"github.com/dotcommander/papermate/internal/storage"
)

type chatRequest struct {
	Model     string          `json:"model"`
	Messages  []proto.Message `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type fakeProvider struct {
	*httptest.Server
	mu       sync.Mutex
	requests []chatRequest
	status   int
}

func newFakeProvider(t *testing.T, answer string) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{status: http.StatusOK}
	fp.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		fp.mu.Lock()
		fp.requests = append(fp.requests, req)
		status := fp.status
		fp.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": answer}},
			},
		})
	}))
	t.Cleanup(fp.Close)
	return fp
}

func (fp *fakeProvider) fail(status int) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.status = status
}

func (fp *fakeProvider) all() []chatRequest {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]chatRequest(nil), fp.requests...)
}

// setup writes a configuration with a deepseek section pointing at url and
// returns the working directory.
func setup(t *testing.T, url, apiKey string) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`providers:
  deepseek:
    api_key: %q
    base_url: %q
    default_model: deepseek-chat
  openai:
    api_key: ""
    base_url: ""
    default_model: ""
settings:
  timeout: 5
  max_history_length: 20
  log_level: error
  cache_path: %q
`, apiKey, url, filepath.Join(dir, "cache"))
	path := filepath.Join(dir, "config", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return dir
}

type result struct {
	out string
	err string
}

func run(t *testing.T, dir, stdin string, args ...string) (result, error) {
	t.Helper()
	root := newRootCmd(BuildInfo{Version: "test"}, &config.Context{Dir: dir}, func(rt *runtime) {
		rt.isInputTTY = func() bool { return false }
		rt.isOutputTTY = func() bool { return false }
	})
	var stdout, stderr bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return result{out: stdout.String(), err: stderr.String()}, err
}

func TestAsk(t *testing.T) {
	t.Run("answers from arguments", func(t *testing.T) {
		fp := newFakeProvider(t, "Attention weighs tokens.")
		dir := setup(t, fp.URL, "sk-test")

		res, err := run(t, dir, "", "what", "is", "attention?")
		require.NoError(t, err)
		require.Equal(t, "Attention weighs tokens.\n", res.out)

		reqs := fp.all()
		require.Len(t, reqs, 1)
		require.Equal(t, "deepseek-chat", reqs[0].Model)
		last := reqs[0].Messages[len(reqs[0].Messages)-1]
		require.Equal(t, proto.RoleUser, last.Role)
		require.Contains(t, last.Content, "what is attention?")
	})

	t.Run("ask subcommand joins piped input", func(t *testing.T) {
		fp := newFakeProvider(t, "ok")
		dir := setup(t, fp.URL, "sk-test")

		_, err := run(t, dir, "the transformer paper\n", "ask", "summarize", "-m", "deepseek-reasoner")
		require.NoError(t, err)

		reqs := fp.all()
		require.Len(t, reqs, 1)
		require.Equal(t, "deepseek-reasoner", reqs[0].Model)
		last := reqs[0].Messages[len(reqs[0].Messages)-1]
		require.Contains(t, last.Content, "summarize")
		require.Contains(t, last.Content, "the transformer paper")
	})

	t.Run("source becomes the system prompt", func(t *testing.T) {
		fp := newFakeProvider(t, "ok")
		dir := setup(t, fp.URL, "sk-test")
		paper := filepath.Join(dir, "paper.txt")
		require.NoError(t, os.WriteFile(paper, []byte("We propose the Transformer."), 0o600))

		_, err := run(t, dir, "", "--source", paper, "what is proposed?")
		require.NoError(t, err)

		msgs := fp.all()[0].Messages
		require.Equal(t, proto.RoleSystem, msgs[0].Role)
		require.Contains(t, msgs[0].Content, "We propose the Transformer.")
	})

	t.Run("system prompt from a web page", func(t *testing.T) {
		fp := newFakeProvider(t, "ok")
		dir := setup(t, fp.URL, "sk-test")
		page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><script>track()</script></head><body><article>
<h1>Reviewer guide</h1>
<p>Judge novelty first, then check that every claim in the abstract is backed by an experiment or a proof.</p>
<p>Point out missing baselines and unclear notation before discussing presentation.</p>
</article></body></html>`)
		}))
		t.Cleanup(page.Close)

		_, err := run(t, dir, "", "-s", page.URL+"/guide", "review this")
		require.NoError(t, err)

		msgs := fp.all()[0].Messages
		require.Equal(t, proto.RoleSystem, msgs[0].Role)
		require.Contains(t, msgs[0].Content, "Judge novelty first")
		require.NotContains(t, msgs[0].Content, "track()")
		require.NotContains(t, msgs[0].Content, "<p>")
	})

	t.Run("system prompt from a markdown file", func(t *testing.T) {
		fp := newFakeProvider(t, "ok")
		dir := setup(t, fp.URL, "sk-test")
		prompt := filepath.Join(dir, "referee.md")
		require.NoError(t, os.WriteFile(prompt, []byte("---\npersona: referee\n---\nBe a strict referee.\n"), 0o600))

		_, err := run(t, dir, "", "-s", "file://"+prompt, "review this")
		require.NoError(t, err)

		msgs := fp.all()[0].Messages
		require.Equal(t, proto.System("Be a strict referee."), msgs[0])
	})

	t.Run("no question", func(t *testing.T) {
		fp := newFakeProvider(t, "ok")
		dir := setup(t, fp.URL, "sk-test")

		_, err := run(t, dir, "")
		var uerr errs.Error
		require.ErrorAs(t, err, &uerr)
		require.Equal(t, "You haven't provided any question.", uerr.Reason)
		require.Empty(t, fp.all())
	})

	t.Run("provider failure is an error", func(t *testing.T) {
		fp := newFakeProvider(t, "ok")
		fp.fail(http.StatusInternalServerError)
		dir := setup(t, fp.URL, "sk-test")

		res, err := run(t, dir, "", "hello")
		var uerr errs.Error
		require.ErrorAs(t, err, &uerr)
		require.NotEmpty(t, uerr.Reason)
		require.NotContains(t, uerr.Reason, "Error: ")
		require.Empty(t, res.out)
	})

	t.Run("missing credential fails before any request", func(t *testing.T) {
		fp := newFakeProvider(t, "ok")
		dir := setup(t, fp.URL, "")

		_, err := run(t, dir, "", "hello")
		require.ErrorIs(t, err, errs.ErrMissingCredential)
		require.Empty(t, fp.all())
	})

	t.Run("api key flag overrides the file", func(t *testing.T) {
		fp := newFakeProvider(t, "ok")
		dir := setup(t, fp.URL, "")

		_, err := run(t, dir, "", "--api-key", "sk-flag", "hello")
		require.NoError(t, err)
		require.Len(t, fp.all(), 1)
	})

	t.Run("unsupported provider", func(t *testing.T) {
		dir := setup(t, "http://127.0.0.1:1", "sk-test")

		_, err := run(t, dir, "", "-p", "nope", "hello")
		require.ErrorIs(t, err, errs.ErrUnsupportedProvider)
	})
}

func TestAskSaveAndHistory(t *testing.T) {
	fp := newFakeProvider(t, "Self-attention.")
	dir := setup(t, fp.URL, "sk-test")

	res, err := run(t, dir, "", "--save", "what", "does", "the", "encoder", "use?")
	require.NoError(t, err)
	require.Contains(t, res.err, "SAVED")

	res, err = run(t, dir, "", "history", "list")
	require.NoError(t, err)
	require.Contains(t, res.out, "what does the encoder use?")
	require.Contains(t, res.out, "deepseek")

	res, err = run(t, dir, "", "--raw", "history", "show", "--last")
	require.NoError(t, err)
	require.Contains(t, res.out, "what does the encoder use?")
	require.Contains(t, res.out, "Self-attention.")

	res, err = run(t, dir, "", "history", "delete", "what does the encoder use?")
	require.NoError(t, err)
	require.Contains(t, res.err, "DELETED")

	res, err = run(t, dir, "", "history", "list")
	require.NoError(t, err)
	require.Empty(t, res.out)
	require.Contains(t, res.err, "No conversations found.")
}

func TestHistoryErrors(t *testing.T) {
	dir := setup(t, "http://127.0.0.1:1", "sk-test")

	_, err := run(t, dir, "", "history", "show", "deadbeef")
	require.ErrorIs(t, err, storage.ErrNoMatches)

	_, err = run(t, dir, "", "history", "show")
	require.Error(t, err)

	_, err = run(t, dir, "", "history", "prune")
	var uerr errs.Error
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, "Could not delete old conversations.", uerr.Reason)

	res, err := run(t, dir, "", "history", "prune", "--older-than", "7d")
	require.NoError(t, err)
	require.Contains(t, res.err, "No conversations found.")
}

func TestChatLines(t *testing.T) {
	fp := newFakeProvider(t, "noted")
	dir := setup(t, fp.URL, "sk-test")

	res, err := run(t, dir, "first question\n\n/clear\nsecond question\n/exit\nnever sent\n", "chat")
	require.NoError(t, err)
	require.Equal(t, "noted\nnoted\n", res.out)

	reqs := fp.all()
	require.Len(t, reqs, 2)
	// /clear dropped the first exchange.
	require.Len(t, reqs[1].Messages, 1)
	require.Contains(t, reqs[1].Messages[0].Content, "second question")

	// The transcript keeps the title of its first question.
	res, err = run(t, dir, "", "history", "list")
	require.NoError(t, err)
	require.Contains(t, res.out, "first question")
}

func TestChatContinue(t *testing.T) {
	fp := newFakeProvider(t, "noted")
	dir := setup(t, fp.URL, "sk-test")

	_, err := run(t, dir, "", "chat", "what is BERT?")
	require.NoError(t, err)

	_, err = run(t, dir, "and GPT?\n", "chat", "--continue-last")
	require.NoError(t, err)

	reqs := fp.all()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[1].Messages, 3)
	require.Equal(t, "what is BERT?", reqs[1].Messages[0].Content)

	res, err := run(t, dir, "", "history", "list")
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(res.out, "\n"))
}

func TestModels(t *testing.T) {
	dir := t.TempDir()

	res, err := run(t, dir, "", "models", "deepseek")
	require.NoError(t, err)
	require.Contains(t, res.out, "deepseek-chat")
	require.Contains(t, res.out, "(default)")

	res, err = run(t, dir, "", "models")
	require.NoError(t, err)
	for _, name := range []string{"alibaba", "claude", "deepseek", "openai"} {
		require.Contains(t, res.out, name)
	}

	_, err = run(t, dir, "", "models", "nope")
	require.ErrorIs(t, err, errs.ErrUnsupportedProvider)
}

func TestPing(t *testing.T) {
	fp := newFakeProvider(t, "pong")
	dir := setup(t, fp.URL, "sk-test")

	res, err := run(t, dir, "", "ping", "deepseek")
	require.NoError(t, err)
	require.Contains(t, res.out, "deepseek")
	require.Equal(t, 16, fp.all()[0].MaxTokens)

	res, err = run(t, dir, "", "ping", "deepseek", "openai")
	var uerr errs.Error
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, "1 of 2 providers failed.", uerr.Reason)
	lines := strings.Split(strings.TrimSpace(res.out), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "deepseek"))
	require.Contains(t, lines[1], "Error: ")
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "config", "config.yaml")

	res, err := run(t, dir, "", "config", "path")
	require.NoError(t, err)
	require.Equal(t, want+"\n", res.out)

	_, err = run(t, dir, "", "config", "init")
	require.NoError(t, err)
	require.FileExists(t, want)

	_, err = run(t, dir, "", "config", "init")
	require.ErrorIs(t, err, config.ErrExists)

	res, err = run(t, dir, "", "config", "dirs", "config")
	require.NoError(t, err)
	require.Equal(t, filepath.Dir(want)+"\n", res.out)

	_, err = run(t, dir, "sk-new\n", "config", "set-key", "openai")
	require.NoError(t, err)
	f, err := config.Load(want)
	require.NoError(t, err)
	ps, ok := f.Provider("openai")
	require.True(t, ok)
	require.Equal(t, "sk-new", ps.APIKey)
	require.NotEmpty(t, ps.BaseURL)

	_, err = run(t, dir, "", "config", "reset")
	require.NoError(t, err)
	require.FileExists(t, want+".bak")
	f, err = config.Load(want)
	require.NoError(t, err)
	ps, _ = f.Provider("openai")
	require.Empty(t, ps.APIKey)

	_, err = run(t, dir, "", "config", "set-key", "nope")
	require.ErrorIs(t, err, errs.ErrUnsupportedProvider)
}

func TestPapers(t *testing.T) {
	published := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	feed := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2510.00001v1</id>
    <published>%s</published>
    <title>Sparse Attention at Scale</title>
    <summary>We study sparse attention.</summary>
    <author><name>Ada Lovelace</name></author>
    <category term="cs.CL"/>
    <link title="pdf" href="http://arxiv.org/pdf/2510.00001v1"/>
  </entry>
</feed>`, published)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cat:cs.CL", r.URL.Query().Get("search_query"))
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(feed))
	}))
	t.Cleanup(srv.Close)

	res, err := run(t, t.TempDir(), "", "papers", "--category", "cs.CL", "--arxiv-api", srv.URL)
	require.NoError(t, err)
	require.Contains(t, res.out, "Sparse Attention at Scale")
	require.Contains(t, res.out, "Ada Lovelace")
}

func TestMan(t *testing.T) {
	dir := t.TempDir()
	res, err := run(t, dir, "", "man")
	require.NoError(t, err)
	require.Contains(t, res.out, ".TH")
	require.Contains(t, res.out, "papermate")
	require.Contains(t, res.out, "PAPERMATE_ environment variables")
}

func TestWriteError(t *testing.T) {
	t.Run("flag error", func(t *testing.T) {
		var buf bytes.Buffer
		writeError(&buf, newFlagParseError(errors.New("unknown flag: --nope")))
		require.Contains(t, buf.String(), "--nope")
		require.Contains(t, buf.String(), "for help.")
	})

	t.Run("user error", func(t *testing.T) {
		var buf bytes.Buffer
		writeError(&buf, errs.Wrap(errors.New("disk full"), "Could not save the transcript."))
		require.Contains(t, buf.String(), "Could not save the transcript.")
		require.Contains(t, buf.String(), "disk full")
	})

	t.Run("reason only", func(t *testing.T) {
		var buf bytes.Buffer
		writeError(&buf, errs.Error{Reason: "1 of 2 providers failed."})
		require.Equal(t, 1, strings.Count(buf.String(), "1 of 2 providers failed."))
	})
}
