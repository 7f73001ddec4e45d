package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.com/a.txt"))
	assert.True(t, IsURL("http://localhost:8080"))
	assert.False(t, IsURL("notes/today.md"))
	assert.False(t, IsURL("ftp://example.com/file"))
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
	for _, name := range []string{"one.md", "a/two.md", "a/b/three.md", "a/skip.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("text"), 0o644))
	}

	got, err := Expand(filepath.Join(dir, "**", "*.md"), "https://example.com/page")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a", "b", "three.md"),
		filepath.Join(dir, "a", "two.md"),
		filepath.Join(dir, "one.md"),
		"https://example.com/page",
	}, got)

	_, err = Expand(filepath.Join(dir, "*.pdf"))
	assert.ErrorIs(t, err, ErrNoMatches)

	_, err = Expand(filepath.Join(dir, "a"))
	assert.ErrorIs(t, err, ErrNoMatches, "directories are not documents")
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	bad := filepath.Join(dir, "bad.bin")
	require.NoError(t, os.WriteFile(good, []byte("héllo world"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xfe, 0x00}, 0o644))

	text, err := ReadFile(good)
	require.NoError(t, err)
	assert.Equal(t, "héllo world", text)

	_, err = ReadFile(bad)
	assert.ErrorIs(t, err, ErrUnsupportedContent)

	_, err = ReadFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestFetchURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plain":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte("plain body"))
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(`<html><head><title>Tomatoes</title><script>var x=1;</script>` +
				`<style>p{color:red}</style></head><body><nav>Home | About</nav>` +
				`<p>Hello world</p><aside>ad</aside><footer>(c) 2025</footer></body></html>`))
		case "/big":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(strings.Repeat("word ", 40)))
		case "/latin1":
			w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
			w.Write([]byte{'c', 'a', 'f', 0xe9})
		case "/pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := NewFetcher(WithHTTPClient(server.Client()), WithFetchLogger(nil))
	ctx := context.Background()

	text, err := f.Load(ctx, server.URL+"/plain")
	require.NoError(t, err)
	assert.Equal(t, "plain body", text)

	text, err = f.FetchURL(ctx, server.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "Tomatoes Hello world", text)

	_, err = f.FetchURL(ctx, server.URL+"/latin1")
	assert.ErrorIs(t, err, ErrUnsupportedContent)

	text, err = f.FetchURL(ctx, server.URL+"/big")
	require.NoError(t, err)
	assert.Len(t, text, 200)

	small := NewFetcher(WithHTTPClient(server.Client()), WithMaxDocumentBytes(199))
	_, err = small.FetchURL(ctx, server.URL+"/big")
	assert.ErrorIs(t, err, ErrDocumentTooLarge)

	exact := NewFetcher(WithHTTPClient(server.Client()), WithMaxDocumentBytes(200))
	text, err = exact.FetchURL(ctx, server.URL+"/big")
	require.NoError(t, err)
	assert.Len(t, text, 200)

	_, err = f.FetchURL(ctx, server.URL+"/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedContent)

	_, err = f.FetchURL(ctx, server.URL+"/missing")
	assert.ErrorContains(t, err, "404")
}

func TestNewFetcher_Defaults(t *testing.T) {
	f := NewFetcher(WithMaxDocumentBytes(0))
	assert.Equal(t, DefaultFetchTimeout, f.client.Timeout)
	assert.Equal(t, int64(DefaultMaxDocumentBytes), f.maxBytes)
}

func TestHTMLText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain paragraph", "<p>Hello   world</p>", "Hello world"},
		{"scripts and styles dropped", "<script>alert(1)</script><style>b{}</style><p>kept</p>", "kept"},
		{"page chrome dropped", "<header>Site</header><main><h1>Title</h1><p>Body</p></main><footer>f</footer>", "Title Body"},
		{"comments dropped", "<p>a<!-- hidden -->b</p>", "a b"},
		{"entities decoded", "<p>caf&eacute; &amp; tea</p>", "café & tea"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HTMLText(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFile_HTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<body><nav>menu</nav><p>garden notes</p></body>"), 0o644))

	text, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "garden notes", text)
}
