package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// DefaultFetchTimeout bounds a single URL fetch.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxDocumentBytes caps a fetched body.
	DefaultMaxDocumentBytes = 16 << 20
)

// Fetcher turns file paths and URLs into plain text.
// HTML is reduced to its visible text; other formats must be text/*.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the HTTP client used for URLs.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithMaxDocumentBytes caps the size of a fetched body.
// Default is DefaultMaxDocumentBytes.
func WithMaxDocumentBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithFetchLogger sets a custom logger.
// Default is slog.Default().
func WithFetchLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger.With("component", "fetcher")
	}
}

// NewFetcher creates a fetcher whose URL requests time out after
// DefaultFetchTimeout.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: DefaultFetchTimeout},
		maxBytes: DefaultMaxDocumentBytes,
		logger:   slog.Default().With("component", "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsURL reports whether target names an http(s) resource.
func IsURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

// Expand resolves targets into a list of sources. URLs pass through;
// file patterns are expanded with doublestar globbing. A pattern that
// matches nothing is an error.
func Expand(targets ...string) ([]string, error) {
	var out []string
	for _, target := range targets {
		if IsURL(target) {
			out = append(out, target)
			continue
		}
		matches, err := doublestar.FilepathGlob(target)
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", target, err)
		}
		matches = slices.DeleteFunc(matches, func(path string) bool {
			info, err := os.Stat(path)
			return err != nil || info.IsDir()
		})
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoMatches, target)
		}
		slices.Sort(matches)
		out = append(out, matches...)
	}
	return out, nil
}

// Load returns the text behind a file path or URL.
func (f *Fetcher) Load(ctx context.Context, target string) (string, error) {
	if IsURL(target) {
		return f.FetchURL(ctx, target)
	}
	return ReadFile(target)
}

// ReadFile reads a UTF-8 text file. Files ending in .html or .htm are
// reduced to their visible text.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not UTF-8 text", ErrUnsupportedContent, path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return HTMLText(bytes.NewReader(data))
	}
	return string(data), nil
}

// FetchURL downloads a text/* or XHTML resource. Bodies over the size cap
// fail with ErrDocumentTooLarge rather than being cut short.
func (f *Fetcher) FetchURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain, text/html;q=0.9, text/*;q=0.8")

	f.logger.Debug("fetching url", "url", url)
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !(strings.HasPrefix(mediaType, "text/") || isHTML(mediaType)) {
		return "", fmt.Errorf("%w: %s returned %q", ErrUnsupportedContent, url, resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(data)) > f.maxBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrDocumentTooLarge, url, f.maxBytes)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not UTF-8 text", ErrUnsupportedContent, url)
	}
	if isHTML(mediaType) {
		text, err := HTMLText(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", url, err)
		}
		return text, nil
	}
	return string(data), nil
}
