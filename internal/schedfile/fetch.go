package schedfile

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "fechas/internal/log"
)

// cacheEntry holds HTTP cache metadata for a single schedule URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FetchResult is the outcome of fetching a remote schedule.
type FetchResult struct {
	Text      string
	FromCache bool // true if the cached body was reused
}

// Fetcher downloads schedules published over HTTP, honoring ETag and
// Last-Modified and keeping the last body on disk so an unreachable server
// still yields the previous schedule.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./cache/schedules"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

// IsRemote reports whether source names an http(s) URL rather than a path.
func IsRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Open loads source, fetching it with f when it is a URL and reading it from
// disk otherwise.
func Open(ctx context.Context, f *Fetcher, source string) (string, error) {
	if !IsRemote(source) {
		return Load(source)
	}
	if f == nil {
		f = NewFetcher("")
	}
	res, err := f.Fetch(ctx, source)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Fetch downloads url, falling back to the cached body on network errors,
// 304 Not Modified and non-OK statuses.
func (f *Fetcher) Fetch(ctx context.Context, url string) (FetchResult, error) {
	if url == "" {
		return FetchResult{}, ErrEmptyPath
	}

	cachePath := f.cachePathForURL(url)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, fmt.Errorf("schedfile: cache dir: %w", err)
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body.txt"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("schedfile: request: %w", err)
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Info("schedule fetch start", "url", redactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("schedule fetch network error, using cached body", err, "url", redactURL(url))
			return cached(cachedBody), nil
		}
		return FetchResult{}, fmt.Errorf("schedfile: fetch: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return FetchResult{}, fmt.Errorf("schedfile: read body: %w", err)
		}
		newMeta := cacheEntry{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("schedule cache save failed", err, "url", redactURL(url))
		}
		appLog.Info("schedule fetch success", "url", redactURL(url), "bytes", len(body))
		return FetchResult{Text: string(bytes.TrimPrefix(body, utf8BOM))}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("schedfile: 304 Not Modified but no cached body available")
		}
		appLog.Info("schedule not modified; using cache", "url", redactURL(url))
		return cached(cachedBody), nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("schedule fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(url), "status", resp.StatusCode)
			return cached(cachedBody), nil
		}
		return FetchResult{}, fmt.Errorf("schedfile: fetch: %s", resp.Status)
	}
}

func cached(body []byte) FetchResult {
	return FetchResult{Text: string(bytes.TrimPrefix(body, utf8BOM)), FromCache: true}
}

func (f *Fetcher) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.txt"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host so tokens in shared links stay out of
// the logs.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
