package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"calnorm/internal/fileutil"
	appLog "calnorm/internal/log"
)

const (
	cacheBodyFile = "body.ics"
	cacheMetaFile = "meta.json"

	maxFeedSize = 32 << 20
)

// FetchResult is the body of a feed, either fresh or from the disk cache.
type FetchResult struct {
	URL       string
	Body      []byte
	FromCache bool
}

// cacheEntry holds HTTP validators of the last successful fetch.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads calendar feeds with conditional requests and keeps the
// last good body on disk.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher returns a Fetcher caching under cacheDir. A nil client uses a
// client with a 15s timeout.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "ics-cache"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// Fetch downloads feedURL. It sends If-None-Match / If-Modified-Since from
// the previous response and answers 304 from the cache. On network errors
// or non-2xx responses the cached body is used when there is one.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (FetchResult, error) {
	if feedURL == "" {
		return FetchResult{}, errors.New("feed url is empty")
	}
	dir := f.cacheDirFor(feedURL)
	safe := redactURL(feedURL)

	meta, _ := loadCacheMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, cacheBodyFile))
	fallback := func(reason error) (FetchResult, error) {
		if len(cached) == 0 {
			return FetchResult{}, reason
		}
		appLog.Warn("feed fetch failed, using cached body", "url", safe, "err", reason.Error())
		return FetchResult{URL: feedURL, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("build request: %w", err)
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("feed fetch start", "url", safe)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return FetchResult{}, ctx.Err()
		}
		return fallback(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, errors.New("feed answered 304 but nothing is cached")
		}
		appLog.Info("feed not modified", "url", safe)
		return FetchResult{URL: feedURL, Body: cached, FromCache: true}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
		if err != nil {
			return fallback(fmt.Errorf("read body: %w", err))
		}
		entry := cacheEntry{
			URL:          feedURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := saveCache(dir, entry, body); err != nil {
			appLog.Error("feed cache save failed", err, "url", safe)
		}
		appLog.Info("feed fetched", "url", safe, "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{URL: feedURL, Body: body}, nil

	default:
		return fallback(fmt.Errorf("feed returned %s", resp.Status))
	}
}

func (f *Fetcher) cacheDirFor(feedURL string) string {
	sum := sha256.Sum256([]byte(feedURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(dir string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(dir, cacheMetaFile))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

// saveCache writes the body before the validators so meta never points at
// a missing body.
func saveCache(dir string, meta cacheEntry, body []byte) error {
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, cacheBodyFile), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(filepath.Join(dir, cacheMetaFile), data, 0o600)
}

// redactURL keeps scheme and host of a feed URL for logging. Paths and
// query strings of calendar subscriptions usually embed access tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://(redacted)"
	}
	if u.Path == "" && u.RawQuery == "" {
		return u.Scheme + "://" + u.Host
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
