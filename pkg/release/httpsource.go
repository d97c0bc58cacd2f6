package release

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/upkeephq/upkeep/pkg/buildinfo"
)

// DefaultChannel is the release channel used when none is configured.
const DefaultChannel = "stable"

// HTTPSource fetches releases from an HTTP registry. The registry serves
// GET {base}/{package}/{channel}.json with release metadata, and archives
// at the metadata's archiveUrl (absolute, or relative to the package path).
type HTTPSource struct {
	BaseURL string
	// Channel selects the release channel file; empty means DefaultChannel.
	Channel string
	Client  *http.Client
	Creds   CredentialStore

	// MaxRetries bounds how often a transient failure is retried.
	MaxRetries uint64
	// RetryInterval seeds the exponential backoff between attempts.
	RetryInterval time.Duration
}

// NewHTTPSource returns an HTTPSource with production defaults.
func NewHTTPSource(baseURL string, creds CredentialStore) *HTTPSource {
	return &HTTPSource{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		Client:        &http.Client{Timeout: 60 * time.Second},
		Creds:         creds,
		MaxRetries:    3,
		RetryInterval: 500 * time.Millisecond,
	}
}

// Latest implements Source.
func (s *HTTPSource) Latest(ctx context.Context, pkg string) (*Metadata, error) {
	channel := s.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	endpoint := fmt.Sprintf("%s/%s/%s.json", s.BaseURL, url.PathEscape(pkg), url.PathEscape(channel))

	var meta Metadata
	op := func() error {
		req, err := s.newRequest(ctx, endpoint)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.Client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch release metadata: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if err := checkStatus(resp.StatusCode, pkg); err != nil {
			return err
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read release metadata: %w", err)
		}
		if err := json.Unmarshal(body, &meta); err != nil {
			return backoff.Permanent(fmt.Errorf("invalid release metadata: %w", err))
		}
		return nil
	}

	if err := s.retry(ctx, op); err != nil {
		return nil, err
	}
	if meta.Version == "" {
		return nil, fmt.Errorf("release metadata for %s has no version", pkg)
	}
	if meta.PackageName == "" {
		meta.PackageName = pkg
	}
	return &meta, nil
}

// Fetch implements Source. The archive is streamed to destPath and hashed
// on the way down; a checksum mismatch removes the partial download.
func (s *HTTPSource) Fetch(ctx context.Context, meta *Metadata, destPath string) error {
	archiveURL := s.resolveArchiveURL(meta)

	op := func() error {
		req, err := s.newRequest(ctx, archiveURL)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := s.Client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to download archive: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if err := checkStatus(resp.StatusCode, meta.PackageName); err != nil {
			return err
		}

		f, err := os.Create(destPath) // #nosec G304 -- destPath is a workflow-owned temp file
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create archive file: %w", err))
		}

		h := sha256.New()
		_, err = io.Copy(io.MultiWriter(f, h), resp.Body)
		closeErr := f.Close()
		if err != nil {
			_ = os.Remove(destPath)
			return fmt.Errorf("failed to write archive: %w", err)
		}
		if closeErr != nil {
			_ = os.Remove(destPath)
			return fmt.Errorf("failed to write archive: %w", closeErr)
		}

		if meta.SHA256 != "" {
			actual := hex.EncodeToString(h.Sum(nil))
			if !strings.EqualFold(actual, meta.SHA256) {
				_ = os.Remove(destPath)
				return backoff.Permanent(fmt.Errorf("checksum mismatch: expected %s, got %s", meta.SHA256, actual))
			}
		}
		return nil
	}

	return s.retry(ctx, op)
}

func (s *HTTPSource) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "upkeep/"+buildinfo.Version())

	if s.Creds != nil {
		token, err := s.Creds.Token(s.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("credential lookup failed: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (s *HTTPSource) resolveArchiveURL(meta *Metadata) string {
	if strings.Contains(meta.ArchiveURL, "://") {
		return meta.ArchiveURL
	}
	return fmt.Sprintf("%s/%s/%s", s.BaseURL, url.PathEscape(meta.PackageName), meta.ArchiveURL)
}

func (s *HTTPSource) retry(ctx context.Context, op backoff.Operation) error {
	bo := backoff.NewExponentialBackOff()
	if s.RetryInterval > 0 {
		bo.InitialInterval = s.RetryInterval
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, s.MaxRetries), ctx))
}

// checkStatus classifies an HTTP status: rate limiting and upstream
// hiccups are retryable, everything else non-OK is permanent.
func checkStatus(code int, pkg string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case retryableStatus(code):
		return fmt.Errorf("registry returned status %d", code)
	case code == http.StatusNotFound:
		return backoff.Permanent(fmt.Errorf("package %s not found in registry", pkg))
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return backoff.Permanent(fmt.Errorf("registry denied access (status %d); check %s", code, TokenEnvVar))
	default:
		return backoff.Permanent(fmt.Errorf("registry returned status %d", code))
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	// Cloudflare-style upstream errors.
	return code >= 520 && code <= 530
}
