package factors

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FactorNameEphemeral is EphemeralFactor's stable registry name.
const FactorNameEphemeral = "Ephemeral"

const ephemeralKeySize = 32

// EphemeralFactor derives its key from 32 random bytes uploaded to a
// temporary paste/file host on Create and re-downloaded from the host's
// returned URL on Derive; the URL itself is the persisted factor-data.
//
// It is single-shot by design (spec.md §5's "unretried network I/O"): a
// failed upload or a 404 on download (link expired or already consumed) is
// returned immediately and is never retried, because retrying against a
// host that has already discarded the link cannot recover the key.
type EphemeralFactor struct {
	Client    *http.Client
	UploadURL string
}

func (e *EphemeralFactor) Name() string { return FactorNameEphemeral }

func (e *EphemeralFactor) client() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// Create uploads 32 fresh random bytes to UploadURL and returns the host's
// response body (trimmed) as factor-data, and the uploaded bytes as the
// factor-key.
func (e *EphemeralFactor) Create(ctx context.Context) (data, key []byte, err error) {
	key = make([]byte, ephemeralKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, nil, fmt.Errorf("generate ephemeral key: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.UploadURL, bytes.NewReader(key))
	if err != nil {
		return nil, nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client().Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("upload ephemeral key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, nil, fmt.Errorf("upload ephemeral key: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read upload response: %w", err)
	}

	return bytes.TrimSpace(body), key, nil
}

// Derive downloads the key from the URL stored in data.
func (e *EphemeralFactor) Derive(ctx context.Context, data []byte) ([]byte, error) {
	downloadURL := string(bytes.TrimSpace(data))
	if downloadURL == "" {
		return nil, fmt.Errorf("ephemeral factor data is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := e.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("download ephemeral key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("ephemeral link expired or already consumed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download ephemeral key: unexpected status %d", resp.StatusCode)
	}

	key, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read download response: %w", err)
	}
	if len(key) != ephemeralKeySize {
		return nil, fmt.Errorf("unexpected ephemeral key length %d, want %d", len(key), ephemeralKeySize)
	}
	return key, nil
}
