// Package immich wraps the remote media server's HTTP API: connectivity
// ping, bulk existence check and multipart asset upload. All failure
// classification happens here, once, at the client boundary.
package immich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/immichup/internal/asset"
	"github.com/dmitrijs2005/immichup/internal/logging"
)

// Session carries the resolved server coordinates for one run. It is
// read-only; the config layer builds it, the client consumes it.
type Session struct {
	ServerURL string
	APIKey    string
}

const (
	// DefaultMaxAttempts bounds tries per call, first attempt included.
	DefaultMaxAttempts = 3
	// DefaultRetryBase is the initial backoff delay; it doubles per retry.
	DefaultRetryBase = 500 * time.Millisecond

	// defaultTimeout caps a single HTTP exchange. Uploads of large videos
	// need headroom; exceeding it classifies as ErrNetwork and retries.
	defaultTimeout = 5 * time.Minute

	// maxErrBody bounds how much of an error response is read for messages.
	maxErrBody = 64 << 10
)

// UploadStatus is the server's verdict for one uploaded asset.
type UploadStatus string

const (
	StatusCreated   UploadStatus = "created"
	StatusDuplicate UploadStatus = "duplicate"
)

// UploadResult is the decoded outcome of a successful upload exchange.
type UploadResult struct {
	Status  UploadStatus
	AssetID string
}

// Client talks to one Immich server. It is safe for concurrent use; the
// underlying http.Client pools connections across workers.
type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	log      logging.Logger

	// HTTP is the shared transport. Replaceable in tests.
	HTTP *http.Client
	// MaxAttempts bounds tries per call (first attempt included).
	MaxAttempts int
	// RetryBase is the initial delay of the exponential backoff.
	RetryBase time.Duration
}

func NewClient(session Session, log logging.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(session.ServerURL, "/"),
		apiKey:      session.APIKey,
		deviceID:    asset.DeviceID,
		log:         log,
		HTTP:        &http.Client{Timeout: defaultTimeout},
		MaxAttempts: DefaultMaxAttempts,
		RetryBase:   DefaultRetryBase,
	}
}

// Ping verifies the server is reachable and answers like an Immich
// instance. Called once before any upload work starts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/server/ping", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	if err != nil {
		return transportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "pong") {
		return fmt.Errorf("%w: unexpected ping response: %s", ErrRejected, strings.TrimSpace(string(body)))
	}
	return nil
}

type checkRequest struct {
	DeviceAssetIDs []string `json:"deviceAssetIds"`
	DeviceID       string   `json:"deviceId"`
}

type checkResponse struct {
	ExistingIDs []string `json:"existingIds"`
}

// CheckExisting asks the server which of the given device asset ids it
// already holds. The result maps every requested id to its existence.
func (c *Client) CheckExisting(ctx context.Context, ids []string) (map[string]bool, error) {
	payload, err := json.Marshal(checkRequest{DeviceAssetIDs: ids, DeviceID: c.deviceID})
	if err != nil {
		return nil, fmt.Errorf("encode existence check: %w", err)
	}

	var out checkResponse
	err = c.withRetry(ctx, "existence check", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/assets/exist", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build existence check request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return transportError(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		if err != nil {
			return transportError(err)
		}
		if resp.StatusCode != http.StatusOK {
			return c.statusError(resp.StatusCode, body)
		}
		out = checkResponse{}
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("decode existence check response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(ids))
	for _, id := range ids {
		result[id] = false
	}
	for _, id := range out.ExistingIDs {
		result[id] = true
	}
	return result, nil
}

type assetResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Upload transfers one file as a multipart request. The server reports
// whether the asset was created or already known; both are success here.
// Transient failures are retried with backoff, bounded by MaxAttempts.
func (c *Client) Upload(ctx context.Context, cand asset.Candidate, deviceAssetID string) (UploadResult, error) {
	var result UploadResult
	err := c.withRetry(ctx, "upload "+cand.Filename(), func(ctx context.Context) error {
		res, err := c.doUpload(ctx, cand, deviceAssetID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	return result, err
}

func (c *Client) doUpload(ctx context.Context, cand asset.Candidate, deviceAssetID string) (UploadResult, error) {
	f, err := os.Open(cand.AbsPath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open %s: %w", cand.AbsPath, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, f, cand, deviceAssetID, c.deviceID))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/assets", pr)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return UploadResult{}, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	if err != nil {
		return UploadResult{}, transportError(err)
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		// Some server versions answer 409 for a known deviceAssetId.
		var ar assetResponse
		_ = json.Unmarshal(body, &ar)
		return UploadResult{Status: StatusDuplicate, AssetID: ar.ID}, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var ar assetResponse
		if err := json.Unmarshal(body, &ar); err != nil {
			return UploadResult{}, fmt.Errorf("decode upload response: %w", err)
		}
		status := StatusCreated
		if ar.Status == string(StatusDuplicate) {
			status = StatusDuplicate
		}
		return UploadResult{Status: status, AssetID: ar.ID}, nil
	default:
		return UploadResult{}, c.statusError(resp.StatusCode, body)
	}
}

// writeUploadForm streams the metadata fields followed by the file bytes.
// Fields come first so the server can reject a request before reading the
// whole body.
func writeUploadForm(mw *multipart.Writer, f *os.File, cand asset.Candidate, deviceAssetID, deviceID string) error {
	fields := map[string]string{
		"deviceAssetId":  deviceAssetID,
		"deviceId":       deviceID,
		"fileCreatedAt":  cand.ModTime.UTC().Format(time.RFC3339),
		"fileModifiedAt": cand.ModTime.UTC().Format(time.RFC3339),
		"filename":       cand.Filename(),
		"isFavorite":     "false",
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("assetData", cand.Filename())
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	return mw.Close()
}

// withRetry runs fn up to MaxAttempts times with exponential backoff,
// retrying only transient failures. Context cancellation wins immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(c.RetryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if Retryable(err) && ctx.Err() == nil {
			c.log.Warn(ctx, "transient failure, will retry", "op", op, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) statusError(code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuth, msg)
	case code >= 500:
		return fmt.Errorf("%w: http %d: %s", ErrServer, code, msg)
	default:
		return fmt.Errorf("%w: http %d: %s", ErrRejected, code, msg)
	}
}

// transportError classifies connection and timeout failures. Cancellation
// is passed through untouched so it is never retried or counted as a
// network problem.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
