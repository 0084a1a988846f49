package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// BackupClient triggers out-of-band backup pulls on the vendor backup service.
type BackupClient struct {
	endpoint   string
	password   string
	timeout    time.Duration
	httpClient *http.Client
}

func NewBackupClient(endpoint, password string, timeout time.Duration) *BackupClient {
	return &BackupClient{
		endpoint:   endpoint,
		password:   password,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Trigger asks the backup service to pull database. The call is aborted after
// the configured timeout. The response body is returned as-is.
func (c *BackupClient) Trigger(ctx context.Context, database string) (json.RawMessage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u, err := withQuery(c.endpoint, url.Values{
		"password": {c.password},
		"database": {database},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backup request for %s: %w", database, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read backup response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backup request for %s: status %d: %s", database, resp.StatusCode, truncate(body, 512))
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(body) {
		// The payload is opaque; wrap it so the response stays valid JSON.
		raw, err := json.Marshal(map[string]string{"raw": string(body)})
		if err != nil {
			return nil, fmt.Errorf("wrap backup response: %w", err)
		}
		return raw, nil
	}
	return json.RawMessage(body), nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
