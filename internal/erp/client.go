// Package erp talks to the ERP vendor: the customer list API and the backup
// trigger service.
package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/edvin/envdash/internal/model"
)

// CustomerClient reads the vendor customer list.
type CustomerClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewCustomerClient(endpoint, token string, timeout time.Duration) *CustomerClient {
	return &CustomerClient{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListCustomers returns the raw vendor customer list, in vendor order.
func (c *CustomerClient) ListCustomers(ctx context.Context) ([]model.RawCustomer, error) {
	u, err := withQuery(c.endpoint, url.Values{"token": {c.token}})
	if err != nil {
		return nil, err
	}

	var customers []model.RawCustomer
	if err := c.get(ctx, u, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

func (c *CustomerClient) get(ctx context.Context, u string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vendor API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("vendor API: status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func withQuery(endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
