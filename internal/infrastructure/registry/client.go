package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"subsidyscan/internal/domain"
	"subsidyscan/internal/ports"
)

// StatusError reports a non-2xx upstream response. The adapter never retries;
// retry policy lives with the next scheduled run.
type StatusError struct {
	StatusCode int
	Status     string
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry %s: unexpected status %s", e.Endpoint, e.Status)
}

// Client is the typed adapter for the upstream registry's list and detail
// endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ ports.RegistrySource = (*Client)(nil)

// NewClient builds a reusable registry client. A nil httpClient gets a
// default with a timeout well under the invocation budget.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type listResponse struct {
	Metadata struct {
		Resultset struct {
			Count int `json:"count"`
		} `json:"resultset"`
	} `json:"metadata"`
	Result []domain.ProgramSummary `json:"result"`
}

type detailResponse struct {
	Result []domain.ProgramDetail `json:"result"`
}

// ListPrograms fetches the full upstream result set for the filter. The
// upstream API has no pagination token; slicing is the caller's concern.
func (c *Client) ListPrograms(ctx context.Context, filter ports.ListFilter) (ports.ListResult, error) {
	query := url.Values{}
	if filter.Keyword != "" {
		query.Set("keyword", filter.Keyword)
	}
	if filter.Sort != "" {
		query.Set("sort", filter.Sort)
	}
	if filter.AcceptanceOnly {
		query.Set("acceptance", "1")
	}

	endpoint := c.baseURL + "/subsidies"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var decoded listResponse
	if err := c.get(ctx, endpoint, &decoded); err != nil {
		return ports.ListResult{}, err
	}

	total := decoded.Metadata.Resultset.Count
	if total == 0 {
		total = len(decoded.Result)
	}

	return ports.ListResult{Programs: decoded.Result, TotalCount: total}, nil
}

// GetProgramDetail fetches the raw detail payload for one program.
func (c *Client) GetProgramDetail(ctx context.Context, externalID string) (*domain.ProgramDetail, error) {
	endpoint := c.baseURL + "/subsidies/id/" + url.PathEscape(externalID)

	var decoded detailResponse
	if err := c.get(ctx, endpoint, &decoded); err != nil {
		return nil, err
	}

	if len(decoded.Result) == 0 {
		return nil, fmt.Errorf("registry detail %s: empty result", externalID)
	}

	detail := decoded.Result[0]
	if detail.ExternalID == "" {
		detail.ExternalID = externalID
	}
	return &detail, nil
}

func (c *Client) get(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Endpoint: endpoint}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
