package gitlab

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout = 10 * time.Second
	// MaxPageSize is the largest per_page value the GitLab REST API honours.
	MaxPageSize = 100

	apiPrefix          = "/api/v4"
	privateTokenHeader = "PRIVATE-TOKEN"
	sudoHeader         = "Sudo"
	nextPageHeader     = "X-Next-Page"

	maxErrorBody = 4096
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// StatusError is returned for any other non-200 answer.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	apiUrl   string
	apiKey   string
	client   *http.Client
	pageSize int
}

type ClientOptions struct {
	ApiUrl string
	// ApiKey authenticates sudo calls. It must belong to an administrator.
	ApiKey             string
	InsecureSkipVerify bool
	Timeout            time.Duration
	PageSize           int
	// Transport overrides the default instrumented transport.
	Transport http.RoundTripper
}

func NewClient(options ClientOptions) (*Client, error) {
	if options.ApiUrl == "" {
		return nil, errors.New("gitlab_client: ApiUrl is required")
	}
	u, err := url.Parse(options.ApiUrl)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gitlab_client: invalid ApiUrl %q", options.ApiUrl)
	}

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pageSize := options.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	transport := options.Transport
	if transport == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.TLSClientConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: options.InsecureSkipVerify, //nolint:gosec
		}
		transport = otelhttp.NewTransport(base)
	}

	return &Client{
		apiUrl:   strings.TrimRight(options.ApiUrl, "/"),
		apiKey:   options.ApiKey,
		pageSize: pageSize,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}, nil
}

func (c *Client) buildEndpoint(path string, query url.Values) string {
	endpoint := c.apiUrl + apiPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

func (c *Client) do(ctx context.Context, endpoint string, header http.Header, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusForbidden:
		return nil, ErrForbidden
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return resp.Header, nil
}

// errorMessage extracts GitLab's {"message": ...} or {"error": ...} body.
func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) != nil {
		return ""
	}
	if payload.Message != nil {
		return fmt.Sprint(payload.Message)
	}
	return payload.Error
}

func get[T any](ctx context.Context, c *Client, endpoint string, header http.Header) (*T, error) {
	var result T
	if _, err := c.do(ctx, endpoint, header, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// getWithPagination follows X-Next-Page until GitLab reports no further page.
func getWithPagination[T any](ctx context.Context, c *Client, path string, query url.Values, header http.Header) ([]*T, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("per_page", strconv.Itoa(c.pageSize))

	var items []*T
	page := 1
	for {
		q.Set("page", strconv.Itoa(page))

		var batch []*T
		respHeader, err := c.do(ctx, c.buildEndpoint(path, q), header, &batch)
		if err != nil {
			return nil, fmt.Errorf("failed to get page %d: %w", page, err)
		}
		items = append(items, batch...)

		next := strings.TrimSpace(respHeader.Get(nextPageHeader))
		if next == "" {
			return items, nil
		}
		nextPage, err := strconv.Atoi(next)
		if err != nil || nextPage <= page {
			return nil, fmt.Errorf("invalid %s header %q after page %d", nextPageHeader, next, page)
		}
		page = nextPage
	}
}
