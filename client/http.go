package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/felixgeelhaar/mediate/transport"
)

// HTTPTransport posts requests to a mediate HTTP server.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPTransportOption configures an HTTPTransport.
type HTTPTransportOption func(*HTTPTransport)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.httpClient = c
	}
}

// NewHTTPTransport creates a transport for the server at baseURL.
func NewHTTPTransport(baseURL string, opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send posts the frame payload to /requests/{name}. Frame metadata is sent
// as headers.
func (t *HTTPTransport) Send(ctx context.Context, frame transport.Frame) (json.RawMessage, error) {
	body := frame.Payload
	if len(body) == 0 {
		body = json.RawMessage("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/requests/"+url.PathEscape(frame.Name), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range frame.Metadata {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		e := &Error{Status: resp.StatusCode}
		if err := json.Unmarshal(data, &e.Body); err != nil || e.Body.Code == "" {
			e.Body = transport.ErrorBody{
				Code:  fmt.Sprintf("http_%d", resp.StatusCode),
				Error: strings.TrimSpace(string(data)),
			}
		}
		return nil, e
	}
	return data, nil
}

// Requests lists the requests the server accepts.
func (t *HTTPTransport) Requests(ctx context.Context) ([]transport.RequestDescription, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/requests", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Status: resp.StatusCode, Body: transport.ErrorBody{
			Code:  fmt.Sprintf("http_%d", resp.StatusCode),
			Error: "list requests failed",
		}}
	}

	var list struct {
		Requests []transport.RequestDescription `json:"requests"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode request list: %w", err)
	}
	return list.Requests, nil
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}
