package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
)

// HTTPPlatform talks to the push platform's REST gateway. All request
// deadlines come from the caller's context; status codes are mapped to the
// transient/permanent error taxonomy so the retry executor can classify
// them.
type HTTPPlatform struct {
	baseURL string
	appID   string
	apiKey  string
	client  *http.Client
}

// NewHTTPPlatform creates a platform client for the given application.
func NewHTTPPlatform(baseURL, appID, apiKey string) *HTTPPlatform {
	return &HTTPPlatform{
		baseURL: baseURL,
		appID:   appID,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createEndpointRequest struct {
	Token    string `json:"token"`
	UserData string `json:"user_data,omitempty"`
}

type createEndpointResponse struct {
	EndpointID string `json:"endpoint_id"`
}

func (p *HTTPPlatform) CreateEndpoint(ctx context.Context, token, userData string) (string, error) {
	var resp createEndpointResponse
	err := p.do(ctx, http.MethodPost,
		fmt.Sprintf("/v1/apps/%s/endpoints", url.PathEscape(p.appID)),
		createEndpointRequest{Token: token, UserData: userData}, &resp)
	if err != nil {
		return "", err
	}
	if resp.EndpointID == "" {
		return "", &retry.PermanentError{Op: "create endpoint", Err: errors.New("platform returned empty endpoint id")}
	}
	return resp.EndpointID, nil
}

func (p *HTTPPlatform) UpdateEndpointToken(ctx context.Context, endpointID, token string) error {
	return p.do(ctx, http.MethodPut,
		fmt.Sprintf("/v1/endpoints/%s/token", url.PathEscape(endpointID)),
		map[string]string{"token": token}, nil)
}

func (p *HTTPPlatform) DeleteEndpoint(ctx context.Context, endpointID string) error {
	return p.do(ctx, http.MethodDelete,
		fmt.Sprintf("/v1/endpoints/%s", url.PathEscape(endpointID)), nil, nil)
}

type endpointAttributesResponse struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
}

func (p *HTTPPlatform) EndpointAttributes(ctx context.Context, endpointID string) (*EndpointAttributes, error) {
	var resp endpointAttributesResponse
	err := p.do(ctx, http.MethodGet,
		fmt.Sprintf("/v1/endpoints/%s", url.PathEscape(endpointID)), nil, &resp)
	if err != nil {
		return nil, err
	}
	return &EndpointAttributes{Enabled: resp.Enabled, Token: resp.Token}, nil
}

type platformAttributesResponse struct {
	Enabled      bool      `json:"enabled"`
	CreationTime time.Time `json:"creation_time"`
	PlatformType string    `json:"platform_type"`
}

func (p *HTTPPlatform) PlatformAttributes(ctx context.Context) (*PlatformAttributes, error) {
	var resp platformAttributesResponse
	err := p.do(ctx, http.MethodGet,
		fmt.Sprintf("/v1/apps/%s", url.PathEscape(p.appID)), nil, &resp)
	if err != nil {
		return nil, err
	}
	return &PlatformAttributes{
		Enabled:      resp.Enabled,
		CreationTime: resp.CreationTime,
		PlatformType: resp.PlatformType,
	}, nil
}

type listEndpointsResponse struct {
	Endpoints []struct {
		EndpointID string `json:"endpoint_id"`
		Enabled    bool   `json:"enabled"`
		Token      string `json:"token"`
	} `json:"endpoints"`
	NextPageToken string `json:"next_page_token"`
}

func (p *HTTPPlatform) ListEndpoints(ctx context.Context, pageToken string) ([]Endpoint, string, error) {
	path := fmt.Sprintf("/v1/apps/%s/endpoints", url.PathEscape(p.appID))
	if pageToken != "" {
		path += "?page_token=" + url.QueryEscape(pageToken)
	}

	var resp listEndpointsResponse
	if err := p.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, "", err
	}

	endpoints := make([]Endpoint, 0, len(resp.Endpoints))
	for _, e := range resp.Endpoints {
		endpoints = append(endpoints, Endpoint{
			ID:         e.EndpointID,
			Attributes: EndpointAttributes{Enabled: e.Enabled, Token: e.Token},
		})
	}
	return endpoints, resp.NextPageToken, nil
}

// do sends one JSON request and decodes the response into out (when
// non-nil). Non-2xx statuses become transient or permanent errors carrying
// the platform's error message.
func (p *HTTPPlatform) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return &retry.TransientError{Op: "push platform " + method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Message string `json:"message"`
		}
		message := string(payload)
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Message != "" {
			message = apiErr.Message
		}
		return retry.FromStatus("push platform "+method+" "+path, resp.StatusCode, errors.New(message))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
