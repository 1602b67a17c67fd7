// Package acs is a client for the Azure Communication Services
// phone-numbers REST API. It translates provider responses into the
// numbers data model and never retries; retry policy belongs to callers.
package acs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	internalerrors "github.com/jjgriff93/ai-contact-centre/internal/errors"
	"github.com/jjgriff93/ai-contact-centre/pkg/transport"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	// DefaultAPIVersion is the phone-numbers API version this client speaks.
	DefaultAPIVersion = "2022-12-01"
	// Scope is the Entra ID scope for Communication Services data-plane tokens.
	Scope = "https://communication.azure.com//.default"

	defaultPollInterval = 2 * time.Second
	maxErrorBody        = 64 << 10
)

// RequestObserver is told about every completed HTTP exchange. status is 0
// when no response was received.
type RequestObserver func(op string, status int, elapsed time.Duration)

type ClientConfig struct {
	Endpoint    string
	TokenSource oauth2.TokenSource
	// HTTPClient overrides the default transport; its Transport is wrapped
	// with bearer authentication.
	HTTPClient *http.Client
	Timeout    time.Duration
	APIVersion string
	// PollInterval spaces status checks of search operations.
	PollInterval time.Duration
	UserAgent    string
	Observer     RequestObserver
}

type Client struct {
	baseURL      string
	apiVersion   string
	pollInterval time.Duration
	userAgent    string
	httpClient   *http.Client
	observe      RequestObserver
}

func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", internalerrors.ErrInvalidInput)
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid endpoint %q", internalerrors.ErrInvalidInput, cfg.Endpoint)
	}
	if u.Scheme == "http" {
		log.Warn().Str("endpoint", endpoint).Msg("Using HTTP for the provider connection - bearer tokens are sent in clear")
	}
	if cfg.TokenSource == nil {
		return nil, fmt.Errorf("%w: token source is required", internalerrors.ErrInvalidInput)
	}

	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "phonectl"
	}

	base := cfg.HTTPClient
	if base == nil {
		base = transport.NewHTTPClient(cfg.Timeout)
	}
	baseTransport := base.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	timeout := base.Timeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	return &Client{
		baseURL:      strings.TrimSuffix(u.Scheme+"://"+u.Host+u.Path, "/"),
		apiVersion:   cfg.APIVersion,
		pollInterval: cfg.PollInterval,
		userAgent:    cfg.UserAgent,
		observe:      cfg.Observer,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.ReuseTokenSource(nil, cfg.TokenSource),
				Base:   baseTransport,
			},
			Timeout: timeout,
		},
	}, nil
}

// Endpoint returns the normalized resource endpoint.
func (c *Client) Endpoint() string {
	return c.baseURL
}

// resolve turns a path or a provider-supplied link into an absolute URL that
// carries the API version.
func (c *Client) resolve(ref string, query url.Values) (string, error) {
	raw := ref
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		raw = c.baseURL + "/" + strings.TrimPrefix(ref, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid request url %q: %w", raw, err)
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if q.Get("api-version") == "" {
		q.Set("api-version", c.apiVersion)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// request performs one HTTP exchange. Responses with status >= 400 are
// turned into a *ProviderError and the body is closed.
func (c *Client) request(ctx context.Context, op, method, ref string, query url.Values, body any) (*http.Response, error) {
	target, err := c.resolve(ref, query)
	if err != nil {
		return nil, internalerrors.NewProviderError(op, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, internalerrors.NewProviderError(op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, internalerrors.NewProviderError(op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	requestID := uuid.NewString()
	req.Header.Set("x-ms-client-request-id", requestID)
	req.Header.Set("x-ms-return-client-request-id", "true")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if c.observe != nil {
		c.observe(op, status, elapsed)
	}
	log.Debug().
		Str("op", op).
		Str("method", method).
		Str("url", req.URL.Redacted()).
		Str("request_id", requestID).
		Int("status", status).
		Dur("elapsed", elapsed).
		Msg("Provider request")

	if err != nil {
		return nil, transportError(op, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(op, resp)
	}
	return resp, nil
}

// transportError classifies a failed exchange. Token acquisition failures
// are reported as authorization errors so they are never retried.
func transportError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := http.StatusUnauthorized
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500 {
			status = retrieveErr.Response.StatusCode
		}
		apiErr := internalerrors.NewAPIError(op, status, retrieveErr.ErrorCode, "token acquisition failed")
		apiErr.Err = err
		return apiErr
	}
	return internalerrors.NewProviderError(op, err)
}

func decodeError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || (parsed.Error.Code == "" && parsed.Error.Message == "") {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return internalerrors.NewAPIError(op, resp.StatusCode, "", msg)
	}
	return internalerrors.NewAPIError(op, resp.StatusCode, parsed.Error.Code, parsed.Error.Message)
}

func (c *Client) getJSON(ctx context.Context, op, ref string, query url.Values, out any) error {
	resp, err := c.request(ctx, op, http.MethodGet, ref, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeBody(op, resp, out)
}

func decodeBody(op string, resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return internalerrors.NewProviderError(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// operationID extracts the long-running operation id from response headers.
func operationID(resp *http.Response) string {
	if id := resp.Header.Get("operation-id"); id != "" {
		return id
	}
	loc := resp.Header.Get("operation-location")
	if loc == "" {
		return ""
	}
	u, err := url.Parse(loc)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

func (c *Client) getOperation(ctx context.Context, op, id string) (*operation, error) {
	var out operation
	if err := c.getJSON(ctx, op, "/phoneNumbers/operations/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// waitOperation polls an operation until it settles or ctx ends.
func (c *Client) waitOperation(ctx context.Context, op, id string) (*operation, error) {
	for {
		o, err := c.getOperation(ctx, op, id)
		if err != nil {
			return nil, err
		}
		switch o.Status {
		case statusSucceeded, statusFailed:
			return o, nil
		}

		t := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, internalerrors.NewProviderError(op, fmt.Errorf("operation %s still %s: %w", id, o.Status, ctx.Err()))
		case <-t.C:
		}
	}
}

func operationError(op string, o *operation) error {
	if o.Error == nil {
		return internalerrors.NewAPIError(op, 0, "", fmt.Sprintf("operation %s failed", o.ID))
	}
	return internalerrors.NewAPIError(op, 0, o.Error.Code, o.Error.Message)
}
