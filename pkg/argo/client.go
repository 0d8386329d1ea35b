package argo

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Client talks to the Argo Workflows server HTTP API using bearer token
// authentication.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientConfig carries the connection parameters for one engine instance.
type ClientConfig struct {
	BaseURL string
	Token   string
	// InsecureSkipVerify disables TLS certificate verification. Engine
	// deployments behind self-signed certificates need this.
	InsecureSkipVerify bool
}

// NewClient creates an engine client. The underlying transport's defaults
// govern timeouts and retries; the client adds none of its own.
func NewClient(config ClientConfig, logger *slog.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}
}

// GetWorkflow returns the execution-status tree for one workflow.
func (c *Client) GetWorkflow(ctx context.Context, namespace, name string) (*Workflow, error) {
	endpoint := fmt.Sprintf("%s/api/v1/workflows/%s/%s",
		c.baseURL, url.PathEscape(namespace), url.PathEscape(name))

	var workflow Workflow

	err := c.getJSON(ctx, endpoint, &workflow)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

// ListWorkflows returns summaries of the workflows in a namespace. A limit
// of 0 means no limit.
func (c *Client) ListWorkflows(ctx context.Context, namespace string, limit int) ([]WorkflowSummary, error) {
	endpoint := fmt.Sprintf("%s/api/v1/workflows/%s", c.baseURL, url.PathEscape(namespace))
	if limit > 0 {
		endpoint += fmt.Sprintf("?listOptions.limit=%d", limit)
	}

	var listing struct {
		Items []struct {
			Metadata Metadata `json:"metadata"`
			Status   Status   `json:"status"`
		} `json:"items"`
	}

	err := c.getJSON(ctx, endpoint, &listing)
	if err != nil {
		return nil, err
	}

	summaries := make([]WorkflowSummary, 0, len(listing.Items))
	for _, item := range listing.Items {
		summaries = append(summaries, WorkflowSummary{
			Name:       item.Metadata.Name,
			Namespace:  item.Metadata.Namespace,
			Phase:      item.Status.Phase,
			StartedAt:  item.Status.StartedAt,
			FinishedAt: item.Status.FinishedAt,
		})
	}

	return summaries, nil
}

// Submit sends a workflow document to the engine for execution. With dryRun
// set the engine validates the document server-side without creating it.
func (c *Client) Submit(ctx context.Context, namespace string, doc *Document, dryRun bool) (*Workflow, error) {
	endpoint := fmt.Sprintf("%s/api/v1/workflows/%s", c.baseURL, url.PathEscape(namespace))

	body := map[string]any{"workflow": doc}
	if dryRun {
		body["serverDryRun"] = true
	}

	var created Workflow

	err := c.postJSON(ctx, endpoint, body, &created)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// Lint asks the engine to validate a workflow document without running it.
func (c *Client) Lint(ctx context.Context, namespace string, doc *Document) (*Workflow, error) {
	endpoint := fmt.Sprintf("%s/api/v1/workflows/%s/lint", c.baseURL, url.PathEscape(namespace))

	var linted Workflow

	err := c.postJSON(ctx, endpoint, map[string]any{"workflow": doc}, &linted)
	if err != nil {
		return nil, err
	}

	return &linted, nil
}

// HealthCheck probes the engine with a minimal listing request.
func (c *Client) HealthCheck(ctx context.Context, namespace string) error {
	_, err := c.ListWorkflows(ctx, namespace, 1)

	return err
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &TransportError{Op: "GET", URL: endpoint, Err: err}
	}

	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: "POST", URL: endpoint, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")

	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: req.Method, URL: req.URL.String(), Err: err}
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", req.URL.Path, ErrWorkflowNotFound)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return &TransportError{
			Op:     req.Method,
			URL:    req.URL.String(),
			Status: resp.StatusCode,
			Err:    apiError(detail),
		}
	}

	if out == nil {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode engine response: %w", err)
	}

	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// apiError extracts the engine's error message from a response body, falling
// back to the raw text when it is not the usual JSON envelope.
func apiError(body []byte) error {
	if len(body) == 0 {
		return nil
	}

	var envelope struct {
		Message string `json:"message"`
	}

	if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
		return fmt.Errorf("%s", envelope.Message)
	}

	return fmt.Errorf("%s", strings.TrimSpace(string(body)))
}
