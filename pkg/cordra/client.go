// Package cordra provides a client for a Cordra digital-object repository.
package cordra

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// Attachment is one named payload attached to a repository object.
type Attachment struct {
	Name     string
	Filename string
	Content  io.Reader
}

// Object is a repository record as returned by the server. The repository
// assigns the identifier on creation.
type Object struct {
	ID      string
	Type    string
	Payload map[string]any
}

// Client talks to the repository's object REST API using basic
// authentication.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientConfig carries the connection parameters for one repository.
type ClientConfig struct {
	BaseURL            string
	Username           string
	Password           string
	InsecureSkipVerify bool
}

// NewClient creates a repository client.
func NewClient(config ClientConfig, logger *slog.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		username:   config.Username,
		password:   config.Password,
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}
}

// Create stores a new object of the given type and returns it with its
// repository-assigned identifier. Attachments are sent as multipart
// payloads alongside the JSON content.
func (c *Client) Create(ctx context.Context, objectType string, payload map[string]any, attachments ...Attachment) (*Object, error) {
	endpoint := fmt.Sprintf("%s/objects?type=%s&full=true", c.baseURL, url.QueryEscape(objectType))

	var (
		req *http.Request
		err error
	)

	if len(attachments) > 0 {
		req, err = c.multipartRequest(ctx, http.MethodPost, endpoint, payload, attachments)
	} else {
		req, err = c.jsonRequest(ctx, http.MethodPost, endpoint, payload)
	}

	if err != nil {
		return nil, err
	}

	created, err := c.doObject(req)
	if err != nil {
		return nil, NewObjectError("Create", objectType, err)
	}

	created.Type = objectType

	return created, nil
}

// Read returns the JSON content of an object.
func (c *Client) Read(ctx context.Context, id string) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/objects/%s", c.baseURL, url.PathEscape(id))

	req, err := c.jsonRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, NewObjectError("Read", id, err)
	}

	var payload map[string]any

	err = json.Unmarshal(body, &payload)
	if err != nil {
		return nil, NewObjectError("Read", id, fmt.Errorf("failed to decode object: %w", err))
	}

	return payload, nil
}

// Update replaces the JSON content of an object.
func (c *Client) Update(ctx context.Context, id string, payload map[string]any) error {
	endpoint := fmt.Sprintf("%s/objects/%s", c.baseURL, url.PathEscape(id))

	req, err := c.jsonRequest(ctx, http.MethodPut, endpoint, payload)
	if err != nil {
		return err
	}

	_, err = c.do(req)
	if err != nil {
		return NewObjectError("Update", id, err)
	}

	return nil
}

// Delete removes an object. The repository tolerates deleting objects that
// other objects still reference, which rollback relies on.
func (c *Client) Delete(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/objects/%s", c.baseURL, url.PathEscape(id))

	req, err := c.jsonRequest(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}

	_, err = c.do(req)
	if err != nil {
		return NewObjectError("Delete", id, err)
	}

	return nil
}

// Find runs a repository query and returns the number of matching objects.
func (c *Client) Find(ctx context.Context, query string) (int, error) {
	endpoint := fmt.Sprintf("%s/search?query=%s&pageSize=1", c.baseURL, url.QueryEscape(query))

	req, err := c.jsonRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	body, err := c.do(req)
	if err != nil {
		return 0, NewObjectError("Find", query, err)
	}

	var result struct {
		Size int `json:"size"`
	}

	err = json.Unmarshal(body, &result)
	if err != nil {
		return 0, NewObjectError("Find", query, fmt.Errorf("failed to decode search result: %w", err))
	}

	return result.Size, nil
}

// HealthCheck probes the repository by searching for its schema objects. A
// repository without schemas cannot accept any typed record.
func (c *Client) HealthCheck(ctx context.Context) error {
	size, err := c.Find(ctx, "type:Schema")
	if err != nil {
		return err
	}

	if size == 0 {
		return ErrNoSchemas
	}

	return nil
}

func (c *Client) jsonRequest(ctx context.Context, method, endpoint string, payload map[string]any) (*http.Request, error) {
	var body io.Reader

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode object payload: %w", err)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &RepositoryError{Op: method, URL: endpoint, Err: err}
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// multipartRequest builds a create request with the JSON content in a
// "content" part and each attachment in its own named part, which is the
// repository's full-form object upload format.
func (c *Client) multipartRequest(ctx context.Context, method, endpoint string, payload map[string]any, attachments []Attachment) (*http.Request, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	content, err := writer.CreateFormField("content")
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart request: %w", err)
	}

	err = json.NewEncoder(content).Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode object payload: %w", err)
	}

	for _, attachment := range attachments {
		part, err := writer.CreateFormFile(attachment.Name, attachment.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to build multipart request: %w", err)
		}

		_, err = io.Copy(part, attachment.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to copy attachment %s: %w", attachment.Name, err)
		}
	}

	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, &buf)
	if err != nil {
		return nil, &RepositoryError{Op: method, URL: endpoint, Err: err}
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req, nil
}

func (c *Client) doObject(req *http.Request) (*Object, error) {
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var payload map[string]any

	err = json.Unmarshal(body, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode object: %w", err)
	}

	id, _ := payload["@id"].(string)
	if id == "" {
		if nested, ok := payload["content"].(map[string]any); ok {
			id, _ = nested["@id"].(string)
		}
	}

	if id == "" {
		id, _ = payload["id"].(string)
	}

	if id == "" {
		return nil, fmt.Errorf("repository response carries no object identifier")
	}

	return &Object{ID: id, Payload: payload}, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RepositoryError{Op: req.Method, URL: req.URL.String(), Err: err}
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrObjectNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return nil, &RepositoryError{
			Op:     req.Method,
			URL:    req.URL.String(),
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", strings.TrimSpace(string(detail))),
		}
	}

	return io.ReadAll(resp.Body)
}
