// Package client is a small HTTP client for the document API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// AI mirrors the ai object of a document. Nil fields are still pending.
type AI struct {
	Summary *string `json:"summary"`
	Risks   *string `json:"risks"`
	Clauses *string `json:"clauses"`
}

// Document is the subset of an upload or detail response the client uses.
type Document struct {
	ID               string    `json:"id"`
	OriginalFileName string    `json:"originalFileName"`
	CreatedAt        time.Time `json:"createdAt"`
	AI               AI        `json:"ai"`
}

// Client calls the API with a bearer token.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// New returns a client for baseURL, e.g. http://localhost:8080/api.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Login exchanges credentials for a token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "application/json", bytes.NewReader(body), &out); err != nil {
		return err
	}
	if out.Token == "" {
		return errors.New("login response carried no token")
	}
	c.Token = out.Token
	return nil
}

// Upload sends a PDF and returns the created document.
func (c *Client) Upload(ctx context.Context, fileName string, r io.Reader) (Document, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return Document{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return Document{}, err
	}
	if err := writer.Close(); err != nil {
		return Document{}, err
	}

	var doc Document
	if err := c.do(ctx, http.MethodPost, "/documents", writer.FormDataContentType(), &buf, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// GetDocument returns a document with its current AI fields.
func (c *Client) GetDocument(ctx context.Context, id string) (Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), "", nil, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// GetAIField returns the persisted value of one field, or nil while it is pending.
func (c *Client) GetAIField(ctx context.Context, id, kind string) (*string, error) {
	var out map[string]*string
	path := "/documents/" + url.PathEscape(id) + "/ai/" + url.PathEscape(kind)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return out[kind], nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope)
		return &APIError{Status: resp.StatusCode, Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
