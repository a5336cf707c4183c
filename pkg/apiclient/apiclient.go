// Package apiclient is a thin HTTP client for the folio API, used by CLI
// commands that talk to a running server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/quillworksco/folio/api"
	"github.com/quillworksco/folio/pkg/notebook"
	"github.com/quillworksco/folio/pkg/rag"
)

// Client calls the folio API at a base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the API server at baseURL.
func New(baseURL string) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		http:    http.DefaultClient,
	}, nil
}

// ListNotebooksOutput is the response body for listing notebooks.
type ListNotebooksOutput struct {
	Count     int                  `json:"count"`
	Notebooks []*notebook.Notebook `json:"notebooks"`
}

// ListSourcesOutput is the response body for listing a notebook's sources.
type ListSourcesOutput struct {
	Count   int                `json:"count"`
	Sources []*notebook.Source `json:"sources"`
}

// CreateNotebook creates a notebook with the given name.
func (c *Client) CreateNotebook(ctx context.Context, name string) (*notebook.Notebook, error) {
	var out notebook.Notebook
	err := c.do(ctx, http.MethodPost, "/v1/notebooks", api.CreateNotebookRequest{Name: name}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListNotebooks returns all notebooks.
func (c *Client) ListNotebooks(ctx context.Context) (*ListNotebooksOutput, error) {
	var out ListNotebooksOutput
	if err := c.do(ctx, http.MethodGet, "/v1/notebooks", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetNotebook fetches one notebook by ID.
func (c *Client) GetNotebook(ctx context.Context, notebookID string) (*notebook.Notebook, error) {
	var out notebook.Notebook
	err := c.do(ctx, http.MethodGet, "/v1/notebooks/"+url.PathEscape(notebookID), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteNotebook removes a notebook, its sources, and its vectors.
func (c *Client) DeleteNotebook(ctx context.Context, notebookID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/notebooks/"+url.PathEscape(notebookID), nil, nil)
}

// AddSource attaches extracted text to a notebook.
func (c *Client) AddSource(ctx context.Context, notebookID, title, extractedText string) (*notebook.Source, error) {
	var out notebook.Source
	err := c.do(ctx, http.MethodPost, "/v1/notebooks/"+url.PathEscape(notebookID)+"/sources", api.AddSourceRequest{
		Title:         title,
		ExtractedText: extractedText,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSources returns a notebook's non-deleted sources.
func (c *Client) ListSources(ctx context.Context, notebookID string) (*ListSourcesOutput, error) {
	var out ListSourcesOutput
	err := c.do(ctx, http.MethodGet, "/v1/notebooks/"+url.PathEscape(notebookID)+"/sources", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveSource soft-deletes a source and purges its vectors.
func (c *Client) RemoveSource(ctx context.Context, notebookID, sourceID string) error {
	path := "/v1/notebooks/" + url.PathEscape(notebookID) + "/sources/" + url.PathEscape(sourceID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Ingest runs an ingestion pass over the notebook.
func (c *Client) Ingest(ctx context.Context, notebookID string, req api.IngestRequest) (*rag.IngestResult, error) {
	var out rag.IngestResult
	err := c.do(ctx, http.MethodPost, "/v1/notebooks/"+url.PathEscape(notebookID)+"/ingest", req, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Search runs a similarity search against the notebook. A limit of zero
// leaves the server default in place.
func (c *Client) Search(ctx context.Context, notebookID, query string, limit int) (*api.SearchResponse, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	u.Path = "/v1/notebooks/" + url.PathEscape(notebookID) + "/search"
	q := u.Query()
	q.Set("query", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	var out api.SearchResponse
	if err := c.doURL(ctx, http.MethodGet, u.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ask answers a question against the notebook.
func (c *Client) Ask(ctx context.Context, notebookID string, req api.AskRequest) (*rag.Answer, error) {
	var out rag.Answer
	err := c.do(ctx, http.MethodPost, "/v1/notebooks/"+url.PathEscape(notebookID)+"/ask", req, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Count reports how many chunks the notebook's collection holds.
func (c *Client) Count(ctx context.Context, notebookID string) (*api.CountResponse, error) {
	var out api.CountResponse
	err := c.do(ctx, http.MethodGet, "/v1/notebooks/"+url.PathEscape(notebookID)+"/vectors/count", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doURL(ctx, method, c.baseURL+path, body, out)
}

func (c *Client) doURL(ctx context.Context, method, fullURL string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to folio API at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
