// Package scanclient talks to the external barcode-decode service. The
// service receives a camera frame or uploaded image and answers with
// the decoded student identifier; no image decoding happens here.
package scanclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Client calls the decode service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// DecodeResult is the decode service's answer.
type DecodeResult struct {
	Found     bool   `json:"found"`
	StudentID string `json:"student_id,omitempty"`
	Format    string `json:"format,omitempty"`
}

// New creates a client. timeout bounds each decode call.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Decode posts an image and returns the decoded identifier, if any.
func (c *Client) Decode(ctx context.Context, image io.Reader, filename string) (*DecodeResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, image); err != nil {
		return nil, err
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/decode", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan service decode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scan service error %d: %s", resp.StatusCode, string(body))
	}

	var result DecodeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("scan service decode: %w", err)
	}
	return &result, nil
}

// Health pings the decode service.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scan service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
