// Package client talks to a running plant-inspector proxy and, for direct
// uploads, to the storage bucket named in a signed policy.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/anime-shed/plant-inspector-go/internal/recognition"
	"github.com/anime-shed/plant-inspector-go/internal/upstream"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
	"github.com/anime-shed/plant-inspector-go/pkg/validation"
)

// APIError is a non-2xx answer from the proxy or the bucket.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

type Client struct {
	proxy   *resty.Client
	storage *resty.Client
}

// New returns a client for the proxy at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		proxy:   upstream.New(strings.TrimRight(baseURL, "/"), timeout),
		storage: upstream.New("", timeout),
	}
}

// Identify sends raw image bytes for recognition.
func (c *Client) Identify(ctx context.Context, image []byte, expectedLabel string) (*recognition.Result, error) {
	var result recognition.Result
	var failure models.ErrorResponse

	res, err := c.proxy.R().
		SetContext(ctx).
		SetBody(models.PlantRequest{
			Image:         base64.StdEncoding.EncodeToString(image),
			ExpectedLabel: expectedLabel,
		}).
		SetResult(&result).
		SetError(&failure).
		Post("/api/plant")
	if err != nil {
		return nil, fmt.Errorf("identify: %w", err)
	}
	if res.IsError() {
		return nil, &APIError{Status: res.StatusCode(), Message: failure.Message}
	}
	return &result, nil
}

// Upload sends the file to the proxy, which stores it with its own credentials.
func (c *Client) Upload(ctx context.Context, name string, data []byte) (*models.UploadResponse, error) {
	var resp models.UploadResponse
	var failure models.ErrorResponse

	res, err := c.proxy.R().
		SetContext(ctx).
		SetMultipartField("file", name, validation.DetectContentType(data), bytes.NewReader(data)).
		SetResult(&resp).
		SetError(&failure).
		Post("/api/upload")
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if res.IsError() {
		return nil, &APIError{Status: res.StatusCode(), Message: failure.Message}
	}
	return &resp, nil
}

// Policy asks the proxy to sign a direct upload for fileName.
func (c *Client) Policy(ctx context.Context, fileName string) (*models.PolicyResponse, error) {
	var resp models.PolicyResponse
	var failure models.ErrorResponse

	res, err := c.proxy.R().
		SetContext(ctx).
		SetQueryParam("filename", fileName).
		SetResult(&resp).
		SetError(&failure).
		Get("/api/upload/policy")
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	if res.IsError() {
		return nil, &APIError{Status: res.StatusCode(), Message: failure.Message}
	}
	return &resp, nil
}

// UploadDirect fetches a policy and posts the file straight to the bucket.
// The proxy never sees the file bytes.
func (c *Client) UploadDirect(ctx context.Context, name string, data []byte) (*models.UploadResponse, error) {
	policy, err := c.Policy(ctx, name)
	if err != nil {
		return nil, err
	}

	// The file part must come after every other form field.
	res, err := c.storage.R().
		SetContext(ctx).
		SetMultipartFormData(policy.Fields).
		SetMultipartField("file", name, validation.DetectContentType(data), bytes.NewReader(data)).
		Post(policy.UploadURL)
	if err != nil {
		return nil, fmt.Errorf("direct upload: %w", err)
	}
	if res.StatusCode() != http.StatusOK && res.StatusCode() != http.StatusNoContent {
		return nil, &APIError{Status: res.StatusCode(), Message: strings.TrimSpace(res.String())}
	}

	return &models.UploadResponse{
		URL:  strings.TrimRight(policy.UploadURL, "/") + "/" + policy.Key,
		Name: name,
		Size: int64(len(data)),
	}, nil
}
