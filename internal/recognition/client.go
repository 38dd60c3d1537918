package recognition

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/observer"
	"github.com/anime-shed/plant-inspector-go/internal/token"
	"github.com/anime-shed/plant-inspector-go/internal/upstream"
)

// Path is the plant classification endpoint, relative to the AIP base URL.
const Path = "/rest/2.0/image-classify/v1/plant"

// Provider error codes meaning the access token is invalid or expired.
const (
	codeTokenInvalid = 110
	codeTokenExpired = 111
)

// Recognizer identifies plants in an image.
type Recognizer interface {
	Analyze(ctx context.Context, image []byte) (*Result, error)
	AnalyzeBase64(ctx context.Context, encoded string) (*Result, error)
}

type Client struct {
	http     *resty.Client
	tokens   token.Source
	baikeNum int
	events   observer.Subject
}

type Option func(*Client)

// WithBaikeNum asks the provider for encyclopedia info on the top n candidates.
func WithBaikeNum(n int) Option {
	return func(c *Client) { c.baikeNum = n }
}

func WithEvents(events observer.Subject) Option {
	return func(c *Client) {
		if events != nil {
			c.events = events
		}
	}
}

func NewClient(http *resty.Client, tokens token.Source, opts ...Option) *Client {
	c := &Client{
		http:   http,
		tokens: tokens,
		events: observer.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze encodes raw image bytes and recognizes them.
func (c *Client) Analyze(ctx context.Context, image []byte) (*Result, error) {
	if len(image) == 0 {
		return nil, apperrors.NewInputError("no image selected", nil)
	}
	return c.AnalyzeBase64(ctx, base64.StdEncoding.EncodeToString(image))
}

// AnalyzeBase64 recognizes an already base64-encoded image. A data URI prefix is stripped.
func (c *Client) AnalyzeBase64(ctx context.Context, encoded string) (*Result, error) {
	encoded = stripDataURI(strings.TrimSpace(encoded))
	if encoded == "" {
		return nil, apperrors.NewInputError("no image selected", nil)
	}

	start := time.Now()
	result, err := c.recognize(ctx, encoded)
	if err != nil {
		c.events.NotifyObservers(ctx, observer.NewEvent(observer.RecognitionFailed, start, err))
		return nil, err
	}

	c.events.NotifyObservers(ctx, observer.NewEvent(observer.RecognitionCompleted, start, nil).
		WithMetadata("results", len(result.Items)).
		WithMetadata("log_id", result.LogID))
	return result, nil
}

// recognize fetches a token and calls the API. If the provider rejects the
// token it is invalidated, refreshed and the call is repeated once.
func (c *Client) recognize(ctx context.Context, encoded string) (*Result, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.call(ctx, tok, encoded)
	if isTokenRejected(err) {
		c.tokens.Invalidate(ctx, tok)
		if tok, err = c.tokens.Token(ctx); err != nil {
			return nil, err
		}
		resp, err = c.call(ctx, tok, encoded)
	}
	if err != nil {
		return nil, err
	}
	return normalize(resp), nil
}

func (c *Client) call(ctx context.Context, tok, encoded string) (*apiResponse, error) {
	form := map[string]string{"image": encoded}
	if c.baikeNum > 0 {
		form["baike_num"] = strconv.Itoa(c.baikeNum)
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("access_token", tok).
		SetFormData(form).
		Post(Path)
	if err != nil {
		return nil, upstream.TransportError("recognition request failed", err)
	}

	var body apiResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, apperrors.NewProviderError(
			fmt.Sprintf("unexpected recognition response (status %d)", res.StatusCode()), err)
	}
	if body.ErrorCode != 0 {
		return nil, apperrors.NewProviderError(body.ErrorMsg, nil).WithCode(strconv.Itoa(body.ErrorCode))
	}
	if res.IsError() {
		return nil, apperrors.NewProviderError(
			fmt.Sprintf("recognition failed with status %d", res.StatusCode()), nil).
			WithCode(strconv.Itoa(res.StatusCode()))
	}
	return &body, nil
}

func isTokenRejected(err error) bool {
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Type != apperrors.ErrorTypeProvider {
		return false
	}
	return appErr.Code == strconv.Itoa(codeTokenInvalid) || appErr.Code == strconv.Itoa(codeTokenExpired)
}

func stripDataURI(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}
