// Package upstream builds the resty clients used to reach third-party APIs
// and maps their transport failures onto the application error taxonomy.
package upstream

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
)

const userAgent = "Plant-Inspector/1.0"

// New returns a resty client with a base URL and an overall request timeout.
// Retries stay disabled; every failure surfaces to the caller.
func New(baseURL string, timeout time.Duration) *resty.Client {
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeaders(map[string]string{
			"Accept":     "application/json",
			"User-Agent": userAgent,
		})
	if baseURL != "" {
		c.SetBaseURL(baseURL)
	}
	return c
}

// IsTimeout reports whether err came from a context deadline or a net timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// TransportError wraps a failure that happened before any response arrived.
func TransportError(message string, err error) *apperrors.AppError {
	if IsTimeout(err) {
		return apperrors.NewTimeoutError(message, err)
	}
	return apperrors.NewNetworkError(message, err)
}
