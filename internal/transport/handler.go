package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/plant-inspector-go/internal/config"
	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
	"github.com/anime-shed/plant-inspector-go/internal/metrics"
	"github.com/anime-shed/plant-inspector-go/internal/service"
	"github.com/anime-shed/plant-inspector-go/internal/storage"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"

	// multipartOverhead leaves room for boundaries and part headers on top of the file itself.
	multipartOverhead = 1 << 20

	version = "1.0.0"
)

func NewHandler(svc service.PlantService, m *metrics.Metrics, cfg *config.Config) http.Handler {
	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestID(),
		m.Middleware(),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck(svc))
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	api.POST("/plant", requestSizeLimiter(cfg.MaxRequestBodySize), identifyPlant(svc, cfg))
	api.POST("/upload", requestSizeLimiter(cfg.MaxUploadSize+multipartOverhead), uploadFile(svc, cfg))
	api.GET("/upload/policy", signUpload(svc))

	return r
}

func identifyPlant(svc service.PlantService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		// Log request start
		requestLog(c).Info("Processing plant recognition request")

		var req models.PlantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, "invalid request format", bodyError(err))
			return
		}

		result, err := svc.Identify(ctx, req)
		if err != nil {
			respondError(c, "recognition failed", err)
			return
		}

		// Log successful completion
		fields := logrus.Fields{
			"log_id":             result.LogID,
			"results":            len(result.Items),
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}
		if result.BestMatch != nil {
			fields["best_match"] = result.BestMatch.Label
		}
		requestLog(c).WithFields(fields).Info("Plant recognition completed successfully")

		c.JSON(http.StatusOK, result)
	}
}

func uploadFile(svc service.PlantService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		requestLog(c).Info("Processing upload request")

		header, err := c.FormFile("file")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
				respondError(c, "upload failed", apperrors.NewInputError("no file selected", err))
				return
			}
			respondError(c, "upload failed", bodyError(err))
			return
		}
		if header.Size > cfg.MaxUploadSize {
			respondError(c, "upload failed", tooLarge(cfg.MaxUploadSize))
			return
		}

		f, err := header.Open()
		if err != nil {
			respondError(c, "upload failed", apperrors.NewInternalError("cannot read uploaded file", err))
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			respondError(c, "upload failed", apperrors.NewInternalError("cannot read uploaded file", err))
			return
		}

		resp, err := svc.Upload(ctx, storage.UploadRequest{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Data:        data,
		})
		if err != nil {
			respondError(c, "upload failed", err)
			return
		}

		requestLog(c).WithFields(logrus.Fields{
			"name":               resp.Name,
			"size":               resp.Size,
			"backend":            svc.StorageBackend(),
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Upload completed successfully")

		c.JSON(http.StatusOK, resp)
	}
}

func signUpload(svc service.PlantService) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := svc.SignUpload(c.Request.Context(), c.Query("filename"))
		if err != nil {
			respondError(c, "cannot sign upload", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func healthCheck(svc service.PlantService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  "available",
			Version: version,
			Time:    time.Now().UTC().Format(time.RFC3339),
			Storage: svc.StorageBackend(),
		})
	}
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// requestID propagates an incoming X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, "request processing failed", c.Errors.Last().Err)
		}
	}
}

// bodyError classifies a failure to read or decode the request body.
func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return tooLarge(maxErr.Limit)
	}
	return apperrors.NewInputError("invalid request body", err)
}

func tooLarge(limit int64) *apperrors.AppError {
	appErr := apperrors.NewInputError(fmt.Sprintf("request body exceeds %d bytes", limit), nil)
	appErr.StatusCode = http.StatusRequestEntityTooLarge
	return appErr
}

func requestLog(c *gin.Context) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
		"request_id": c.GetString(requestIDKey),
	})
}

func respondError(c *gin.Context, message string, err error) {
	// Input problems keep their 4xx; every other failure is a 500.
	code := apperrors.GetStatusCode(err)

	detail := err.Error()
	var errType apperrors.ErrorType
	fields := logrus.Fields{
		"status_code": code,
		"message":     message,
	}
	if appErr, ok := apperrors.As(err); ok {
		detail = appErr.Message
		errType = appErr.Type
		fields["error_type"] = appErr.Type
		if appErr.Code != "" {
			fields["upstream_code"] = appErr.Code
		}
	}

	// Log the error with context
	entry := requestLog(c).WithError(err).WithFields(fields)
	if apperrors.IsType(err, apperrors.ErrorTypeInput) {
		entry.Warn("Request rejected")
	} else {
		entry.Error("Request failed")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Type:    string(errType),
		Message: fmt.Sprintf("%s: %s", message, detail),
	})
}
