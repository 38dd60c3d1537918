package service

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/observer"
	"github.com/anime-shed/plant-inspector-go/internal/recognition"
	"github.com/anime-shed/plant-inspector-go/internal/storage"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
	"github.com/anime-shed/plant-inspector-go/pkg/validation"
)

// PlantService is the application layer behind the HTTP handlers.
type PlantService interface {
	// Identify recognizes a base64 image and, if an expected label is given,
	// scores every candidate against it.
	Identify(ctx context.Context, req models.PlantRequest) (*recognition.Result, error)

	// Upload validates and stores a file with the server's storage credentials.
	Upload(ctx context.Context, req storage.UploadRequest) (*models.UploadResponse, error)

	// SignUpload issues a short-lived policy so the caller can POST straight to the bucket.
	SignUpload(ctx context.Context, fileName string) (*models.PolicyResponse, error)

	// StorageBackend names the configured upload backend.
	StorageBackend() string
}

type plantService struct {
	recognizer recognition.Recognizer
	uploader   storage.Uploader
	signer     *storage.PolicySigner
	validator  *validation.UploadValidator
	events     observer.Subject
}

// NewPlantService wires the service. signer may be nil when the backend has no
// direct-upload support.
func NewPlantService(
	recognizer recognition.Recognizer,
	uploader storage.Uploader,
	signer *storage.PolicySigner,
	validator *validation.UploadValidator,
	events observer.Subject,
) PlantService {
	if events == nil {
		events = observer.Nop{}
	}
	return &plantService{
		recognizer: recognizer,
		uploader:   uploader,
		signer:     signer,
		validator:  validator,
		events:     events,
	}
}

func (s *plantService) Identify(ctx context.Context, req models.PlantRequest) (*recognition.Result, error) {
	result, err := s.recognizer.AnalyzeBase64(ctx, req.Image)
	if err != nil {
		return nil, err
	}
	recognition.Match(result, req.ExpectedLabel)
	return result, nil
}

func (s *plantService) Upload(ctx context.Context, req storage.UploadRequest) (*models.UploadResponse, error) {
	start := time.Now()

	contentType, err := s.validator.Validate(req.Name, req.ContentType, req.Data)
	if err != nil {
		s.events.NotifyObservers(ctx, observer.NewEvent(observer.UploadFailed, start, err).
			WithMetadata("backend", s.uploader.Backend()).
			WithMetadata("stage", "validation"))
		return nil, err
	}
	req.ContentType = contentType

	outcome, err := s.uploader.Upload(ctx, req)
	if err != nil {
		s.events.NotifyObservers(ctx, observer.NewEvent(observer.UploadFailed, start, err).
			WithMetadata("backend", s.uploader.Backend()))
		return nil, err
	}

	s.events.NotifyObservers(ctx, observer.NewEvent(observer.UploadCompleted, start, nil).
		WithMetadata("backend", s.uploader.Backend()).
		WithMetadata("key", outcome.Key).
		WithMetadata("size", outcome.Size))

	return &models.UploadResponse{
		URL:  outcome.URL,
		Name: outcome.Name,
		Size: outcome.Size,
	}, nil
}

func (s *plantService) SignUpload(ctx context.Context, fileName string) (*models.PolicyResponse, error) {
	if s.signer == nil {
		return nil, apperrors.NewInputError(
			fmt.Sprintf("direct upload is not available for the %s backend", s.uploader.Backend()), nil)
	}

	start := time.Now()
	signed, err := s.signer.BuildSignedUpload(fileName)
	if err != nil {
		return nil, err
	}

	s.events.NotifyObservers(ctx, observer.NewEvent(observer.PolicySigned, start, nil).
		WithMetadata("key", signed.Key))

	return &models.PolicyResponse{
		UploadURL:  signed.UploadURL,
		Key:        signed.Key,
		Fields:     signed.Fields,
		Expiration: signed.Expiration,
	}, nil
}

func (s *plantService) StorageBackend() string {
	return s.uploader.Backend()
}
