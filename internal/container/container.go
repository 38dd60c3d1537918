package container

import (
	"fmt"
	"net/http"

	"github.com/anime-shed/plant-inspector-go/internal/config"
	"github.com/anime-shed/plant-inspector-go/internal/factory"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
	"github.com/anime-shed/plant-inspector-go/internal/metrics"
	"github.com/anime-shed/plant-inspector-go/internal/observer"
	"github.com/anime-shed/plant-inspector-go/internal/recognition"
	"github.com/anime-shed/plant-inspector-go/internal/service"
	"github.com/anime-shed/plant-inspector-go/internal/token"
	"github.com/anime-shed/plant-inspector-go/internal/transport"
	"github.com/anime-shed/plant-inspector-go/internal/upstream"
	"github.com/anime-shed/plant-inspector-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config       *config.Config
	events       *observer.EventPublisher
	metrics      *metrics.Metrics
	tokens       *token.Provider
	recognizer   recognition.Recognizer
	storage      *factory.Storage
	plantService service.PlantService
	handler      http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	events := observer.NewEventPublisher()
	m := metrics.New()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(m)

	// Build dependency graph
	aip := upstream.New(cfg.BaiduBaseURL, cfg.UpstreamTimeout)
	tokens := token.NewProvider(
		aip,
		cfg.Credentials.RecognitionKeyID,
		cfg.Credentials.RecognitionSecret,
		token.NewCache(),
		events,
	)
	recognizer := recognition.NewClient(aip, tokens,
		recognition.WithBaikeNum(cfg.BaiduBaikeNum),
		recognition.WithEvents(events),
	)

	store, err := factory.NewStorageFactory(cfg).CreateStorage(factory.StorageType(cfg.StorageBackend))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	plantService := service.NewPlantService(
		recognizer,
		store.Uploader,
		store.Signer,
		validation.NewUploadValidator(cfg.MaxUploadSize),
		events,
	)
	handler := transport.NewHandler(plantService, m, cfg)

	return &Container{
		config:       cfg,
		events:       events,
		metrics:      m,
		tokens:       tokens,
		recognizer:   recognizer,
		storage:      store,
		plantService: plantService,
		handler:      handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}
