package factory

import (
	"fmt"
	"time"

	"github.com/anime-shed/plant-inspector-go/internal/config"
	"github.com/anime-shed/plant-inspector-go/internal/storage"
	"github.com/anime-shed/plant-inspector-go/internal/upstream"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// OSSStorage posts to an Aliyun OSS bucket with a server-signed policy
	OSSStorage StorageType = config.BackendOSS
	// AzureStorage writes block blobs to an Azure container
	AzureStorage StorageType = config.BackendAzure
)

// Storage bundles an uploader with the signer for direct uploads.
// Signer is nil when the backend cannot issue PostObject policies.
type Storage struct {
	Uploader storage.Uploader
	Signer   *storage.PolicySigner
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (*Storage, error)
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (*Storage, error) {
	switch storageType {
	case OSSStorage:
		creds := f.cfg.Credentials
		signer := storage.NewPolicySigner(creds.StorageKeyID, creds.StorageSecret, f.cfg.OSSHost())
		return &Storage{
			Uploader: storage.NewOSSUploader(upstream.New("", f.uploadTimeout()), signer),
			Signer:   signer,
		}, nil
	case AzureStorage:
		az := f.cfg.Azure
		uploader, err := storage.NewAzureUploader(az.AccountName, az.AccountKey, az.Container, az.ServiceURL)
		if err != nil {
			return nil, err
		}
		return &Storage{Uploader: uploader}, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// uploadTimeout bounds a whole-file POST. Allow at least the request timeout
// since bodies can be as large as MAX_UPLOAD_SIZE.
func (f *storageFactory) uploadTimeout() time.Duration {
	if f.cfg.RequestTimeout > f.cfg.UpstreamTimeout {
		return f.cfg.RequestTimeout
	}
	return f.cfg.UpstreamTimeout
}
