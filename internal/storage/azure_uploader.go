package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/upstream"
)

type azureUploader struct {
	client     *azblob.Client
	serviceURL string
	container  string
}

// NewAzureUploader stores objects in an Azure Blob container with a shared key.
// serviceURL defaults to https://<account>.blob.core.windows.net.
func NewAzureUploader(accountName, accountKey, container, serviceURL string) (Uploader, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}
	serviceURL = strings.TrimRight(serviceURL, "/")

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			// A negative value means a single attempt.
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureUploader{client: client, serviceURL: serviceURL, container: container}, nil
}

func (s *azureUploader) Backend() string {
	return "azure"
}

func (s *azureUploader) Upload(ctx context.Context, req UploadRequest) (*Outcome, error) {
	if len(req.Data) == 0 {
		return nil, apperrors.NewInputError("no file selected", nil)
	}
	key := SanitizeKey(req.Name)
	if key == "" {
		return nil, apperrors.NewInputError("no file selected", nil)
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.UploadBuffer(ctx, s.container, key, req.Data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			msg := respErr.ErrorCode
			if msg == "" {
				msg = fmt.Sprintf("upload failed with status %d", respErr.StatusCode)
			}
			return nil, apperrors.NewStorageError(msg, err).WithCode(strconv.Itoa(respErr.StatusCode))
		}
		return nil, upstream.TransportError("storage request failed", err)
	}

	size := req.Size
	if size <= 0 {
		size = int64(len(req.Data))
	}
	return &Outcome{
		URL:  fmt.Sprintf("%s/%s/%s", s.serviceURL, s.container, key),
		Name: req.Name,
		Size: size,
		Key:  key,
	}, nil
}
