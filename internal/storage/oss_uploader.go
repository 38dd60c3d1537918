package storage

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/upstream"
)

// ossError is the XML body OSS returns on failure.
type ossError struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
}

// OSSUploader posts objects to an OSS bucket using a policy signed with the
// server's own credentials.
type OSSUploader struct {
	http   *resty.Client
	signer *PolicySigner
}

func NewOSSUploader(http *resty.Client, signer *PolicySigner) *OSSUploader {
	return &OSSUploader{http: http, signer: signer}
}

func (u *OSSUploader) Backend() string {
	return "oss"
}

func (u *OSSUploader) Upload(ctx context.Context, req UploadRequest) (*Outcome, error) {
	if len(req.Data) == 0 {
		return nil, apperrors.NewInputError("no file selected", nil)
	}

	signed, err := u.signer.BuildSignedUpload(req.Name)
	if err != nil {
		return nil, err
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// The file part must come after every other form field.
	res, err := u.http.R().
		SetContext(ctx).
		SetMultipartFormData(signed.Fields).
		SetMultipartField("file", req.Name, contentType, bytes.NewReader(req.Data)).
		Post(signed.UploadURL)
	if err != nil {
		return nil, upstream.TransportError("storage request failed", err)
	}
	if res.IsError() || res.StatusCode() >= 300 {
		return nil, storageFailure(res)
	}

	size := req.Size
	if size <= 0 {
		size = int64(len(req.Data))
	}
	return &Outcome{
		URL:  u.signer.ObjectURL(signed.Key),
		Name: req.Name,
		Size: size,
		Key:  signed.Key,
	}, nil
}

func storageFailure(res *resty.Response) *apperrors.AppError {
	status := strconv.Itoa(res.StatusCode())

	var body ossError
	if err := xml.Unmarshal(res.Body(), &body); err == nil && body.Code != "" {
		msg := fmt.Sprintf("%s: %s", body.Code, body.Message)
		appErr := apperrors.NewStorageError(msg, nil).WithCode(body.Code)
		appErr.Details = fmt.Sprintf("status %s, request id %s", status, body.RequestID)
		return appErr
	}
	return apperrors.NewStorageError(fmt.Sprintf("upload failed with status %s", status), nil).WithCode(status)
}
