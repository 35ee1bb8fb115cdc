package service

import (
	"context"
	"mime/multipart"

	"notekeep/internal/contract"
	"notekeep/internal/infrastructure/aws/storage"
	"notekeep/internal/utils/apierror"
	"notekeep/internal/utils/uid"

	"github.com/labstack/gommon/log"
)

// DefaultFileService handles the standalone upload path. Inline images are
// uploaded here first and then referenced from note content by URL; standalone
// blobs carry no note ownership and live under the "files/" key namespace.
type DefaultFileService struct {
	S3 storage.S3Client
}

func NewFileService(s3 storage.S3Client) *DefaultFileService {
	return &DefaultFileService{S3: s3}
}

func (f *DefaultFileService) Upload(ctx context.Context, fileHeader *multipart.FileHeader) (*contract.UploadResponse, apierror.ErrorResponse) {
	if apierr := checkUploadFile(fileHeader); apierr != nil {
		return nil, apierr
	}

	data, apierr := readUploadFile(fileHeader)
	if apierr != nil {
		return nil, apierr
	}

	id := uid.Generate()
	contentType := uploadContentType(fileHeader, data)
	if err := f.S3.Upload(ctx, storage.UploadKey(id), data, contentType); err != nil {
		log.Errorf("failed to store standalone upload: %v", err)
		return nil, apierror.InternalServerError
	}

	return &contract.UploadResponse{
		ID:       id,
		URL:      uploadPath(id),
		Size:     fileHeader.Size,
		MimeType: contentType,
	}, nil
}

func (f *DefaultFileService) Get(ctx context.Context, id int64) (*storage.Object, apierror.ErrorResponse) {
	obj, err := f.S3.Download(ctx, storage.UploadKey(id))
	if err != nil {
		log.Errorf("failed to download standalone upload %d: %v", id, err)
		return nil, apierror.InternalServerError
	}
	if obj == nil {
		return nil, apierror.NotFoundError
	}
	return obj, nil
}
