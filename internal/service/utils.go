package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"

	"notekeep/internal/contract"
	"notekeep/internal/domain/entity"
	"notekeep/internal/domain/scanner"
	"notekeep/internal/utils"
	"notekeep/internal/utils/apierror"

	"github.com/labstack/gommon/log"
)

// Private-resource URL shapes the share layer recognizes and rewrites.
var (
	attachmentPathRegex = regexp.MustCompile(`/api/notes/(\d+)/files/(\d+)`)
	uploadPathRegex     = regexp.MustCompile(`/api/files/(\d+)`)
)

func attachmentPath(noteID, attachmentID int64) string {
	return fmt.Sprintf("/api/notes/%d/files/%d", noteID, attachmentID)
}

func uploadPath(id int64) string {
	return fmt.Sprintf("/api/files/%d", id)
}

func toNoteResponse(note *entity.Note) *contract.NoteResponse {
	attachments := make([]*contract.AttachmentResponse, len(note.Attachments))
	for i, att := range note.Attachments {
		resp := &contract.AttachmentResponse{
			Type:       att.Type,
			ID:         att.ID,
			Name:       att.Name,
			Size:       att.Size,
			MimeType:   att.MimeType,
			ExternalID: att.ExternalID,
		}
		if att.Type == entity.AttachmentTypeFile {
			resp.URL = attachmentPath(note.ID, att.ID)
		}
		attachments[i] = resp
	}

	return &contract.NoteResponse{
		ID:           note.ID,
		Content:      note.Content,
		Attachments:  attachments,
		InlineImages: note.InlineImages,
		InlineVideos: note.InlineVideos,
		Tags:         scanner.ExtractTags(note.Content),
		Visibility:   note.Visibility,
		IsPinned:     note.IsPinned,
		IsFavorited:  note.IsFavorited,
		IsArchived:   note.IsArchived,
		OwnerID:      note.OwnerID,
		CreatedAt:    utils.FormatEpoch(note.CreatedAt),
		UpdatedAt:    utils.FormatEpoch(note.UpdatedAt),
	}
}

// isImageFile reports whether the upload declares an image MIME type. Image
// files ride the standalone-image path and appear inline; they are never
// treated as note attachments.
func isImageFile(fileHeader *multipart.FileHeader) bool {
	return strings.HasPrefix(fileHeader.Header.Get("Content-Type"), "image/")
}

func checkUploadFile(fileHeader *multipart.FileHeader) apierror.ErrorResponse {
	if fileHeader.Size > contract.MaxUploadSizeBytes {
		return apierror.NewPayloadTooLargeError(contract.MaxUploadSizeBytes)
	}

	if strings.TrimSpace(fileHeader.Filename) == "" {
		return apierror.MissingFileError
	}

	if ext, ok := utils.CheckFileExt(fileHeader.Filename, contract.ValidUploadFileTypes); !ok {
		return apierror.NewInvalidFileExtError(ext)
	}
	return nil
}

func readUploadFile(fileHeader *multipart.FileHeader) ([]byte, apierror.ErrorResponse) {
	file, err := fileHeader.Open()
	if err != nil {
		log.Errorf("failed to open file: %v", err)
		return nil, apierror.InternalServerError
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		log.Errorf("failed to read file: %v", err)
		return nil, apierror.InternalServerError
	}
	return bytes, nil
}

func uploadContentType(fileHeader *multipart.FileHeader, data []byte) string {
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return contentType
}
