package contract

const MaxUploadSizeBytes = 30 * 1024 * 1024

var ValidUploadFileTypes = []string{"pdf", "png", "jpg", "jpeg", "jfif", "webp", "gif", "mp4", "mp3", "txt", "md", "zip"}

type AttachmentResponse struct {
	Type       string `json:"type"`
	ID         int64  `json:"id,omitempty"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	MimeType   string `json:"mime_type,omitempty"`
	URL        string `json:"url,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

type NoteResponse struct {
	ID           int64                 `json:"id"`
	Content      string                `json:"content"`
	Attachments  []*AttachmentResponse `json:"attachments"`
	InlineImages []string              `json:"inline_images"`
	InlineVideos []string              `json:"inline_videos"`
	Tags         []string              `json:"tags"`
	Visibility   string                `json:"visibility"`
	IsPinned     bool                  `json:"is_pinned"`
	IsFavorited  bool                  `json:"is_favorited"`
	IsArchived   bool                  `json:"is_archived"`
	OwnerID      int64                 `json:"owner_id"`
	CreatedAt    string                `json:"created_at"`
	UpdatedAt    string                `json:"updated_at"`
}

type ListNotesResponse struct {
	Notes   []*NoteResponse `json:"notes"`
	HasMore bool            `json:"has_more"`
}

type CreateNoteRequest struct {
	Content    string `json:"content" validate:"max=1000000"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=PRIVATE USERS PUBLIC"`
}

// UpdateNoteRequest fields are independent and all optional. UpdateTimestamp
// defaults to true; pass false to keep the note's updated-at untouched.
type UpdateNoteRequest struct {
	Content         *string `json:"content" validate:"omitempty,max=1000000"`
	Visibility      *string `json:"visibility" validate:"omitempty,oneof=PRIVATE USERS PUBLIC"`
	IsPinned        *bool   `json:"is_pinned"`
	IsFavorited     *bool   `json:"is_favorited"`
	IsArchived      *bool   `json:"is_archived"`
	UpdateTimestamp *bool   `json:"update_timestamp"`
	DeleteFileIDs   []int64 `json:"delete_file_ids" validate:"omitempty,nodupes"`
}

type MergeNotesRequest struct {
	SourceID     int64 `json:"source_id" validate:"required"`
	TargetID     int64 `json:"target_id" validate:"required"`
	AddSeparator bool  `json:"add_separator"`
}

// DeletedResponse is the sentinel returned when an update emptied the note
// and it was cascade-deleted instead of saved.
type DeletedResponse struct {
	Deleted bool `json:"deleted"`
}

type UploadResponse struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}
