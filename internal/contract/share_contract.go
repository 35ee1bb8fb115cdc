package contract

// DefaultShareTTLSeconds is applied when a share request carries no explicit
// expiration. A TTL of zero stores the share without an expiry.
const DefaultShareTTLSeconds = 3600

type ShareNoteRequest struct {
	PublicID      string `json:"public_id" validate:"omitempty,uuid4"`
	ExpirationTTL *int64 `json:"expiration_ttl" validate:"omitempty,min=0,max=31536000"`
}

type ShareNoteResponse struct {
	PublicID   string `json:"public_id"`
	DisplayURL string `json:"display_url"`
	RawURL     string `json:"raw_url"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type FileShareResponse struct {
	URL string `json:"url"`
}

type PublicAttachmentResponse struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mime_type,omitempty"`
	PublicURL string `json:"public_url"`
}

// PublicNoteResponse is the sanitized shape served to unauthenticated
// readers: no note id, no owner, no inline media lists.
type PublicNoteResponse struct {
	Content     string                      `json:"content"`
	Attachments []*PublicAttachmentResponse `json:"attachments"`
	CreatedAt   string                      `json:"created_at"`
	UpdatedAt   string                      `json:"updated_at"`
}
