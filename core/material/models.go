package material

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/studyhub/core"
)

// Kinds
const (
	KindNote = "note"
	KindLink = "link"
	KindFile = "file"
)

// Material is a note, link or file shared in a group.
type Material struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	FilePath  string    `json:"file_path"`
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m Material) IsFile() bool {
	return m.Kind == KindFile
}

type NewMaterial struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"omitempty,max=100000"`
	Kind    string `json:"kind" validate:"required,oneof=note link"`
	URL     string `json:"url" validate:"omitempty,url"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Content = core.CleanString(nm.Content)
	nm.Kind = core.CleanString(nm.Kind)
	nm.URL = core.CleanString(nm.URL)
	if err := validate.Struct(nm); err != nil {
		return err
	}
	if nm.Kind == KindLink && nm.URL == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "url", Error: "url is required for links"})
	}
	return nil
}

// Upload describes a file to store. Size is the announced size in bytes.
type Upload struct {
	Title       string
	FileName    string
	Size        int64
	ContentType string
	Body        io.Reader
}
