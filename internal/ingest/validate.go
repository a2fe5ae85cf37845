package ingest

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tphakala/trailcam-go/internal/errors"
)

// Upload is one image submitted for ingestion.
type Upload struct {
	Data        []byte `validate:"required,min=1"`
	Filename    string `validate:"omitempty,max=255"`
	ContentType string
}

// Limits bounds what Ingest accepts.
type Limits struct {
	MaxUploadSize     int64
	AllowedTypes      []string
	AllowedExtensions []string // compared without the leading dot, lowercase
}

// uploadValidator checks uploads against Limits.
type uploadValidator struct {
	v      *validator.Validate
	limits Limits
}

func newUploadValidator(limits Limits) *uploadValidator {
	return &uploadValidator{
		v:      validator.New(validator.WithRequiredStructEnabled()),
		limits: limits,
	}
}

// normalize resolves the content type, sniffing the bytes when the client
// sent none or a generic one, and validates the upload.
func (uv *uploadValidator) normalize(u *Upload) error {
	if err := uv.v.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid %s: failed %q check", strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return err
	}

	if uv.limits.MaxUploadSize > 0 && int64(len(u.Data)) > uv.limits.MaxUploadSize {
		return fmt.Errorf("file size %d exceeds limit of %d bytes", len(u.Data), uv.limits.MaxUploadSize)
	}

	u.ContentType = resolveContentType(u.ContentType, u.Data)
	if !strings.HasPrefix(u.ContentType, "image/") {
		return fmt.Errorf("content type %q is not an image", u.ContentType)
	}
	if len(uv.limits.AllowedTypes) > 0 && !slices.Contains(uv.limits.AllowedTypes, u.ContentType) {
		return fmt.Errorf("image type %q not allowed", u.ContentType)
	}

	if u.Filename != "" && len(uv.limits.AllowedExtensions) > 0 {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(u.Filename)), ".")
		if ext != "" && !slices.Contains(uv.limits.AllowedExtensions, ext) {
			return fmt.Errorf("file extension %q not allowed", ext)
		}
	}
	return nil
}

// resolveContentType strips parameters and lowercases; generic or missing
// types are replaced by what the bytes look like.
func resolveContentType(declared string, data []byte) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	if ct == "" || ct == "application/octet-stream" {
		sniffed := http.DetectContentType(data)
		if mt, _, err := mime.ParseMediaType(sniffed); err == nil {
			return mt
		}
		return sniffed
	}
	if ct == "image/jpg" {
		return "image/jpeg"
	}
	return ct
}
