package httpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	"github.com/fairyhunter13/ai-mock-interview/pkg/textx"
)

var (
	resumeExts = []string{".txt", ".pdf", ".docx"}
	audioExts  = []string{".webm", ".wav", ".mp3", ".mpeg", ".mpga", ".ogg", ".oga", ".m4a", ".mp4", ".flac"}

	resumeMIMEs = []string{
		"text/plain",
		"application/pdf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
	audioMIMEs = []string{
		"audio/webm", "video/webm",
		"audio/wav", "audio/x-wav",
		"audio/mpeg",
		"audio/ogg", "application/ogg",
		"audio/mp4", "audio/x-m4a", "video/mp4",
		"audio/flac",
	}
)

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// parseMultipart caps the body at maxBytes and parses the form.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// readFormFile reads the named part, enforcing the extension allowlist and
// sniffing the content. It returns nil data when the part is absent.
func readFormFile(r *http.Request, field string, exts, mimes []string) ([]byte, *multipart.FileHeader, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidArgument, field, err)
	}
	defer func() { _ = f.Close() }()

	if !hasExt(hdr.Filename, exts) {
		return nil, nil, fmt.Errorf("%w: %s extension of %q", errUnsupportedMedia, field, hdr.Filename)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s read: %v", domain.ErrInvalidArgument, field, err)
	}
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: %s is empty", domain.ErrInvalidArgument, field)
	}
	if mt := mimetype.Detect(data); !mimeAllowed(mt, mimes) {
		return nil, nil, fmt.Errorf("%w: %s content is %s", errUnsupportedMedia, field, mt.String())
	}
	return data, hdr, nil
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// mimeAllowed walks the detected type and its parents, so text/plain covers
// every text/* subtype mimetype may report for a plain resume.
func mimeAllowed(mt *mimetype.MIME, allowed []string) bool {
	for m := mt; m != nil; m = m.Parent() {
		for _, a := range allowed {
			if m.Is(a) {
				return true
			}
		}
	}
	return false
}

// extractResume turns an uploaded resume into text. PDF and DOCX go through
// the extractor via a temp file; text is sanitized directly.
func extractResume(ctx context.Context, extractor domain.TextExtractor, hdr *multipart.FileHeader, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(hdr.Filename))
	if ext == ".txt" {
		return textx.SanitizeText(string(data)), nil
	}
	if extractor == nil {
		return "", fmt.Errorf("%w: %s resumes need a text extractor", domain.ErrInvalidArgument, strings.TrimPrefix(ext, "."))
	}
	tmp, err := os.CreateTemp("", "resume-*"+ext)
	if err != nil {
		return "", err
	}
	defer func() { _ = tmp.Close(); _ = os.Remove(tmp.Name()) }()
	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	text, err := extractor.ExtractPath(ctx, hdr.Filename, tmp.Name())
	if err != nil {
		return "", fmt.Errorf("%w: resume extraction failed: %v", domain.ErrInvalidArgument, err)
	}
	return text, nil
}
