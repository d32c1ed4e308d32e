package uploader

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sakhistudio/gallery-service/internal/model"
)

// StagedImage is an upload candidate with editable metadata. Title defaults
// to the filename minus its extension and category to the first enum value;
// both may be edited before submit.
type StagedImage struct {
	Filename    string
	Data        []byte
	ContentType string
	Title       string
	Category    model.Category
	Description string
	RawTags     string
}

// RejectionError explains why a file was refused at staging time, before it
// could ever join a batch.
type RejectionError struct {
	Filename string
	Reason   string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Filename, e.Reason)
}

// Stager validates files against the size ceiling and accepted image types.
type Stager struct {
	MaxFileSize  int64
	AllowedTypes []string
}

// Stage sniffs the content type and builds a staged item, or rejects the
// file with a per-file reason. Rejected files never reach a batch.
func (s *Stager) Stage(filename string, data []byte) (*StagedImage, error) {
	if int64(len(data)) > s.MaxFileSize {
		return nil, &RejectionError{
			Filename: filename,
			Reason:   fmt.Sprintf("exceeds %d byte limit", s.MaxFileSize),
		}
	}
	if len(data) == 0 {
		return nil, &RejectionError{Filename: filename, Reason: "empty file"}
	}
	sniff := data
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	contentType := http.DetectContentType(sniff)
	if !s.allowed(contentType) {
		return nil, &RejectionError{
			Filename: filename,
			Reason:   fmt.Sprintf("type %s not allowed", contentType),
		}
	}
	return &StagedImage{
		Filename:    filename,
		Data:        data,
		ContentType: contentType,
		Title:       strings.TrimSuffix(filename, filepath.Ext(filename)),
		Category:    model.Categories()[0],
	}, nil
}

func (s *Stager) allowed(contentType string) bool {
	for _, t := range s.AllowedTypes {
		if t == contentType {
			return true
		}
	}
	return false
}
