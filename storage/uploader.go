package storage

import (
	"context"
	"fmt"
	"io"
)

const ContentTypeJSON = "application/json"

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader stores match archives in a bucket. Final reports are written
// when a match completes and removed when the match is deleted.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}

// FinalReportKey is the object key of a match's final report.
func FinalReportKey(matchID int) string {
	return fmt.Sprintf("matches/%d/final-report.json", matchID)
}
