// Package core provides the execution model types for pageflow: locators,
// records, results, the driver boundary and the error taxonomy.
package core

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Attachment represents a diagnostic artifact captured for a record
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot, page_source
	ContentType string `json:"contentType"` // MIME type: image/png, text/html
	Path        string `json:"path"`        // File path relative to output directory
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentPageSource = "page_source"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeHTML = "text/html"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// ArtifactTimeLayout is the timestamp part of artifact file names.
const ArtifactTimeLayout = "20060102_150405"

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(recordID string, at time.Time, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        ArtifactName(recordID, at, "png"),
		Body:        data,
	}
}

// NewPageSourceAttachment creates a page source attachment
func NewPageSourceAttachment(recordID string, at time.Time, html string) Attachment {
	return Attachment{
		Name:        AttachmentPageSource,
		ContentType: ContentTypeHTML,
		Path:        ArtifactName(recordID, at, "html"),
		Body:        []byte(html),
	}
}

// ArtifactName returns {record_id}_{YYYYMMDD_HHMMSS}.{ext}
func ArtifactName(recordID string, at time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", recordID, at.Format(ArtifactTimeLayout), strings.TrimPrefix(ext, "."))
}

// RecordID builds the per-run unique record identifier from the session
// sequence number and the case id.
func RecordID(seq int64, caseID string) string {
	return fmt.Sprintf("%04d_%s", seq, Slug(caseID))
}

// Slug reduces s to [a-z0-9_-] so it is safe in file names.
func Slug(s string) string {
	var b strings.Builder
	lastSep := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-':
			b.WriteRune(r)
			lastSep = false
		default:
			if !lastSep && b.Len() > 0 {
				b.WriteByte('_')
				lastSep = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return "record"
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}

// ArtifactConfig controls when and what artifacts are captured
type ArtifactConfig struct {
	// When to capture
	CaptureOnFailure bool `yaml:"captureOnFailure" json:"captureOnFailure"` // Default: true
	CaptureOnSuccess bool `yaml:"captureOnSuccess" json:"captureOnSuccess"` // Default: false

	// What to capture
	Screenshot bool `yaml:"screenshot" json:"screenshot"` // Default: true
	PageSource bool `yaml:"pageSource" json:"pageSource"` // Default: true
}

// DefaultArtifactConfig returns the defaults for artifact capture
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		CaptureOnFailure: true,
		CaptureOnSuccess: false,
		Screenshot:       true,
		PageSource:       true,
	}
}

// ShouldCapture returns true if artifacts should be captured for the given status
func (c ArtifactConfig) ShouldCapture(status Status) bool {
	switch status {
	case StatusFailed, StatusErrored:
		return c.CaptureOnFailure
	case StatusPassed:
		return c.CaptureOnSuccess
	default:
		return false
	}
}
