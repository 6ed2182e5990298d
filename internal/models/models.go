package models

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultSourceLabel is shown for citations whose metadata names no document.
const DefaultSourceLabel = "Document"

type ChatMessage struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Sources   []SourceCitation `json:"sources,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type SourceCitation struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata SourceMetadata `json:"metadata"`
}

type SourceMetadata struct {
	Source string `json:"source,omitempty"`
}

func (s SourceCitation) Label() string {
	if s.Metadata.Source == "" {
		return DefaultSourceLabel
	}
	return s.Metadata.Source
}

// MatchPercent is the score as a whole percentage, clamped to [0,100].
func (s SourceCitation) MatchPercent() int {
	p := math.Round(s.Score * 100)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(p)
}

type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
)

// Known reports whether the backend status is one this client recognizes.
// Unknown values are still carried through untouched.
func (s FileStatus) Known() bool {
	switch s {
	case FileStatusPending, FileStatusProcessing, FileStatusCompleted:
		return true
	}
	return false
}

type UploadedFile struct {
	ID        string     `json:"id"`
	Filename  string     `json:"filename"`
	FileSize  int64      `json:"file_size"`
	CreatedAt time.Time  `json:"created_at"`
	Status    FileStatus `json:"status"`
}

// UnmarshalJSON reads the backend listing shape: the id arrives as "_id",
// with "id" accepted as a fallback, and created_at may lack a zone.
func (f *UploadedFile) UnmarshalJSON(data []byte) error {
	var raw struct {
		MongoID   string     `json:"_id"`
		ID        string     `json:"id"`
		Filename  string     `json:"filename"`
		FileSize  int64      `json:"file_size"`
		CreatedAt string     `json:"created_at"`
		Status    FileStatus `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.ID = raw.MongoID
	if f.ID == "" {
		f.ID = raw.ID
	}
	f.Filename = raw.Filename
	f.FileSize = raw.FileSize
	f.CreatedAt = ParseTimestamp(raw.CreatedAt)
	f.Status = raw.Status
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and zone-less ISO 8601 values. Zone-less
// values are taken as UTC. Anything unparseable yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SizeKB formats the size the way the knowledge base listing shows it.
func (f UploadedFile) SizeKB() string {
	return fmt.Sprintf("%.1f KB", float64(f.FileSize)/1024)
}

// FileUpload is a file handed to the upload orchestrator. Its type is not
// inspected here; the backend decides what it accepts.
type FileUpload struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}
