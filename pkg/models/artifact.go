package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// FileCategory tags an archived artifact by its role in an analysis.
type FileCategory string

const (
	CategoryMarketData       FileCategory = "market data"
	CategoryPersonalStrategy FileCategory = "personal strategy"
	CategoryNews             FileCategory = "news & articles"
	CategoryReports          FileCategory = "analysis reports"
	CategoryChartImage       FileCategory = "chart image"
	CategoryOther            FileCategory = "other"
)

// FileCategories lists every category in display order.
var FileCategories = []FileCategory{
	CategoryMarketData,
	CategoryPersonalStrategy,
	CategoryNews,
	CategoryReports,
	CategoryChartImage,
	CategoryOther,
}

// ParseFileCategory maps free text onto a known category, or returns false.
func ParseFileCategory(s string) (FileCategory, bool) {
	s = strings.ToLower(strings.TrimSpace(strings.Trim(s, `"`)))
	for _, c := range FileCategories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Artifact is one uploaded file archived under a symbol.
type Artifact struct {
	ID          int64        `json:"id,omitempty"`
	Name        string       `json:"name"`
	MimeType    string       `json:"mimeType"`
	SizeBytes   int64        `json:"sizeBytes"`
	Content     string       `json:"content"` // raw text, or base64 for binary files
	ContentHash string       `json:"contentHash"`
	Category    FileCategory `json:"category"`
	Symbol      string       `json:"symbol"`
	UploadedAt  time.Time    `json:"uploadedAt"`
}

func (a Artifact) GetID() int64    { return a.ID }
func (a *Artifact) SetID(id int64) { a.ID = id }

// IsImage reports whether the artifact is an image attachment.
func (a Artifact) IsImage() bool {
	return strings.HasPrefix(a.MimeType, "image/")
}

// HashContent is the hex SHA-256 of stored artifact content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
