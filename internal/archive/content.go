package archive

import (
	"encoding/base64"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"

	"github.com/seenimoa/tradelens/pkg/models"
)

var strictHTML = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// detectMIME returns the declared mime type, or a sniffed one when the
// declared type is missing or generic. Parameters are dropped.
func detectMIME(declared string, data []byte) string {
	mt := strings.TrimSpace(declared)
	if mt == "" || mt == "application/octet-stream" {
		mt = mimetype.Detect(data).String()
	}
	mt, _, _ = strings.Cut(mt, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// isText reports whether content of mime type mt is kept as raw text.
func isText(mt string) bool {
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	switch mt {
	case "application/json", "application/xml", "application/csv", "application/javascript",
		"application/x-ndjson", "application/x-yaml", "application/yaml":
		return true
	}
	return false
}

func isHTML(mt, name string) bool {
	if mt == "text/html" || mt == "application/xhtml+xml" {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}

// readContent converts raw bytes into the stored content string: text is
// kept as-is, HTML is reduced to readable text, anything else is base64.
func readContent(name, mt string, data []byte) (string, error) {
	switch {
	case isHTML(mt, name):
		return htmlToText(string(data))
	case isText(mt):
		return string(data), nil
	default:
		return base64.StdEncoding.EncodeToString(data), nil
	}
}

// htmlToText strips every tag and collapses whitespace.
func htmlToText(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(strictHTML.Sanitize(raw)))
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

func hashContent(content string) string { return models.HashContent(content) }
