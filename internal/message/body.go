package message

import (
	"encoding/base64"
	"regexp"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

const (
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
	mimeMultipart = "multipart/"
)

var (
	htmlTag    = regexp.MustCompile(`<[^>]+>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// ExtractBody returns the plain-text body of a payload tree.
//
// At each multipart level a text/plain child with data wins immediately.
// A text/html child is kept as a fallback (tags stripped, whitespace
// collapsed) while the remaining siblings are scanned. A nested multipart
// child that yields text ends the scan at that level. A payload without
// children is used directly when it is a plain or HTML leaf. An empty
// string means no text-bearing leaf was found.
func ExtractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if len(payload.Parts) > 0 {
		return extractFromParts(payload.Parts)
	}
	return leafText(payload)
}

func extractFromParts(parts []*gmail.MessagePart) string {
	var htmlCandidate string

	for _, part := range parts {
		if part == nil {
			continue
		}
		mimeType := strings.ToLower(part.MimeType)

		switch {
		case mimeType == mimeTextPlain && hasData(part):
			return decodeData(part.Body.Data)

		case mimeType == mimeTextHTML && hasData(part):
			if htmlCandidate == "" {
				htmlCandidate = stripHTML(decodeData(part.Body.Data))
			}

		case strings.HasPrefix(mimeType, mimeMultipart) && len(part.Parts) > 0:
			if nested := extractFromParts(part.Parts); nested != "" {
				return nested
			}
		}
	}

	return htmlCandidate
}

func leafText(part *gmail.MessagePart) string {
	if !hasData(part) {
		return ""
	}
	switch strings.ToLower(part.MimeType) {
	case mimeTextPlain:
		return decodeData(part.Body.Data)
	case mimeTextHTML:
		return stripHTML(decodeData(part.Body.Data))
	}
	return ""
}

func hasData(part *gmail.MessagePart) bool {
	return part.Body != nil && part.Body.Data != ""
}

// decodeData decodes Gmail's URL-safe base64, padded or not. Invalid UTF-8
// sequences are dropped rather than failing the whole body.
func decodeData(data string) string {
	b, err := decodeBase64URL(data)
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(string(b), "")
}

func decodeBase64URL(data string) ([]byte, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(data), "=")
	b, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		// Some producers emit the standard alphabet.
		return base64.RawStdEncoding.DecodeString(trimmed)
	}
	return b, nil
}

func stripHTML(html string) string {
	text := htmlTag.ReplaceAllString(html, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
