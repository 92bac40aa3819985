package paths

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultOutputTemplate names each download after the engine-resolved ID.
const DefaultOutputTemplate = "%(id)s.%(ext)s"

// MissingValue replaces fields absent from the data map, mirroring yt-dlp's own placeholder.
const MissingValue = "NA"

// Fields a template may reference.
var allowedFields = map[string]struct{}{
	"id":          {},
	"ext":         {},
	"uploader_id": {},
	"upload_date": {},
	"tag":         {},
}

// Matches %(name)s and %(name)d
var fieldRegex = regexp.MustCompile(`%\(([^)]+)\)[sd]`)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// RenderTemplate substitutes yt-dlp style placeholders with sanitized values
// and returns a cleaned relative path.
func RenderTemplate(template string, data map[string]string) (string, error) {
	var renderErr error
	rendered := fieldRegex.ReplaceAllStringFunc(template, func(placeholder string) string {
		name := fieldRegex.FindStringSubmatch(placeholder)[1]
		if _, ok := allowedFields[name]; !ok {
			if renderErr == nil {
				renderErr = fmt.Errorf("unknown field in output template: %s", placeholder)
			}
			return ""
		}
		value := sanitizeSegment(data[name])
		if value == "" {
			return MissingValue
		}
		return value
	})
	if renderErr != nil {
		return "", renderErr
	}

	cleaned := filepath.Clean(rendered)
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("output template resulted in an empty path: '%s'", template)
	}
	cleaned = strings.TrimPrefix(cleaned, string(filepath.Separator))

	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("rendered path contains invalid sequence '..': %s", cleaned)
	}
	return cleaned, nil
}

// sanitizeSegment keeps a value usable as a single path segment.
func sanitizeSegment(value string) string {
	value = strings.TrimSpace(value)
	value = unsafeChars.ReplaceAllString(value, "_")
	return strings.Trim(value, "._")
}

// TemplateFields lists the field names a template references, in order.
func TemplateFields(template string) []string {
	var names []string
	for _, m := range fieldRegex.FindAllStringSubmatch(template, -1) {
		names = append(names, m[1])
	}
	return names
}

// OutputPath renders template for id and ext beneath dir.
func OutputPath(dir, template, id, ext string) (string, error) {
	rel, err := RenderTemplate(template, map[string]string{"id": id, "ext": ext})
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, rel), nil
}

// Prefix is the extension-less path every artifact of a tweet shares.
func Prefix(dir, tweetID string) string {
	return filepath.Join(dir, tweetID)
}

// VideoPath is where the downloaded video for tweetID lives.
func VideoPath(dir, tweetID, ext string) string {
	return Prefix(dir, tweetID) + "." + strings.TrimPrefix(ext, ".")
}

// SidecarPath is where the metadata sidecar for tweetID lives.
func SidecarPath(dir, tweetID string) string {
	return Prefix(dir, tweetID) + ".json"
}
