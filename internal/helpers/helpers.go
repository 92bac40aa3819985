package helpers

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// CheckAndMakeDir ensures a directory exists, creating it (and parents) when missing.
// Returns false if the path exists as a file or cannot be created.
func CheckAndMakeDir(dir string) bool {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			log.Errorf("Path %s exists but is not a directory", dir)
			return false
		}
		return true
	}
	if !os.IsNotExist(err) {
		log.WithError(err).Errorf("Failed to stat directory %s", dir)
		return false
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		log.WithError(err).Errorf("Failed to create directory %s", dir)
		return false
	}
	log.Debugf("Created directory %s", dir)
	return true
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// SanitizePath cleans a path and drops leading parent-directory segments so a
// relative path cannot climb out of its base. Absolute paths are only cleaned.
func SanitizePath(path string) string {
	cleaned := filepath.Clean(path)
	if filepath.IsAbs(cleaned) {
		return cleaned
	}
	parts := strings.Split(filepath.ToSlash(cleaned), "/")
	for len(parts) > 0 && (parts[0] == ".." || parts[0] == ".") {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return "."
	}
	return filepath.FromSlash(strings.Join(parts, "/"))
}

// BytesToSize renders a byte count with two decimals and a binary unit suffix.
func BytesToSize(bytes uint64) string {
	if bytes == 0 {
		return "0B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.2f%s", value, units[i])
}

var mimeExtensions = map[string]string{
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
	"video/x-matroska": ".mkv",
	"video/mp2t":       ".ts",
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
	"image/webp":       ".webp",
	"image/gif":        ".gif",
}

// GetExtensionFromMimeType maps a Content-Type (parameters allowed) to a file extension.
func GetExtensionFromMimeType(mimeType string) (string, bool) {
	base := strings.TrimSpace(strings.ToLower(strings.SplitN(mimeType, ";", 2)[0]))
	ext, ok := mimeExtensions[base]
	return ext, ok
}

// IsVideoMimeType reports whether a Content-Type describes video content.
func IsVideoMimeType(mimeType string) bool {
	base := strings.TrimSpace(strings.ToLower(strings.SplitN(mimeType, ";", 2)[0]))
	return strings.HasPrefix(base, "video/")
}

// CounterWriter counts bytes written through it.
type CounterWriter struct {
	Writer io.Writer
	Total  uint64
}

func (cw *CounterWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.Total += uint64(n)
	return n, err
}

// HashFileBLAKE3 returns the lowercase hex BLAKE3 digest of a file's content.
func HashFileBLAKE3(path string) (string, error) {
	// #nosec G304
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CheckHash compares a file's BLAKE3 digest with the expected hex value (case-insensitive).
func CheckHash(path string, expected string) bool {
	if expected == "" {
		return false
	}
	actual, err := HashFileBLAKE3(path)
	if err != nil {
		log.WithError(err).Debugf("Hash check failed for %s", path)
		return false
	}
	return strings.EqualFold(actual, expected)
}
