package api

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"go-tweet-video-download/internal/helpers"

	log "github.com/sirupsen/logrus"
)

var bearerHeader = regexp.MustCompile(`(?im)^(Authorization:\s*Bearer\s+)\S+`)

// LoggingTransport wraps an http.RoundTripper and appends every exchange to a log file.
// Bearer tokens are masked before anything is written.
type LoggingTransport struct {
	Transport http.RoundTripper
	logFile   *os.File
	writer    *bufio.Writer
	mu        sync.Mutex
}

// NewLoggingTransport opens logFilePath for appending.
func NewLoggingTransport(transport http.RoundTripper, logFilePath string) (*LoggingTransport, error) {
	safeLogFilePath := helpers.SanitizePath(logFilePath)
	// #nosec G304
	f, err := os.OpenFile(safeLogFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open API log file %s: %w", safeLogFilePath, err)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	log.Debugf("API requests will be logged to %s", safeLogFilePath)
	return &LoggingTransport{
		Transport: transport,
		logFile:   f,
		writer:    bufio.NewWriter(f),
	}, nil
}

// RoundTrip executes a single HTTP transaction, logging details.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	startTime := time.Now()

	if reqDump, err := httputil.DumpRequestOut(req, false); err != nil {
		log.WithError(err).Error("[LogTransport] Failed to dump API request for logging")
	} else {
		t.write(fmt.Sprintf("--- Request (%s) ---\n%s", startTime.Format(time.RFC3339), maskBearer(reqDump)))
	}

	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(startTime)

	if err != nil {
		t.write(fmt.Sprintf("--- Response Error (%s, Duration: %v) ---\n%s", time.Now().Format(time.RFC3339), duration, err.Error()))
		return resp, err
	}

	contentType := resp.Header.Get("Content-Type")
	header, _ := httputil.DumpResponse(resp, false)
	if !strings.HasPrefix(contentType, "application/json") {
		t.write(fmt.Sprintf("--- Response (%s, Duration: %v, Type: %s) ---\n%s(Body not logged)", time.Now().Format(time.RFC3339), duration, contentType, header))
		return resp, nil
	}

	bodyBytes, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	if readErr != nil {
		log.WithError(readErr).Error("[LogTransport] Failed to read response body for logging")
		t.write(fmt.Sprintf("--- Response (%s, Duration: %v) ---\n%s(Body read failed)", time.Now().Format(time.RFC3339), duration, header))
		return resp, nil
	}
	t.write(fmt.Sprintf("--- Response (%s, Duration: %v) ---\n%s\n%s", time.Now().Format(time.RFC3339), duration, header, bodyBytes))
	return resp, nil
}

func (t *LoggingTransport) write(entry string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.writer.WriteString(entry + "\n\n"); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to API log file: %v\n", err)
		return
	}
	if err := t.writer.Flush(); err != nil {
		log.WithError(err).Error("[LogTransport] Failed to flush log writer")
	}
}

// Close flushes and closes the log file.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	errFlush := t.writer.Flush()
	errClose := t.logFile.Close()
	if errFlush != nil {
		return fmt.Errorf("failed to flush API log buffer: %w", errFlush)
	}
	return errClose
}

func maskBearer(dump []byte) string {
	return bearerHeader.ReplaceAllString(string(dump), "${1}****")
}
