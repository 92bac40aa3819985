package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

var ErrYtDlpFailed = errors.New("yt-dlp failed")

// YtDlp shells out to a local yt-dlp binary, one process per target.
type YtDlp struct {
	binaryPath string
}

// NewYtDlp uses binaryPath, falling back to a yt-dlp found next to the
// working directory and then to PATH.
func NewYtDlp(binaryPath string) *YtDlp {
	if binaryPath != "" {
		return &YtDlp{binaryPath: binaryPath}
	}
	if _, err := os.Stat("yt-dlp.exe"); err == nil {
		return &YtDlp{binaryPath: ".\\yt-dlp.exe"}
	}
	return &YtDlp{binaryPath: "yt-dlp"}
}

func (y *YtDlp) Name() string { return KindYtDlp }

func (y *YtDlp) Download(ctx context.Context, targets []Target, opts Options, hook Hook) error {
	opts = opts.withDefaults()
	log.Debugf("Submitting %d URLs to %s", len(targets), y.binaryPath)
	return runPool(ctx, targets, opts, func(ctx context.Context, t Target) []Event {
		return y.fetch(ctx, t, opts)
	}, hook)
}

func (y *YtDlp) args(t Target, opts Options) []string {
	args := []string{
		"--no-simulate",
		"--dump-json",
		"--no-progress",
		"--no-warnings",
		"--concurrent-fragments", strconv.Itoa(opts.ConcurrentFragments),
		"--remux-video", opts.FinalExt,
		"-o", filepath.Join(opts.Dir, opts.OutputTemplate),
	}
	if opts.Quiet {
		args = append(args, "--quiet")
	}
	return append(args, "--", t.URL)
}

// fetch runs yt-dlp for one target. Every JSON line on stdout is one
// downloaded item; a non-zero exit is reported as a single error event.
func (y *YtDlp) fetch(ctx context.Context, t Target, opts Options) []Event {
	cmd := exec.CommandContext(ctx, y.binaryPath, y.args(t, opts)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.WithField("url", t.URL).Debug("Running yt-dlp")
	if err := cmd.Run(); err != nil {
		msg := lastLine(stderr.String())
		log.WithError(err).WithField("url", t.URL).Debugf("yt-dlp stderr: %s", stderr.String())
		return []Event{{
			Status:   StatusError,
			Target:   t,
			Filename: targetFilename(opts, t.PostID),
			Err:      fmt.Errorf("%w: %v: %s", ErrYtDlpFailed, err, msg),
		}}
	}

	var events []Event
	scanner := bufio.NewScanner(&stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		info, err := decodeInfo(line)
		if err != nil {
			log.WithError(err).WithField("url", t.URL).Warn("Could not decode yt-dlp info record")
			continue
		}
		id, ok := info.ID()
		if !ok {
			id = t.PostID
		}
		events = append(events, Event{
			Status:   StatusFinished,
			Target:   t,
			Filename: targetFilename(opts, id),
			Info:     info,
		})
	}
	if err := scanner.Err(); err != nil {
		events = append(events, Event{Status: StatusError, Target: t, Filename: targetFilename(opts, t.PostID), Err: fmt.Errorf("reading yt-dlp output: %w", err)})
	}
	if len(events) == 0 {
		events = append(events, Event{
			Status:   StatusError,
			Target:   t,
			Filename: targetFilename(opts, t.PostID),
			Err:      fmt.Errorf("%w: no info record produced for %s", ErrYtDlpFailed, t.URL),
		})
	}
	return events
}

// decodeInfo keeps numbers as json.Number so large IDs survive the round trip.
func decodeInfo(data []byte) (InfoRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var info InfoRecord
	if err := dec.Decode(&info); err != nil {
		return nil, err
	}
	return info, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
