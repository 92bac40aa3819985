package pipeline

import (
	"strings"

	"go-tweet-video-download/internal/engine"
	"go-tweet-video-download/internal/helpers"
	"go-tweet-video-download/internal/models"
	"go-tweet-video-download/internal/paths"

	log "github.com/sirupsen/logrus"
)

// Selection is the outcome of filtering one page of posts.
type Selection struct {
	Targets       []engine.Target
	Skipped       []string // post IDs already on disk
	Unextractable []string // post IDs with no usable URL
}

// TrailingToken returns the last whitespace-delimited token of text. The
// platform appends the media link to the post body, so this is the video URL
// as long as that holds. Nothing checks that the token is a URL.
func TrailingToken(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	return fields[len(fields)-1], true
}

// BestVideoVariant picks the highest-bitrate mp4 variant among the post's
// attached videos.
func BestVideoVariant(post models.Post, media map[string]models.Media) (string, bool) {
	best, bestRate, found := "", -1, false
	for _, key := range post.Attachments.MediaKeys {
		m, ok := media[key]
		if !ok || (m.Type != "video" && m.Type != "animated_gif") {
			continue
		}
		for _, v := range m.Variants {
			if v.ContentType != "video/mp4" || v.URL == "" {
				continue
			}
			if v.BitRate > bestRate {
				best, bestRate, found = v.URL, v.BitRate, true
			}
		}
	}
	return best, found
}

// ExtractURL applies strategy to post. The media strategy falls back to the
// trailing token when the post exposes no video variants.
func ExtractURL(strategy string, post models.Post, media map[string]models.Media) (string, bool) {
	if strategy == models.URLStrategyMedia {
		if u, ok := BestVideoVariant(post, media); ok {
			return u, true
		}
		log.Debugf("No video variants exposed for tweet %s, falling back to trailing token", post.ID)
	}
	return TrailingToken(post.Text)
}

// AlreadyDownloaded reports whether both halves of a completed download
// exist: the video where opts would place it and <dir>/<id>.json.
func AlreadyDownloaded(opts engine.Options, tweetID string) bool {
	return helpers.FileExists(engine.VideoPath(opts, tweetID)) &&
		helpers.FileExists(paths.SidecarPath(opts.Dir, tweetID))
}

// SelectTargets filters page against opts.Dir, preserving API order. URLs are not
// deduplicated; only completed posts are dropped.
func SelectTargets(opts engine.Options, page models.Page, strategy string) Selection {
	var sel Selection
	dir := opts.Dir
	media := page.MediaByKey()

	for _, post := range page.Data {
		if AlreadyDownloaded(opts, post.ID) {
			log.Infof("Already have data for tweet ID %s in target download path %s. Skipping.", post.ID, dir)
			sel.Skipped = append(sel.Skipped, post.ID)
			continue
		}

		url, ok := ExtractURL(strategy, post, media)
		if !ok {
			log.Warnf("Tweet %s has no text to extract a video URL from. Skipping.", post.ID)
			sel.Unextractable = append(sel.Unextractable, post.ID)
			continue
		}
		sel.Targets = append(sel.Targets, engine.Target{URL: url, PostID: post.ID, Text: post.Text})
	}
	return sel
}

// URLs lists the selected target URLs in submission order.
func (s Selection) URLs() []string {
	urls := make([]string, 0, len(s.Targets))
	for _, t := range s.Targets {
		urls = append(urls, t.URL)
	}
	return urls
}
