// Package media classifies submitted URLs into a [models.MediaSource].
//
// Classification is pure and deterministic: no network access, first match
// wins. Extension and path signals are checked before domain tables because
// they are unambiguous — a direct .mp3 link on youtube.com is still audio.
package media

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/desertthunder/scribe/internal/models"
	"github.com/desertthunder/scribe/internal/shared"
)

// AudioExtensions is the set of file extensions treated as playable audio,
// shared with the podcast resolver.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".flac": true,
	".m4b":  true,
}

// podcastHosts maps known podcast hosting domains to their display names.
// Matching is exact or by subdomain.
var podcastHosts = []struct {
	host        string
	displayName string
}{
	{"podcasts.apple.com", "Apple Podcasts"},
	{"open.spotify.com", "Spotify"},
	{"anchor.fm", "Anchor"},
	{"castbox.fm", "Castbox"},
	{"podbean.com", "Podbean"},
}

// Classify resolves the media source for a raw URL.
//
// Returns [shared.ErrInvalidInput] when the URL is empty or unparsable.
func Classify(rawURL string) (models.MediaSource, error) {
	if rawURL == "" {
		return models.MediaSource{}, fmt.Errorf("%w: URL不能为空", shared.ErrInvalidInput)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return models.MediaSource{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	hostname := strings.ToLower(parsed.Hostname())
	lowerPath := strings.ToLower(parsed.Path)
	suffix := strings.ToLower(path.Ext(lowerPath))

	if AudioExtensions[suffix] {
		return models.MediaSource{
			URL:         rawURL,
			Provider:    hostOr(hostname, "audio"),
			ContentType: models.ContentPodcast,
			DisplayName: "播客音频",
		}, nil
	}

	if suffix == ".rss" || suffix == ".xml" ||
		strings.Contains(lowerPath, "rss") || strings.Contains(lowerPath, "feed") {
		return models.MediaSource{
			URL:         rawURL,
			Provider:    hostOr(hostname, "rss"),
			ContentType: models.ContentPodcast,
			DisplayName: "播客RSS",
		}, nil
	}

	if strings.Contains(hostname, "xiaoyuzhoufm.com") && strings.Contains(lowerPath, "/episode/") {
		return models.MediaSource{
			URL:         rawURL,
			Provider:    "xiaoyuzhou",
			ContentType: models.ContentPodcast,
			DisplayName: "小宇宙播客",
		}, nil
	}

	for _, entry := range podcastHosts {
		if hostname == entry.host || strings.HasSuffix(hostname, "."+entry.host) {
			return models.MediaSource{
				URL:         rawURL,
				Provider:    entry.host,
				ContentType: models.ContentPodcast,
				DisplayName: entry.displayName,
			}, nil
		}
	}

	if strings.HasSuffix(hostname, "youtube.com") || hostname == "youtu.be" {
		return models.MediaSource{
			URL:         rawURL,
			Provider:    "youtube",
			ContentType: models.ContentVideo,
			DisplayName: "YouTube",
		}, nil
	}

	if strings.Contains(hostname, "bilibili.com") {
		return models.MediaSource{
			URL:         rawURL,
			Provider:    "bilibili",
			ContentType: models.ContentVideo,
			DisplayName: "Bilibili",
		}, nil
	}

	return models.MediaSource{
		URL:         rawURL,
		Provider:    hostOr(hostname, "generic"),
		ContentType: models.ContentVideo,
		DisplayName: "视频",
	}, nil
}

// AudioOrFeedShaped reports whether the URL itself announces audio or feed
// content through its path: an audio or .rss/.xml extension, or a path
// containing "rss"/"feed". A podcast resolution failure is fatal only for
// such URLs; anything else falls back to direct acquisition.
func AudioOrFeedShaped(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	lowerPath := strings.ToLower(parsed.Path)
	suffix := strings.ToLower(path.Ext(lowerPath))
	return AudioExtensions[suffix] ||
		suffix == ".rss" || suffix == ".xml" ||
		strings.Contains(lowerPath, "rss") || strings.Contains(lowerPath, "feed")
}

func hostOr(hostname, fallback string) string {
	if hostname == "" {
		return fallback
	}
	return hostname
}
