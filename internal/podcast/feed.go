package podcast

import (
	"fmt"
	"strings"

	"github.com/desertthunder/scribe/internal/models"
	"github.com/desertthunder/scribe/internal/shared"
	"github.com/mmcdole/gofeed"
)

// parseFeed extracts the first playable entry from an RSS/Atom document.
//
// gofeed is namespace tolerant and folds Atom rel="enclosure" links into
// Item.Enclosures; media:content elements surface through Item.Extensions.
func parseFeed(xmlText, feedURL string) (models.PodcastEpisode, error) {
	feed, err := gofeed.NewParser().ParseString(xmlText)
	if err != nil {
		return models.PodcastEpisode{}, fmt.Errorf("%w: 播客RSS格式无法解析: %v", shared.ErrFeedParse, err)
	}

	for _, item := range feed.Items {
		audioURL, mimeType := extractItemAudio(item)
		if audioURL == "" {
			continue
		}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = guessTitleFromURL(audioURL)
		}

		return models.PodcastEpisode{
			AudioURL:   audioURL,
			Title:      title,
			EpisodeURL: episodeLink(item),
			FeedURL:    feedURL,
			MIMEType:   mimeType,
		}, nil
	}

	return models.PodcastEpisode{}, fmt.Errorf("%w: RSS中未找到可用的音频链接", shared.ErrFeedParse)
}

// extractItemAudio looks for a playable resource on one feed entry: an
// enclosure URL, or a media:content element whose URL looks like audio or
// whose type says so.
func extractItemAudio(item *gofeed.Item) (string, string) {
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && enclosure.URL != "" {
			return enclosure.URL, enclosure.Type
		}
	}

	for _, content := range item.Extensions["media"]["content"] {
		contentURL := content.Attrs["url"]
		contentType := content.Attrs["type"]
		if contentURL == "" {
			continue
		}
		if looksLikeAudioURL(contentURL) || isAudioContentType(contentType) {
			return contentURL, contentType
		}
	}

	return "", ""
}

// episodeLink returns the entry's page link: the plain link first, else any
// link the parser collected.
func episodeLink(item *gofeed.Item) string {
	if strings.TrimSpace(item.Link) != "" {
		return strings.TrimSpace(item.Link)
	}
	for _, link := range item.Links {
		if strings.TrimSpace(link) != "" {
			return strings.TrimSpace(link)
		}
	}
	return ""
}
