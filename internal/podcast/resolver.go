// Package podcast resolves a submitted podcast link down to a playable audio
// resource.
//
// Podcast platforms variously expose a direct audio link, an RSS/Atom feed, or
// an HTML landing page that references a feed. The resolver walks that chain
// with an explicit depth budget: classify the URL itself, fetch a capped
// payload, sniff it, and either stop at audio, parse a feed, or follow one
// HTML feed link deeper.
package podcast

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scribe/internal/media"
	"github.com/desertthunder/scribe/internal/models"
	"github.com/desertthunder/scribe/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxBytes = 2_000_000
	DefaultTimeout  = 15 * time.Second
	DefaultMaxDepth = 1

	userAgent = "Mozilla/5.0 (scribe)"
)

// Options bound the work a single resolution may perform.
type Options struct {
	MaxBytes  int64
	Timeout   time.Duration
	MaxDepth  int
	RateLimit float64 // outbound fetches per second, 0 disables pacing
}

func (o Options) withDefaults() Options {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxDepth < 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

// Resolver fetches and classifies podcast links until it finds audio.
type Resolver struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
	opts    Options
}

// NewResolver creates a Resolver. A nil client falls back to
// [http.DefaultClient]; a nil logger gets the shared default.
func NewResolver(client *http.Client, logger *log.Logger, opts Options) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	opts = opts.withDefaults()

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &Resolver{client: client, limiter: limiter, logger: logger, opts: opts}
}

// Resolve walks the URL down to a playable episode.
//
// Returns [shared.ErrResolution] when no audio can be found within the depth
// budget or the network fails, and [shared.ErrFeedParse] when a feed was
// reached but yielded no audio.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (models.PodcastEpisode, error) {
	if rawURL == "" {
		return models.PodcastEpisode{}, fmt.Errorf("%w: 播客链接不能为空", shared.ErrInvalidInput)
	}

	current := rawURL
	depth := r.opts.MaxDepth
	feedURL := ""

	for {
		if looksLikeAudioURL(current) {
			return models.PodcastEpisode{
				AudioURL: current,
				Title:    guessTitleFromURL(current),
				FeedURL:  feedURL,
			}, nil
		}

		contentType, payload, finalURL, err := r.fetch(ctx, current)
		if err != nil {
			return models.PodcastEpisode{}, fmt.Errorf("%w: 获取播客链接失败: %v", shared.ErrResolution, err)
		}

		if isAudioContentType(contentType) {
			return models.PodcastEpisode{
				AudioURL: finalURL,
				Title:    guessTitleFromURL(finalURL),
				FeedURL:  feedURL,
				MIMEType: contentType,
			}, nil
		}

		text := string(payload)
		if looksLikeXML(text, contentType) {
			return parseFeed(text, finalURL)
		}

		if depth > 0 && looksLikeHTML(text, contentType) {
			if next := extractFeedLink(text, finalURL); next != "" {
				r.logger.Debug("following feed link", "from", finalURL, "to", next)
				current = next
				feedURL = next
				depth--
				continue
			}
		}

		return models.PodcastEpisode{}, fmt.Errorf("%w: 无法从该链接解析播客音频", shared.ErrResolution)
	}
}

// fetch reads up to MaxBytes of the resource, reporting the announced
// content type and the post-redirect URL.
func (r *Resolver) fetch(ctx context.Context, rawURL string) (string, []byte, string, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", nil, "", err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, r.opts.MaxBytes))
	if err != nil {
		return "", nil, "", err
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return resp.Header.Get("Content-Type"), payload, finalURL, nil
}

var (
	linkTagPattern  = regexp.MustCompile(`(?i)<link[^>]+>`)
	typeAttrPattern = regexp.MustCompile(`(?i)type=["']([^"']+)["']`)
	hrefAttrPattern = regexp.MustCompile(`(?i)href=["']([^"']+)["']`)
)

// extractFeedLink scans HTML for a <link> tag whose type mentions rss/atom and
// resolves its href against the base URL.
func extractFeedLink(htmlText, baseURL string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	for _, tag := range linkTagPattern.FindAllString(htmlText, -1) {
		typeMatch := typeAttrPattern.FindStringSubmatch(tag)
		hrefMatch := hrefAttrPattern.FindStringSubmatch(tag)
		if typeMatch == nil || hrefMatch == nil {
			continue
		}
		linkType := strings.ToLower(typeMatch[1])
		if !strings.Contains(linkType, "rss") && !strings.Contains(linkType, "atom") {
			continue
		}
		href, err := url.Parse(strings.TrimSpace(hrefMatch[1]))
		if err != nil {
			continue
		}
		return base.ResolveReference(href).String()
	}
	return ""
}

func looksLikeXML(text, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "xml") {
		return true
	}
	sample := strings.ToLower(samplePrefix(text))
	return strings.HasPrefix(sample, "<?xml") ||
		strings.Contains(sample, "<rss") ||
		strings.Contains(sample, "<feed")
}

func looksLikeHTML(text, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	sample := strings.ToLower(samplePrefix(text))
	return strings.HasPrefix(sample, "<!doctype html") || strings.Contains(sample, "<html")
}

func samplePrefix(text string) string {
	sample := strings.TrimLeft(text, " \t\r\n")
	if len(sample) > 200 {
		sample = sample[:200]
	}
	return sample
}

func isAudioContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "audio/")
}

func looksLikeAudioURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	lowerPath := strings.ToLower(parsed.Path)
	for ext := range media.AudioExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return true
		}
	}
	return false
}

var extensionPattern = regexp.MustCompile(`(?i)\.[a-z0-9]+$`)

// guessTitleFromURL derives a readable title from the last path segment with
// its extension stripped.
func guessTitleFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "untitled"
	}
	trimmed := strings.TrimRight(parsed.Path, "/")
	segments := strings.Split(trimmed, "/")
	filename := segments[len(segments)-1]
	title := extensionPattern.ReplaceAllString(filename, "")
	if title == "" {
		return "untitled"
	}
	return title
}
