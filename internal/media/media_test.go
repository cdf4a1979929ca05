package media

import (
	"errors"
	"testing"

	"github.com/desertthunder/scribe/internal/models"
	"github.com/desertthunder/scribe/internal/shared"
)

func TestClassify(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		_, err := Classify("")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("AudioExtension", func(t *testing.T) {
		source, err := Classify("https://cdn.example.com/episodes/42.mp3")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if source.ContentType != models.ContentPodcast {
			t.Errorf("expected podcast, got %s", source.ContentType)
		}
		if source.Provider != "cdn.example.com" {
			t.Errorf("expected provider cdn.example.com, got %s", source.Provider)
		}
		if source.DisplayName != "播客音频" {
			t.Errorf("expected 播客音频, got %s", source.DisplayName)
		}
	})

	t.Run("AudioExtensionBeatsVideoHost", func(t *testing.T) {
		source, err := Classify("https://www.youtube.com/files/talk.m4a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if source.ContentType != models.ContentPodcast {
			t.Errorf("audio extension must win over video domain, got %s", source.ContentType)
		}
	})

	t.Run("FeedPath", func(t *testing.T) {
		for _, u := range []string{
			"https://example.com/show.rss",
			"https://example.com/podcast/feed",
			"https://example.com/rss/all.xml",
		} {
			source, err := Classify(u)
			if err != nil {
				t.Fatalf("unexpected error for %s: %v", u, err)
			}
			if source.ContentType != models.ContentPodcast || source.DisplayName != "播客RSS" {
				t.Errorf("%s: expected 播客RSS podcast, got %s/%s", u, source.ContentType, source.DisplayName)
			}
		}
	})

	t.Run("Xiaoyuzhou", func(t *testing.T) {
		source, _ := Classify("https://www.xiaoyuzhoufm.com/episode/abc123")
		if source.Provider != "xiaoyuzhou" || source.DisplayName != "小宇宙播客" {
			t.Errorf("unexpected classification: %+v", source)
		}
	})

	t.Run("PodcastHosts", func(t *testing.T) {
		cases := map[string]string{
			"https://podcasts.apple.com/us/podcast/id123": "Apple Podcasts",
			"https://open.spotify.com/show/xyz":           "Spotify",
			"https://anchor.fm/my-show":                   "Anchor",
			"https://sub.castbox.fm/episode/1":            "Castbox",
			"https://myshow.podbean.com/e/1":              "Podbean",
		}
		for u, want := range cases {
			source, err := Classify(u)
			if err != nil {
				t.Fatalf("unexpected error for %s: %v", u, err)
			}
			if source.DisplayName != want || source.ContentType != models.ContentPodcast {
				t.Errorf("%s: expected %s podcast, got %+v", u, want, source)
			}
		}
	})

	t.Run("VideoHosts", func(t *testing.T) {
		source, _ := Classify("https://youtu.be/dQw4w9WgXcQ")
		if source.Provider != "youtube" || source.ContentType != models.ContentVideo {
			t.Errorf("unexpected classification: %+v", source)
		}

		source, _ = Classify("https://www.bilibili.com/video/BV1xx")
		if source.Provider != "bilibili" {
			t.Errorf("expected bilibili, got %s", source.Provider)
		}
	})

	t.Run("GenericFallback", func(t *testing.T) {
		source, _ := Classify("https://example.org/watch?v=1")
		if source.ContentType != models.ContentVideo || source.DisplayName != "视频" {
			t.Errorf("unexpected fallback classification: %+v", source)
		}
		if source.Provider != "example.org" {
			t.Errorf("expected provider example.org, got %s", source.Provider)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		u := "https://podcasts.apple.com/us/podcast/id99"
		first, _ := Classify(u)
		for range 5 {
			again, _ := Classify(u)
			if again != first {
				t.Fatalf("classification not deterministic: %+v vs %+v", first, again)
			}
		}
	})
}

func TestAudioOrFeedShaped(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/a.mp3":       true,
		"https://example.com/show.xml":    true,
		"https://example.com/feed":        true,
		"https://example.com/rss/latest":  true,
		"https://example.com/episode/42":  false,
		"https://open.spotify.com/show/x": false,
	}
	for u, want := range cases {
		if got := AudioOrFeedShaped(u); got != want {
			t.Errorf("AudioOrFeedShaped(%s) = %v, want %v", u, got, want)
		}
	}
}
