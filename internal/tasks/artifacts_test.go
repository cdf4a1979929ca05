package tasks

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/desertthunder/scribe/internal/shared"
	tu "github.com/desertthunder/scribe/internal/testing"
)

func TestSanitizeTitle(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"Spaces", "My Great Episode", "My_Great_Episode"},
		{"Punctuation", "Ep. 42: The \"Best\" One!", "Ep_42_The_Best_One"},
		{"Chinese", "深度对谈 第三期", "深度对谈_第三期"},
		{"Hyphens", "pre-release build", "pre-release_build"},
		{"Empty", "", "untitled"},
		{"OnlySymbols", "!!!???", "untitled"},
		{"LeadingTrailing", "  - draft - ", "draft"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeTitle(tc.input); got != tc.want {
				t.Errorf("SanitizeTitle(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}

	t.Run("LongTitleTruncated", func(t *testing.T) {
		got := SanitizeTitle(strings.Repeat("a", 200))
		if len(got) != MaxSafeTitleLength {
			t.Errorf("length = %d, want %d", len(got), MaxSafeTitleLength)
		}
	})

	t.Run("LongChineseTitleTruncatedByRunes", func(t *testing.T) {
		got := SanitizeTitle(strings.Repeat("播客音频标题", 20))
		if !utf8.ValidString(got) {
			t.Fatalf("result is not valid UTF-8: %q", got)
		}
		if n := utf8.RuneCountInString(got); n != MaxSafeTitleLength {
			t.Errorf("rune count = %d, want %d", n, MaxSafeTitleLength)
		}
	})
}

func TestArtifactFilename(t *testing.T) {
	got := ArtifactFilename("transcript", "My_Episode", "a1b2c3")
	if got != "transcript_My_Episode_a1b2c3.md" {
		t.Errorf("unexpected filename %q", got)
	}
}

func TestValidateFilename(t *testing.T) {
	for _, name := range []string{"summary_x_abc123.md", "raw_深度对谈_a1b2c3.md"} {
		if err := ValidateFilename(name); err != nil {
			t.Errorf("ValidateFilename(%q) = %v, want nil", name, err)
		}
	}
	for _, name := range []string{"", "../etc/passwd", "a/b.md", `a\b.md`, "..", "x..md"} {
		if err := ValidateFilename(name); !errors.Is(err, shared.ErrInvalidFilename) {
			t.Errorf("ValidateFilename(%q) = %v, want ErrInvalidFilename", name, err)
		}
	}
}

func TestWriteArtifact(t *testing.T) {
	dir := t.TempDir()

	t.Run("WritesWithTrailer", func(t *testing.T) {
		content := WithSourceTrailer("# Title\n\nbody", "https://example.com/ep/1")
		if err := WriteArtifact(dir, "transcript_Title_abc123.md", content); err != nil {
			t.Fatalf("WriteArtifact failed: %v", err)
		}
		data := tu.MustReadFile(t, filepath.Join(dir, "transcript_Title_abc123.md"))
		if !strings.HasSuffix(data, "\n\nsource: https://example.com/ep/1\n") {
			t.Errorf("missing source trailer in %q", data)
		}
	})

	t.Run("CreatesDirectory", func(t *testing.T) {
		nested := filepath.Join(dir, "deep", "temp")
		if err := WriteArtifact(nested, "raw_x_abc123.md", "text"); err != nil {
			t.Fatalf("WriteArtifact failed: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(nested, "raw_x_abc123.md"))
	})

	t.Run("RejectsTraversal", func(t *testing.T) {
		if err := WriteArtifact(dir, "../escape.md", "text"); !errors.Is(err, shared.ErrInvalidFilename) {
			t.Errorf("got %v, want ErrInvalidFilename", err)
		}
	})
}
