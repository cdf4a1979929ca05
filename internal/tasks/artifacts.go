package tasks

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/desertthunder/scribe/internal/shared"
)

// MaxSafeTitleLength caps sanitized titles so artifact filenames stay
// portable across filesystems.
const MaxSafeTitleLength = 80

var (
	unsafeTitlePattern = regexp.MustCompile(`[^\p{L}\p{N}_\-\s]`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// SanitizeTitle derives a filesystem-safe stem from a media title. Letters,
// digits, underscores and hyphens survive; runs of whitespace collapse to a
// single underscore. An empty result falls back to "untitled".
func SanitizeTitle(title string) string {
	safe := unsafeTitlePattern.ReplaceAllString(title, "")
	safe = whitespacePattern.ReplaceAllString(strings.TrimSpace(safe), "_")
	safe = strings.Trim(safe, "._-")
	// Truncate by runes so multibyte titles keep 80 characters and never end
	// mid-sequence.
	if runes := []rune(safe); len(runes) > MaxSafeTitleLength {
		safe = strings.Trim(string(runes[:MaxSafeTitleLength]), "._-")
	}
	if safe == "" {
		return "untitled"
	}
	return safe
}

// ArtifactFilename builds the canonical name for a stored artifact, e.g.
// "transcript_My_Episode_a1b2c3.md". kind is one of raw, transcript,
// summary, or translation.
func ArtifactFilename(kind, safeTitle, shortID string) string {
	return fmt.Sprintf("%s_%s_%s.md", kind, safeTitle, shortID)
}

// ValidateFilename rejects names that could escape the artifact directory.
// Only bare filenames are acceptable, never path fragments.
func ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty filename", shared.ErrInvalidFilename)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %s", shared.ErrInvalidFilename, name)
	}
	return nil
}

// WithSourceTrailer appends the provenance line every artifact carries.
func WithSourceTrailer(body, sourceURL string) string {
	return body + "\n\nsource: " + sourceURL + "\n"
}

// WriteArtifact writes content to dir/name, creating dir if needed.
func WriteArtifact(dir, name, content string) error {
	if err := ValidateFilename(name); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", name, err)
	}
	return nil
}
