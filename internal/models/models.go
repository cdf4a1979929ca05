package models

// ContentType distinguishes the two media families the pipeline handles.
type ContentType string

const (
	ContentVideo   ContentType = "video"
	ContentPodcast ContentType = "podcast"
)

// Status is the lifecycle state of a [Task]. Transitions are
// processing → completed and processing → error; both targets are terminal.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// MediaSource is the classification of a submitted URL. Built once per
// request, never mutated.
type MediaSource struct {
	URL         string      `json:"url"`
	Provider    string      `json:"provider"`
	ContentType ContentType `json:"content_type"`
	DisplayName string      `json:"display_name"`
}

// PodcastEpisode is a resolved, playable audio resource plus the metadata
// recovered from the feed or page it came from.
type PodcastEpisode struct {
	AudioURL   string `json:"audio_url"`
	Title      string `json:"title"`
	EpisodeURL string `json:"episode_url,omitempty"`
	FeedURL    string `json:"feed_url,omitempty"`
	MIMEType   string `json:"mime_type,omitempty"`
}

// MediaMetadata carries the descriptive fields attached to a task once
// acquisition finishes. Podcast-only fields stay empty for plain videos.
type MediaMetadata struct {
	ContentType      ContentType `json:"content_type"`
	Provider         string      `json:"provider"`
	MediaDisplayName string      `json:"media_display_name"`
	WebpageURL       string      `json:"webpage_url,omitempty"`
	Thumbnail        string      `json:"thumbnail,omitempty"`
	Uploader         string      `json:"uploader,omitempty"`
	SourceTitle      string      `json:"source_title,omitempty"`
	EpisodeURL       string      `json:"episode_url,omitempty"`
	FeedURL          string      `json:"feed_url,omitempty"`
	AudioURL         string      `json:"audio_url,omitempty"`
	AudioMIMEType    string      `json:"audio_mime_type,omitempty"`
}

// Task is the persistent record of one submitted job.
//
// Invariants: Progress is monotonically non-decreasing while Status is
// processing; FinishedAt is set iff Status is terminal; at most one task with
// Status processing exists per distinct URL.
type Task struct {
	ID       string `json:"task_id,omitempty"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Error    string `json:"error,omitempty"`

	URL        string `json:"url"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	FinishedAt string `json:"finished_at,omitempty"`

	ContentType      ContentType    `json:"content_type"`
	Provider         string         `json:"provider"`
	MediaDisplayName string         `json:"media_display_name"`
	MediaMetadata    *MediaMetadata `json:"media_metadata,omitempty"`

	VideoTitle       string `json:"video_title,omitempty"`
	Script           string `json:"script,omitempty"`
	Summary          string `json:"summary,omitempty"`
	Translation      string `json:"translation,omitempty"`
	DetectedLanguage string `json:"detected_language,omitempty"`
	SummaryLanguage  string `json:"summary_language,omitempty"`
	HasTranslation   bool   `json:"has_translation"`

	ShortID   string `json:"short_id,omitempty"`
	SafeTitle string `json:"safe_title,omitempty"`

	ScriptFilename      string `json:"script_filename,omitempty"`
	SummaryFilename     string `json:"summary_filename,omitempty"`
	TranslationFilename string `json:"translation_filename,omitempty"`
	RawScriptFile       string `json:"raw_script_file,omitempty"`

	// Legacy absolute paths from pre-versioned store documents. Retained on
	// load so the backfill can derive the filename fields above.
	ScriptPath      string `json:"script_path,omitempty"`
	SummaryPath     string `json:"summary_path,omitempty"`
	TranslationPath string `json:"translation_path,omitempty"`
}

// Clone returns a copy safe to hand to subscribers while the orchestrator
// keeps mutating the original.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.MediaMetadata != nil {
		meta := *t.MediaMetadata
		c.MediaMetadata = &meta
	}
	return &c
}

// ArtifactFilenames lists every artifact file name recorded on the task,
// including names recoverable from legacy path fields.
func (t *Task) ArtifactFilenames() []string {
	seen := map[string]bool{}
	var names []string
	for _, name := range []string{
		t.ScriptFilename, t.SummaryFilename, t.TranslationFilename, t.RawScriptFile,
		baseName(t.ScriptPath), baseName(t.SummaryPath), baseName(t.TranslationPath),
	} {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
