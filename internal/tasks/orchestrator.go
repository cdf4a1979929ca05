package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/scribe/internal/audio"
	"github.com/desertthunder/scribe/internal/media"
	"github.com/desertthunder/scribe/internal/models"
	"github.com/desertthunder/scribe/internal/services"
	"github.com/desertthunder/scribe/internal/shared"
)

// EpisodeResolver turns a podcast-shaped URL into a playable episode.
type EpisodeResolver interface {
	Resolve(ctx context.Context, rawURL string) (models.PodcastEpisode, error)
}

// Downloader fetches a URL's audio track into outputDir.
type Downloader interface {
	Acquire(ctx context.Context, url, outputDir string) (audio.Result, error)
}

// Orchestrator drives submitted URLs through the full pipeline. One goroutine
// runs per active task; the orchestrator's mutex guards the in-flight URL set
// and the cancel table, nothing else.
type Orchestrator struct {
	store       *Store
	hub         *Hub
	resolver    EpisodeResolver
	acquirer    Downloader
	transcriber services.Transcriber
	summarizer  services.Summarizer
	translator  services.Translator
	tempDir     string
	logger      *log.Logger

	mu       sync.Mutex
	inflight map[string]string // url → task id
	active   map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Store       *Store
	Hub         *Hub
	Resolver    EpisodeResolver
	Acquirer    Downloader
	Transcriber services.Transcriber
	Summarizer  services.Summarizer
	Translator  services.Translator
	TempDir     string
	Logger      *log.Logger
}

func NewOrchestrator(d Deps) *Orchestrator {
	return &Orchestrator{
		store:       d.Store,
		hub:         d.Hub,
		resolver:    d.Resolver,
		acquirer:    d.Acquirer,
		transcriber: d.Transcriber,
		summarizer:  d.Summarizer,
		translator:  d.Translator,
		tempDir:     d.TempDir,
		logger:      d.Logger,
		inflight:    map[string]string{},
		active:      map[string]context.CancelFunc{},
	}
}

// Store exposes the backing task store for read-side handlers.
func (o *Orchestrator) Store() *Store { return o.store }

// Hub exposes the progress hub for streaming handlers.
func (o *Orchestrator) Hub() *Hub { return o.hub }

// Submit classifies url and starts a pipeline job for it. When the same URL
// is already processing, the existing task id is returned with created=false
// instead of spawning a duplicate. The in-flight check and reservation happen
// under one lock so two racing submissions of the same URL cannot both win.
func (o *Orchestrator) Submit(url, summaryLanguage string) (string, bool, error) {
	source, err := media.Classify(url)
	if err != nil {
		return "", false, err
	}

	taskID := shared.GenerateID()

	o.mu.Lock()
	if existing, ok := o.inflight[url]; ok {
		o.mu.Unlock()
		return existing, false, nil
	}
	o.inflight[url] = taskID
	ctx, cancel := context.WithCancel(context.Background())
	o.active[taskID] = cancel
	o.mu.Unlock()

	now := timestamp()
	task := &models.Task{
		ID:               taskID,
		Status:           models.StatusProcessing,
		Progress:         0,
		Message:          "开始处理" + source.DisplayName + "...",
		URL:              url,
		CreatedAt:        now,
		UpdatedAt:        now,
		ContentType:      source.ContentType,
		Provider:         source.Provider,
		MediaDisplayName: source.DisplayName,
		SummaryLanguage:  summaryLanguage,
	}
	if err := o.store.Put(task); err != nil {
		o.release(taskID, url)
		cancel()
		return "", false, err
	}

	o.wg.Add(1)
	go o.run(ctx, taskID, url, summaryLanguage, source)
	return taskID, true, nil
}

// Wait blocks until every active pipeline goroutine has returned. Used on
// shutdown and in tests.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// ActiveSnapshot reports the current active job ids and in-flight URL count.
func (o *Orchestrator) ActiveSnapshot() ([]string, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	return ids, len(o.inflight)
}

func (o *Orchestrator) release(taskID, url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[url] == taskID {
		delete(o.inflight, url)
	}
	if cancel, ok := o.active[taskID]; ok {
		cancel()
		delete(o.active, taskID)
	}
}

func (o *Orchestrator) run(ctx context.Context, taskID, url, summaryLanguage string, source models.MediaSource) {
	defer o.wg.Done()
	defer o.release(taskID, url)

	logger := shared.WithLogger(o.logger, "task", taskID)
	if err := o.execute(ctx, taskID, url, summaryLanguage, source, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("pipeline canceled")
			return
		}
		logger.Error("pipeline failed", "error", err)
		_, terr := o.store.Update(taskID, func(t *models.Task) {
			t.Status = models.StatusError
			t.Error = err.Error()
			t.Message = "处理失败: " + err.Error()
			t.FinishedAt = timestamp()
		})
		if terr != nil {
			if !errors.Is(terr, shared.ErrTaskNotFound) {
				logger.Error("recording failure state", "error", terr)
			}
			return
		}
		if snapshot, ok := o.store.Get(taskID); ok {
			o.hub.Publish(taskID, snapshot)
		}
	}
}

// transition bumps progress (never backwards), updates the status message,
// applies any extra mutation, persists the record, then broadcasts the
// persisted snapshot. Persist-then-broadcast means a subscriber never sees
// state that would not survive a restart.
func (o *Orchestrator) transition(taskID string, progress int, message string, mutate ...func(*models.Task)) error {
	snapshot, err := o.store.Update(taskID, func(t *models.Task) {
		if progress > t.Progress {
			t.Progress = progress
		}
		if message != "" {
			t.Message = message
		}
		for _, fn := range mutate {
			fn(t)
		}
	})
	if err != nil {
		return err
	}
	o.hub.Publish(taskID, snapshot)
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, taskID, url, summaryLanguage string, source models.MediaSource, logger *log.Logger) error {
	if err := o.transition(taskID, 10, "正在下载"+source.DisplayName+"..."); err != nil {
		return err
	}
	if err := o.transition(taskID, 15, "正在解析媒体信息..."); err != nil {
		return err
	}

	downloadURL := url
	var episode *models.PodcastEpisode
	if source.ContentType == models.ContentPodcast {
		if err := o.transition(taskID, 18, "正在解析播客音频..."); err != nil {
			return err
		}
		resolved, err := o.resolver.Resolve(ctx, url)
		switch {
		case err == nil:
			episode = &resolved
			downloadURL = resolved.AudioURL
		case errors.Is(err, context.Canceled):
			return err
		case media.AudioOrFeedShaped(url):
			// A direct audio or feed URL that fails to resolve has no
			// downloader fallback worth trying.
			return fmt.Errorf("播客链接解析失败: %w", err)
		default:
			logger.Warn("podcast resolution failed, falling back to downloader", "error", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Downloaded audio stays in the temp dir alongside the artifacts; nothing
	// here reaps it. Operators manage temp storage out of band.
	result, err := o.acquirer.Acquire(ctx, downloadURL, o.tempDir)
	if err != nil {
		return err
	}

	title := result.Title
	if episode != nil && episode.Title != "" {
		title = episode.Title
	}
	if title == "" {
		title = "untitled"
	}

	meta := buildMetadata(source, episode, result, url, title)
	if err := o.transition(taskID, 35, "音频准备完成，进入转录...", func(t *models.Task) {
		t.MediaMetadata = &meta
	}); err != nil {
		return err
	}

	if err := o.transition(taskID, 40, "正在转录音频..."); err != nil {
		return err
	}
	transcript, err := o.transcriber.Transcribe(ctx, result.Path)
	if err != nil {
		return err
	}

	shortID := shared.ShortID(taskID)
	safeTitle := SanitizeTitle(title)

	// The raw transcript is written before optimization so a later stage
	// failure still leaves something recoverable on disk.
	rawName := ArtifactFilename("raw", safeTitle, shortID)
	if err := WriteArtifact(o.tempDir, rawName, WithSourceTrailer(transcript.Text, url)); err != nil {
		logger.Warn("writing raw transcript", "error", err)
	} else if err := o.transition(taskID, 0, "", func(t *models.Task) {
		t.RawScriptFile = rawName
	}); err != nil {
		return err
	}

	if err := o.transition(taskID, 55, "正在优化转录文本..."); err != nil {
		return err
	}
	script, err := o.summarizer.OptimizeTranscript(ctx, transcript.Text)
	if err != nil {
		return err
	}
	scriptBody := WithSourceTrailer("# "+title+"\n\n"+script, url)

	var translationBody, translationName string
	if o.translator.ShouldTranslate(transcript.Language, summaryLanguage) {
		if err := o.transition(taskID, 70, "正在生成翻译..."); err != nil {
			return err
		}
		translated, err := o.translator.Translate(ctx, script, summaryLanguage, transcript.Language)
		if err != nil {
			return err
		}
		translationBody = WithSourceTrailer("# "+title+"\n\n"+translated, url)
		translationName = ArtifactFilename("translation", safeTitle, shortID)
		if err := WriteArtifact(o.tempDir, translationName, translationBody); err != nil {
			return err
		}
	}

	if err := o.transition(taskID, 80, "正在生成摘要..."); err != nil {
		return err
	}
	summary, err := o.summarizer.Summarize(ctx, script, summaryLanguage, title)
	if err != nil {
		return err
	}
	summaryBody := WithSourceTrailer(summary, url)

	scriptName := ArtifactFilename("transcript", safeTitle, shortID)
	if err := WriteArtifact(o.tempDir, scriptName, scriptBody); err != nil {
		return err
	}
	summaryName := ArtifactFilename("summary", safeTitle, shortID)
	if err := WriteArtifact(o.tempDir, summaryName, summaryBody); err != nil {
		return err
	}

	return o.transition(taskID, 100, "处理完成！", func(t *models.Task) {
		t.Status = models.StatusCompleted
		t.FinishedAt = timestamp()
		t.VideoTitle = title
		t.Script = scriptBody
		t.Summary = summaryBody
		t.DetectedLanguage = transcript.Language
		t.ShortID = shortID
		t.SafeTitle = safeTitle
		t.ScriptFilename = scriptName
		t.SummaryFilename = summaryName
		if translationName != "" {
			t.Translation = translationBody
			t.TranslationFilename = translationName
			t.HasTranslation = true
		}
	})
}

func buildMetadata(source models.MediaSource, episode *models.PodcastEpisode, result audio.Result, url, title string) models.MediaMetadata {
	meta := models.MediaMetadata{
		ContentType:      source.ContentType,
		Provider:         source.Provider,
		MediaDisplayName: source.DisplayName,
		WebpageURL:       result.Info.WebpageURL,
		Thumbnail:        result.Info.Thumbnail,
		Uploader:         result.Info.Uploader,
		SourceTitle:      result.Info.FullTitle,
	}
	if meta.SourceTitle == "" {
		meta.SourceTitle = title
	}
	if episode != nil {
		meta.EpisodeURL = episode.EpisodeURL
		meta.FeedURL = episode.FeedURL
		meta.AudioURL = episode.AudioURL
		meta.AudioMIMEType = episode.MIMEType
		if meta.WebpageURL == "" {
			meta.WebpageURL = episode.EpisodeURL
		}
	}
	if meta.WebpageURL == "" {
		meta.WebpageURL = url
	}
	return meta
}

// CancelAndDelete stops a task's pipeline if it is still running and removes
// its record. Artifacts already written stay on disk; history deletion is the
// operation that reaps files.
func (o *Orchestrator) CancelAndDelete(taskID string) error {
	task, ok := o.store.Get(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, taskID)
	}

	o.mu.Lock()
	if cancel, ok := o.active[taskID]; ok {
		cancel()
		delete(o.active, taskID)
	}
	if o.inflight[task.URL] == taskID {
		delete(o.inflight, task.URL)
	}
	o.mu.Unlock()

	return o.store.Delete(taskID)
}

// DeleteCompleted removes a completed task's record and reaps its artifact
// files. Tasks still processing (or failed) are refused so the caller can
// distinguish "use cancel instead" from "gone".
func (o *Orchestrator) DeleteCompleted(taskID string) error {
	task, ok := o.store.Get(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, taskID)
	}
	if task.Status != models.StatusCompleted {
		return fmt.Errorf("%w: task %s is %s", shared.ErrNotCompleted, taskID, task.Status)
	}

	names := task.ArtifactFilenames()
	for _, name := range names {
		if err := ValidateFilename(name); err != nil {
			return err
		}
	}
	for _, name := range names {
		path := filepath.Join(o.tempDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			o.logger.Warn("removing artifact", "file", name, "error", err)
		}
	}
	return o.store.Delete(taskID)
}
