// Package audio acquires a normalized audio file for a resolved media URL.
//
// The heavy lifting is delegated to external tools: yt-dlp fetches and
// extracts the audio, ffprobe measures it, and ffmpeg re-encodes it when the
// container's duration disagrees with what the source announced. Some
// platforms report misleading durations or ship broken duration headers that
// the transcription stage mishandles, so acquisition validates and repairs
// before handing the file on.
package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scribe/internal/shared"
)

// DurationTolerance is the relative duration mismatch above which a repair
// pass is attempted.
const DurationTolerance = 0.1

// fallbackExtensions are checked in order when the expected .m4a output is
// missing after a download.
var fallbackExtensions = []string{"webm", "mp4", "mp3", "wav"}

// Info is the subset of source metadata the pipeline attaches to a task.
type Info struct {
	Title      string  `json:"title"`
	FullTitle  string  `json:"fulltitle"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
	Thumbnail  string  `json:"thumbnail"`
	Uploader   string  `json:"uploader"`
}

// Result is a finished acquisition: the audio file on disk plus its metadata.
type Result struct {
	Path  string
	Title string
	Info  Info
}

// runner abstracts external tool invocation so tests can substitute the
// binaries.
type runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

// Acquirer drives the external downloader and validates its output.
type Acquirer struct {
	tools  shared.ToolsConfig
	logger *log.Logger
	run    runner
	newID  func() string
}

// NewAcquirer creates an Acquirer using the configured tool paths.
func NewAcquirer(tools shared.ToolsConfig, logger *log.Logger) *Acquirer {
	if tools.YtDlp == "" {
		tools.YtDlp = "yt-dlp"
	}
	if tools.FFmpeg == "" {
		tools.FFmpeg = "ffmpeg"
	}
	if tools.FFprobe == "" {
		tools.FFprobe = "ffprobe"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Acquirer{
		tools:  tools,
		logger: logger,
		run:    execRunner{},
		newID:  func() string { return shared.ShortID(shared.GenerateID()) },
	}
}

// Acquire downloads the URL's best audio stream into outputDir as mono 16kHz
// m4a, probes the result, and repairs it when the duration is off by more
// than [DurationTolerance]. Repair failures are logged and non-fatal; any
// download or tool failure returns [shared.ErrAcquisition].
func (a *Acquirer) Acquire(ctx context.Context, url, outputDir string) (Result, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("%w: %v", shared.ErrAcquisition, err)
	}

	uniqueID := a.newID()
	template := filepath.Join(outputDir, "audio_"+uniqueID+".%(ext)s")

	info, err := a.fetchInfo(ctx, url)
	if err != nil {
		return Result{}, fmt.Errorf("%w: 下载视频失败: %v", shared.ErrAcquisition, err)
	}
	a.logger.Info("downloading media", "url", url, "title", info.Title)

	if err := a.run.Run(ctx, a.tools.YtDlp, buildDownloadArgs(url, template)...); err != nil {
		return Result{}, fmt.Errorf("%w: 下载视频失败: %v", shared.ErrAcquisition, err)
	}

	audioFile, err := locateOutput(outputDir, uniqueID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", shared.ErrAcquisition, err)
	}

	audioFile = a.validateDuration(ctx, audioFile, info.Duration, outputDir, uniqueID)

	title := info.Title
	if title == "" {
		title = "unknown"
	}

	a.logger.Info("audio ready", "path", audioFile)
	return Result{Path: audioFile, Title: title, Info: info}, nil
}

// fetchInfo asks yt-dlp for source metadata without downloading.
func (a *Acquirer) fetchInfo(ctx context.Context, url string) (Info, error) {
	out, err := a.run.Output(ctx, a.tools.YtDlp, "-J", "--no-playlist", url)
	if err != nil {
		return Info{}, err
	}

	var info Info
	if err := json.Unmarshal(out, &info); err != nil {
		return Info{}, fmt.Errorf("unreadable media info: %v", err)
	}
	return info, nil
}

// validateDuration probes the downloaded file and runs one repair pass when
// the measured duration deviates beyond tolerance from the announced one.
func (a *Acquirer) validateDuration(ctx context.Context, audioFile string, expected float64, outputDir, uniqueID string) string {
	actual := a.probeDuration(ctx, audioFile)
	if expected <= 0 || actual <= 0 {
		return audioFile
	}
	if math.Abs(actual-expected)/expected <= DurationTolerance {
		return audioFile
	}

	a.logger.Warn("audio duration mismatch, re-encoding",
		"expected", expected, "actual", actual)

	fixedPath := filepath.Join(outputDir, "audio_"+uniqueID+"_fixed.m4a")
	if err := a.run.Run(ctx, a.tools.FFmpeg, buildRepairArgs(audioFile, fixedPath)...); err != nil {
		a.logger.Error("repair pass failed", "err", err)
		return audioFile
	}

	repaired := a.probeDuration(ctx, fixedPath)
	a.logger.Info("repair pass complete", "duration", repaired)
	return fixedPath
}

// probeDuration measures a file with ffprobe, returning 0 on any failure.
func (a *Acquirer) probeDuration(ctx context.Context, path string) float64 {
	out, err := a.run.Output(ctx, a.tools.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path)
	if err != nil {
		a.logger.Warn("ffprobe failed", "path", path, "err", err)
		return 0
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		a.logger.Warn("unreadable ffprobe output", "out", string(out))
		return 0
	}
	return duration
}

// buildDownloadArgs builds the yt-dlp invocation: best audio stream, single
// item only, extracted to m4a at mono 16kHz with faststart.
func buildDownloadArgs(url, outputTemplate string) []string {
	return []string{
		"-f", "bestaudio/best",
		"--no-playlist",
		"-x",
		"--audio-format", "m4a",
		"--audio-quality", "192",
		"--postprocessor-args", "ffmpeg:-ac 1 -ar 16000 -movflags +faststart",
		"-o", outputTemplate,
		"--quiet",
		"--no-warnings",
		url,
	}
}

// buildRepairArgs builds the ffmpeg re-encode used by the repair pass.
func buildRepairArgs(inputPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-c:a", "aac",
		"-b:a", "160k",
		"-movflags", "+faststart",
		outputPath,
	}
}

// locateOutput finds the downloaded file, preferring the requested m4a and
// falling back to the containers yt-dlp may leave behind.
func locateOutput(outputDir, uniqueID string) (string, error) {
	candidate := filepath.Join(outputDir, "audio_"+uniqueID+".m4a")
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	for _, ext := range fallbackExtensions {
		candidate := filepath.Join(outputDir, "audio_"+uniqueID+"."+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("未找到下载的音频文件")
}
