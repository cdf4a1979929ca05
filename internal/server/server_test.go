package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/scribe/internal/audio"
	"github.com/desertthunder/scribe/internal/models"
	"github.com/desertthunder/scribe/internal/services"
	"github.com/desertthunder/scribe/internal/shared"
	"github.com/desertthunder/scribe/internal/tasks"
	tu "github.com/desertthunder/scribe/internal/testing"
)

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, rawURL string) (models.PodcastEpisode, error) {
	return models.PodcastEpisode{AudioURL: rawURL, Title: "Episode"}, nil
}

type stubAcquirer struct {
	gate chan struct{}
}

func (a *stubAcquirer) Acquire(ctx context.Context, mediaURL, outputDir string) (audio.Result, error) {
	if a.gate != nil {
		select {
		case <-a.gate:
		case <-ctx.Done():
			return audio.Result{}, ctx.Err()
		}
	}
	path := filepath.Join(outputDir, "audio_stub.m4a")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		return audio.Result{}, err
	}
	return audio.Result{Path: path, Title: "Stub Video"}, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, audioPath string) (services.Transcript, error) {
	return services.Transcript{Text: "transcript", Language: "en"}, nil
}

type stubSummarizer struct{}

func (stubSummarizer) OptimizeTranscript(ctx context.Context, raw string) (string, error) {
	return "script", nil
}

func (stubSummarizer) Summarize(ctx context.Context, script, language, title string) (string, error) {
	return "summary", nil
}

type stubTranslator struct{}

func (stubTranslator) ShouldTranslate(detected, target string) bool { return false }

func (stubTranslator) Translate(ctx context.Context, text, target, source string) (string, error) {
	return text, nil
}

type testServer struct {
	srv      *Server
	orch     *tasks.Orchestrator
	acquirer *stubAcquirer
	tempDir  string
	http     *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	logger := shared.NewLogger(io.Discard)
	acquirer := &stubAcquirer{}
	orch := tasks.NewOrchestrator(tasks.Deps{
		Store:       tasks.NewStore(filepath.Join(dir, "tasks.json"), logger),
		Hub:         tasks.NewHub(),
		Resolver:    stubResolver{},
		Acquirer:    acquirer,
		Transcriber: stubTranscriber{},
		Summarizer:  stubSummarizer{},
		Translator:  stubTranslator{},
		TempDir:     dir,
		Logger:      logger,
	})

	config := shared.DefaultConfig()
	config.Storage.TempDir = dir
	srv := New(config, orch, logger)
	srv.heartbeat = 50 * time.Millisecond

	ts := &testServer{srv: srv, orch: orch, acquirer: acquirer, tempDir: dir}
	ts.http = httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.http.Close()
		orch.Wait()
	})
	return ts
}

func (ts *testServer) submitForm(t *testing.T, videoURL string) map[string]string {
	t.Helper()
	resp, err := http.PostForm(ts.http.URL+"/api/process-video", url.Values{"url": {videoURL}})
	if err != nil {
		t.Fatalf("POST process-video: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func decodeJSON(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.http.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	var out map[string]string
	decodeJSON(t, resp, &out)
	if out["status"] != "ok" {
		t.Errorf("status = %q", out["status"])
	}
}

func TestProcessVideo(t *testing.T) {
	ts := newTestServer(t)
	ts.acquirer.gate = make(chan struct{})

	out := ts.submitForm(t, "https://www.youtube.com/watch?v=abc")
	if out["task_id"] == "" {
		t.Fatal("no task id returned")
	}
	if out["message"] != "任务已创建，正在处理中..." {
		t.Errorf("message = %q", out["message"])
	}

	t.Run("DuplicateURL", func(t *testing.T) {
		dup := ts.submitForm(t, "https://www.youtube.com/watch?v=abc")
		if dup["task_id"] != out["task_id"] {
			t.Errorf("duplicate got new task %q", dup["task_id"])
		}
		if dup["message"] != "该视频正在处理中，请等待..." {
			t.Errorf("message = %q", dup["message"])
		}
	})

	t.Run("InvalidURL", func(t *testing.T) {
		resp, err := http.PostForm(ts.http.URL+"/api/process-video", url.Values{"url": {""}})
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
		var detail map[string]string
		decodeJSON(t, resp, &detail)
		if detail["detail"] == "" {
			t.Error("missing detail in error payload")
		}
	})

	close(ts.acquirer.gate)
	ts.orch.Wait()
}

func TestTaskStatus(t *testing.T) {
	ts := newTestServer(t)
	out := ts.submitForm(t, "https://www.youtube.com/watch?v=status")
	ts.orch.Wait()

	t.Run("Known", func(t *testing.T) {
		resp, err := http.Get(ts.http.URL + "/api/task-status/" + out["task_id"])
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		var task models.Task
		decodeJSON(t, resp, &task)
		if task.Status != models.StatusCompleted || task.Progress != 100 {
			t.Errorf("task = %s/%d", task.Status, task.Progress)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		resp, err := http.Get(ts.http.URL + "/api/task-status/nope")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestTaskStream(t *testing.T) {
	ts := newTestServer(t)
	ts.acquirer.gate = make(chan struct{})
	out := ts.submitForm(t, "https://www.youtube.com/watch?v=stream")

	resp, err := http.Get(ts.http.URL + "/api/task-stream/" + out["task_id"])
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	var sawHeartbeat, sawTerminal bool
	var gateOpen bool
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if strings.Contains(payload, `"heartbeat"`) {
			sawHeartbeat = true
			if !gateOpen {
				close(ts.acquirer.gate)
				gateOpen = true
			}
			continue
		}
		var task models.Task
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			t.Fatalf("bad event payload %q: %v", payload, err)
		}
		if task.Status.Terminal() {
			sawTerminal = true
			break
		}
	}
	if !sawHeartbeat {
		t.Error("no heartbeat observed while pipeline was gated")
	}
	if !sawTerminal {
		t.Error("stream ended without a terminal snapshot")
	}
	ts.orch.Wait()

	t.Run("Unknown", func(t *testing.T) {
		resp, err := http.Get(ts.http.URL + "/api/task-stream/nope")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestTaskStreamTerminalDuringConnect(t *testing.T) {
	ts := newTestServer(t)
	ts.acquirer.gate = make(chan struct{})
	out := ts.submitForm(t, "https://www.youtube.com/watch?v=racy")

	// Release the pipeline so it races toward completion while the stream
	// request is still being set up. Whatever the interleaving, the stream
	// must deliver a terminal snapshot: either the post-subscribe snapshot
	// already shows it, or the hub queues the transition for delivery.
	close(ts.acquirer.gate)

	done := make(chan error, 1)
	go func() {
		resp, err := http.Get(ts.http.URL + "/api/task-stream/" + out["task_id"])
		if err != nil {
			done <- err
			return
		}
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") || strings.Contains(line, `"heartbeat"`) {
				continue
			}
			var task models.Task
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &task); err != nil {
				done <- err
				return
			}
			if task.Status.Terminal() {
				done <- nil
				return
			}
		}
		done <- scanner.Err()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stream failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream never delivered a terminal snapshot")
	}
	ts.orch.Wait()
}

func TestHistory(t *testing.T) {
	ts := newTestServer(t)
	ts.submitForm(t, "https://www.youtube.com/watch?v=h1")
	ts.submitForm(t, "https://www.youtube.com/watch?v=h2")
	ts.orch.Wait()

	t.Run("List", func(t *testing.T) {
		resp, err := http.Get(ts.http.URL + "/api/history?page=1&limit=10")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		var out struct {
			Page  int           `json:"page"`
			Limit int           `json:"limit"`
			Total int           `json:"total"`
			Items []historyItem `json:"items"`
		}
		decodeJSON(t, resp, &out)
		if out.Total != 2 || len(out.Items) != 2 {
			t.Fatalf("total = %d, items = %d", out.Total, len(out.Items))
		}
		if out.Items[0].VideoTitle != "Stub Video" || !strings.Contains(out.Items[0].URL, "youtube.com") {
			t.Errorf("unexpected item %+v", out.Items[0])
		}
		// Summary rows must not leak full content fields.
		if out.Items[0].FinishedAt == "" {
			t.Error("finished_at missing from history row")
		}
	})

	t.Run("DefaultLimit", func(t *testing.T) {
		resp, err := http.Get(ts.http.URL + "/api/history")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		var out struct {
			Page  int `json:"page"`
			Limit int `json:"limit"`
		}
		decodeJSON(t, resp, &out)
		if out.Page != 1 || out.Limit != 20 {
			t.Errorf("page = %d, limit = %d, want 1 and 20", out.Page, out.Limit)
		}
	})

	t.Run("LimitTooLarge", func(t *testing.T) {
		resp, err := http.Get(ts.http.URL + "/api/history?limit=200")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("BadPage", func(t *testing.T) {
		resp, err := http.Get(ts.http.URL + "/api/history?page=zero")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestHistoryDetail(t *testing.T) {
	ts := newTestServer(t)
	out := ts.submitForm(t, "https://www.youtube.com/watch?v=detail")
	ts.orch.Wait()

	t.Run("Completed", func(t *testing.T) {
		resp, err := http.Get(ts.http.URL + "/api/history/" + out["task_id"])
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		var task models.Task
		decodeJSON(t, resp, &task)
		if task.Script == "" || task.Summary == "" {
			t.Errorf("detail missing content: %+v", task)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		resp, err := http.Get(ts.http.URL + "/api/history/nope")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("Processing", func(t *testing.T) {
		ts.acquirer.gate = make(chan struct{})
		active := ts.submitForm(t, "https://www.youtube.com/watch?v=busy")
		defer func() {
			close(ts.acquirer.gate)
			ts.acquirer.gate = nil
			ts.orch.Wait()
		}()
		resp, err := http.Get(ts.http.URL + "/api/history/" + active["task_id"])
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404 for non-completed", resp.StatusCode)
		}
	})
}

func TestHistoryDelete(t *testing.T) {
	ts := newTestServer(t)
	out := ts.submitForm(t, "https://www.youtube.com/watch?v=rm")
	ts.orch.Wait()

	task, _ := ts.orch.Store().Get(out["task_id"])
	names := task.ArtifactFilenames()

	req, _ := http.NewRequest(http.MethodDelete, ts.http.URL+"/api/history/"+out["task_id"], nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	for _, name := range names {
		tu.AssertFileMissing(t, filepath.Join(ts.tempDir, name))
	}

	t.Run("Unknown", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, ts.http.URL+"/api/history/nope", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("DELETE: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestTaskDelete(t *testing.T) {
	ts := newTestServer(t)
	ts.acquirer.gate = make(chan struct{})
	out := ts.submitForm(t, "https://www.youtube.com/watch?v=cancel")

	req, _ := http.NewRequest(http.MethodDelete, ts.http.URL+"/api/task/"+out["task_id"], nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if _, ok := ts.orch.Store().Get(out["task_id"]); ok {
		t.Error("record survived delete")
	}
	ts.orch.Wait()

	t.Run("Unknown", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, ts.http.URL+"/api/task/nope", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("DELETE: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestDownload(t *testing.T) {
	ts := newTestServer(t)
	name := "summary_Stub_abc123.md"
	tu.MustWriteFile(t, ts.tempDir, name, "# Stub\n\ncontent")

	t.Run("Found", func(t *testing.T) {
		resp, err := http.Get(ts.http.URL + "/api/download/" + name)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
			t.Errorf("Content-Type = %q", ct)
		}
		if cd := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
			t.Errorf("Content-Disposition = %q", cd)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "# Stub\n\ncontent" {
			t.Errorf("body = %q", body)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		resp, err := http.Get(ts.http.URL + "/api/download/summary_gone_abc123.md")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("WrongExtension", func(t *testing.T) {
		resp, err := http.Get(ts.http.URL + "/api/download/tasks.json")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("Traversal", func(t *testing.T) {
		resp, err := http.Get(ts.http.URL + "/api/download/..%2e.md")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusNotFound &&
			resp.StatusCode != http.StatusMovedPermanently {
			t.Errorf("status = %d, want rejection", resp.StatusCode)
		}
	})
}

func TestActiveTasks(t *testing.T) {
	ts := newTestServer(t)
	ts.acquirer.gate = make(chan struct{})
	out := ts.submitForm(t, "https://www.youtube.com/watch?v=act")

	resp, err := http.Get(ts.http.URL + "/api/tasks/active")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var body struct {
		ActiveTasks    int      `json:"active_tasks"`
		ProcessingURLs int      `json:"processing_urls"`
		TaskIDs        []string `json:"task_ids"`
	}
	decodeJSON(t, resp, &body)
	if body.ActiveTasks != 1 || body.ProcessingURLs != 1 {
		t.Errorf("active = %+v", body)
	}
	if len(body.TaskIDs) != 1 || body.TaskIDs[0] != out["task_id"] {
		t.Errorf("task_ids = %v", body.TaskIDs)
	}

	close(ts.acquirer.gate)
	ts.orch.Wait()
}
