package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/desertthunder/scribe/internal/models"
	"github.com/desertthunder/scribe/internal/shared"
	"github.com/desertthunder/scribe/internal/tasks"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeDetail emits the {"detail": "..."} error shape clients expect.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	rawURL := strings.TrimSpace(r.FormValue("url"))
	language := strings.TrimSpace(r.FormValue("summary_language"))
	if language == "" {
		language = "zh"
	}

	taskID, created, err := s.orch.Submit(rawURL, language)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	message := "任务已创建，正在处理中..."
	if !created {
		message = "该视频正在处理中，请等待..."
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"task_id": taskID,
		"message": message,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	task, ok := s.orch.Store().Get(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "任务不存在")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// historyItem is the summary row the list endpoint returns. Full content
// (script, summary, translation) is only available through the detail route.
type historyItem struct {
	TaskID           string `json:"task_id"`
	URL              string `json:"url"`
	VideoTitle       string `json:"video_title"`
	CreatedAt        string `json:"created_at"`
	FinishedAt       string `json:"finished_at"`
	DetectedLanguage string `json:"detected_language"`
	SummaryLanguage  string `json:"summary_language"`
	HasTranslation   bool   `json:"has_translation"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		writeDetail(w, http.StatusBadRequest, "page 参数无效")
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit < 1 || limit > 100 {
		writeDetail(w, http.StatusBadRequest, "limit 参数无效")
		return
	}

	total, completed := s.orch.Store().CompletedPage(page, limit)
	items := make([]historyItem, 0, len(completed))
	for _, t := range completed {
		items = append(items, historyItem{
			TaskID:           t.ID,
			URL:              t.URL,
			VideoTitle:       t.VideoTitle,
			CreatedAt:        t.CreatedAt,
			FinishedAt:       t.FinishedAt,
			DetectedLanguage: t.DetectedLanguage,
			SummaryLanguage:  t.SummaryLanguage,
			HasTranslation:   t.HasTranslation,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page":  page,
		"limit": limit,
		"total": total,
		"items": items,
	})
}

func (s *Server) handleHistoryDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	task, ok := s.orch.Store().Get(id)
	if !ok || task.Status != models.StatusCompleted {
		writeDetail(w, http.StatusNotFound, "记录不存在")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.orch.DeleteCompleted(id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "记录已删除"})
	case errors.Is(err, shared.ErrTaskNotFound), errors.Is(err, shared.ErrNotCompleted):
		writeDetail(w, http.StatusNotFound, "记录不存在")
	case errors.Is(err, shared.ErrInvalidFilename):
		writeDetail(w, http.StatusBadRequest, "文件名无效")
	default:
		s.logger.Error("deleting history record", "task", id, "error", err)
		writeDetail(w, http.StatusInternalServerError, "删除失败")
	}
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.orch.CancelAndDelete(id); err != nil {
		if errors.Is(err, shared.ErrTaskNotFound) {
			writeDetail(w, http.StatusNotFound, "任务不存在")
			return
		}
		s.logger.Error("deleting task", "task", id, "error", err)
		writeDetail(w, http.StatusInternalServerError, "删除失败")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "任务已删除"})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	if !strings.HasSuffix(name, ".md") {
		writeDetail(w, http.StatusBadRequest, "文件名无效")
		return
	}
	if err := tasks.ValidateFilename(name); err != nil {
		writeDetail(w, http.StatusBadRequest, "文件名无效")
		return
	}

	path := filepath.Join(s.tempDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeDetail(w, http.StatusNotFound, "文件不存在")
			return
		}
		s.logger.Error("reading artifact", "file", name, "error", err)
		writeDetail(w, http.StatusInternalServerError, "读取文件失败")
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	ids, processing := s.orch.ActiveSnapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"active_tasks":    len(ids),
		"processing_urls": processing,
		"task_ids":        ids,
	})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
