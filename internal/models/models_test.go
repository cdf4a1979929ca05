package models

import "testing"

func TestStatus(t *testing.T) {
	t.Run("Terminal", func(t *testing.T) {
		if StatusProcessing.Terminal() {
			t.Error("processing should not be terminal")
		}
		if !StatusCompleted.Terminal() {
			t.Error("completed should be terminal")
		}
		if !StatusError.Terminal() {
			t.Error("error should be terminal")
		}
	})
}

func TestTask(t *testing.T) {
	t.Run("Clone", func(t *testing.T) {
		task := &Task{
			ID:            "abc",
			Status:        StatusProcessing,
			Progress:      40,
			MediaMetadata: &MediaMetadata{Uploader: "someone"},
		}

		clone := task.Clone()
		clone.Progress = 55
		clone.MediaMetadata.Uploader = "someone else"

		if task.Progress != 40 {
			t.Errorf("clone mutated original progress: %d", task.Progress)
		}
		if task.MediaMetadata.Uploader != "someone" {
			t.Errorf("clone shares metadata with original: %s", task.MediaMetadata.Uploader)
		}
	})

	t.Run("CloneNil", func(t *testing.T) {
		var task *Task
		if task.Clone() != nil {
			t.Error("cloning nil task should yield nil")
		}
	})

	t.Run("ArtifactFilenames", func(t *testing.T) {
		task := &Task{
			ScriptFilename:  "transcript_a_b.md",
			SummaryFilename: "summary_a_b.md",
			RawScriptFile:   "raw_a_b.md",
			ScriptPath:      "/tmp/scribe/transcript_a_b.md",
			TranslationPath: "/tmp/scribe/translation_a_b.md",
		}

		names := task.ArtifactFilenames()
		want := map[string]bool{
			"transcript_a_b.md":  true,
			"summary_a_b.md":     true,
			"raw_a_b.md":         true,
			"translation_a_b.md": true,
		}
		if len(names) != len(want) {
			t.Fatalf("expected %d unique names, got %v", len(want), names)
		}
		for _, n := range names {
			if !want[n] {
				t.Errorf("unexpected artifact name %s", n)
			}
		}
	})
}
