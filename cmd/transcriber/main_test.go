package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/storage"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mp3", "a.WAV", "notes.txt", "c.flac"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0644)
	}
	os.Mkdir(filepath.Join(dir, "nested.mp3"), 0755)

	got, err := collectInputs([]string{dir, "/missing/talk.mp3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.WAV"),
		filepath.Join(dir, "b.mp3"),
		filepath.Join(dir, "c.flac"),
		"/missing/talk.mp3",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestConfigCommand_FlagsAndFile(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "output:\n  format: srt\nsegmentation:\n  chunk_minutes: 5\n")

	out, err := run(t, "config", "--config", cfg, "--log-level", "debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"format: srt", "chunk_minutes: 5", "level: debug", "offset_mode: measured"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestConfigCommand_InvalidConfig(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "output:\n  format: docx\n")
	if _, err := run(t, "config", "--config", cfg); err == nil {
		t.Error("expected validation error")
	}
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "jobs.db")
	db, err := storage.NewMetadataDB(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	db.CreateJob(types.JobRecord{JobID: "job-42", SourcePath: "lecture.mp3", Status: types.StatusQueued})
	db.UpdateStatus("job-42", types.StatusFailed, "INPUT_ERROR: input: unreadable")
	db.Close()

	cfg := writeConfig(t, dir, "storage:\n  database: "+dbPath+"\n")
	out, err := run(t, "history", "--config", cfg, "--limit", "5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "job-42") || !strings.Contains(out, "FAILED") || !strings.Contains(out, "unreadable") {
		t.Errorf("unexpected history output:\n%s", out)
	}
}

func TestHistoryCommand_SingleJob(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "jobs.db")
	db, err := storage.NewMetadataDB(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	db.CreateJob(types.JobRecord{JobID: "job-7", SourcePath: "talk.wav", Status: types.StatusQueued, Format: "srt"})
	db.CompleteJob(types.JobRecord{JobID: "job-7", OutputPath: "/out/talk_merged.srt", Chunks: 4, Format: "srt"})
	db.UpdateStatus("job-7", types.StatusCompleted, "")
	db.Close()

	cfg := writeConfig(t, dir, "storage:\n  database: "+dbPath+"\n")
	out, err := run(t, "history", "--config", cfg, "job-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"job-7", "COMPLETED", "/out/talk_merged.srt", "chunks:", "4"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}

	if _, err := run(t, "history", "--config", cfg, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTranscribeCommand_MissingFileFailsJob(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, strings.Join([]string{
		"storage:",
		"  work_dir: " + filepath.Join(dir, "work"),
		"  database: " + filepath.Join(dir, "jobs.db"),
		"",
	}, "\n"))

	stale := filepath.Join(dir, "work", "0badc0de", "old_segments", "old_part000.mp3")
	os.MkdirAll(filepath.Dir(stale), 0755)
	os.WriteFile(stale, []byte("chunk"), 0644)
	past := time.Now().Add(-72 * time.Hour)
	os.Chtimes(stale, past, past)
	os.Chtimes(filepath.Dir(stale), past, past)

	out, err := run(t, "transcribe", "--config", cfg, "--no-diarization", filepath.Join(dir, "absent.mp3"))
	if err == nil || !strings.Contains(err.Error(), "1 of 1 files failed") {
		t.Fatalf("expected batch failure, got %v", err)
	}
	if !strings.Contains(out, "FAILED") || !strings.Contains(out, "INPUT_ERROR") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Dir(filepath.Dir(stale))); !os.IsNotExist(err) {
		t.Errorf("expected the cleanup scheduler to sweep stale chunks, got %v", err)
	}

	db, err := storage.NewMetadataDB(filepath.Join(dir, "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	jobs, _ := db.ListJobs(0)
	if len(jobs) != 1 || jobs[0].Status != types.StatusFailed {
		t.Errorf("expected one failed job, got %+v", jobs)
	}
}

func TestCleanupCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "storage:\n  work_dir: "+filepath.Join(dir, "work")+"\n")
	out, err := run(t, "cleanup", "--config", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "removed 0 files") {
		t.Errorf("unexpected output %q", out)
	}
}
