package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/reloquent/tabledoc/internal/consistency"
)

func run(id string, start time.Time, findings ...consistency.Finding) *consistency.Result {
	return &consistency.Result{
		RunID:       id,
		Source:      "DDL file",
		Tables:      []string{"MST_Employee"},
		Findings:    findings,
		StartedAt:   start,
		CompletedAt: start.Add(time.Second),
	}
}

func TestJSONFilePublishAndRecent(t *testing.T) {
	ctx := context.Background()
	j := &JSONFile{Path: filepath.Join(t.TempDir(), "history", "runs.jsonl")}

	start := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		r := run(id, start.Add(time.Duration(i)*time.Hour))
		if id == "b" {
			r.Findings = []consistency.Finding{{Severity: consistency.SeverityError, Table: "MST_Employee",
				Category: consistency.CategoryColumn, Message: "column email exists in YAML but not in DDL"}}
		}
		if err := j.Publish(ctx, r); err != nil {
			t.Fatalf("Publish %s: %v", id, err)
		}
	}

	runs, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "c" || runs[1].RunID != "b" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[1].IsValid() {
		t.Error("run b should be invalid")
	}
	if !runs[0].StartedAt.Equal(start.Add(2 * time.Hour)) {
		t.Errorf("StartedAt = %v", runs[0].StartedAt)
	}

	all, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 runs, got %d", len(all))
	}
}

func TestJSONFileMissing(t *testing.T) {
	j := &JSONFile{Path: filepath.Join(t.TempDir(), "none.jsonl")}
	runs, err := j.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}

func TestJSONFileCorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	if err := os.WriteFile(path, []byte("{\"run_id\":\"a\"}\nnot json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := (&JSONFile{Path: path}).Recent(context.Background(), 0)
	if err == nil || !strings.Contains(err.Error(), ":2:") {
		t.Fatalf("expected error naming line 2, got %v", err)
	}
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	ok := &Recorder{}
	failing := &Recorder{PublishErr: errors.New("mongo unavailable")}
	m := Multi{ok, failing}

	err := m.Publish(ctx, run("x", time.Now()))
	if err == nil || !strings.Contains(err.Error(), "mongo unavailable") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(ok.Runs()) != 1 {
		t.Error("healthy publisher should still receive the run")
	}

	runs, err := m.Recent(ctx, 1)
	if err != nil || len(runs) != 1 || runs[0].RunID != "x" {
		t.Errorf("Recent = %+v, %v", runs, err)
	}

	if err := m.Close(ctx); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !ok.Closed() || !failing.Closed() {
		t.Error("expected every publisher to be closed")
	}

	if runs, err := (Multi{}).Recent(ctx, 3); err != nil || runs != nil {
		t.Errorf("empty Multi Recent = %v, %v", runs, err)
	}
}
