package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"image-set-comparator/internal/compare"
	"image-set-comparator/internal/report"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteText(t *testing.T) {
	tests := []struct {
		name   string
		result *compare.Result
		want   string
	}{
		{
			"AllCorrect",
			&compare.Result{AllCorrect: true, Compared: 3},
			"All output is correct\n",
		},
		{
			"Mismatch",
			&compare.Result{AllCorrect: false, Mismatch: "a.png", Compared: 1},
			"Output is not correct for image: a.png\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buffer bytes.Buffer
			if err := report.New(tt.result).Write(&buffer, report.FormatText); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, buffer.String()); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	result := &compare.Result{
		AllCorrect: true,
		Compared:   1,
		Skipped: []compare.Outcome{
			{Kind: compare.KindSkipped, Name: "b.png", Reason: compare.ReasonCandidateUnreadable, Err: errors.New("no such file")},
		},
	}

	var buffer bytes.Buffer
	if err := report.New(result).WithInventory(&compare.Inventory{Missing: []string{"b.png"}}).Write(&buffer, report.FormatJSON); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got report.Report
	if err := json.Unmarshal(buffer.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := report.Report{
		AllCorrect: true,
		Compared:   1,
		Skipped:    []report.Skipped{{Name: "b.png", Reason: "candidate unreadable", Error: "no such file"}},
		Missing:    []string{"b.png"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	if err := report.New(&compare.Result{AllCorrect: true}).Write(&bytes.Buffer{}, "yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteGitHubOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")
	t.Setenv("GITHUB_OUTPUT", path)

	if err := report.New(&compare.Result{Mismatch: "a.png", Compared: 2}).WriteGitHubOutput(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "all_correct=false\nmismatch=a.png\ncompared=2\nskipped=0\nmessage=Output is not correct for image: a.png\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
