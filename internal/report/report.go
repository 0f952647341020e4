// Package report renders comparison results for people and for CI.
package report

import (
	"encoding/json"
	"fmt"
	"image-set-comparator/internal/compare"
	"io"
	"os"
	"strings"

	"golang.org/x/xerrors"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

type Report struct {
	AllCorrect bool      `json:"allCorrect"`
	Mismatch   string    `json:"mismatch,omitempty"`
	Compared   int       `json:"compared"`
	Skipped    []Skipped `json:"skipped"`
	DiffPath   string    `json:"diffPath,omitempty"`
	DiffAmount float64   `json:"diffAmount,omitempty"`
	Missing    []string  `json:"missing,omitempty"`
	Extra      []string  `json:"extra,omitempty"`
}

func New(result *compare.Result) *Report {
	r := &Report{
		AllCorrect: result.AllCorrect,
		Mismatch:   result.Mismatch,
		Compared:   result.Compared,
		Skipped:    make([]Skipped, 0, len(result.Skipped)),
	}
	for _, o := range result.Skipped {
		s := Skipped{Name: o.Name, Reason: string(o.Reason)}
		if o.Err != nil {
			s.Error = o.Err.Error()
		}
		r.Skipped = append(r.Skipped, s)
	}
	if result.Failure != nil && result.Failure.Diff != nil {
		r.DiffAmount = result.Failure.Diff.DiffAmount
	}
	return r
}

func (r *Report) WithInventory(inventory *compare.Inventory) *Report {
	r.Missing = inventory.Missing
	r.Extra = inventory.Extra
	return r
}

// Message is the one-line verdict.
func (r *Report) Message() string {
	if r.AllCorrect {
		return "All output is correct"
	}
	return "Output is not correct for image: " + r.Mismatch
}

func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case FormatText, "":
		if _, err := fmt.Fprintln(w, r.Message()); err != nil {
			return xerrors.Errorf("failed to write report: %w", err)
		}
	case FormatJSON:
		if err := json.NewEncoder(w).Encode(r); err != nil {
			return xerrors.Errorf("failed to encode report: %w", err)
		}
	default:
		return xerrors.Errorf("unknown report format: %s", format)
	}
	return nil
}

// Outputs returns the step outputs published to GitHub Actions.
func (r *Report) Outputs() [][2]string {
	return [][2]string{
		{"all_correct", fmt.Sprintf("%t", r.AllCorrect)},
		{"mismatch", r.Mismatch},
		{"compared", fmt.Sprintf("%d", r.Compared)},
		{"skipped", fmt.Sprintf("%d", len(r.Skipped))},
		{"message", r.Message()},
	}
}

// WriteGitHubOutput appends the outputs to the file named by GITHUB_OUTPUT.
// It does nothing outside GitHub Actions.
func (r *Report) WriteGitHubOutput() error {
	githubOutput := os.Getenv("GITHUB_OUTPUT")
	if githubOutput == "" {
		return nil
	}

	f, err := os.OpenFile(githubOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return xerrors.Errorf("failed to open GITHUB_OUTPUT: %w", err)
	}
	defer f.Close()

	for _, kv := range r.Outputs() {
		value := strings.ReplaceAll(kv[1], "\n", " ")
		if _, err := fmt.Fprintf(f, "%s=%s\n", kv[0], value); err != nil {
			return xerrors.Errorf("failed to write GITHUB_OUTPUT: %w", err)
		}
	}
	return nil
}
