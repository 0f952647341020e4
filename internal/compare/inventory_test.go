package compare_test

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"image-set-comparator/internal/compare"
	"image-set-comparator/internal/storage"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInventory(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"a.png", "b.png", "notes.txt"} {
		writePNG(t, filepath.Join(f.reference, name), 1, 1, nil)
	}
	for _, name := range []string{"a.png", "c.png"} {
		writePNG(t, filepath.Join(f.candidate, name), 1, 1, nil)
	}

	c, err := compare.NewComparator(f.storage, compare.Config{ReferenceDir: f.reference, CandidateDir: f.candidate})
	if err != nil {
		t.Fatal(err)
	}
	inventory, err := c.Inventory(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inventory.Complete() {
		t.Error("Expected incomplete inventory")
	}
	if diff := cmp.Diff([]string{"b.png"}, inventory.Missing); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"c.png"}, inventory.Extra); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("  a.png\n- b.png\n+ c.png", string(inventory.Diff)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestSaveDiff(t *testing.T) {
	f := newFixture(t)
	writePNG(t, filepath.Join(f.reference, "a.png"), 2, 1, nil)
	writePNG(t, filepath.Join(f.candidate, "a.png"), 2, 1, setPixel(1, 0, color.RGBA{G: 40, A: 255}))

	c, err := compare.NewComparator(f.storage, compare.Config{ReferenceDir: f.reference, CandidateDir: f.candidate})
	if err != nil {
		t.Fatal(err)
	}
	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	sink, err := storage.NewFileStorage(context.Background(), storage.FileConfig{})
	if err != nil {
		t.Fatal(err)
	}
	directory := t.TempDir()
	url, err := c.SaveDiff(context.Background(), sink, directory, *result.Failure)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, filepath.Join(directory, "Compare", "diff")) || !strings.HasSuffix(url, "a.png") {
		t.Errorf("unexpected diff location: %s", url)
	}

	data, err := os.ReadFile(url)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(color.NRGBA{R: 255, A: 255}, color.NRGBAModel.Convert(img.At(1, 0))); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(color.NRGBA{R: 170, G: 170, B: 170, A: 255}, color.NRGBAModel.Convert(img.At(0, 0))); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	skippedURL, err := c.SaveDiff(context.Background(), sink, directory, compare.Outcome{Kind: compare.KindSkipped, Name: "b.png"})
	if err != nil || skippedURL != "" {
		t.Errorf("Expected nothing saved for a skipped outcome, got %q, %v", skippedURL, err)
	}
}
