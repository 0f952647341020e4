package text

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLineDiff_CalculateLines(t *testing.T) {
	t.Run("Identical", func(t *testing.T) {
		result := NewLineDiff().CalculateLines([]string{"a.png", "b.png"}, []string{"a.png", "b.png"})

		if result.DiffAmount != 0.0 {
			t.Errorf("Expected DiffAmount to be 0.0, got %f", result.DiffAmount)
		}
		if diff := cmp.Diff("  a.png\n  b.png", string(result.Diff)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("MissingAndExtra", func(t *testing.T) {
		result := NewLineDiff().CalculateLines([]string{"a.png", "b.png", "c.png"}, []string{"a.png", "c.png", "d.png"})

		want := []Edit{
			{Op: OpEqual, Line: "a.png"},
			{Op: OpDelete, Line: "b.png"},
			{Op: OpEqual, Line: "c.png"},
			{Op: OpInsert, Line: "d.png"},
		}
		if diff := cmp.Diff(want, result.Edits); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff("  a.png\n- b.png\n  c.png\n+ d.png", string(result.Diff)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if result.DiffAmount != 2.0/6.0 {
			t.Errorf("Expected DiffAmount to be %f, got %f", 2.0/6.0, result.DiffAmount)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		result := NewLineDiff().CalculateLines(nil, nil)

		if len(result.Edits) != 0 || result.DiffAmount != 0.0 {
			t.Errorf("Expected empty diff, got %+v", result)
		}
	})
}

func TestLineDiff_Calculate(t *testing.T) {
	result, err := NewLineDiff().Calculate([]byte("x\ny"), []byte("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff("  x\n- y", string(result.Diff)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
