package compare

import (
	"image-set-comparator/internal/bitmap"
	diffimage "image-set-comparator/internal/diff/image"

	"golang.org/x/xerrors"
)

type Kind string

const (
	KindMatch    Kind = "match"
	KindMismatch Kind = "mismatch"
	KindSkipped  Kind = "skipped"
)

type Reason string

const (
	ReasonReferenceUnreadable Reason = "reference unreadable"
	ReasonCandidateUnreadable Reason = "candidate unreadable"
	ReasonShapeMismatch       Reason = "shape mismatch"
)

// Outcome is the verdict for one reference/candidate pair.
type Outcome struct {
	Kind   Kind
	Name   string
	Reason Reason
	Err    error
	// Diff is only set for mismatches.
	Diff *diffimage.DiffResult

	reference *bitmap.Bitmap
}

func matched(name string) Outcome {
	return Outcome{Kind: KindMatch, Name: name}
}

func mismatched(name string, reference *bitmap.Bitmap, diff *diffimage.DiffResult) Outcome {
	return Outcome{Kind: KindMismatch, Name: name, Diff: diff, reference: reference}
}

func skipped(name string, reason Reason, err error) Outcome {
	return Outcome{Kind: KindSkipped, Name: name, Reason: reason, Err: err}
}

// Failed reports whether the outcome ends the scan under policy.
func (o Outcome) Failed(policy SkipPolicy) bool {
	switch o.Kind {
	case KindMismatch:
		return true
	case KindSkipped:
		return policy == SkipPolicyFail
	}
	return false
}

type SkipPolicy string

const (
	// SkipPolicySkip ignores pairs that cannot be compared.
	SkipPolicySkip SkipPolicy = "skip"
	// SkipPolicyFail reports a pair that cannot be compared as incorrect.
	SkipPolicyFail SkipPolicy = "fail"
)

func ParseSkipPolicy(s string) (SkipPolicy, error) {
	switch SkipPolicy(s) {
	case SkipPolicySkip, SkipPolicyFail:
		return SkipPolicy(s), nil
	case "":
		return SkipPolicySkip, nil
	}
	return "", xerrors.Errorf("unknown skip policy: %s", s)
}
