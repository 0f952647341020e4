package compare

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image/png"
	diffimage "image-set-comparator/internal/diff/image"
	"image-set-comparator/internal/storage"
	"time"

	"golang.org/x/xerrors"
)

// EncodeDiff renders a mismatch as PNG. It returns nil for outcomes without
// pixel data.
func EncodeDiff(o Outcome) ([]byte, error) {
	if o.Diff == nil || o.reference == nil {
		return nil, nil
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, diffimage.Highlight(o.reference, o.Diff).Image()); err != nil {
		return nil, xerrors.Errorf("failed to encode diff image: %w", err)
	}
	return buffer.Bytes(), nil
}

// SaveDiff stores the rendered mismatch in sink below directory and returns
// its URL, or "" when there is nothing to store.
func (c *Comparator) SaveDiff(ctx context.Context, sink storage.Storage, directory string, o Outcome) (string, error) {
	data, err := EncodeDiff(o)
	if err != nil {
		return "", err
	}
	if data == nil {
		return "", nil
	}

	timestamp := time.Now().Format("20060102150405")

	h := sha256.New()
	h.Write([]byte(c.config.ReferenceDir + c.config.CandidateDir))
	hash := fmt.Sprintf("%x", h.Sum(nil))[:16]

	key := sink.Join(directory, fmt.Sprintf("Compare/diff/%s/%s/%s", hash, timestamp, o.Name))
	url, err := sink.Put(ctx, key, data)
	if err != nil {
		return "", xerrors.Errorf("failed to save diff image: %w", err)
	}
	return url, nil
}
