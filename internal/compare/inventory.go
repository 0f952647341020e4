package compare

import (
	"context"
	difftext "image-set-comparator/internal/diff/text"

	"golang.org/x/xerrors"
)

// Inventory describes which images exist on only one side.
type Inventory struct {
	// Missing are reference images without a candidate.
	Missing []string
	// Extra are candidate images without a reference.
	Extra []string
	// Diff is a line diff of the two sorted image listings.
	Diff []byte
}

func (i *Inventory) Complete() bool {
	return len(i.Missing) == 0 && len(i.Extra) == 0
}

func (c *Comparator) Inventory(ctx context.Context) (*Inventory, error) {
	references, err := c.storage.List(ctx, c.config.ReferenceDir)
	if err != nil {
		return nil, xerrors.Errorf("failed to list reference directory: %w", err)
	}
	candidates, err := c.storage.List(ctx, c.config.CandidateDir)
	if err != nil {
		return nil, xerrors.Errorf("failed to list candidate directory: %w", err)
	}

	result := difftext.NewLineDiff().CalculateLines(filterImages(references), filterImages(candidates))

	inventory := &Inventory{Diff: result.Diff}
	for _, e := range result.Edits {
		switch e.Op {
		case difftext.OpDelete:
			inventory.Missing = append(inventory.Missing, e.Line)
		case difftext.OpInsert:
			inventory.Extra = append(inventory.Extra, e.Line)
		}
	}
	return inventory, nil
}
