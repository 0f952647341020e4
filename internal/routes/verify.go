package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"image-set-comparator/internal/compare"
	diffimage "image-set-comparator/internal/diff/image"
	"image-set-comparator/internal/myhttp"
	"image-set-comparator/internal/report"
	"image-set-comparator/internal/storage"
	"net/http"
	"path/filepath"
)

type VerifyRequest struct {
	ReferenceDir string `json:"referenceDir"`
	CandidateDir string `json:"candidateDir"`
	OnSkip       string `json:"onSkip,omitempty"`
	DiffMode     string `json:"diffMode,omitempty"`
	Concurrency  int    `json:"concurrency,omitempty"`
	Inventory    bool   `json:"inventory,omitempty"`
}

// Verify runs the set comparison on two directories of storageClient. With
// localOnly, directories must be relative paths that stay inside the
// server's working directory. Requests asking for more than maxConcurrency
// pairs at once are rejected.
func Verify(storageClient storage.Storage, localOnly bool, maxConcurrency int) http.HandlerFunc {
	maxConcurrency = max(maxConcurrency, 1)

	return func(w http.ResponseWriter, r *http.Request) {
		logger := myhttp.Logger(r.Context())

		var request VerifyRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&request); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if localOnly && (!filepath.IsLocal(request.ReferenceDir) || !filepath.IsLocal(request.CandidateDir)) {
			http.Error(w, "directories must be local relative paths", http.StatusBadRequest)
			return
		}

		if request.Concurrency > maxConcurrency {
			http.Error(w, fmt.Sprintf("concurrency must not exceed %d", maxConcurrency), http.StatusBadRequest)
			return
		}

		skipPolicy, err := compare.ParseSkipPolicy(request.OnSkip)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mode, err := diffimage.ParseMode(request.DiffMode)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		comparator, err := compare.NewComparator(storageClient, compare.Config{
			ReferenceDir: request.ReferenceDir,
			CandidateDir: request.CandidateDir,
			SkipPolicy:   skipPolicy,
			DiffMode:     mode,
			Concurrency:  request.Concurrency,
			Logger:       logger,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := comparator.Run(r.Context())
		if err != nil {
			if errors.Is(err, storage.ErrDirectoryNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			logger.Error("failed to verify", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		response := report.New(result)
		if request.Inventory {
			inventory, err := comparator.Inventory(r.Context())
			if err != nil {
				logger.Error("failed to take inventory", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			response.WithInventory(inventory)
		}

		writeJSON(w, r, response)
	}
}
