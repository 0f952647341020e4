package routes

import (
	"encoding/base64"
	"encoding/json"
	"image-set-comparator/internal/compare"
	diffimage "image-set-comparator/internal/diff/image"
	"image-set-comparator/internal/myhttp"
	"io"
	"mime/multipart"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const maxUploadMemory = 32 << 20

type CompareResponse struct {
	Kind       compare.Kind `json:"kind"`
	Name       string       `json:"name,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	Channels   [3]int64     `json:"channels"`
	DiffAmount float64      `json:"diffAmount"`
	// DiffData is the base64 PNG rendering of a mismatch.
	DiffData string `json:"diffData,omitempty"`
}

// Compare handles a multipart upload of one reference and one candidate
// image and reports whether they match.
func Compare(outcomes metric.Int64Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := myhttp.Logger(r.Context())

		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		mode, err := diffimage.ParseMode(r.FormValue("diffMode"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		referenceData, referenceName, err := readFormFile(r, "reference")
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		candidateData, _, err := readFormFile(r, "candidate")
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		o := compare.CompareData(referenceName, referenceData, candidateData, mode)
		outcomes.Add(r.Context(), 1, metric.WithAttributes(attribute.String("kind", string(o.Kind))))

		response := CompareResponse{
			Kind:   o.Kind,
			Name:   o.Name,
			Reason: string(o.Reason),
		}
		if o.Diff != nil {
			response.Channels = o.Diff.Channels
			response.DiffAmount = o.Diff.DiffAmount

			data, err := compare.EncodeDiff(o)
			if err != nil {
				logger.Error("failed to encode diff image", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			response.DiffData = base64.StdEncoding.EncodeToString(data)
		}
		if o.Err != nil {
			logger.Info("pair skipped", "name", o.Name, "reason", o.Reason, "error", o.Err)
		}

		writeJSON(w, r, response)
	}
}

func readFormFile(r *http.Request, key string) ([]byte, string, error) {
	file, header, err := r.FormFile(key)
	if err != nil {
		return nil, "", err
	}
	defer func(file multipart.File) {
		_ = file.Close()
	}(file)

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		myhttp.Logger(r.Context()).Error("failed to marshal json", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
