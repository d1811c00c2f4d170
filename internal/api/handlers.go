// Package api provides the HTTP boundary of the image transformation service.
package api

import (
	"cmp"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/oszuidwest/zwfm-imageproxy/internal/params"
	"github.com/oszuidwest/zwfm-imageproxy/internal/source"
	"github.com/oszuidwest/zwfm-imageproxy/internal/transform"
	"github.com/oszuidwest/zwfm-imageproxy/internal/types"
)

// cacheControlValue marks transformed images as immutable for a year;
// distinct parameters produce distinct URLs, so staleness is not a concern.
const cacheControlValue = "public, max-age=31536000, immutable"

// HealthResponse is the liveness endpoint's body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(HealthResponse{
		Status:  "ok",
		Version: s.version,
	}); err != nil {
		slog.Debug("Failed to write JSON response to client", "error", err)
	}
}

// acquireSource obtains the image bytes for the request: by URL for GET,
// from the uploaded body for POST. The global size ceiling is enforced
// here, before any codec work.
func (s *Server) acquireSource(r *http.Request) ([]byte, error) {
	maxBytes := s.service.Config().Image.GetMaxSourceBytes()

	var data []byte
	var err error

	if r.Method == http.MethodGet {
		imageURL := r.URL.Query().Get("url")
		if imageURL == "" {
			return nil, types.NewError(types.KindInvalidParameter, "Missing 'url' parameter for GET request")
		}
		data, err = s.service.Fetcher().FromURL(imageURL)
	} else {
		data, err = source.ReadUpload(r, maxBytes)
	}
	if err != nil {
		return nil, err
	}

	if err := source.CheckSize(data, maxBytes); err != nil {
		return nil, err
	}

	return data, nil
}

// handleConvert serves /image/to/{format}. Convert validates all its
// parameters before acquiring the source: none of them depend on the
// image's natural dimensions.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	target, err := params.TargetFormat(chi.URLParam(r, "format"))
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}

	quality, err := params.Quality(r.URL.Query().Get("quality"))
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}

	size, err := params.ExplicitSize(r.URL.Query().Get("size"))
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}

	data, err := s.acquireSource(r)
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}

	result, err := s.service.Pipeline().Convert(r.Context(), data, transform.ConvertRequest{
		Target:  target,
		Quality: quality,
		Size:    size,
	})
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", result.Format.ContentType())
	w.Header().Set("Cache-Control", cacheControlValue)
	if !result.ShortCircuit {
		w.Header().Set("X-Original-Size", strconv.Itoa(result.OriginalSize))
		w.Header().Set("X-Converted-Size", strconv.Itoa(len(result.Data)))
	}

	writeImage(w, result.Data)
}

// handleThumbnail serves /thumb and /image/thumb. Output is always WebP;
// any caller-supplied format is ignored. Width and height stay raw here
// because their validation needs the decoded image's natural dimensions.
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	fit, err := params.Fit(query.Get("fit"), types.FitCover)
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}

	quality, err := params.Quality(cmp.Or(query.Get("quality"), query.Get("q")))
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}

	data, err := s.acquireSource(r)
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}

	result, err := s.service.Pipeline().Thumbnail(r.Context(), data, transform.ThumbnailRequest{
		Width:   cmp.Or(query.Get("width"), query.Get("w")),
		Height:  cmp.Or(query.Get("height"), query.Get("h")),
		Fit:     fit,
		Quality: quality,
	})
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", result.Format.ContentType())
	w.Header().Set("Cache-Control", cacheControlValue)
	w.Header().Set("X-Thumbnail-Size", strconv.Itoa(result.Width)+"x"+strconv.Itoa(result.Height))
	w.Header().Set("X-Original-Size", strconv.Itoa(result.OriginalSize))
	w.Header().Set("X-Thumbnail-Size-Bytes", strconv.Itoa(len(result.Data)))

	writeImage(w, result.Data)
}

// writeImage writes transformed bytes with an explicit length.
func writeImage(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Debug("Failed to write image to client", "error", err)
	}
}
